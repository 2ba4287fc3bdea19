package subtitles

import (
	"strings"

	"dialogue-shorts/types"
)

// Chunk is the group of words shown together as one line. Words is set
// only when the chunk comes from word-timed tokens.
type Chunk struct {
	Text  []string
	Words []types.WordToken
	Start float64
	End   float64
}

// Timed reports whether every word of the chunk carries its own timing
func (c Chunk) Timed() bool {
	return len(c.Words) > 0 && len(c.Words) == len(c.Text)
}

func (c Chunk) String() string {
	return strings.Join(c.Text, " ")
}

// ChunkSegments groups transcript words into chunks of n. Segments with
// word tokens use the token times; the rest are split on whitespace and
// timed by interpolation over the segment span.
func ChunkSegments(segs []types.TranscriptSegment, n int, maxSpan float64) []Chunk {
	if n < 1 {
		n = 1
	}
	var chunks []Chunk
	for _, seg := range segs {
		if len(seg.Words) > 0 {
			chunks = append(chunks, chunkWords(seg.Words, n)...)
			continue
		}
		words := strings.Fields(seg.Text)
		if len(words) == 0 {
			continue
		}
		chunks = append(chunks, interpolate(words, seg.Start, seg.End, n, maxSpan)...)
	}
	return chunks
}

func chunkWords(words []types.WordToken, n int) []Chunk {
	var out []Chunk
	for i := 0; i < len(words); i += n {
		j := min(i+n, len(words))
		group := words[i:j]
		c := Chunk{
			Words: append([]types.WordToken(nil), group...),
			Start: group[0].Start,
			End:   group[len(group)-1].End,
		}
		for _, w := range group {
			c.Text = append(c.Text, w.Text)
		}
		out = append(out, c)
	}
	return out
}

// interpolate times chunks of an untimed segment proportionally to their
// word count. A segment with no usable span gets 0.2s per word instead.
func interpolate(words []string, start, end float64, n int, maxSpan float64) []Chunk {
	var out []Chunk
	span := end - start
	total := float64(len(words))
	clock := start
	for i := 0; i < len(words); i += n {
		j := min(i+n, len(words))
		c := Chunk{Text: append([]string(nil), words[i:j]...)}
		if span > 0 {
			c.Start = start + span*float64(i)/total
			c.End = start + span*float64(j)/total
		} else {
			c.Start = clock
			c.End = clock + max(0.2*float64(j-i), 0.5)
			clock = c.End
		}
		if maxSpan > 0 && c.End-c.Start > maxSpan {
			c.End = c.Start + maxSpan
		}
		out = append(out, c)
	}
	return out
}

// ChunkTurns is the estimated path used when no transcript exists. Each
// turn occupies its duration on a running clock and that interval is
// shared equally between the turn's chunks.
func ChunkTurns(turns []types.DialogueTurn, durations []float64, n int, maxSpan float64) []Chunk {
	if n < 1 {
		n = 1
	}
	var chunks []Chunk
	clock := 0.0
	for i, t := range turns {
		d := t.EstimatedDuration()
		if i < len(durations) && durations[i] > 0 {
			d = durations[i]
		}
		words := strings.Fields(t.Text)
		groups := (len(words) + n - 1) / n
		for g := 0; g < groups; g++ {
			j := min((g+1)*n, len(words))
			c := Chunk{
				Text:  append([]string(nil), words[g*n:j]...),
				Start: clock + d*float64(g)/float64(groups),
				End:   clock + d*float64(g+1)/float64(groups),
			}
			if maxSpan > 0 && c.End-c.Start > maxSpan {
				c.End = c.Start + maxSpan
			}
			chunks = append(chunks, c)
		}
		clock += d
	}
	return chunks
}
