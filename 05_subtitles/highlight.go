package subtitles

import "dialogue-shorts/types"

// Line is a chunk placed at its final, normalized display interval. The
// chunk keeps its raw span; Start and End come from the interval.
type Line struct {
	Chunk Chunk
	Interval
}

// HighlightEvents emits the karaoke frames of one line. For K timed words
// the K events partition the line interval exactly: word j is active from
// its own start (kept inside the line) until the next word takes over.
// Untimed lines give a single event with no active word.
func HighlightEvents(l Line) []types.HighlightEvent {
	words := append([]string(nil), l.Chunk.Text...)
	if !l.Chunk.Timed() {
		return []types.HighlightEvent{{Start: l.Start, End: l.End, Words: words, Active: -1}}
	}

	k := len(l.Chunk.Words)
	bounds := make([]float64, k+1)
	bounds[0] = l.Start
	bounds[k] = l.End
	degenerate := false
	for j := 1; j < k; j++ {
		b := min(max(l.Chunk.Words[j].Start, bounds[j-1]), l.End)
		bounds[j] = b
		if b <= bounds[j-1] {
			degenerate = true
		}
	}
	if k > 1 && bounds[k] <= bounds[k-1] {
		degenerate = true
	}
	if degenerate {
		// word times collapsed, fall back to an even split by word index
		span := l.End - l.Start
		for j := 1; j < k; j++ {
			bounds[j] = l.Start + span*float64(j)/float64(k)
		}
	}

	events := make([]types.HighlightEvent, 0, k)
	for j := 0; j < k; j++ {
		events = append(events, types.HighlightEvent{
			Start:  bounds[j],
			End:    bounds[j+1],
			Words:  words,
			Active: j,
		})
	}
	return events
}

// HighlightTrack expands every line into its highlight events
func HighlightTrack(lines []Line) []types.HighlightEvent {
	var out []types.HighlightEvent
	for _, l := range lines {
		out = append(out, HighlightEvents(l)...)
	}
	return out
}
