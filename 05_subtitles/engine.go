package subtitles

import (
	"dialogue-shorts/config"
	"dialogue-shorts/types"
)

// Mode says how the line track was timed
type Mode string

const (
	ModeWordTimed Mode = "word-timed"
	ModeSegment   Mode = "segment"
	ModeEstimated Mode = "estimated"
)

// Options are the timing parameters of the engine
type Options struct {
	WordsPerLine    int
	LineMinDuration float64
	LineMaxDuration float64
	WordMinDuration float64
}

// OptionsFromProfile takes the timing fields of a subtitle profile
func OptionsFromProfile(p config.Profile) Options {
	return Options{
		WordsPerLine:    p.WordsPerLine,
		LineMinDuration: p.LineMinDuration,
		LineMaxDuration: p.LineMaxDuration,
		WordMinDuration: p.WordMinDuration,
	}
}

// Tracks is everything the engine produces for one run
type Tracks struct {
	Mode        Mode
	Lines       []types.SubtitleCue
	Words       []types.SubtitleCue
	Highlights  []types.HighlightEvent
	Speakers    []types.CharacterSegment
	Characters  []types.SubtitleCue
	Attribution AttributionSource
}

// Engine turns transcripts or dialogue turns into subtitle tracks. It
// holds no state between calls, so equal input always gives equal output.
type Engine struct {
	opt Options
}

// NewEngine returns an engine for opt
func NewEngine(opt Options) Engine {
	if opt.WordsPerLine < 1 {
		opt.WordsPerLine = 1
	}
	return Engine{opt: opt}
}

// Input is the evidence available to the engine. Segments may be empty,
// in which case lines are estimated from the turns. Clips holds one
// duration per turn when the synthesized clips were measured. Total is
// the master audio duration, 0 when unknown.
type Input struct {
	Turns    []types.DialogueTurn
	Clips    []float64
	Segments []types.TranscriptSegment
	Total    float64
}

// Build produces every track from in
func (e Engine) Build(in Input) Tracks {
	var t Tracks
	var chunks []Chunk
	if len(in.Segments) > 0 {
		chunks = ChunkSegments(in.Segments, e.opt.WordsPerLine, e.opt.LineMaxDuration)
		t.Mode = ModeSegment
		for _, s := range in.Segments {
			if len(s.Words) > 0 {
				t.Mode = ModeWordTimed
				break
			}
		}
		t.Words = e.WordCues(in.Segments, in.Total)
	} else {
		chunks = ChunkTurns(in.Turns, in.Clips, e.opt.WordsPerLine, e.opt.LineMaxDuration)
		t.Mode = ModeEstimated
	}

	lines := e.Layout(chunks, in.Total)
	t.Lines = LineCues(lines)
	t.Highlights = HighlightTrack(lines)

	t.Speakers, t.Attribution = Attribute(in.Turns, in.Clips, in.Segments, in.Total)
	t.Characters = CharacterCues(t.Speakers, in.Total)
	return t
}

// Layout places chunks on the timeline with the line minimum duration and
// drops the ones that no longer fit inside total.
func (e Engine) Layout(chunks []Chunk, total float64) []Line {
	ivs := make([]Interval, len(chunks))
	for i, c := range chunks {
		ivs[i] = Interval{Start: c.Start, End: c.End}
	}
	ivs = Normalize(ivs, e.opt.LineMinDuration, total)

	lines := make([]Line, 0, len(chunks))
	for i, c := range chunks {
		if !ivs[i].Valid() {
			continue
		}
		lines = append(lines, Line{Chunk: c, Interval: ivs[i]})
	}
	return lines
}

// LineCues numbers laid-out lines as the line track
func LineCues(lines []Line) []types.SubtitleCue {
	cues := make([]types.SubtitleCue, 0, len(lines))
	for i, l := range lines {
		cues = append(cues, types.SubtitleCue{
			Index: i + 1,
			Start: l.Start,
			End:   l.End,
			Text:  l.Chunk.String(),
		})
	}
	return cues
}

// WordCues emits one cue per timed word. Segments without word tokens
// contribute nothing.
func (e Engine) WordCues(segs []types.TranscriptSegment, total float64) []types.SubtitleCue {
	var words []types.WordToken
	for _, s := range segs {
		words = append(words, s.Words...)
	}
	ivs := make([]Interval, len(words))
	for i, w := range words {
		ivs[i] = Interval{Start: w.Start, End: w.End}
	}
	ivs = Normalize(ivs, e.opt.WordMinDuration, total)

	var cues []types.SubtitleCue
	for i, w := range words {
		if !ivs[i].Valid() {
			continue
		}
		cues = append(cues, types.SubtitleCue{
			Index: len(cues) + 1,
			Start: ivs[i].Start,
			End:   ivs[i].End,
			Text:  w.Text,
		})
	}
	return cues
}
