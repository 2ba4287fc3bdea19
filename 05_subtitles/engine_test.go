package subtitles

import (
	"math"
	"testing"

	"dialogue-shorts/types"
)

const eps = 1e-9

var testOptions = Options{
	WordsPerLine:    2,
	LineMinDuration: 0.5,
	LineMaxDuration: 3.0,
	WordMinDuration: 0.3,
}

func near(a, b float64) bool {
	return math.Abs(a-b) < 1e-6
}

func TestWordTimedScenario(t *testing.T) {
	segs := []types.TranscriptSegment{{
		Text:  "Hi there friend",
		Start: 0,
		End:   4,
		Words: []types.WordToken{
			{Text: "Hi", Start: 0, End: 0.4},
			{Text: "there", Start: 0.4, End: 0.9},
			{Text: "friend", Start: 0.9, End: 1.5},
		},
	}}
	tracks := NewEngine(testOptions).Build(Input{Segments: segs, Total: 4})

	if tracks.Mode != ModeWordTimed {
		t.Errorf("mode = %q", tracks.Mode)
	}
	want := []types.SubtitleCue{
		{Index: 1, Start: 0, End: 0.9, Text: "Hi there"},
		{Index: 2, Start: 0.9, End: 1.5, Text: "friend"},
	}
	if len(tracks.Lines) != len(want) {
		t.Fatalf("got %d lines: %+v", len(tracks.Lines), tracks.Lines)
	}
	for i, w := range want {
		got := tracks.Lines[i]
		if got.Index != w.Index || got.Text != w.Text || !near(got.Start, w.Start) || !near(got.End, w.End) {
			t.Errorf("line %d = %+v, want %+v", i+1, got, w)
		}
	}
	if len(tracks.Words) != 3 {
		t.Errorf("got %d word cues", len(tracks.Words))
	}
}

func TestFallbackScenario(t *testing.T) {
	turns := []types.DialogueTurn{{Speaker: "Peter", Text: "The sky is blue today"}}
	tracks := NewEngine(testOptions).Build(Input{Turns: turns, Clips: []float64{2.4}, Total: 2.4})

	if tracks.Mode != ModeEstimated {
		t.Errorf("mode = %q", tracks.Mode)
	}
	if len(tracks.Lines) != 3 {
		t.Fatalf("got %d lines: %+v", len(tracks.Lines), tracks.Lines)
	}
	texts := []string{"The sky", "is blue", "today"}
	for i, c := range tracks.Lines {
		if !near(c.Start, 0.8*float64(i)) || !near(c.End-c.Start, 0.8) {
			t.Errorf("line %d spans %.4f-%.4f, want %.1f-%.1f", i+1, c.Start, c.End, 0.8*float64(i), 0.8*float64(i+1))
		}
		if c.Text != texts[i] {
			t.Errorf("line %d text %q, want %q", i+1, c.Text, texts[i])
		}
	}
	if len(tracks.Words) != 0 {
		t.Errorf("estimated path produced %d word cues", len(tracks.Words))
	}
	for _, ev := range tracks.Highlights {
		if ev.Active != -1 {
			t.Errorf("estimated path highlighted word %d", ev.Active)
		}
	}
	if len(tracks.Highlights) != 3 {
		t.Errorf("got %d highlight events, want one per line", len(tracks.Highlights))
	}
}

func TestMalformedTokenScenario(t *testing.T) {
	raw := `{"segments":[{"text":"one two three four","start":0,"end":2,"words":[
		{"word":" one","start":0.0,"end":0.5},
		{"word":" two","end":1.0},
		{"word":" three","start":1.0,"end":1.5},
		{"word":" four","start":1.5,"end":2.0}
	]}]}`
	res, err := ParseTranscript([]byte(raw))
	if err != nil {
		t.Fatalf("ParseTranscript: %v", err)
	}
	if res.SkippedWords != 1 {
		t.Errorf("skipped %d words, want 1", res.SkippedWords)
	}
	tracks := NewEngine(testOptions).Build(Input{Segments: res.Segments, Total: 2})
	if err := ValidateSRT(tracks.Lines); err != nil {
		t.Fatalf("invalid line track: %v", err)
	}
	if len(tracks.Lines) != 2 {
		t.Fatalf("got %d lines: %+v", len(tracks.Lines), tracks.Lines)
	}
	if tracks.Lines[0].Text != "one three" || tracks.Lines[1].Text != "four" {
		t.Errorf("unexpected lines %+v", tracks.Lines)
	}
	if !near(tracks.Lines[0].End, tracks.Lines[1].Start) {
		t.Errorf("gap between lines: %+v", tracks.Lines)
	}
}

func TestSegmentWithoutWords(t *testing.T) {
	segs := []types.TranscriptSegment{
		{Text: "a b c d e", Start: 0, End: 5},
		{Text: "   ", Start: 5, End: 6},
		{Text: "x y z", Start: 7, End: 7},
	}
	tracks := NewEngine(testOptions).Build(Input{Segments: segs})
	if tracks.Mode != ModeSegment {
		t.Errorf("mode = %q", tracks.Mode)
	}
	want := []Interval{{0, 2}, {2, 4}, {4, 5}, {7, 7.5}, {7.5, 8}}
	if len(tracks.Lines) != len(want) {
		t.Fatalf("got %d lines: %+v", len(tracks.Lines), tracks.Lines)
	}
	for i, w := range want {
		c := tracks.Lines[i]
		if !near(c.Start, w.Start) || !near(c.End, w.End) {
			t.Errorf("line %d = %.3f-%.3f, want %.3f-%.3f", i+1, c.Start, c.End, w.Start, w.End)
		}
	}
	if len(tracks.Words) != 0 {
		t.Errorf("untimed segments produced word cues")
	}
}

func TestLongChunkIsCapped(t *testing.T) {
	segs := []types.TranscriptSegment{{Text: "slow words", Start: 0, End: 10}}
	tracks := NewEngine(testOptions).Build(Input{Segments: segs})
	if len(tracks.Lines) != 1 || !near(tracks.Lines[0].End, 3.0) {
		t.Errorf("lines = %+v, want one cue capped at 3s", tracks.Lines)
	}
}

func TestMinimumDuration(t *testing.T) {
	segs := []types.TranscriptSegment{{
		Start: 0, End: 3,
		Words: []types.WordToken{
			{Text: "a", Start: 0, End: 0.05},
			{Text: "b", Start: 0.05, End: 0.1},
			{Text: "c", Start: 0.1, End: 0.1},
			{Text: "d", Start: 0.1, End: 0.12},
			{Text: "e", Start: 2.0, End: 2.01},
		},
	}}
	tracks := NewEngine(testOptions).Build(Input{Segments: segs, Total: 10})
	for _, c := range tracks.Lines {
		if c.End-c.Start < testOptions.LineMinDuration-eps {
			t.Errorf("line cue %+v shorter than minimum", c)
		}
	}
	for _, c := range tracks.Words {
		if c.End-c.Start < testOptions.WordMinDuration-eps {
			t.Errorf("word cue %+v shorter than minimum", c)
		}
	}
	for name, track := range map[string][]types.SubtitleCue{"lines": tracks.Lines, "words": tracks.Words} {
		if err := ValidateSRT(track); err != nil {
			t.Errorf("%s: %v", name, err)
		}
	}
}

func TestWordCuesDoNotOverlap(t *testing.T) {
	segs := []types.TranscriptSegment{{
		Start: 0, End: 2,
		Words: []types.WordToken{
			{Text: "over", Start: 0, End: 0.8},
			{Text: "lapping", Start: 0.5, End: 0.9},
			{Text: "words", Start: 0.6, End: 0.7},
		},
	}}
	cues := NewEngine(testOptions).WordCues(segs, 0)
	for i := 1; i < len(cues); i++ {
		if cues[i-1].End > cues[i].Start+eps {
			t.Errorf("cue %d ends at %v after cue %d starts at %v", i, cues[i-1].End, i+1, cues[i].Start)
		}
	}
}

func TestCoverage(t *testing.T) {
	// two turns with a 0.3s pause between them
	segs := []types.TranscriptSegment{
		{Start: 0, End: 1.2, Words: []types.WordToken{
			{Text: "what", Start: 0, End: 0.3}, {Text: "is", Start: 0.3, End: 0.5},
			{Text: "rain", Start: 0.5, End: 1.2},
		}},
		{Start: 1.5, End: 3.0, Words: []types.WordToken{
			{Text: "water", Start: 1.5, End: 2.0}, {Text: "falling", Start: 2.0, End: 2.6},
			{Text: "down", Start: 2.6, End: 3.0},
		}},
	}
	lines := NewEngine(testOptions).Build(Input{Segments: segs, Total: 3.0}).Lines
	if lines[0].Start != 0 || !near(lines[len(lines)-1].End, 3.0) {
		t.Errorf("lines do not span the audio: %+v", lines)
	}
	for i := 1; i < len(lines); i++ {
		if gap := lines[i].Start - lines[i-1].End; gap > 0.3+eps {
			t.Errorf("gap of %.3fs before line %d", gap, i+1)
		}
	}
}

func TestNormalizeClampsToTotal(t *testing.T) {
	ivs := []Interval{{0, 0.1}, {0.1, 0.2}, {0.9, 0.95}}
	got := Normalize(ivs, 0.5, 1.2)
	if got[0].Valid() {
		t.Errorf("interval 0 = %+v, want dropped below the minimum", got[0])
	}
	want := []Interval{{0, 0}, {0.2, 0.7}, {0.7, 1.2}}
	for i := 1; i < len(want); i++ {
		if !near(got[i].Start, want[i].Start) || !near(got[i].End, want[i].End) {
			t.Errorf("interval %d = %+v, want %+v", i, got[i], want[i])
		}
	}

	// not enough audio for every cue: the earliest ones collapse
	got = Normalize([]Interval{{0, 0.1}, {0.1, 0.2}, {0.2, 0.3}}, 0.5, 0.5)
	if got[0].Valid() || got[1].Valid() || !got[2].Valid() {
		t.Errorf("unexpected result %+v", got)
	}
}

func TestShortAudioKeepsMinimum(t *testing.T) {
	segs := []types.TranscriptSegment{{
		Start: 0, End: 0.57,
		Words: []types.WordToken{
			{Text: "not", Start: 0, End: 0.19},
			{Text: "so", Start: 0.19, End: 0.38},
			{Text: "fast", Start: 0.38, End: 0.57},
		},
	}}
	tracks := NewEngine(testOptions).Build(Input{Segments: segs, Total: 0.57})
	if len(tracks.Lines) == 0 {
		t.Fatal("no line fits the audio")
	}
	for name, c := range map[string]struct {
		cues []types.SubtitleCue
		min  float64
	}{
		"lines": {tracks.Lines, testOptions.LineMinDuration},
		"words": {tracks.Words, testOptions.WordMinDuration},
	} {
		for _, cue := range c.cues {
			if cue.End-cue.Start < c.min-eps {
				t.Errorf("%s: cue %+v shorter than %v", name, cue, c.min)
			}
			if cue.Start < 0 || cue.End > 0.57+eps {
				t.Errorf("%s: cue %+v outside the audio", name, cue)
			}
		}
		if err := ValidateSRT(c.cues); err != nil {
			t.Errorf("%s: %v", name, err)
		}
	}
}

func TestHighlightPartitionsLines(t *testing.T) {
	segs := []types.TranscriptSegment{{
		Start: 0, End: 5,
		Words: []types.WordToken{
			{Text: "a", Start: 0, End: 0.2},
			{Text: "b", Start: 0.3, End: 0.6},
			{Text: "c", Start: 1, End: 1},
			{Text: "d", Start: 1, End: 1},
			{Text: "e", Start: 2, End: 2.9},
		},
	}}
	e := NewEngine(testOptions)
	lines := e.Layout(ChunkSegments(segs, 2, 3), 5)
	for _, l := range lines {
		events := HighlightEvents(l)
		if len(events) != len(l.Chunk.Text) {
			t.Fatalf("line %q: %d events for %d words", l.Chunk.String(), len(events), len(l.Chunk.Text))
		}
		if events[0].Start != l.Start || events[len(events)-1].End != l.End {
			t.Errorf("line %q: events do not cover %v-%v", l.Chunk.String(), l.Start, l.End)
		}
		for j, ev := range events {
			if ev.Active != j {
				t.Errorf("event %d active = %d", j, ev.Active)
			}
			if ev.End <= ev.Start {
				t.Errorf("line %q event %d is empty: %+v", l.Chunk.String(), j, ev)
			}
			if j > 0 && ev.Start != events[j-1].End {
				t.Errorf("line %q: gap or overlap at event %d", l.Chunk.String(), j)
			}
		}
	}

	// "c" and "d" share an instant, so their line is split evenly
	cd := HighlightEvents(lines[1])
	if !near(cd[1].Start, (lines[1].Start+lines[1].End)/2) {
		t.Errorf("degenerate line not split evenly: %+v", cd)
	}
}

func TestAttributionFromClips(t *testing.T) {
	turns := []types.DialogueTurn{
		{Speaker: "Peter", Text: "Hey Stewie"},
		{Speaker: "Stewie", Text: "What"},
		{Speaker: "Peter", Text: "Rain is wet"},
	}
	clips := []float64{1.2, 0.7, 2.05}
	segs, src := Attribute(turns, clips, nil, 0)
	if src != AttributionClips {
		t.Errorf("source = %q", src)
	}
	var sum float64
	for i, s := range segs {
		if s.Start != sum || s.End != sum+clips[i] {
			t.Errorf("segment %d = [%v, %v), want [%v, %v)", i, s.Start, s.End, sum, sum+clips[i])
		}
		if s.Speaker != turns[i].Speaker {
			t.Errorf("segment %d speaker %q", i, s.Speaker)
		}
		sum += clips[i]
	}
}

func TestAttributionFallbacks(t *testing.T) {
	turns := []types.DialogueTurn{
		{Speaker: "Peter", Text: "short"},
		{Speaker: "Stewie", Text: "a somewhat longer line of dialogue here"},
	}
	segs := []types.TranscriptSegment{{Start: 0.1, End: 1}, {Start: 1.2, End: 4}}

	got, src := Attribute(turns, nil, segs, 4)
	if src != AttributionTranscript || got[1].Start != 1.2 || got[1].End != 4 {
		t.Errorf("positional: %q %+v", src, got)
	}

	got, src = Attribute(turns, []float64{1, 0}, segs[:1], 6)
	if src != AttributionEstimated {
		t.Fatalf("source = %q", src)
	}
	// weights are 1.5 and 3.0 (39 runes, capped)
	if !near(got[0].End, 2) || !near(got[1].End, 6) {
		t.Errorf("apportioned: %+v", got)
	}

	if got, _ := Attribute(nil, nil, segs, 4); got != nil {
		t.Errorf("no turns should give no segments")
	}
}

func TestCharacterCues(t *testing.T) {
	segs := []types.CharacterSegment{
		{Start: 0, End: 1, Speaker: "Peter"},
		{Start: 1, End: 1, Speaker: "Stewie"},
		{Start: 1, End: 2.5, Speaker: "Peter"},
	}
	cues := CharacterCues(segs, 2)
	if len(cues) != 2 || cues[1].Index != 2 || cues[1].End != 2 || cues[1].Text != "Peter" {
		t.Errorf("cues = %+v", cues)
	}
}

func TestCharacterCuesDropSubMillisecondSpans(t *testing.T) {
	segs := []types.CharacterSegment{
		{Start: 0, End: 1, Speaker: "Peter"},
		{Start: 1, End: 1.0004, Speaker: "Stewie"},
		{Start: 1.0004, End: 2, Speaker: "Peter"},
	}
	cues := CharacterCues(segs, 0)
	if len(cues) != 2 || cues[1].Index != 2 || cues[1].Text != "Peter" {
		t.Fatalf("cues = %+v", cues)
	}
	for _, c := range cues {
		if FormatSRTTime(c.Start) == FormatSRTTime(c.End) {
			t.Errorf("cue %d renders as an empty range at %s", c.Index, FormatSRTTime(c.Start))
		}
	}
	if err := ValidateSRT(ParseSRT(RenderSRT(cues))); err != nil {
		t.Error(err)
	}
}

func TestBuildIsIdempotent(t *testing.T) {
	segs := []types.TranscriptSegment{{
		Text: "hello world again", Start: 0, End: 2,
		Words: []types.WordToken{
			{Text: "hello", Start: 0, End: 0.3},
			{Text: "world", Start: 0.31, End: 0.33},
			{Text: "again", Start: 1.1, End: 1.9},
		},
	}}
	turns := []types.DialogueTurn{{Speaker: "Peter", Text: "hello world again"}}
	in := Input{Turns: turns, Segments: segs, Total: 2}
	style := Style{Font: "Arial", FontSize: 60, BaseColour: "&H00FFFFFF", HighlightColour: "&H0000FF00", Width: 1080, Height: 1920}

	e := NewEngine(testOptions)
	a, b := e.Build(in), e.Build(in)
	if RenderSRT(a.Lines) != RenderSRT(b.Lines) ||
		RenderSRT(a.Words) != RenderSRT(b.Words) ||
		RenderSRT(a.Characters) != RenderSRT(b.Characters) ||
		RenderASS(a.Highlights, style) != RenderASS(b.Highlights, style) {
		t.Error("two builds over the same input differ")
	}
}
