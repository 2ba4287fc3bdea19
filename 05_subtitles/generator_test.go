package subtitles

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"dialogue-shorts/config"
	"dialogue-shorts/proc"
	"dialogue-shorts/types"
)

type fakeTranscriber struct {
	res ParseResult
	err error
}

func (f fakeTranscriber) Transcribe(ctx context.Context, audioFile string) (ParseResult, error) {
	return f.res, f.err
}

func newTestGenerator(t *testing.T, tr Transcriber) *Generator {
	t.Helper()
	cfg := config.Default()
	p, err := cfg.Profile("brainrot")
	if err != nil {
		t.Fatal(err)
	}
	return New(cfg, p, tr, nil)
}

var testTurns = []types.DialogueTurn{
	{Speaker: "Peter", Text: "Hey Stewie, rain is just sky water"},
	{Speaker: "Stewie", Text: "Fascinating, you oaf"},
}

var testClips = []types.AudioClip{
	{Turn: 0, Path: "0_peter.wav", Duration: 2.2, Measured: true},
	{Turn: 1, Path: "1_stewie.wav", Duration: 1.6, Measured: true},
}

func TestGeneratorFallsBackWhenTranscriptionFails(t *testing.T) {
	dir := t.TempDir()
	g := newTestGenerator(t, fakeTranscriber{err: errors.New("whisper not installed")})
	res, err := g.Run(context.Background(), Request{
		Turns: testTurns, Clips: testClips, AudioFile: "master_audio.wav", AudioSec: 3.8, OutputDir: dir,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Tracks.Mode != ModeEstimated {
		t.Errorf("mode = %q", res.Tracks.Mode)
	}
	if res.Tracks.Attribution != AttributionClips {
		t.Errorf("attribution = %q", res.Tracks.Attribution)
	}
	for _, path := range res.Files.List() {
		if _, err := os.Stat(path); err != nil {
			t.Errorf("missing %s: %v", filepath.Base(path), err)
		}
	}
	if _, err := os.Stat(filepath.Join(dir, TranscriptFile)); err == nil {
		t.Error("transcript.json written without a transcript")
	}

	chars, err := os.ReadFile(res.Files.Characters)
	if err != nil {
		t.Fatal(err)
	}
	want := "1\n00:00:00,000 --> 00:00:02,200\nPeter\n\n2\n00:00:02,200 --> 00:00:03,800\nStewie\n\n"
	if string(chars) != want {
		t.Errorf("character track =\n%q\nwant\n%q", chars, want)
	}
}

func TestGeneratorUsesTranscript(t *testing.T) {
	dir := t.TempDir()
	segs := []types.TranscriptSegment{
		{Text: "Hey Stewie", Start: 0, End: 1, Words: []types.WordToken{
			{Text: "Hey", Start: 0, End: 0.4}, {Text: "Stewie", Start: 0.4, End: 1},
		}},
	}
	g := newTestGenerator(t, fakeTranscriber{res: ParseResult{Segments: segs, SkippedWords: 2}})
	res, err := g.Run(context.Background(), Request{
		Turns: testTurns, Clips: testClips, AudioFile: "master_audio.wav", AudioSec: 3.8, OutputDir: dir,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Tracks.Mode != ModeWordTimed {
		t.Errorf("mode = %q", res.Tracks.Mode)
	}
	saved, err := LoadTranscript(filepath.Join(dir, TranscriptFile))
	if err != nil {
		t.Fatalf("LoadTranscript: %v", err)
	}
	if len(saved) != 1 || len(saved[0].Words) != 2 {
		t.Errorf("saved transcript = %+v", saved)
	}
	ass, err := os.ReadFile(res.Files.Highlight)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(ass), `{\c&H24FF03&}Hey{\c&HFFFFFF&} Stewie`) {
		t.Errorf("highlight markup missing:\n%s", ass)
	}
}

func TestGeneratorUsesGivenTranscript(t *testing.T) {
	g := newTestGenerator(t, fakeTranscriber{err: errors.New("must not be called")})
	segs := []types.TranscriptSegment{{Text: "hello there", Start: 0, End: 1}}
	res, err := g.Run(context.Background(), Request{
		Turns: testTurns, AudioSec: 3.8, OutputDir: t.TempDir(), Transcript: segs,
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Tracks.Mode != ModeSegment {
		t.Errorf("mode = %q", res.Tracks.Mode)
	}
}

type scriptedRunner struct {
	write map[string]string
	calls []proc.Command
}

func (r *scriptedRunner) Run(ctx context.Context, cmd proc.Command) ([]byte, error) {
	r.calls = append(r.calls, cmd)
	for path, body := range r.write {
		if err := os.WriteFile(path, []byte(body), 0644); err != nil {
			return nil, err
		}
	}
	return nil, nil
}

func TestWhisperCLI(t *testing.T) {
	dir := t.TempDir()
	audio := filepath.Join(dir, "master_audio.wav")
	r := &scriptedRunner{write: map[string]string{
		filepath.Join(dir, "master_audio.json"): `{"text":" Hi","segments":[{"start":0,"end":0.5,"text":" Hi","words":[{"word":" Hi","start":0,"end":0.5,"probability":0.9}]}]}`,
	}}
	w := &WhisperCLI{Runner: r, Model: "base", Language: "en", Device: "cpu"}
	res, err := w.Transcribe(context.Background(), audio)
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if len(res.Segments) != 1 || res.Segments[0].Words[0].Text != "Hi" {
		t.Errorf("segments = %+v", res.Segments)
	}
	args := strings.Join(r.calls[0].Args, " ")
	for _, want := range []string{"--word_timestamps True", "--output_format json", "--device cpu", "--model base"} {
		if !strings.Contains(args, want) {
			t.Errorf("whisper args %q missing %q", args, want)
		}
	}
}

func TestClipDurations(t *testing.T) {
	if got := clipDurations(testClips, 2); len(got) != 2 || got[1] != 1.6 {
		t.Errorf("got %v", got)
	}
	if got := clipDurations(testClips, 3); got != nil {
		t.Errorf("mismatched count should give nil, got %v", got)
	}
	shuffled := []types.AudioClip{testClips[1], testClips[0]}
	if got := clipDurations(shuffled, 2); got != nil {
		t.Errorf("out-of-order clips should give nil, got %v", got)
	}
	estimated := []types.AudioClip{testClips[0], {Turn: 1, Path: "1_stewie.wav", Duration: 1.5}}
	if got := clipDurations(estimated, 2); got != nil {
		t.Errorf("estimated clips should give nil, got %v", got)
	}
}

func TestGeneratorPrefersTranscriptOverEstimatedClips(t *testing.T) {
	clips := []types.AudioClip{
		{Turn: 0, Path: "0_peter.wav", Duration: 1.5},
		{Turn: 1, Path: "1_stewie.wav", Duration: 1.5},
	}
	segs := []types.TranscriptSegment{
		{Text: "Hey Stewie, rain is just sky water", Start: 0, End: 4},
		{Text: "Fascinating, you oaf", Start: 4, End: 6},
	}
	g := newTestGenerator(t, fakeTranscriber{res: ParseResult{Segments: segs}})
	res, err := g.Run(context.Background(), Request{
		Turns: testTurns, Clips: clips, AudioFile: "master_audio.wav", AudioSec: 6, OutputDir: t.TempDir(),
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Tracks.Attribution != AttributionTranscript {
		t.Errorf("attribution = %q", res.Tracks.Attribution)
	}
	want := []types.CharacterSegment{
		{Start: 0, End: 4, Speaker: "Peter"},
		{Start: 4, End: 6, Speaker: "Stewie"},
	}
	if len(res.Tracks.Speakers) != len(want) {
		t.Fatalf("speakers = %+v", res.Tracks.Speakers)
	}
	for i, w := range want {
		if got := res.Tracks.Speakers[i]; got.Speaker != w.Speaker || !near(got.Start, w.Start) || !near(got.End, w.End) {
			t.Errorf("speaker %d = %+v, want %+v", i, got, w)
		}
	}
}
