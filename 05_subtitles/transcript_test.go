package subtitles

import (
	"errors"
	"testing"
)

func TestParseTranscript(t *testing.T) {
	tests := []struct {
		name          string
		raw           string
		segments      int
		skippedWords  int
		skippedSegs   int
		wantErr       error
		firstSegStart float64
	}{
		{
			name:     "whisper object",
			raw:      `{"text":"hi","segments":[{"start":0.5,"end":1,"text":" hi","words":[{"word":" hi","start":0.5,"end":1}]}]}`,
			segments: 1, firstSegStart: 0.5,
		},
		{
			name:     "bare array",
			raw:      `[{"start":"1.25","end":"2","text":"quoted numbers"}]`,
			segments: 1, firstSegStart: 1.25,
		},
		{
			name: "bad tokens",
			raw: `{"segments":[{"start":0,"end":3,"text":"a b c d e","words":[
				{"start":0,"end":1},
				{"word":"b","start":null,"end":1},
				{"word":"c","start":"NaN","end":1},
				{"word":"d","start":2,"end":1},
				{"word":"e","start":2,"end":3}]}]}`,
			segments: 1, skippedWords: 4,
		},
		{
			name: "segment times from words",
			raw:  `{"segments":[{"text":"x","words":[{"word":"x","start":4,"end":4.5}]}]}`,
			segments: 1, firstSegStart: 4,
		},
		{
			name:        "segment without any time",
			raw:         `{"segments":[{"text":"lost"},{"start":1,"end":2,"text":"kept"}]}`,
			segments:    1,
			skippedSegs: 1, firstSegStart: 1,
		},
		{name: "empty", raw: `  `, wantErr: ErrNoTranscript},
		{name: "no segments", raw: `{"segments":[]}`, wantErr: ErrNoTranscript},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := ParseTranscript([]byte(tt.raw))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(res.Segments) != tt.segments {
				t.Fatalf("got %d segments", len(res.Segments))
			}
			if res.SkippedWords != tt.skippedWords || res.SkippedSegments != tt.skippedSegs {
				t.Errorf("skipped words=%d segments=%d", res.SkippedWords, res.SkippedSegments)
			}
			if res.Segments[0].Start != tt.firstSegStart {
				t.Errorf("first segment start = %v", res.Segments[0].Start)
			}
		})
	}
}

func TestParseTranscriptRejectsBrokenJSON(t *testing.T) {
	_, err := ParseTranscript([]byte(`{"segments": [`))
	if err == nil || errors.Is(err, ErrNoTranscript) {
		t.Errorf("err = %v, want a decode error", err)
	}
}
