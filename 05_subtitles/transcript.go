package subtitles

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"dialogue-shorts/types"
)

// ErrNoTranscript means the recognizer produced nothing usable
var ErrNoTranscript = errors.New("no usable transcript")

type rawTranscript struct {
	Segments []rawSegment `json:"segments"`
}

type rawSegment struct {
	Text  string          `json:"text"`
	Start json.RawMessage `json:"start"`
	End   json.RawMessage `json:"end"`
	Words []rawWord       `json:"words"`
}

type rawWord struct {
	Word  *string         `json:"word"`
	Start json.RawMessage `json:"start"`
	End   json.RawMessage `json:"end"`
}

// ParseResult is a parsed transcript plus what had to be dropped from it
type ParseResult struct {
	Segments        []types.TranscriptSegment
	SkippedWords    int
	SkippedSegments int
}

// ParseTranscript decodes whisper-style JSON, either an object with a
// "segments" key or a bare array of segments. Word tokens missing word,
// start or end, or carrying non-finite or reversed times, are skipped and
// counted instead of failing the whole transcript.
func ParseTranscript(data []byte) (ParseResult, error) {
	var raw rawTranscript
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return ParseResult{}, ErrNoTranscript
	}
	var err error
	if trimmed[0] == '[' {
		err = json.Unmarshal(trimmed, &raw.Segments)
	} else {
		err = json.Unmarshal(trimmed, &raw)
	}
	if err != nil {
		return ParseResult{}, fmt.Errorf("decode transcript: %w", err)
	}

	var res ParseResult
	for _, rs := range raw.Segments {
		seg := types.TranscriptSegment{Text: strings.TrimSpace(rs.Text)}
		for _, rw := range rs.Words {
			w, ok := parseWord(rw)
			if !ok {
				res.SkippedWords++
				continue
			}
			seg.Words = append(seg.Words, w)
		}

		start, okStart := parseSeconds(rs.Start)
		end, okEnd := parseSeconds(rs.End)
		if len(seg.Words) > 0 {
			if !okStart {
				start = seg.Words[0].Start
			}
			if !okEnd || end < seg.Words[len(seg.Words)-1].End {
				end = seg.Words[len(seg.Words)-1].End
			}
			okStart, okEnd = true, true
		}
		if !okStart || !okEnd || end < start {
			res.SkippedSegments++
			continue
		}
		seg.Start, seg.End = start, end

		if seg.Text == "" && len(seg.Words) == 0 {
			continue
		}
		if seg.Text == "" {
			seg.Text = joinWords(seg.Words)
		}
		res.Segments = append(res.Segments, seg)
	}
	if len(res.Segments) == 0 {
		return res, ErrNoTranscript
	}
	return res, nil
}

func parseWord(rw rawWord) (types.WordToken, bool) {
	if rw.Word == nil {
		return types.WordToken{}, false
	}
	text := strings.TrimSpace(*rw.Word)
	start, ok1 := parseSeconds(rw.Start)
	end, ok2 := parseSeconds(rw.End)
	if text == "" || !ok1 || !ok2 || end < start {
		return types.WordToken{}, false
	}
	return types.WordToken{Text: text, Start: start, End: end}, true
}

// parseSeconds accepts a JSON number or a numeric string. Missing, null,
// negative and non-finite values are rejected.
func parseSeconds(raw json.RawMessage) (float64, bool) {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return 0, false
	}
	s = strings.Trim(s, `"`)
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0, false
	}
	return v, true
}

func joinWords(words []types.WordToken) string {
	parts := make([]string, 0, len(words))
	for _, w := range words {
		parts = append(parts, w.Text)
	}
	return strings.Join(parts, " ")
}

// MarshalTranscript renders segments the way transcript.json is stored
func MarshalTranscript(segs []types.TranscriptSegment) ([]byte, error) {
	return json.MarshalIndent(rawOut{Segments: segs}, "", "  ")
}

type rawOut struct {
	Segments []types.TranscriptSegment `json:"segments"`
}
