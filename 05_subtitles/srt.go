package subtitles

import (
	"bufio"
	"fmt"
	"math"
	"strconv"
	"strings"

	"dialogue-shorts/types"
)

// truncate returns x in whole units of 1/scale, cutting rather than
// rounding. The tiny epsilon absorbs binary error so 61.123 stays 61123ms.
func truncate(x float64, scale float64) int64 {
	if x <= 0 || math.IsNaN(x) {
		return 0
	}
	if math.IsInf(x, 1) {
		return math.MaxInt32
	}
	return int64(math.Floor(x*scale + 1e-6))
}

// FormatSRTTime renders seconds as HH:MM:SS,mmm
func FormatSRTTime(sec float64) string {
	ms := truncate(sec, 1000)
	h := ms / 3_600_000
	m := ms / 60_000 % 60
	s := ms / 1000 % 60
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms%1000)
}

// RenderSRT writes cues in SRT form, numbering them from 1 in order
func RenderSRT(cues []types.SubtitleCue) string {
	var b strings.Builder
	for i, c := range cues {
		fmt.Fprintf(&b, "%d\n%s --> %s\n%s\n\n",
			i+1, FormatSRTTime(c.Start), FormatSRTTime(c.End), EscapeText(c.Text))
	}
	return b.String()
}

// ParseSRTTime parses HH:MM:SS,mmm (a dot separator is accepted too)
func ParseSRTTime(s string) (float64, error) {
	s = strings.TrimSpace(strings.Replace(s, ",", ".", 1))
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("bad SRT timestamp %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("bad SRT timestamp %q: %w", s, err)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("bad SRT timestamp %q: %w", s, err)
	}
	sec, err := strconv.ParseFloat(parts[2], 64)
	if err != nil {
		return 0, fmt.Errorf("bad SRT timestamp %q: %w", s, err)
	}
	return float64(h)*3600 + float64(m)*60 + sec, nil
}

// ParseSRT reads cues back from SRT text. Blocks that do not parse are
// skipped; text lines of one block are joined with a space.
func ParseSRT(data string) []types.SubtitleCue {
	var cues []types.SubtitleCue
	var block []string
	flush := func() {
		defer func() { block = block[:0] }()
		// the index line is optional in the wild
		if len(block) > 0 && !strings.Contains(block[0], "-->") {
			block = block[1:]
		}
		if len(block) == 0 {
			return
		}
		start, end, ok := strings.Cut(block[0], "-->")
		if !ok {
			return
		}
		endFields := strings.Fields(end)
		if len(endFields) == 0 {
			return
		}
		s, err1 := ParseSRTTime(start)
		e, err2 := ParseSRTTime(endFields[0])
		if err1 != nil || err2 != nil {
			return
		}
		cues = append(cues, types.SubtitleCue{
			Index: len(cues) + 1,
			Start: s,
			End:   e,
			Text:  strings.TrimSpace(strings.Join(block[1:], " ")),
		})
	}

	sc := bufio.NewScanner(strings.NewReader(strings.ReplaceAll(data, "\r\n", "\n")))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			flush()
			continue
		}
		block = append(block, line)
	}
	flush()
	return cues
}

// ValidateSRT checks that indices run from 1 without holes and that cues
// have positive length and never overlap.
func ValidateSRT(cues []types.SubtitleCue) error {
	prevEnd := 0.0
	for i, c := range cues {
		if c.Index != i+1 {
			return fmt.Errorf("cue %d has index %d", i+1, c.Index)
		}
		if c.End <= c.Start {
			return fmt.Errorf("cue %d has non-positive duration", c.Index)
		}
		if c.Start < prevEnd-1e-9 {
			return fmt.Errorf("cue %d starts before cue %d ends", c.Index, c.Index-1)
		}
		prevEnd = c.End
	}
	return nil
}
