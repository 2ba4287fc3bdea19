package subtitles

import (
	"fmt"
	"strings"

	"dialogue-shorts/config"
	"dialogue-shorts/types"
)

// Style is the look of the burned-in highlight track
type Style struct {
	Font            string
	FontSize        int
	Outline         int
	BaseColour      string // &HAABBGGRR
	HighlightColour string // &HAABBGGRR
	MarginV         int
	Width           int
	Height          int
}

// StyleFromProfile takes the styling fields of a profile for a frame of
// the given size.
func StyleFromProfile(p config.Profile, width, height int) Style {
	return Style{
		Font:            p.Font,
		FontSize:        p.FontSize,
		Outline:         p.Outline,
		BaseColour:      p.BaseColour,
		HighlightColour: p.HighlightColour,
		MarginV:         p.MarginV,
		Width:           width,
		Height:          height,
	}
}

// FormatASSTime renders seconds as H:MM:SS.cc
func FormatASSTime(sec float64) string {
	cs := truncate(sec, 100)
	h := cs / 360_000
	m := cs / 6000 % 60
	s := cs / 100 % 60
	return fmt.Sprintf("%d:%02d:%02d.%02d", h, m, s, cs%100)
}

var textEscaper = strings.NewReplacer(
	"{", "(",
	"}", ")",
	`\`, "＼",
	"\r\n", " ",
	"\n", " ",
	"\r", " ",
)

// EscapeText neutralises characters libass would read as override tags or
// line breaks. It is applied to every cue burned into the video.
func EscapeText(s string) string {
	return textEscaper.Replace(s)
}

// inlineColour converts &HAABBGGRR to the &HBBGGRR& form used by \c tags
func inlineColour(c string) string {
	hex := strings.TrimSuffix(strings.TrimPrefix(strings.ToUpper(c), "&H"), "&")
	if len(hex) > 6 {
		hex = hex[len(hex)-6:]
	}
	return "&H" + hex + "&"
}

func (s Style) header() string {
	var b strings.Builder
	b.WriteString("[Script Info]\n")
	b.WriteString("ScriptType: v4.00+\n")
	fmt.Fprintf(&b, "PlayResX: %d\n", s.Width)
	fmt.Fprintf(&b, "PlayResY: %d\n", s.Height)
	b.WriteString("WrapStyle: 2\n")
	b.WriteString("ScaledBorderAndShadow: yes\n\n")

	b.WriteString("[V4+ Styles]\n")
	b.WriteString("Format: Name, Fontname, Fontsize, PrimaryColour, SecondaryColour, OutlineColour, BackColour, Bold, Italic, Underline, StrikeOut, ScaleX, ScaleY, Spacing, Angle, BorderStyle, Outline, Shadow, Alignment, MarginL, MarginR, MarginV, Encoding\n")
	for _, st := range []struct{ name, colour string }{{"Default", s.BaseColour}, {"Highlight", s.HighlightColour}} {
		fmt.Fprintf(&b, "Style: %s,%s,%d,%s,&H000000FF,&H00000000,&H80000000,-1,0,0,0,100,100,0,0,1,%d,0,2,40,40,%d,1\n",
			st.name, s.Font, s.FontSize, st.colour, s.Outline, s.MarginV)
	}
	b.WriteString("\n[Events]\n")
	b.WriteString("Format: Layer, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text\n")
	return b.String()
}

// EventText renders the words of an event, wrapping the active word in
// the highlight colour.
func (s Style) EventText(ev types.HighlightEvent) string {
	parts := make([]string, len(ev.Words))
	for i, w := range ev.Words {
		w = EscapeText(w)
		if i == ev.Active {
			w = "{\\c" + inlineColour(s.HighlightColour) + "}" + w + "{\\c" + inlineColour(s.BaseColour) + "}"
		}
		parts[i] = w
	}
	return strings.Join(parts, " ")
}

// RenderASS writes the highlight track as an ASS script
func RenderASS(events []types.HighlightEvent, style Style) string {
	var b strings.Builder
	b.WriteString(style.header())
	for _, ev := range events {
		fmt.Fprintf(&b, "Dialogue: 0,%s,%s,Default,,0,0,0,,%s\n",
			FormatASSTime(ev.Start), FormatASSTime(ev.End), style.EventText(ev))
	}
	return b.String()
}
