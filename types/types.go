package types

import "unicode/utf8"

// Topic is one researched or user-supplied subject for a video
type Topic struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Source    string `json:"source"`
	SourceURL string `json:"source_url"`
	Score     int    `json:"score"`
}

// DialogueTurn is one line of dialogue in playback order
type DialogueTurn struct {
	Speaker string `json:"actor"`
	Text    string `json:"line"`
}

// EstimatedDuration guesses how long a turn takes to speak when no audio
// measurement is available: roughly twelve characters per second, kept
// between 1.5s and 3.0s.
func (t DialogueTurn) EstimatedDuration() float64 {
	d := float64(utf8.RuneCountInString(t.Text)) / 12.0
	if d < 1.5 {
		return 1.5
	}
	if d > 3.0 {
		return 3.0
	}
	return d
}

// Script is the full dialogue for one video, persisted as script.json
type Script struct {
	Topic string         `json:"topic"`
	Turns []DialogueTurn `json:"script"`
}

// WordToken is one transcribed word with its own timing
type WordToken struct {
	Text  string  `json:"word"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// TranscriptSegment is one recognizer segment; Words is nil when the
// recognizer produced no word-level timing.
type TranscriptSegment struct {
	Text  string      `json:"text"`
	Start float64     `json:"start"`
	End   float64     `json:"end"`
	Words []WordToken `json:"words,omitempty"`
}

// SubtitleCue is one timed entry of a subtitle track
type SubtitleCue struct {
	Index int     `json:"index"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// HighlightEvent is one karaoke frame: the displayed chunk with at most one
// active word. Active is -1 when no word is highlighted.
type HighlightEvent struct {
	Start  float64  `json:"start"`
	End    float64  `json:"end"`
	Words  []string `json:"words"`
	Active int      `json:"active"`
}

// CharacterSegment tells who is speaking during [Start, End)
type CharacterSegment struct {
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Speaker string  `json:"speaker"`
	Text    string  `json:"text"`
}

// AudioClip is the synthesized audio of one turn
type AudioClip struct {
	Turn     int     `json:"turn"`
	Path     string  `json:"path"`
	Duration float64 `json:"duration"`
	Measured bool    `json:"measured"`
}

// VideoMetadata holds upload metadata for a finished short
type VideoMetadata struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
	CategoryID  string   `json:"category_id"`
	Visibility  string   `json:"visibility"`
}

// PipelineState tracks the full state of one pipeline run
type PipelineState struct {
	RunID        string         `json:"run_id"`
	RunDir       string         `json:"run_dir"`
	Topic        string         `json:"topic"`
	StartedAt    string         `json:"started_at"`
	CompletedAt  string         `json:"completed_at"`
	Profile      string         `json:"profile"`
	Turns        int            `json:"turns"`
	Clips        []AudioClip    `json:"clips,omitempty"`
	AudioFile    string         `json:"audio_file"`
	AudioSec     float64        `json:"audio_sec"`
	SubtitleMode string         `json:"subtitle_mode"`
	Subtitles    []string       `json:"subtitles,omitempty"`
	VideoFile    string         `json:"video_file"`
	Metadata     *VideoMetadata `json:"metadata,omitempty"`
	YouTubeURL   string         `json:"youtube_url,omitempty"`
	YouTubeID    string         `json:"youtube_id,omitempty"`
	Error        string         `json:"error,omitempty"`
}
