package subtitles

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	LinesFile      = "subtitles.srt"
	WordsFile      = "word_subtitles.srt"
	CharactersFile = "character_subtitles.srt"
	HighlightFile  = "subtitles_highlight.ass"
	TranscriptFile = "transcript.json"
)

// Files are the subtitle files written for one run
type Files struct {
	Lines      string `json:"lines"`
	Words      string `json:"words"`
	Characters string `json:"characters"`
	Highlight  string `json:"highlight"`
}

// List returns the paths in a stable order
func (f Files) List() []string {
	return []string{f.Lines, f.Words, f.Characters, f.Highlight}
}

// FilesIn returns the standard subtitle paths inside dir
func FilesIn(dir string) Files {
	return Files{
		Lines:      filepath.Join(dir, LinesFile),
		Words:      filepath.Join(dir, WordsFile),
		Characters: filepath.Join(dir, CharactersFile),
		Highlight:  filepath.Join(dir, HighlightFile),
	}
}

// WriteTracks writes every track into dir. An empty track still produces
// its file so downstream steps can rely on the paths.
func WriteTracks(dir string, t Tracks, style Style) (Files, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return Files{}, err
	}
	files := FilesIn(dir)
	outputs := []struct {
		path, body string
	}{
		{files.Lines, RenderSRT(t.Lines)},
		{files.Words, RenderSRT(t.Words)},
		{files.Characters, RenderSRT(t.Characters)},
		{files.Highlight, RenderASS(t.Highlights, style)},
	}
	for _, o := range outputs {
		if err := os.WriteFile(o.path, []byte(o.body), 0644); err != nil {
			return Files{}, fmt.Errorf("write %s: %w", filepath.Base(o.path), err)
		}
	}
	return files, nil
}
