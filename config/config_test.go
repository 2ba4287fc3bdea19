package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadMissingFileGivesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Subtitles.Profile != "brainrot" || len(cfg.Characters) != 2 {
		t.Errorf("defaults not applied: %+v", cfg.Subtitles)
	}
	if cfg.Video.Width != 1080 || cfg.Video.Height != 1920 {
		t.Errorf("video = %dx%d", cfg.Video.Width, cfg.Video.Height)
	}
}

func TestLoadOverrides(t *testing.T) {
	path := writeConfig(t, `
script:
  provider: openai
  model: llama-3.3-70b-versatile
subtitles:
  profile: big
profiles:
  big:
    words_per_line: 3
    line_min_duration: 0.4
    line_max_duration: 2.5
    font: Impact
video:
  encoder: libx264
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Script.Provider != "openai" || cfg.Script.Model != "llama-3.3-70b-versatile" {
		t.Errorf("script = %+v", cfg.Script)
	}
	// untouched keys keep their defaults
	if cfg.Script.MaxRetries != 5 || cfg.Video.FPS != 30 {
		t.Errorf("defaults lost: retries=%d fps=%d", cfg.Script.MaxRetries, cfg.Video.FPS)
	}
	p, err := cfg.Profile("big")
	if err != nil || p.WordsPerLine != 3 || p.Font != "Impact" {
		t.Errorf("profile big = %+v, %v", p, err)
	}
	for _, name := range []string{"brainrot", "captions"} {
		if _, err := cfg.Profile(name); err != nil {
			t.Errorf("built-in %s missing: %v", name, err)
		}
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"one character", "characters:\n  - name: Peter\n", "at least two characters"},
		{"duplicate", "characters:\n  - name: Peter\n  - name: peter\n", "duplicate character"},
		{"unknown profile", "subtitles:\n  profile: tiktok\n", "unknown subtitle profile"},
		{"bad words", "profiles:\n  x:\n    words_per_line: 0\n", "words_per_line"},
		{"max below min", "profiles:\n  x:\n    words_per_line: 1\n    line_min_duration: 2\n    line_max_duration: 1\n", "line_max_duration"},
		{"broken yaml", "video: [", "parse"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want it to mention %q", err, tt.want)
			}
		})
	}
}

func TestCharacterLookup(t *testing.T) {
	cfg := Default()
	ch, ok := cfg.Character("STEWIE")
	if !ok || ch.Name != "Stewie" {
		t.Errorf("Character(STEWIE) = %+v, %v", ch, ok)
	}
	if _, ok := cfg.Character("Lois"); ok {
		t.Error("Lois should not be found")
	}
	if got := strings.Join(cfg.CharacterNames(), ","); got != "Peter,Stewie" {
		t.Errorf("names = %s", got)
	}
}

func TestProfileErrorListsNames(t *testing.T) {
	_, err := Default().Profile("nope")
	if err == nil || !strings.Contains(err.Error(), "brainrot, captions") {
		t.Errorf("err = %v", err)
	}
}

func TestExampleConfigLoads(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "config.example.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, err := cfg.Profile("big-captions"); err != nil {
		t.Error(err)
	}
	if len(cfg.Characters) != 2 || cfg.Characters[1].Size != "180:180" {
		t.Errorf("characters = %+v", cfg.Characters)
	}
}
