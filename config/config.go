package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Research   ResearchConfig     `yaml:"research"`
	Script     ScriptConfig       `yaml:"script"`
	Characters []Character        `yaml:"characters"`
	TTS        TTSConfig          `yaml:"tts"`
	Transcribe TranscribeConfig   `yaml:"transcribe"`
	Subtitles  SubtitlesConfig    `yaml:"subtitles"`
	Profiles   map[string]Profile `yaml:"profiles"`
	Video      VideoConfig        `yaml:"video"`
	Metadata   MetadataConfig     `yaml:"metadata"`
	Upload     UploadConfig       `yaml:"upload"`
	Paths      PathsConfig        `yaml:"paths"`
}

type ResearchConfig struct {
	Subreddits  []string `yaml:"subreddits"`
	MinScore    int      `yaml:"min_score"`
	MinComments int      `yaml:"min_comments"`
	Limit       int      `yaml:"limit"`
}

type ScriptConfig struct {
	Provider    string  `yaml:"provider"` // ollama | openai | gemini
	Model       string  `yaml:"model"`
	BaseURL     string  `yaml:"base_url"`
	Temperature float64 `yaml:"temperature"`
	MaxRetries  int     `yaml:"max_retries"`
	TimeoutSec  int     `yaml:"timeout_sec"`
	Prompt      string  `yaml:"prompt"`
}

// Character is one speaker of the dialogue. The first character is the
// teacher, the second the student.
type Character struct {
	Name   string `yaml:"name"`
	Voice  string `yaml:"voice"`
	Image  string `yaml:"image"`
	Size   string `yaml:"size"`
	X      int    `yaml:"x"`
	Y      int    `yaml:"y"`
	Rotate string `yaml:"rotate"`
}

type TTSConfig struct {
	Engine       string  `yaml:"engine"` // command | http
	Python       string  `yaml:"python"`
	Script       string  `yaml:"script"`
	URL          string  `yaml:"url"`
	Device       string  `yaml:"device"`
	Exaggeration float64 `yaml:"exaggeration"`
	CFGWeight    float64 `yaml:"cfg_weight"`
	MaxRetries   int     `yaml:"max_retries"`
}

type TranscribeConfig struct {
	Engine       string `yaml:"engine"` // whisper | http | none
	WhisperModel string `yaml:"whisper_model"`
	Language     string `yaml:"language"`
	Device       string `yaml:"device"`
	URL          string `yaml:"url"`
}

type SubtitlesConfig struct {
	Profile string `yaml:"profile"`
}

// Profile collects every tunable of the subtitle engine and the burned-in
// styling, so variants differ only by name.
type Profile struct {
	WordsPerLine    int      `yaml:"words_per_line"`
	LineMinDuration float64  `yaml:"line_min_duration"`
	LineMaxDuration float64  `yaml:"line_max_duration"`
	WordMinDuration float64  `yaml:"word_min_duration"`
	Font            string   `yaml:"font"`
	FontSize        int      `yaml:"font_size"`
	Outline         int      `yaml:"outline"`
	BaseColour      string   `yaml:"base_colour"`
	HighlightColour string   `yaml:"highlight_colour"`
	MarginV         int      `yaml:"margin_v"`
	BurnTracks      []string `yaml:"burn_tracks"` // highlight | lines | words
}

type VideoConfig struct {
	Width            int     `yaml:"width"`
	Height           int     `yaml:"height"`
	FPS              int     `yaml:"fps"`
	OverlayDuration  int     `yaml:"overlay_duration"`
	ChromaKey        string  `yaml:"chroma_key"`
	Encoder          string  `yaml:"encoder"` // auto | libx264 | h264_videotoolbox
	CRF              int     `yaml:"crf"`
	Preset           string  `yaml:"preset"`
	HardwareBitrate  string  `yaml:"hardware_bitrate"`
	AudioBitrate     string  `yaml:"audio_bitrate"`
	BackgroundVolume float64 `yaml:"background_volume"`
}

type MetadataConfig struct {
	Enabled       bool   `yaml:"enabled"`
	TitleMaxChars int    `yaml:"title_max_chars"`
	TagsCount     int    `yaml:"tags_count"`
	CategoryID    string `yaml:"category_id"`
}

type UploadConfig struct {
	Enabled           bool   `yaml:"enabled"`
	Visibility        string `yaml:"visibility"`
	NotifySubscribers bool   `yaml:"notify_subscribers"`
	MadeForKids       bool   `yaml:"made_for_kids"`
	DefaultLanguage   string `yaml:"default_language"`
}

type PathsConfig struct {
	Assets          string `yaml:"assets"`
	Backgrounds     string `yaml:"backgrounds"`
	Overlays        string `yaml:"overlays"`
	BackgroundUsage string `yaml:"background_usage_log"`
	UsedTopicsLog   string `yaml:"used_topics_log"`
	Output          string `yaml:"output"`
	Logs            string `yaml:"logs"`
}

// Default returns the configuration the pipeline runs with when no
// config.yaml is present.
func Default() *Config {
	return &Config{
		Research: ResearchConfig{
			Subreddits:  []string{"explainlikeimfive", "todayilearned"},
			MinScore:    500,
			MinComments: 20,
			Limit:       25,
		},
		Script: ScriptConfig{
			Provider:    "ollama",
			Model:       "deepseek-r1:32b",
			BaseURL:     "http://localhost:11434",
			Temperature: 0.9,
			MaxRetries:  5,
			TimeoutSec:  120,
		},
		Characters: []Character{
			{Name: "Peter", Voice: "assets/voices/peter_griffin.wav", Image: "assets/images/Peter.png", Size: "200:200", X: 50, Y: 1670, Rotate: "0.435*sin(2*PI/2*t)"},
			{Name: "Stewie", Voice: "assets/voices/stewie_griffin.wav", Image: "assets/images/Stewie.png", Size: "180:180", X: 850, Y: 1690, Rotate: "-0.435*sin(2*PI/2*t)"},
		},
		TTS: TTSConfig{
			Engine:       "command",
			Python:       "python3",
			Script:       "scripts/chatterbox_tts.py",
			Device:       "cpu",
			Exaggeration: 1,
			CFGWeight:    0.7,
			MaxRetries:   3,
		},
		Transcribe: TranscribeConfig{
			Engine:       "whisper",
			WhisperModel: "base",
			Language:     "en",
			Device:       "cpu",
		},
		Subtitles: SubtitlesConfig{Profile: "brainrot"},
		Profiles:  builtinProfiles(),
		Video: VideoConfig{
			Width:           1080,
			Height:          1920,
			FPS:             30,
			OverlayDuration: 100,
			ChromaKey:       "green:0.05:0.02",
			Encoder:         "auto",
			CRF:             16,
			Preset:          "slow",
			HardwareBitrate: "12M",
			AudioBitrate:    "192k",
		},
		Metadata: MetadataConfig{
			Enabled:       false,
			TitleMaxChars: 90,
			TagsCount:     15,
			CategoryID:    "27",
		},
		Upload: UploadConfig{
			Enabled:         false,
			Visibility:      "private",
			DefaultLanguage: "en",
		},
		Paths: PathsConfig{
			Assets:          "assets",
			Backgrounds:     "assets/background_videos",
			Overlays:        "assets/character_videos/positioned",
			BackgroundUsage: "logs/background_usage.json",
			UsedTopicsLog:   "logs/used_topics.json",
			Output:          "output",
			Logs:            "logs",
		},
	}
}

func builtinProfiles() map[string]Profile {
	return map[string]Profile{
		"brainrot": {
			WordsPerLine:    2,
			LineMinDuration: 0.5,
			LineMaxDuration: 3.0,
			WordMinDuration: 0.3,
			Font:            "Luckiest Guy",
			FontSize:        100,
			Outline:         3,
			BaseColour:      "&H00FFFFFF",
			HighlightColour: "&H0024FF03",
			MarginV:         400,
			BurnTracks:      []string{"highlight"},
		},
		"captions": {
			WordsPerLine:    5,
			LineMinDuration: 0.5,
			LineMaxDuration: 3.0,
			WordMinDuration: 0.3,
			Font:            "Arial",
			FontSize:        60,
			Outline:         2,
			BaseColour:      "&H00FFFFFF",
			HighlightColour: "&H0000FF00",
			MarginV:         300,
			BurnTracks:      []string{"highlight"},
		},
	}
}

// Load reads config.yaml over the defaults. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	// user profiles extend the built-ins rather than replacing them
	if cfg.Profiles == nil {
		cfg.Profiles = make(map[string]Profile)
	}
	for name, p := range builtinProfiles() {
		if _, ok := cfg.Profiles[name]; !ok {
			cfg.Profiles[name] = p
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the settings the pipeline cannot run without
func (c *Config) Validate() error {
	var problems []string
	if len(c.Characters) < 2 {
		problems = append(problems, "at least two characters are required")
	}
	seen := make(map[string]bool)
	for _, ch := range c.Characters {
		key := strings.ToLower(ch.Name)
		if ch.Name == "" {
			problems = append(problems, "character without a name")
		} else if seen[key] {
			problems = append(problems, fmt.Sprintf("duplicate character %q", ch.Name))
		}
		seen[key] = true
	}
	if _, err := c.Profile(c.Subtitles.Profile); err != nil {
		problems = append(problems, err.Error())
	}
	for name, p := range c.Profiles {
		if p.WordsPerLine < 1 {
			problems = append(problems, fmt.Sprintf("profile %q: words_per_line must be >= 1", name))
		}
		if p.LineMaxDuration > 0 && p.LineMaxDuration < p.LineMinDuration {
			problems = append(problems, fmt.Sprintf("profile %q: line_max_duration below line_min_duration", name))
		}
	}
	if c.Video.Width <= 0 || c.Video.Height <= 0 {
		problems = append(problems, "video width and height must be positive")
	}
	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

// Profile returns the named subtitle profile
func (c *Config) Profile(name string) (Profile, error) {
	p, ok := c.Profiles[name]
	if !ok {
		names := make([]string, 0, len(c.Profiles))
		for n := range c.Profiles {
			names = append(names, n)
		}
		sort.Strings(names)
		return Profile{}, fmt.Errorf("unknown subtitle profile %q (have %s)", name, strings.Join(names, ", "))
	}
	return p, nil
}

// Character looks up a character by name, case-insensitively
func (c *Config) Character(name string) (Character, bool) {
	for _, ch := range c.Characters {
		if strings.EqualFold(ch.Name, name) {
			return ch, true
		}
	}
	return Character{}, false
}

// CharacterNames returns the configured names in order
func (c *Config) CharacterNames() []string {
	names := make([]string, 0, len(c.Characters))
	for _, ch := range c.Characters {
		names = append(names, ch.Name)
	}
	return names
}
