package script

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"dialogue-shorts/config"
	"dialogue-shorts/logging"
	"dialogue-shorts/types"
)

// ErrInvalidScript marks a model answer that parsed but is not a usable
// dialogue.
var ErrInvalidScript = errors.New("invalid script")

const defaultPrompt = `You are a comedy writer known for raunchy sit-com dialogue. {{teacher}} is teaching {{student}} about a topic in a humorous way.

Create around 10 lines of cohesive dialogue to explore a topic where:

- {{student}} opens with a dumb observation
- {{teacher}} responds with a witty segue into the topic
- {{student}} interjects occasionally with incorrect or tangential observations
- {{teacher}} responds with corrections and offers specific and correct information
- {{teacher}} finishes with a call to action to share this video if ... some condition is met making it relevant to the topic but as specific and funny as possible.

Use simple, clear language and make layered jokes!

Format as JSON: {"script": [{"actor": "{{teacher}}", "line": "text"}, ...]}
No other text, just the JSON.`

// retryDelay is multiplied by the attempt number between model calls
var retryDelay = 2 * time.Second

// Writer turns a topic into a dialogue script
type Writer struct {
	cfg      *config.Config
	provider Provider
	log      *zap.Logger
}

// New creates a new script Writer
func New(cfg *config.Config, provider Provider, logger *zap.Logger) *Writer {
	return &Writer{
		cfg:      cfg,
		provider: provider,
		log:      logging.OrNop(logger).Named("script"),
	}
}

// Run asks the model for a script, retrying on transport errors and on
// answers that do not validate.
func (w *Writer) Run(ctx context.Context, topic string) (*types.Script, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, errors.New("empty topic")
	}
	system := SystemPrompt(w.cfg)
	user := "TOPIC: " + topic
	attempts := max(w.cfg.Script.MaxRetries, 1)

	w.log.Info("writing script", zap.String("topic", topic), zap.String("provider", w.provider.Name()))

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		content, err := w.provider.Complete(ctx, system, user)
		if err == nil {
			var s *types.Script
			s, err = Parse(content, w.cfg)
			if err == nil {
				s.Topic = topic
				w.log.Info("script ready", zap.Int("turns", len(s.Turns)), zap.Int("attempt", attempt))
				return s, nil
			}
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err
		w.log.Warn("script attempt failed", zap.Int("attempt", attempt), zap.Error(err))
		if attempt < attempts {
			if werr := wait(ctx, time.Duration(attempt)*retryDelay); werr != nil {
				return nil, werr
			}
		}
	}
	return nil, fmt.Errorf("script generation failed after %d attempts: %w", attempts, lastErr)
}

// SystemPrompt fills the configured prompt with the first two character
// names.
func SystemPrompt(cfg *config.Config) string {
	prompt := cfg.Script.Prompt
	if strings.TrimSpace(prompt) == "" {
		prompt = defaultPrompt
	}
	teacher, student := "Peter", "Stewie"
	if names := cfg.CharacterNames(); len(names) >= 2 {
		teacher, student = names[0], names[1]
	}
	return strings.NewReplacer("{{teacher}}", teacher, "{{student}}", student).Replace(prompt)
}

type scriptJSON struct {
	Script []types.DialogueTurn `json:"script"`
}

// Parse decodes a model answer into a validated script. Reasoning blocks
// and markdown fences around the JSON are ignored.
func Parse(content string, cfg *config.Config) (*types.Script, error) {
	content = CleanJSON(content)
	var raw scriptJSON
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return nil, fmt.Errorf("parse script JSON: %w\nraw content: %s", err, content[:min(200, len(content))])
	}
	s := &types.Script{Turns: raw.Script}
	if err := Validate(s, cfg); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks every turn has a known speaker and a line, and rewrites
// speaker names to their configured spelling.
func Validate(s *types.Script, cfg *config.Config) error {
	if len(s.Turns) == 0 {
		return fmt.Errorf("%w: no dialogue turns", ErrInvalidScript)
	}
	for i := range s.Turns {
		turn := &s.Turns[i]
		turn.Text = NormalizeText(turn.Text)
		speaker := strings.TrimSpace(turn.Speaker)
		if speaker == "" {
			return fmt.Errorf("%w: turn %d has no actor", ErrInvalidScript, i)
		}
		if turn.Text == "" {
			return fmt.Errorf("%w: turn %d has no line", ErrInvalidScript, i)
		}
		ch, ok := cfg.Character(speaker)
		if !ok {
			return fmt.Errorf("%w: turn %d has unknown actor %q", ErrInvalidScript, i, speaker)
		}
		turn.Speaker = ch.Name
	}
	return nil
}

var thinkBlock = regexp.MustCompile(`(?s)<think>.*?</think>`)

// CleanJSON strips reasoning blocks and markdown fences, then cuts the
// answer down to its outermost object.
func CleanJSON(s string) string {
	s = thinkBlock.ReplaceAllString(s, "")
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)
	if i, j := strings.Index(s, "{"), strings.LastIndex(s, "}"); i >= 0 && j > i {
		s = s[i : j+1]
	}
	return s
}

var typography = strings.NewReplacer(
	"\u2018", "'", "\u2019", "'",
	"\u201c", `"`, "\u201d", `"`,
	"\u2013", "-", "\u2014", " - ",
	"\u2026", "...",
	"\u00a0", " ",
)

// NormalizeText replaces typographic punctuation with plain ASCII and
// collapses whitespace, so TTS and subtitle fonts see the same text.
func NormalizeText(s string) string {
	return strings.Join(strings.Fields(typography.Replace(s)), " ")
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
