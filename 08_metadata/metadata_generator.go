package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"go.uber.org/zap"

	"dialogue-shorts/02_script"
	"dialogue-shorts/config"
	"dialogue-shorts/logging"
	"dialogue-shorts/types"
)

const metadataSystemPrompt = `You are a YouTube Shorts strategist. Write metadata for a funny, educational cartoon dialogue short.

You MUST respond with ONLY valid JSON, no markdown, no explanation.

The JSON must have exactly these fields:
- "title": string (max 70 chars, punchy, names the topic, no clickbait lies)
- "description": string (2-3 short sentences, then 3-5 hashtags)
- "tags": array of 15 strings (mix of broad and topic-specific tags)`

// maxTagChars is YouTube's limit on the combined length of all tags
const maxTagChars = 500

// Generator creates YouTube Shorts metadata with the script model
type Generator struct {
	cfg      *config.Config
	provider script.Provider
	log      *zap.Logger
}

// New creates a new metadata Generator. provider may be nil, in which case
// metadata is always derived from the topic.
func New(cfg *config.Config, provider script.Provider, logger *zap.Logger) *Generator {
	return &Generator{
		cfg:      cfg,
		provider: provider,
		log:      logging.OrNop(logger).Named("metadata"),
	}
}

type metadataJSON struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
}

// Run asks the model for metadata. A failed call or an unusable answer
// falls back to metadata built from the topic, so Run never fails.
func (g *Generator) Run(ctx context.Context, s *types.Script) *types.VideoMetadata {
	if g.provider == nil {
		return g.finish(Fallback(s, g.cfg))
	}
	g.log.Info("generating metadata", zap.String("provider", g.provider.Name()))

	content, err := g.provider.Complete(ctx, metadataSystemPrompt, buildMetadataPrompt(s, g.cfg))
	if err != nil {
		g.log.Warn("metadata request failed, using topic", zap.Error(err))
		return g.finish(Fallback(s, g.cfg))
	}
	var raw metadataJSON
	if err := json.Unmarshal([]byte(script.CleanJSON(content)), &raw); err != nil || strings.TrimSpace(raw.Title) == "" {
		g.log.Warn("unusable metadata answer, using topic", zap.Error(err))
		return g.finish(Fallback(s, g.cfg))
	}

	md := &types.VideoMetadata{
		Title:       raw.Title,
		Description: raw.Description,
		Tags:        raw.Tags,
	}
	return g.finish(md)
}

// finish applies the limits and defaults shared by both paths
func (g *Generator) finish(md *types.VideoMetadata) *types.VideoMetadata {
	md.Title = Truncate(strings.TrimSpace(md.Title), g.cfg.Metadata.TitleMaxChars)
	md.Description = strings.TrimSpace(md.Description)
	if !strings.Contains(strings.ToLower(md.Description), "#shorts") {
		md.Description = strings.TrimSpace(md.Description + "\n\n#Shorts")
	}
	md.Tags = CleanTags(md.Tags, g.cfg.Metadata.TagsCount)
	md.CategoryID = g.cfg.Metadata.CategoryID
	md.Visibility = g.cfg.Upload.Visibility

	g.log.Info("metadata ready", zap.String("title", md.Title), zap.Int("tags", len(md.Tags)))
	return md
}

// Fallback derives metadata from the topic and the speakers alone
func Fallback(s *types.Script, cfg *config.Config) *types.VideoMetadata {
	names := cfg.CharacterNames()
	teacher, student := "Peter", "Stewie"
	if len(names) >= 2 {
		teacher, student = names[0], names[1]
	}
	topic := strings.TrimSpace(s.Topic)
	return &types.VideoMetadata{
		Title:       fmt.Sprintf("%s Explains %s to %s", teacher, titleCase(topic), student),
		Description: fmt.Sprintf("%s tries to teach %s about %s. It goes about as well as you'd expect.", teacher, student, topic),
		Tags:        append([]string{topic, teacher, student}, "shorts", "funny", "learn something", "explained"),
	}
}

func buildMetadataPrompt(s *types.Script, cfg *config.Config) string {
	var sb strings.Builder
	sb.WriteString("Generate YouTube Shorts metadata for this video.\n\n")
	sb.WriteString(fmt.Sprintf("TOPIC: %s\n", s.Topic))
	sb.WriteString(fmt.Sprintf("CHARACTERS: %s\n\n", strings.Join(cfg.CharacterNames(), ", ")))
	sb.WriteString("DIALOGUE (first lines):\n")
	for i, t := range s.Turns {
		if i == 6 {
			break
		}
		sb.WriteString(fmt.Sprintf("- %s: %s\n", t.Speaker, t.Text))
	}
	sb.WriteString(fmt.Sprintf("\nTitle max %d characters. Respond ONLY with valid JSON.", cfg.Metadata.TitleMaxChars))
	return sb.String()
}

// Truncate shortens s to at most n runes, ending with "..." when cut
func Truncate(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	if n <= 3 {
		return string(r[:n])
	}
	return strings.TrimSpace(string(r[:n-3])) + "..."
}

// CleanTags trims, drops '#' and duplicates, and keeps at most n tags
// within YouTube's combined length limit.
func CleanTags(tags []string, n int) []string {
	seen := make(map[string]bool)
	var out []string
	total := 0
	for _, t := range tags {
		t = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(t), "#"))
		t = strings.Map(func(r rune) rune {
			if r == '<' || r == '>' || r == ',' {
				return -1
			}
			return r
		}, t)
		key := strings.ToLower(t)
		if t == "" || seen[key] {
			continue
		}
		if n > 0 && len(out) == n {
			break
		}
		if total+utf8.RuneCountInString(t) > maxTagChars {
			break
		}
		seen[key] = true
		total += utf8.RuneCountInString(t)
		out = append(out, t)
	}
	return out
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToUpper(r)) + w[size:]
	}
	return strings.Join(words, " ")
}
