package audio

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"go.uber.org/zap"

	"dialogue-shorts/config"
	"dialogue-shorts/ffmpeg"
	"dialogue-shorts/logging"
	"dialogue-shorts/proc"
	"dialogue-shorts/types"
)

const (
	ClipDir    = "temp_audio"
	MasterFile = "master_audio.wav"
)

// retryDelay is multiplied by the attempt number between TTS retries
var retryDelay = 2 * time.Second

// Generator handles TTS audio generation and joins the clips
type Generator struct {
	cfg    *config.Config
	engine Engine
	prober ffmpeg.Prober
	runner proc.Runner
	log    *zap.Logger
}

// New creates a new Generator around an already constructed engine
func New(cfg *config.Config, engine Engine, prober ffmpeg.Prober, runner proc.Runner, logger *zap.Logger) *Generator {
	return &Generator{
		cfg:    cfg,
		engine: engine,
		prober: prober,
		runner: runner,
		log:    logging.OrNop(logger).Named("audio"),
	}
}

// Result is the synthesized audio of one script
type Result struct {
	Clips       []types.AudioClip
	MasterAudio string
	Duration    float64
}

// Run synthesizes every turn in order, measures each clip and concatenates
// them into master_audio.wav inside runDir.
func (g *Generator) Run(ctx context.Context, turns []types.DialogueTurn, runDir string) (*Result, error) {
	clipDir := filepath.Join(runDir, ClipDir)
	if err := os.MkdirAll(clipDir, 0755); err != nil {
		return nil, fmt.Errorf("create audio dir: %w", err)
	}
	g.log.Info("generating speech", zap.Int("turns", len(turns)))

	res := &Result{}
	paths := make([]string, 0, len(turns))
	for i, turn := range turns {
		ch, ok := g.cfg.Character(turn.Speaker)
		if !ok {
			return nil, fmt.Errorf("turn %d: unknown speaker %q", i, turn.Speaker)
		}
		out := filepath.Join(clipDir, ClipName(i, turn.Speaker))
		g.log.Debug("synthesizing", zap.Int("turn", i+1), zap.String("speaker", ch.Name))

		if err := g.synthesize(ctx, turn.Text, ch.Voice, out); err != nil {
			return nil, fmt.Errorf("turn %d TTS failed: %w", i, err)
		}

		clip := g.measure(ctx, i, turn, out)
		res.Clips = append(res.Clips, clip)
		paths = append(paths, out)
		g.log.Info("clip ready",
			zap.Int("turn", i+1),
			zap.String("speaker", ch.Name),
			zap.Float64("seconds", clip.Duration),
			zap.Bool("measured", clip.Measured))
	}

	res.MasterAudio = filepath.Join(runDir, MasterFile)
	if err := ffmpeg.ConcatAudio(ctx, g.runner, paths, res.MasterAudio); err != nil {
		return nil, fmt.Errorf("concatenate audio: %w", err)
	}
	res.Duration = g.totalDuration(ctx, res)

	g.log.Info("master audio ready", zap.String("file", res.MasterAudio), zap.Float64("seconds", res.Duration))
	return res, nil
}

// synthesize retries with linear backoff, then makes one last attempt
// with punctuation stripped, which some voice models choke on.
func (g *Generator) synthesize(ctx context.Context, text, voice, out string) error {
	attempts := max(g.cfg.TTS.MaxRetries, 1)
	req := SynthesisRequest{Text: text, VoicePath: voice, OutPath: out}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = g.engine.Synthesize(ctx, req); err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		g.log.Warn("TTS attempt failed", zap.Int("attempt", attempt), zap.Error(err))
		if attempt < attempts {
			if werr := wait(ctx, time.Duration(attempt)*retryDelay); werr != nil {
				return werr
			}
		}
	}

	simple := SimplifyText(text)
	if simple == "" || simple == text {
		return err
	}
	g.log.Warn("retrying with simplified text", zap.String("text", simple))
	req.Text = simple
	if serr := g.engine.Synthesize(ctx, req); serr != nil {
		return fmt.Errorf("%w (simplified retry: %v)", err, serr)
	}
	return nil
}

func (g *Generator) measure(ctx context.Context, i int, turn types.DialogueTurn, path string) types.AudioClip {
	clip := types.AudioClip{Turn: i, Path: path}
	d, err := g.prober.Duration(ctx, path)
	if err != nil || d <= 0 {
		g.log.Warn("could not measure clip, using estimate", zap.Int("turn", i+1), zap.Error(err))
		clip.Duration = turn.EstimatedDuration()
		return clip
	}
	clip.Duration = d
	clip.Measured = true
	return clip
}

func (g *Generator) totalDuration(ctx context.Context, res *Result) float64 {
	if d, err := g.prober.Duration(ctx, res.MasterAudio); err == nil && d > 0 {
		return d
	}
	var sum float64
	for _, c := range res.Clips {
		sum += c.Duration
	}
	return sum
}

// ClipName is the file name of one turn's clip, e.g. 0_peter.wav
func ClipName(i int, speaker string) string {
	name := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return unicode.ToLower(r)
		}
		return '_'
	}, speaker)
	return fmt.Sprintf("%d_%s.wav", i, name)
}

// SimplifyText drops everything but letters, digits, apostrophes and
// spaces.
func SimplifyText(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '\'' {
			return r
		}
		return ' '
	}, s)
	return strings.Join(strings.Fields(s), " ")
}

// Clips rebuilds clip records from the files of an earlier run, probing
// each one again. Missing files are an error.
func (g *Generator) Clips(ctx context.Context, turns []types.DialogueTurn, runDir string) ([]types.AudioClip, error) {
	clips := make([]types.AudioClip, 0, len(turns))
	for i, turn := range turns {
		path := filepath.Join(runDir, ClipDir, ClipName(i, turn.Speaker))
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("turn %d: %w", i, err)
		}
		clips = append(clips, g.measure(ctx, i, turn, path))
	}
	return clips, nil
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
