package visuals

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	ffgo "github.com/u2takey/ffmpeg-go"
	"go.uber.org/zap"

	"dialogue-shorts/config"
	"dialogue-shorts/logging"
	"dialogue-shorts/proc"
)

// OverlayPath is where the pre-rendered green-screen video of a character
// lives.
func OverlayPath(cfg *config.Config, name string) string {
	return filepath.Join(cfg.Paths.Overlays, strings.ToLower(name)+"_positioned.mp4")
}

// OverlayBuilder renders one green-screen video per character: the image
// scaled, rocking and placed at its final position on a full-frame canvas.
type OverlayBuilder struct {
	cfg    *config.Config
	runner proc.Runner
	log    *zap.Logger
}

func NewOverlayBuilder(cfg *config.Config, runner proc.Runner, logger *zap.Logger) *OverlayBuilder {
	return &OverlayBuilder{
		cfg:    cfg,
		runner: runner,
		log:    logging.OrNop(logger).Named("overlays"),
	}
}

// Run renders every character overlay. Existing files are kept unless
// force is set. All characters are attempted before an error is returned.
func (b *OverlayBuilder) Run(ctx context.Context, force bool) ([]string, error) {
	if err := os.MkdirAll(b.cfg.Paths.Overlays, 0755); err != nil {
		return nil, fmt.Errorf("create overlay dir: %w", err)
	}

	var (
		paths []string
		errs  []error
	)
	for _, ch := range b.cfg.Characters {
		out := OverlayPath(b.cfg, ch.Name)
		if !force {
			if info, err := os.Stat(out); err == nil && info.Size() > 0 {
				b.log.Info("overlay exists, skipping", zap.String("character", ch.Name), zap.String("file", out))
				paths = append(paths, out)
				continue
			}
		}
		if _, err := os.Stat(ch.Image); err != nil {
			errs = append(errs, fmt.Errorf("%s: image %w", ch.Name, err))
			continue
		}

		args, err := OverlayArgs(b.cfg.Video, ch, out)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", ch.Name, err))
			continue
		}
		b.log.Info("rendering overlay", zap.String("character", ch.Name), zap.Int("seconds", b.cfg.Video.OverlayDuration))
		if _, err := b.runner.Run(ctx, proc.Command{Name: "ffmpeg", Args: args}); err != nil {
			if ctx.Err() != nil {
				return paths, ctx.Err()
			}
			errs = append(errs, fmt.Errorf("%s: %w", ch.Name, err))
			continue
		}
		paths = append(paths, out)
	}
	return paths, errors.Join(errs...)
}

// OverlayArgs builds the ffmpeg arguments for one character overlay
func OverlayArgs(v config.VideoConfig, ch config.Character, out string) ([]string, error) {
	w, h, err := parseSize(ch.Size)
	if err != nil {
		return nil, err
	}
	if v.OverlayDuration <= 0 || v.FPS <= 0 {
		return nil, fmt.Errorf("overlay duration and fps must be positive")
	}
	rotate := ch.Rotate
	if rotate == "" {
		rotate = "0"
	}

	canvas := ffgo.Input(
		fmt.Sprintf("color=c=green:size=%dx%d:duration=%d:rate=%d", v.Width, v.Height, v.OverlayDuration, v.FPS),
		ffgo.KwArgs{"f": "lavfi"},
	)
	image := ffgo.Input(ch.Image, ffgo.KwArgs{"loop": "1"}).
		Filter("scale", ffgo.Args{w, h}).
		Filter("rotate", ffgo.Args{rotate}, ffgo.KwArgs{"ow": "rotw(iw)", "oh": "roth(ih)", "c": "green"})

	args := ffgo.Filter([]*ffgo.Stream{canvas, image}, "overlay", ffgo.Args{},
		ffgo.KwArgs{"x": ch.X, "y": ch.Y, "shortest": 1}).
		Output(out, ffgo.KwArgs{
			"c:v":     "libx264",
			"pix_fmt": "yuv420p",
			"crf":     18,
			"preset":  "medium",
			"t":       v.OverlayDuration,
		}).
		OverWriteOutput().
		GetArgs()
	return append([]string{"-hide_banner"}, args...), nil
}

// parseSize splits "200:200" or "200x200" into width and height
func parseSize(s string) (string, string, error) {
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == ':' || r == 'x' })
	if len(parts) != 2 || strings.TrimSpace(parts[0]) == "" || strings.TrimSpace(parts[1]) == "" {
		return "", "", fmt.Errorf("invalid character size %q", s)
	}
	return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1]), nil
}
