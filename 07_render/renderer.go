package render

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"dialogue-shorts/04_visuals"
	"dialogue-shorts/05_subtitles"
	"dialogue-shorts/config"
	"dialogue-shorts/ffmpeg"
	"dialogue-shorts/logging"
	"dialogue-shorts/proc"
	"dialogue-shorts/types"
)

const OutputFile = "final_video.mp4"

// mergeGap is the largest pause between two windows of one speaker that
// still keeps the overlay on.
const mergeGap = 0.05

// Request is everything one render needs
type Request struct {
	Background string
	AudioFile  string
	Duration   float64
	Subtitles  subtitles.Files
	// Speakers is the attribution track. When nil it is read from the
	// character subtitle file.
	Speakers  []types.CharacterSegment
	OutputDir string
}

// Window is a span of time during which an overlay is shown
type Window struct {
	Start float64
	End   float64
}

// Overlay is one pre-rendered character video. A nil Windows shows it for
// the whole video.
type Overlay struct {
	Name    string
	Path    string
	Windows []Window
}

// Options switch the optional parts of the filter graph
type Options struct {
	Encoder         string
	BurnSubtitles   bool
	BackgroundAudio bool
}

// Renderer composes the final video in a single ffmpeg pass
type Renderer struct {
	cfg     *config.Config
	profile config.Profile
	runner  proc.Runner
	log     *zap.Logger
}

// New creates a new Renderer
func New(cfg *config.Config, profile config.Profile, runner proc.Runner, logger *zap.Logger) *Renderer {
	return &Renderer{
		cfg:     cfg,
		profile: profile,
		runner:  runner,
		log:     logging.OrNop(logger).Named("render"),
	}
}

// Run builds final_video.mp4. If the pass with burned-in subtitles fails
// it is retried once without them.
func (r *Renderer) Run(ctx context.Context, req Request) (string, error) {
	if req.Duration <= 0 {
		return "", fmt.Errorf("render: audio duration must be positive, got %.3f", req.Duration)
	}
	speakers := req.Speakers
	if speakers == nil {
		var err error
		speakers, err = LoadSpeakers(req.Subtitles.Characters)
		if err != nil {
			r.log.Warn("no speaker attribution, showing every character throughout", zap.Error(err))
		}
	}
	overlays := Overlays(r.cfg, speakers)
	r.log.Info("composing video",
		zap.String("background", filepath.Base(req.Background)),
		zap.Int("overlays", len(overlays)),
		zap.Int("speaker_segments", len(speakers)),
		zap.Float64("seconds", req.Duration))

	opt := Options{
		Encoder:         r.encoder(ctx),
		BurnSubtitles:   true,
		BackgroundAudio: r.cfg.Video.BackgroundVolume > 0,
	}
	out := filepath.Join(req.OutputDir, OutputFile)

	err := r.render(ctx, req, overlays, opt, out)
	if err == nil {
		r.log.Info("final video ready", zap.String("file", out), zap.String("encoder", opt.Encoder))
		return out, nil
	}
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	r.log.Warn("render failed, retrying without subtitles", zap.Error(err))
	opt.BurnSubtitles = false
	opt.BackgroundAudio = false
	if err := r.render(ctx, req, overlays, opt, out); err != nil {
		return "", fmt.Errorf("ffmpeg render: %w", err)
	}
	r.log.Warn("final video ready without subtitles", zap.String("file", out))
	return out, nil
}

func (r *Renderer) render(ctx context.Context, req Request, overlays []Overlay, opt Options, out string) error {
	args, err := BuildCommand(r.cfg.Video, r.profile, req, overlays, opt, out)
	if err != nil {
		return err
	}
	r.log.Debug("ffmpeg", zap.Strings("args", args))
	_, err = r.runner.Run(ctx, proc.Command{Name: "ffmpeg", Args: args})
	return err
}

func (r *Renderer) encoder(ctx context.Context) string {
	if e := r.cfg.Video.Encoder; e != "" && e != "auto" {
		return e
	}
	return ffmpeg.DetectEncoder(ctx, r.runner)
}

// LoadSpeakers reads the attribution track back from a character subtitle
// file.
func LoadSpeakers(path string) ([]types.CharacterSegment, error) {
	if path == "" {
		return nil, errors.New("no character subtitle file")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cues := subtitles.ParseSRT(string(data))
	if len(cues) == 0 {
		return nil, fmt.Errorf("%s has no cues", filepath.Base(path))
	}
	segs := make([]types.CharacterSegment, 0, len(cues))
	for _, c := range cues {
		segs = append(segs, types.CharacterSegment{Start: c.Start, End: c.End, Speaker: c.Text})
	}
	return segs, nil
}

// Overlays pairs each configured character with its overlay video and the
// windows it speaks in. Characters that never speak are left out; without
// any attribution every character is shown throughout.
func Overlays(cfg *config.Config, speakers []types.CharacterSegment) []Overlay {
	windows := SpeakerWindows(speakers)
	var overlays []Overlay
	for _, ch := range cfg.Characters {
		o := Overlay{Name: ch.Name, Path: visuals.OverlayPath(cfg, ch.Name)}
		if len(speakers) > 0 {
			w := windows[strings.ToLower(ch.Name)]
			if len(w) == 0 {
				continue
			}
			o.Windows = w
		}
		overlays = append(overlays, o)
	}
	return overlays
}

// SpeakerWindows groups the attribution track by lower-cased speaker,
// merging consecutive windows of the same speaker.
func SpeakerWindows(segs []types.CharacterSegment) map[string][]Window {
	sorted := append([]types.CharacterSegment(nil), segs...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	out := make(map[string][]Window)
	for _, s := range sorted {
		if s.End <= s.Start {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(s.Speaker))
		ws := out[key]
		if n := len(ws); n > 0 && s.Start-ws[n-1].End <= mergeGap {
			if s.End > ws[n-1].End {
				ws[n-1].End = s.End
			}
			continue
		}
		out[key] = append(ws, Window{Start: s.Start, End: s.End})
	}
	return out
}

// EnableExpr is the overlay enable expression for a set of windows
func EnableExpr(ws []Window) string {
	parts := make([]string, 0, len(ws))
	for _, w := range ws {
		parts = append(parts, fmt.Sprintf("between(t,%s,%s)", seconds(w.Start), seconds(w.End)))
	}
	return strings.Join(parts, "+")
}

func seconds(x float64) string {
	return strconv.FormatFloat(x, 'f', 3, 64)
}

// BuildCommand returns the ffmpeg argv of the single composition pass.
// Input 0 is the looped background, then one input per overlay, then the
// master audio.
func BuildCommand(v config.VideoConfig, p config.Profile, req Request, overlays []Overlay, opt Options, out string) ([]string, error) {
	if req.Background == "" {
		return nil, errors.New("no background video")
	}
	if req.AudioFile == "" {
		return nil, errors.New("no master audio")
	}
	b := ffmpeg.NewBuilder()
	hardware := opt.Encoder == "h264_videotoolbox"
	if hardware {
		b.Global("-hwaccel", "videotoolbox")
	}

	bg := b.Input(req.Background, "-stream_loop", "-1")
	b.Filter(fmt.Sprintf("[%d:v]scale=%d:%d:force_original_aspect_ratio=increase,crop=%d:%d,fps=%d[bg]",
		bg, v.Width, v.Height, v.Width, v.Height, max(v.FPS, 1)))

	key := v.ChromaKey
	if key == "" {
		key = "green:0.05:0.02"
	}
	current := "[bg]"
	for i, o := range overlays {
		if o.Path == "" {
			return nil, fmt.Errorf("overlay %s has no video", o.Name)
		}
		idx := b.Input(o.Path)
		keyed := fmt.Sprintf("[k%d]", i)
		next := fmt.Sprintf("[v%d]", i)
		b.Filter(fmt.Sprintf("[%d:v]chromakey=%s%s", idx, key, keyed))
		overlay := "overlay=eof_action=pass"
		if o.Windows != nil {
			overlay += ":enable=" + ffmpeg.Quote(EnableExpr(o.Windows))
		}
		b.Filter(current + keyed + overlay + next)
		current = next
	}

	if opt.BurnSubtitles {
		for i, f := range burnFilters(p, req.Subtitles) {
			next := fmt.Sprintf("[s%d]", i)
			b.Filter(current + f + next)
			current = next
		}
	}
	b.Filter(current + "format=yuv420p[final_v]")

	audio := b.Input(req.AudioFile)
	b.Map("[final_v]")
	if opt.BackgroundAudio && v.BackgroundVolume > 0 {
		b.Filter(fmt.Sprintf("[%d:a]volume=%s[bed]", bg, strconv.FormatFloat(v.BackgroundVolume, 'f', -1, 64)))
		b.Filter(fmt.Sprintf("[%d:a][bed]amix=inputs=2:duration=first:dropout_transition=0:normalize=0[final_a]", audio))
		b.Map("[final_a]")
	} else {
		b.Map(fmt.Sprintf("%d:a", audio))
	}

	b.Option("-c:v", opt.Encoder)
	if hardware {
		b.Option("-b:v", v.HardwareBitrate)
	} else {
		b.Option("-crf", strconv.Itoa(v.CRF), "-preset", v.Preset)
	}
	b.Option("-c:a", "aac", "-b:a", v.AudioBitrate)
	b.Duration(req.Duration)
	b.Option("-pix_fmt", "yuv420p", "-movflags", "+faststart")
	return b.Output(out).Args()
}

// burnFilters returns the subtitles filters for the profile's burn tracks
// in order. Unknown track names are ignored.
func burnFilters(p config.Profile, files subtitles.Files) []string {
	var filters []string
	for _, track := range p.BurnTracks {
		switch strings.ToLower(track) {
		case "highlight":
			if files.Highlight != "" {
				filters = append(filters, "subtitles="+ffmpeg.FilterPath(absPath(files.Highlight)))
			}
		case "lines":
			if files.Lines != "" {
				filters = append(filters, srtFilter(files.Lines, p, p.BaseColour))
			}
		case "words":
			if files.Words != "" {
				filters = append(filters, srtFilter(files.Words, p, p.HighlightColour))
			}
		}
	}
	return filters
}

func srtFilter(path string, p config.Profile, colour string) string {
	style := fmt.Sprintf("Fontname=%s,Fontsize=%d,PrimaryColour=%s,OutlineColour=&H00000000,Outline=%d,Alignment=2,MarginV=%d,Bold=1",
		p.Font, p.FontSize, colour, p.Outline, p.MarginV)
	return "subtitles=filename=" + ffmpeg.FilterPath(absPath(path)) + ":force_style=" + ffmpeg.Quote(style)
}

func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}
