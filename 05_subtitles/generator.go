package subtitles

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"dialogue-shorts/config"
	"dialogue-shorts/logging"
	"dialogue-shorts/types"
)

// Generator is the subtitle stage: transcribe the master audio, then
// build and write every subtitle track.
type Generator struct {
	cfg         *config.Config
	profile     config.Profile
	transcriber Transcriber
	log         *zap.Logger
}

// New creates a subtitle Generator. transcriber may be nil, which forces
// the estimated path.
func New(cfg *config.Config, profile config.Profile, transcriber Transcriber, logger *zap.Logger) *Generator {
	return &Generator{
		cfg:         cfg,
		profile:     profile,
		transcriber: transcriber,
		log:         logging.OrNop(logger).Named("subtitles"),
	}
}

// Request is what the stage needs from the audio stage
type Request struct {
	Turns     []types.DialogueTurn
	Clips     []types.AudioClip
	AudioFile string
	AudioSec  float64
	OutputDir string

	// Transcript skips transcription when set, e.g. on a re-render
	Transcript []types.TranscriptSegment
}

// Result is the built tracks and where they were written
type Result struct {
	Tracks Tracks
	Files  Files
}

// Run never fails because of the transcript: any transcription problem
// switches to timing estimated from the turns.
func (g *Generator) Run(ctx context.Context, req Request) (*Result, error) {
	if err := os.MkdirAll(req.OutputDir, 0755); err != nil {
		return nil, err
	}

	in := Input{
		Turns: req.Turns,
		Clips: clipDurations(req.Clips, len(req.Turns)),
		Total: req.AudioSec,
	}
	segs, err := req.Transcript, error(nil)
	if len(segs) == 0 {
		segs, err = g.transcribe(ctx, req.AudioFile, req.OutputDir)
	}
	switch {
	case err == nil:
		in.Segments = segs
	case ctx.Err() != nil:
		return nil, ctx.Err()
	case errors.Is(err, ErrNoTranscript):
		g.log.Warn("transcript is empty, estimating subtitle timing from the script")
	default:
		g.log.Warn("transcription failed, estimating subtitle timing from the script", zap.Error(err))
	}

	tracks := NewEngine(OptionsFromProfile(g.profile)).Build(in)
	style := StyleFromProfile(g.profile, g.cfg.Video.Width, g.cfg.Video.Height)
	files, err := WriteTracks(req.OutputDir, tracks, style)
	if err != nil {
		return nil, fmt.Errorf("write subtitles: %w", err)
	}

	g.log.Info("subtitles written",
		zap.String("mode", string(tracks.Mode)),
		zap.String("attribution", string(tracks.Attribution)),
		zap.Int("lines", len(tracks.Lines)),
		zap.Int("words", len(tracks.Words)),
		zap.Int("highlights", len(tracks.Highlights)),
		zap.Int("speakers", len(tracks.Characters)),
	)
	return &Result{Tracks: tracks, Files: files}, nil
}

func (g *Generator) transcribe(ctx context.Context, audioFile, outputDir string) ([]types.TranscriptSegment, error) {
	if g.transcriber == nil {
		return nil, ErrNoTranscript
	}
	g.log.Info("transcribing master audio", zap.String("file", audioFile))
	res, err := g.transcriber.Transcribe(ctx, audioFile)
	if res.SkippedWords > 0 || res.SkippedSegments > 0 {
		g.log.Warn("dropped malformed transcript entries",
			zap.Int("words", res.SkippedWords),
			zap.Int("segments", res.SkippedSegments))
	}
	if err != nil {
		return nil, err
	}

	data, err := MarshalTranscript(res.Segments)
	if err == nil {
		err = os.WriteFile(filepath.Join(outputDir, TranscriptFile), data, 0644)
	}
	if err != nil {
		g.log.Warn("could not save transcript", zap.Error(err))
	}
	return res.Segments, nil
}

// clipDurations returns one measured duration per turn, or nil when the
// clips do not line up with the turns or any of them is only an estimate.
func clipDurations(clips []types.AudioClip, turns int) []float64 {
	if len(clips) != turns {
		return nil
	}
	out := make([]float64, turns)
	for i, c := range clips {
		if c.Turn != i || !c.Measured {
			return nil
		}
		out[i] = c.Duration
	}
	return out
}

// LoadTranscript reads a transcript.json saved by an earlier run
func LoadTranscript(path string) ([]types.TranscriptSegment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	res, err := ParseTranscript(data)
	if err != nil {
		return nil, err
	}
	return res.Segments, nil
}
