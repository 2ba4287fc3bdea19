package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"dialogue-shorts/01_research"
	"dialogue-shorts/02_script"
	"dialogue-shorts/03_audio"
	"dialogue-shorts/04_visuals"
	"dialogue-shorts/05_subtitles"
	"dialogue-shorts/07_render"
	"dialogue-shorts/08_metadata"
	"dialogue-shorts/09_upload"
	"dialogue-shorts/config"
	"dialogue-shorts/ffmpeg"
	"dialogue-shorts/logging"
	"dialogue-shorts/proc"
	"dialogue-shorts/types"
)

// ErrPrecondition wraps every failed requirement found by Preflight
var ErrPrecondition = errors.New("requirements not met")

const (
	ScriptFile   = "script.json"
	StateFile    = "pipeline_state.json"
	MetadataFile = "metadata.json"
)

// Deps are the external collaborators of a run. Nil Transcriber forces
// estimated subtitle timing; nil Reddit disables research.
type Deps struct {
	Runner      proc.Runner
	Prober      ffmpeg.Prober
	Provider    script.Provider
	TTS         audio.Engine
	Transcriber subtitles.Transcriber
	Reddit      research.PostSource
	LookPath    func(name string) bool
}

// Pipeline runs the stages for one or more topics
type Pipeline struct {
	cfg         *config.Config
	profileName string
	profile     config.Profile
	deps        Deps
	log         *zap.Logger
	now         func() time.Time
}

// New resolves the subtitle profile named in cfg
func New(cfg *config.Config, deps Deps, logger *zap.Logger) (*Pipeline, error) {
	profile, err := cfg.Profile(cfg.Subtitles.Profile)
	if err != nil {
		return nil, err
	}
	if deps.LookPath == nil {
		deps.LookPath = proc.LookPath
	}
	return &Pipeline{
		cfg:         cfg,
		profileName: cfg.Subtitles.Profile,
		profile:     profile,
		deps:        deps,
		log:         logging.OrNop(logger),
		now:         time.Now,
	}, nil
}

// SetReddit sets the topic source used by RunResearch
func (p *Pipeline) SetReddit(src research.PostSource) {
	p.deps.Reddit = src
}

// Preflight checks tools and assets before any work starts. Every problem
// is reported, not just the first.
func (p *Pipeline) Preflight() error {
	var errs []error
	for _, tool := range []string{"ffmpeg", "ffprobe"} {
		if !p.deps.LookPath(tool) {
			errs = append(errs, fmt.Errorf("%s not found on PATH", tool))
		}
	}
	for _, ch := range p.cfg.Characters {
		if !exists(ch.Voice) {
			errs = append(errs, fmt.Errorf("%s: voice sample missing: %s", ch.Name, ch.Voice))
		}
		if !exists(ch.Image) && !exists(visuals.OverlayPath(p.cfg, ch.Name)) {
			errs = append(errs, fmt.Errorf("%s: neither image %s nor overlay video exists", ch.Name, ch.Image))
		}
	}
	bgs, err := visuals.ListVideos(p.cfg.Paths.Backgrounds)
	if err != nil || len(bgs) == 0 {
		errs = append(errs, fmt.Errorf("%w in %s", visuals.ErrNoBackgrounds, p.cfg.Paths.Backgrounds))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrPrecondition, errors.Join(errs...))
	}
	return nil
}

// Run produces one video for topic inside a fresh run directory. The
// returned state is also saved as pipeline_state.json, including on
// failure.
func (p *Pipeline) Run(ctx context.Context, topic string) (state *types.PipelineState, err error) {
	runID := p.now().Format("20060102-150405") + "-" + uuid.NewString()[:8]
	runDir := filepath.Join(p.cfg.Paths.Output, runID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return nil, fmt.Errorf("create run dir: %w", err)
	}
	log := p.log.With(zap.String("run", runID))
	log.Info("pipeline starting", zap.String("topic", topic), zap.String("dir", runDir))

	state = &types.PipelineState{
		RunID:     runID,
		RunDir:    runDir,
		Topic:     topic,
		StartedAt: p.now().UTC().Format(time.RFC3339),
		Profile:   p.profileName,
	}
	defer func() {
		state.CompletedAt = p.now().UTC().Format(time.RFC3339)
		if err != nil {
			state.Error = err.Error()
			log.Error("pipeline failed", zap.Error(err))
		}
		p.saveState(state, runDir)
	}()

	s, err := script.New(p.cfg, p.deps.Provider, log).Run(ctx, topic)
	if err != nil {
		return state, fmt.Errorf("script: %w", err)
	}
	state.Turns = len(s.Turns)
	p.saveJSON(filepath.Join(runDir, ScriptFile), s)

	a, err := audio.New(p.cfg, p.deps.TTS, p.deps.Prober, p.deps.Runner, log).Run(ctx, s.Turns, runDir)
	if err != nil {
		return state, fmt.Errorf("audio: %w", err)
	}
	state.Clips = a.Clips
	state.AudioFile = a.MasterAudio
	state.AudioSec = a.Duration

	if err := p.finish(ctx, log, state, subtitles.Request{
		Turns:     s.Turns,
		Clips:     a.Clips,
		AudioFile: a.MasterAudio,
		AudioSec:  a.Duration,
		OutputDir: runDir,
	}); err != nil {
		return state, err
	}

	if p.cfg.Metadata.Enabled || p.cfg.Upload.Enabled {
		md := metadata.New(p.cfg, p.deps.Provider, log).Run(ctx, s)
		state.Metadata = md
		p.saveJSON(filepath.Join(runDir, MetadataFile), md)
	}
	if p.cfg.Upload.Enabled {
		res, err := upload.New(p.cfg, log).Run(ctx, state.VideoFile, state.Metadata)
		if err != nil {
			return state, fmt.Errorf("upload: %w", err)
		}
		state.YouTubeID = res.VideoID
		state.YouTubeURL = res.URL
		if _, err := upload.LogUpload(res, state.VideoFile, p.cfg.Paths.Logs, state.Metadata); err != nil {
			log.Warn("could not write upload log", zap.Error(err))
		}
	}

	log.Info("pipeline complete", zap.String("video", state.VideoFile), zap.Float64("seconds", state.AudioSec))
	return state, nil
}

// finish runs subtitles, overlays, background selection and render, the
// part shared by Run and Rerender.
func (p *Pipeline) finish(ctx context.Context, log *zap.Logger, state *types.PipelineState, req subtitles.Request) error {
	subs, err := subtitles.New(p.cfg, p.profile, p.deps.Transcriber, log).Run(ctx, req)
	if err != nil {
		return fmt.Errorf("subtitles: %w", err)
	}
	state.SubtitleMode = string(subs.Tracks.Mode)
	state.Subtitles = subs.Files.List()

	if _, err := visuals.NewOverlayBuilder(p.cfg, p.deps.Runner, log).Run(ctx, false); err != nil {
		return fmt.Errorf("overlays: %w", err)
	}
	bg, err := visuals.NewAssetManager(p.cfg, log).Pick(state.RunID)
	if err != nil {
		return fmt.Errorf("background: %w", err)
	}

	video, err := render.New(p.cfg, p.profile, p.deps.Runner, log).Run(ctx, render.Request{
		Background: bg,
		AudioFile:  req.AudioFile,
		Duration:   req.AudioSec,
		Subtitles:  subs.Files,
		Speakers:   subs.Tracks.Speakers,
		OutputDir:  req.OutputDir,
	})
	if err != nil {
		return fmt.Errorf("render: %w", err)
	}
	state.VideoFile = video
	return nil
}

// RunBatch runs every topic in turn after one preflight. A failed topic is
// logged and the next one starts; cancellation stops the batch.
func (p *Pipeline) RunBatch(ctx context.Context, topics []string) ([]*types.PipelineState, error) {
	if err := p.Preflight(); err != nil {
		return nil, err
	}
	var (
		states []*types.PipelineState
		failed int
	)
	for i, topic := range topics {
		if err := ctx.Err(); err != nil {
			return states, err
		}
		p.log.Info("batch topic", zap.Int("n", i+1), zap.Int("of", len(topics)), zap.String("topic", topic))
		st, err := p.Run(ctx, topic)
		if st != nil {
			states = append(states, st)
		}
		if err != nil {
			failed++
			p.log.Error("topic failed, continuing", zap.String("topic", topic), zap.Error(err))
		}
	}
	if failed > 0 {
		return states, fmt.Errorf("%d of %d topics failed", failed, len(topics))
	}
	return states, nil
}

// RunResearch pulls up to n topics from Reddit and runs each one. A topic
// is marked used only after its video was produced.
func (p *Pipeline) RunResearch(ctx context.Context, n int) ([]*types.PipelineState, error) {
	if p.deps.Reddit == nil {
		return nil, errors.New("no Reddit source configured")
	}
	if err := p.Preflight(); err != nil {
		return nil, err
	}
	scraper := research.New(p.cfg, p.deps.Reddit, p.log)
	topics, err := scraper.Candidates(ctx, n)
	if err != nil {
		return nil, err
	}
	var (
		states []*types.PipelineState
		failed int
	)
	for _, t := range topics {
		if err := ctx.Err(); err != nil {
			return states, err
		}
		st, err := p.Run(ctx, t.Title)
		if st != nil {
			states = append(states, st)
		}
		if err != nil {
			failed++
			p.log.Error("topic failed, continuing", zap.String("topic", t.Title), zap.Error(err))
			continue
		}
		if err := scraper.MarkUsed(t); err != nil {
			p.log.Warn("could not record used topic", zap.String("id", t.ID), zap.Error(err))
		}
	}
	if failed > 0 {
		return states, fmt.Errorf("%d of %d topics failed", failed, len(topics))
	}
	return states, nil
}

// Rerender rebuilds subtitles and the final video of an earlier run from
// its script.json and audio clips, without calling the model or TTS.
func (p *Pipeline) Rerender(ctx context.Context, runDir string) (state *types.PipelineState, err error) {
	var s types.Script
	data, err := os.ReadFile(filepath.Join(runDir, ScriptFile))
	if err != nil {
		return nil, fmt.Errorf("load script: %w", err)
	}
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse %s: %w", ScriptFile, err)
	}
	if err := script.Validate(&s, p.cfg); err != nil {
		return nil, err
	}

	state = p.loadState(runDir)
	state.RunDir = runDir
	state.Profile = p.profileName
	state.Error = ""
	if state.RunID == "" {
		state.RunID = filepath.Base(runDir)
	}
	log := p.log.With(zap.String("run", state.RunID))
	log.Info("re-rendering", zap.String("dir", runDir), zap.String("profile", p.profileName))
	defer func() {
		state.CompletedAt = p.now().UTC().Format(time.RFC3339)
		if err != nil {
			state.Error = err.Error()
		}
		p.saveState(state, runDir)
	}()

	gen := audio.New(p.cfg, p.deps.TTS, p.deps.Prober, p.deps.Runner, log)
	clips, err := gen.Clips(ctx, s.Turns, runDir)
	if err != nil {
		return state, fmt.Errorf("audio clips: %w", err)
	}
	master := filepath.Join(runDir, audio.MasterFile)
	if !exists(master) {
		return state, fmt.Errorf("master audio missing: %s", master)
	}
	total, err := p.deps.Prober.Duration(ctx, master)
	if err != nil || total <= 0 {
		log.Warn("could not probe master audio, summing clips", zap.Error(err))
		total = 0
		for _, c := range clips {
			total += c.Duration
		}
	}
	state.Turns = len(s.Turns)
	state.Clips = clips
	state.AudioFile = master
	state.AudioSec = total

	req := subtitles.Request{
		Turns:     s.Turns,
		Clips:     clips,
		AudioFile: master,
		AudioSec:  total,
		OutputDir: runDir,
	}
	if segs, err := subtitles.LoadTranscript(filepath.Join(runDir, subtitles.TranscriptFile)); err == nil {
		log.Info("reusing saved transcript", zap.Int("segments", len(segs)))
		req.Transcript = segs
	}
	if err := p.finish(ctx, log, state, req); err != nil {
		return state, err
	}
	log.Info("re-render complete", zap.String("video", state.VideoFile))
	return state, nil
}

func (p *Pipeline) loadState(runDir string) *types.PipelineState {
	st := &types.PipelineState{}
	data, err := os.ReadFile(filepath.Join(runDir, StateFile))
	if err != nil {
		return st
	}
	if err := json.Unmarshal(data, st); err != nil {
		p.log.Warn("ignoring unreadable pipeline state", zap.Error(err))
		return &types.PipelineState{}
	}
	return st
}

func (p *Pipeline) saveState(state *types.PipelineState, dir string) {
	p.saveJSON(filepath.Join(dir, StateFile), state)
}

func (p *Pipeline) saveJSON(path string, v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		p.log.Warn("could not marshal JSON", zap.String("file", path), zap.Error(err))
		return
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		p.log.Warn("could not save file", zap.String("file", path), zap.Error(err))
	}
}

func exists(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}
