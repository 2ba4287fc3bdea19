package audio

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"dialogue-shorts/config"
	"dialogue-shorts/proc"
)

// SynthesisRequest is one line of speech in a cloned voice
type SynthesisRequest struct {
	Text      string
	VoicePath string
	OutPath   string
}

// Engine synthesizes speech. One engine is built per run and reused for
// every turn, so a loaded model is not reloaded between lines.
type Engine interface {
	Synthesize(ctx context.Context, req SynthesisRequest) error
}

// NewEngine builds the engine named in cfg
func NewEngine(cfg config.TTSConfig, runner proc.Runner) (Engine, error) {
	switch cfg.Engine {
	case "command", "":
		if cfg.Script == "" {
			return nil, fmt.Errorf("tts.script is required for the command engine")
		}
		return &CommandEngine{
			Runner:       runner,
			Python:       cfg.Python,
			Script:       cfg.Script,
			Device:       cfg.Device,
			Exaggeration: cfg.Exaggeration,
			CFGWeight:    cfg.CFGWeight,
		}, nil
	case "http":
		if cfg.URL == "" {
			return nil, fmt.Errorf("tts.url is required for the http engine")
		}
		return &HTTPEngine{
			URL:          strings.TrimRight(cfg.URL, "/"),
			Device:       cfg.Device,
			Exaggeration: cfg.Exaggeration,
			CFGWeight:    cfg.CFGWeight,
			Client:       &http.Client{Timeout: 5 * time.Minute},
		}, nil
	default:
		return nil, fmt.Errorf("unknown tts engine %q", cfg.Engine)
	}
}

// CommandEngine runs a voice-cloning script such as a Chatterbox wrapper.
// The script receives the text, the reference voice, the output path and
// the device to run on.
type CommandEngine struct {
	Runner       proc.Runner
	Python       string
	Script       string
	Device       string
	Exaggeration float64
	CFGWeight    float64
}

func (e *CommandEngine) Synthesize(ctx context.Context, req SynthesisRequest) error {
	name, args := e.Script, []string{}
	if strings.HasSuffix(e.Script, ".py") {
		python := e.Python
		if python == "" {
			python = "python3"
		}
		name, args = python, []string{e.Script}
	}
	args = append(args,
		"--text", req.Text,
		"--voice", req.VoicePath,
		"--output", req.OutPath,
		"--exaggeration", strconv.FormatFloat(e.Exaggeration, 'f', -1, 64),
		"--cfg-weight", strconv.FormatFloat(e.CFGWeight, 'f', -1, 64),
	)
	if e.Device != "" {
		args = append(args, "--device", e.Device)
	}
	if _, err := e.Runner.Run(ctx, proc.Command{Name: name, Args: args}); err != nil {
		return err
	}
	return checkOutput(req.OutPath)
}

// HTTPEngine posts lines to a TTS server that keeps one model loaded and
// answers with WAV bytes.
type HTTPEngine struct {
	URL          string
	Device       string
	Exaggeration float64
	CFGWeight    float64
	Client       *http.Client
}

type httpSynthesisRequest struct {
	Text         string  `json:"text"`
	Voice        string  `json:"voice"`
	Device       string  `json:"device,omitempty"`
	Exaggeration float64 `json:"exaggeration"`
	CFGWeight    float64 `json:"cfg_weight"`
}

func (e *HTTPEngine) Synthesize(ctx context.Context, req SynthesisRequest) error {
	body, err := json.Marshal(httpSynthesisRequest{
		Text:         req.Text,
		Voice:        req.VoicePath,
		Device:       e.Device,
		Exaggeration: e.Exaggeration,
		CFGWeight:    e.CFGWeight,
	})
	if err != nil {
		return err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.URL+"/synthesize", bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	client := e.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("tts request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("tts server error %d: %s", resp.StatusCode, proc.Tail(string(msg), 300))
	}

	f, err := os.Create(req.OutPath)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return checkOutput(req.OutPath)
}

func checkOutput(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("tts produced no file: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("tts produced an empty file: %s", path)
	}
	return nil
}
