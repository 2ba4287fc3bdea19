package subtitles

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"dialogue-shorts/config"
	"dialogue-shorts/proc"
)

// Transcriber turns an audio file into word-timed segments
type Transcriber interface {
	Transcribe(ctx context.Context, audioFile string) (ParseResult, error)
}

// NewTranscriber builds the engine named in cfg, or nil when transcription
// is disabled.
func NewTranscriber(cfg config.TranscribeConfig, runner proc.Runner) Transcriber {
	switch cfg.Engine {
	case "http":
		return &HTTPTranscriber{URL: cfg.URL, Client: &http.Client{Timeout: 10 * time.Minute}}
	case "none", "":
		return nil
	default:
		return &WhisperCLI{
			Runner:   runner,
			Model:    cfg.WhisperModel,
			Language: cfg.Language,
			Device:   cfg.Device,
		}
	}
}

// WhisperCLI runs the openai-whisper command line tool
type WhisperCLI struct {
	Runner   proc.Runner
	Model    string
	Language string
	Device   string
}

// Transcribe runs whisper with word timestamps and reads the JSON it
// leaves next to the audio file.
func (w *WhisperCLI) Transcribe(ctx context.Context, audioFile string) (ParseResult, error) {
	outDir := filepath.Dir(audioFile)
	args := []string{
		audioFile,
		"--model", w.Model,
		"--output_format", "json",
		"--output_dir", outDir,
		"--word_timestamps", "True",
	}
	if w.Language != "" {
		args = append(args, "--language", w.Language)
	}
	if w.Device != "" {
		args = append(args, "--device", w.Device)
	}
	if _, err := w.Runner.Run(ctx, proc.Command{Name: "whisper", Args: args}); err != nil {
		return ParseResult{}, fmt.Errorf("whisper failed: %w", err)
	}

	// whisper names its output after the input file
	base := strings.TrimSuffix(filepath.Base(audioFile), filepath.Ext(audioFile))
	data, err := os.ReadFile(filepath.Join(outDir, base+".json"))
	if err != nil {
		return ParseResult{}, fmt.Errorf("read whisper output: %w", err)
	}
	return ParseTranscript(data)
}

// HTTPTranscriber posts the audio to a transcription server that answers
// with whisper-style JSON.
type HTTPTranscriber struct {
	URL    string
	Client *http.Client
}

func (h *HTTPTranscriber) Transcribe(ctx context.Context, audioFile string) (ParseResult, error) {
	var b bytes.Buffer
	mw := multipart.NewWriter(&b)

	fw, err := mw.CreateFormFile("file", filepath.Base(audioFile))
	if err != nil {
		return ParseResult{}, err
	}
	fd, err := os.Open(audioFile)
	if err != nil {
		return ParseResult{}, err
	}
	defer fd.Close()

	if _, err = io.Copy(fw, fd); err != nil {
		return ParseResult{}, err
	}
	if err := mw.WriteField("word_timestamps", "true"); err != nil {
		return ParseResult{}, err
	}
	if err = mw.Close(); err != nil {
		return ParseResult{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(h.URL, "/")+"/transcribe", &b)
	if err != nil {
		return ParseResult{}, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	client := h.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return ParseResult{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return ParseResult{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return ParseResult{}, fmt.Errorf("transcribe %s: %s", resp.Status, proc.Tail(string(body), 300))
	}
	return ParseTranscript(body)
}
