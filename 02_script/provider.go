package script

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
	"google.golang.org/genai"

	"dialogue-shorts/config"
)

// Provider is a language model that answers a system and a user prompt
// with a JSON document.
type Provider interface {
	Complete(ctx context.Context, system, user string) (string, error)
	Name() string
}

// NewProvider builds the provider named in cfg. API keys come from the
// environment only.
func NewProvider(ctx context.Context, cfg config.ScriptConfig) (Provider, error) {
	timeout := time.Duration(cfg.TimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	switch cfg.Provider {
	case "ollama", "":
		base := cfg.BaseURL
		if base == "" {
			base = "http://localhost:11434"
		}
		return &Ollama{
			BaseURL:     strings.TrimRight(base, "/"),
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			Client:      &http.Client{Timeout: timeout},
		}, nil
	case "openai":
		key := firstEnv("OPENAI_API_KEY", "GROQ_API_KEY", "OPENROUTER_API_KEY")
		if key == "" && cfg.BaseURL == "" {
			return nil, errors.New("OPENAI_API_KEY not set")
		}
		return NewOpenAI(key, cfg.BaseURL, cfg.Model, cfg.Temperature, timeout), nil
	case "gemini":
		key := firstEnv("GEMINI_API_KEY", "GOOGLE_API_KEY")
		if key == "" {
			return nil, errors.New("GEMINI_API_KEY not set")
		}
		return NewGemini(ctx, key, cfg.Model, cfg.Temperature, timeout)
	default:
		return nil, fmt.Errorf("unknown script provider %q", cfg.Provider)
	}
}

func firstEnv(names ...string) string {
	for _, n := range names {
		if v := strings.TrimSpace(os.Getenv(n)); v != "" {
			return v
		}
	}
	return ""
}

// Ollama talks to a local Ollama server through its native generate API
type Ollama struct {
	BaseURL     string
	Model       string
	Temperature float64
	Client      *http.Client
}

type ollamaRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	System  string         `json:"system"`
	Format  string         `json:"format"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options,omitempty"`
}

type ollamaResponse struct {
	Response string `json:"response"`
	Error    string `json:"error"`
}

func (o *Ollama) Name() string { return "ollama" }

func (o *Ollama) Complete(ctx context.Context, system, user string) (string, error) {
	reqBody := ollamaRequest{
		Model:  o.Model,
		Prompt: user,
		System: system,
		Format: "json",
		Stream: false,
	}
	if o.Temperature > 0 {
		reqBody.Options = map[string]any{"temperature": o.Temperature}
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.BaseURL+"/api/generate", bytes.NewReader(bodyBytes))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("ollama request: %w", err)
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	var out ollamaResponse
	if err := json.Unmarshal(respBytes, &out); err != nil {
		return "", fmt.Errorf("parse ollama response: %w", err)
	}
	if out.Error != "" {
		return "", fmt.Errorf("ollama error: %s", out.Error)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ollama returned %s", resp.Status)
	}
	if strings.TrimSpace(out.Response) == "" {
		return "", errors.New("ollama returned an empty response")
	}
	return out.Response, nil
}

// Ping checks that the server answers its model listing
func (o *Ollama) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.BaseURL+"/api/tags", nil)
	if err != nil {
		return err
	}
	resp, err := o.Client.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama returned %s", resp.Status)
	}
	return nil
}

// OpenAI talks to any OpenAI-compatible chat completion endpoint
type OpenAI struct {
	client      openai.Client
	model       string
	temperature float64
	timeout     time.Duration
}

// NewOpenAI builds a client for baseURL, the OpenAI API when empty
func NewOpenAI(apiKey, baseURL, model string, temperature float64, timeout time.Duration) *OpenAI {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if strings.TrimSpace(baseURL) != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &OpenAI{
		client:      openai.NewClient(opts...),
		model:       model,
		temperature: temperature,
		timeout:     timeout,
	}
}

func (o *OpenAI) Name() string { return "openai" }

func (o *OpenAI) Complete(ctx context.Context, system, user string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
		Model:       o.model,
		Temperature: openai.Float(o.temperature),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{Type: "json_object"},
		},
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("model returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// Gemini talks to the Gemini API
type Gemini struct {
	client      *genai.Client
	model       string
	temperature float64
	timeout     time.Duration
}

// NewGemini builds a Gemini API client
func NewGemini(ctx context.Context, apiKey, model string, temperature float64, timeout time.Duration) (*Gemini, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	if model == "" {
		model = "gemini-2.5-flash"
	}
	return &Gemini{client: client, model: model, temperature: temperature, timeout: timeout}, nil
}

func (g *Gemini) Name() string { return "gemini" }

func (g *Gemini) Complete(ctx context.Context, system, user string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	result, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(user), &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
		ResponseMIMEType:  "application/json",
		Temperature:       genai.Ptr(float32(g.temperature)),
	})
	if err != nil {
		return "", err
	}
	return result.Text(), nil
}
