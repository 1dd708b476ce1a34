package reply

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// DefaultOllamaBaseURL is the base URL of a locally running Ollama instance.
const DefaultOllamaBaseURL = "http://localhost:11434"

var _ Provider = (*Ollama)(nil)

// Ollama generates replies with a local Ollama server via its native
// /api/generate endpoint. Safe for concurrent use.
type Ollama struct {
	baseURL    string
	model      string
	system     string
	httpClient *http.Client
}

// ollamaConfig holds optional configuration collected from functional options.
type ollamaConfig struct {
	timeout time.Duration
	system  string
}

// OllamaOption is a functional option for Ollama.
type OllamaOption func(*ollamaConfig)

// WithOllamaTimeout sets a per-request HTTP timeout. A zero or negative
// value means no timeout (the default).
func WithOllamaTimeout(d time.Duration) OllamaOption {
	return func(c *ollamaConfig) { c.timeout = d }
}

// WithOllamaSystemPrompt overrides the system prompt sent with every request.
func WithOllamaSystemPrompt(prompt string) OllamaOption {
	return func(c *ollamaConfig) { c.system = prompt }
}

// NewOllama constructs an Ollama provider.
//
// baseURL is the base URL of the Ollama server. If empty,
// DefaultOllamaBaseURL is used. A trailing slash is stripped automatically.
// model is the Ollama model name, e.g. "llama3.2". It must not be empty.
func NewOllama(baseURL, model string, opts ...OllamaOption) (*Ollama, error) {
	if model == "" {
		return nil, fmt.Errorf("ollama reply: model must not be empty")
	}
	if baseURL == "" {
		baseURL = DefaultOllamaBaseURL
	}
	baseURL = strings.TrimRight(baseURL, "/")

	cfg := &ollamaConfig{system: DefaultSystemPrompt}
	for _, o := range opts {
		o(cfg)
	}

	httpClient := &http.Client{}
	if cfg.timeout > 0 {
		httpClient.Timeout = cfg.timeout
	}

	return &Ollama{
		baseURL:    baseURL,
		model:      model,
		system:     cfg.system,
		httpClient: httpClient,
	}, nil
}

// Name implements Provider.
func (o *Ollama) Name() string { return "ollama" }

// generateRequest is the JSON request body sent to Ollama's /api/generate
// endpoint.
type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	Stream  bool            `json:"stream"`
	System  string          `json:"system,omitempty"`
	Options generateOptions `json:"options"`
}

type generateOptions struct {
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p"`
	MaxTokens   int     `json:"max_tokens"`
}

// generateResponse is the JSON response body returned by /api/generate.
type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// Generate implements Provider by issuing a single non-streaming completion
// request.
func (o *Ollama) Generate(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(generateRequest{
		Model:  o.model,
		Prompt: prompt,
		Stream: false,
		System: o.system,
		Options: generateOptions{
			Temperature: 0.7,
			TopP:        0.9,
			MaxTokens:   200,
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("http: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var result generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if strings.TrimSpace(result.Response) == "" {
		return "", fmt.Errorf("empty response text")
	}
	return strings.TrimSpace(result.Response), nil
}

// tagsResponse is the JSON response body returned by Ollama's /api/tags
// endpoint.
type tagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// Ping implements Provider by checking that the server answers /api/tags and
// that the configured model is installed. Model tags are matched loosely:
// "llama3.2" matches the installed "llama3.2:latest".
func (o *Ollama) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.baseURL+"/api/tags", nil)
	if err != nil {
		return fmt.Errorf("ollama reply: build request: %w", err)
	}
	resp, err := o.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ollama reply: http: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama reply: unexpected status %d", resp.StatusCode)
	}

	var result tagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("ollama reply: decode response: %w", err)
	}

	want := o.model
	for _, m := range result.Models {
		if m.Name == want || strings.TrimSuffix(m.Name, ":latest") == want || strings.SplitN(m.Name, ":", 2)[0] == want {
			return nil
		}
	}
	return fmt.Errorf("ollama reply: model %q is not installed", want)
}
