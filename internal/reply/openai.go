package reply

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

var _ Provider = (*OpenAI)(nil)

// OpenAI generates replies with an OpenAI-compatible chat completions API.
// Pointing the base URL at a local llama.cpp or vLLM server works as well.
type OpenAI struct {
	client oai.Client
	model  string
	system string
}

// openaiConfig holds optional configuration for the provider.
type openaiConfig struct {
	baseURL string
	timeout time.Duration
	system  string
}

// OpenAIOption is a functional option for OpenAI.
type OpenAIOption func(*openaiConfig)

// WithOpenAIBaseURL overrides the default API base URL. Use this to target a
// local OpenAI-compatible server.
func WithOpenAIBaseURL(url string) OpenAIOption {
	return func(c *openaiConfig) { c.baseURL = url }
}

// WithOpenAITimeout sets a per-request HTTP timeout.
func WithOpenAITimeout(d time.Duration) OpenAIOption {
	return func(c *openaiConfig) { c.timeout = d }
}

// WithOpenAISystemPrompt overrides the system prompt sent with every request.
func WithOpenAISystemPrompt(prompt string) OpenAIOption {
	return func(c *openaiConfig) { c.system = prompt }
}

// NewOpenAI constructs an OpenAI-compatible provider. apiKey may be any
// non-empty string for local servers that do not check it. model must not be
// empty.
func NewOpenAI(apiKey, model string, opts ...OpenAIOption) (*OpenAI, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai reply: apiKey must not be empty")
	}
	if model == "" {
		return nil, fmt.Errorf("openai reply: model must not be empty")
	}

	cfg := &openaiConfig{system: DefaultSystemPrompt}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{
			Timeout: cfg.timeout,
		}))
	}

	return &OpenAI{
		client: oai.NewClient(reqOpts...),
		model:  model,
		system: cfg.system,
	}, nil
}

// Name implements Provider.
func (p *OpenAI) Name() string { return "openai" }

// Generate implements Provider.
func (p *OpenAI) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := p.client.Chat.Completions.New(ctx, oai.ChatCompletionNewParams{
		Model: p.model,
		Messages: []oai.ChatCompletionMessageParamUnion{
			oai.SystemMessage(p.system),
			oai.UserMessage(prompt),
		},
		Temperature:         oai.Float(0.7),
		TopP:                oai.Float(0.9),
		MaxCompletionTokens: oai.Int(200),
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty choices in response")
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", fmt.Errorf("empty response text")
	}
	return text, nil
}

// Ping implements Provider by fetching the configured model's metadata.
func (p *OpenAI) Ping(ctx context.Context) error {
	if _, err := p.client.Models.Get(ctx, p.model); err != nil {
		return fmt.Errorf("openai reply: model %q: %w", p.model, err)
	}
	return nil
}
