// Package reply turns a transcribed utterance into the assistant's spoken
// answer. Built-in commands (time, date, filesystem queries) are answered
// locally; everything else goes to a language-model provider.
package reply

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// ErrNoResponse is returned when neither a built-in command nor the language
// model produced an answer.
var ErrNoResponse = errors.New("reply: no response produced")

// DefaultSystemPrompt steers the language model toward short answers suitable
// for speech output.
const DefaultSystemPrompt = "You are a helpful voice assistant. Provide concise, natural responses that will be spoken aloud. Keep answers brief and conversational."

// Provider generates free-form answers with a language model.
type Provider interface {
	// Name identifies the provider for logs and diagnostics.
	Name() string
	// Ping verifies the provider is reachable and the configured model is
	// available.
	Ping(ctx context.Context) error
	// Generate produces an answer for the given user prompt.
	Generate(ctx context.Context, prompt string) (string, error)
}

// Generator answers utterances. It first consults the built-in command table
// (when enabled) and falls back to the configured Provider.
type Generator struct {
	provider Provider
	commands *Commands
	log      *slog.Logger
}

// GeneratorOption is a functional option for Generator.
type GeneratorOption func(*Generator)

// WithCommands installs a command table. Pass nil to disable built-in
// commands.
func WithCommands(c *Commands) GeneratorOption {
	return func(g *Generator) { g.commands = c }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(log *slog.Logger) GeneratorOption {
	return func(g *Generator) { g.log = log }
}

// NewGenerator creates a Generator. provider may be nil, in which case only
// built-in commands can answer.
func NewGenerator(provider Provider, opts ...GeneratorOption) *Generator {
	g := &Generator{
		provider: provider,
		commands: NewCommands(),
		log:      slog.Default(),
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Generate produces the assistant's answer for the given utterance. Returns
// ErrNoResponse when nothing could answer it.
func (g *Generator) Generate(ctx context.Context, utterance string) (string, error) {
	utterance = strings.TrimSpace(utterance)
	if utterance == "" {
		return "", fmt.Errorf("%w: empty utterance", ErrNoResponse)
	}

	if g.commands != nil {
		if answer, ok := g.commands.Respond(utterance); ok {
			g.log.Debug("answered by built-in command", "utterance", utterance)
			return answer, nil
		}
	}

	if g.provider == nil {
		return "", ErrNoResponse
	}

	answer, err := g.provider.Generate(ctx, utterance)
	if err != nil {
		// Provider failures (unreachable server, missing model, timeout) all
		// mean the same thing to the caller: no answer was produced.
		return "", fmt.Errorf("%w: %s: %w", ErrNoResponse, g.provider.Name(), err)
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return "", fmt.Errorf("%w: %s returned empty text", ErrNoResponse, g.provider.Name())
	}
	return answer, nil
}

// Ready reports whether the generator can produce answers right now. A
// command-only generator is always ready; otherwise the provider is pinged.
func (g *Generator) Ready(ctx context.Context) error {
	if g.provider == nil {
		if g.commands == nil {
			return ErrNoResponse
		}
		return nil
	}
	return g.provider.Ping(ctx)
}
