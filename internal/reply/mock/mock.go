// Package mock provides a reply.Provider test double.
package mock

import (
	"context"
	"sync"

	"github.com/voxenio/voxen/internal/reply"
)

var _ reply.Provider = (*Provider)(nil)

// Provider is a configurable reply.Provider for tests. It records every
// Generate call and returns the configured answer or error.
type Provider struct {
	mu sync.Mutex

	// ProviderName is returned from Name. Defaults to "mock".
	ProviderName string
	// Answer is returned from Generate when GenerateErr is nil.
	Answer string
	// GenerateErr is returned from Generate when set.
	GenerateErr error
	// PingErr is returned from Ping.
	PingErr error

	// GenerateCalls records every prompt passed to Generate, in order.
	GenerateCalls []string
	// PingCalls counts Ping invocations.
	PingCalls int
}

func (p *Provider) Name() string {
	if p.ProviderName == "" {
		return "mock"
	}
	return p.ProviderName
}

func (p *Provider) Generate(_ context.Context, prompt string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.GenerateCalls = append(p.GenerateCalls, prompt)
	if p.GenerateErr != nil {
		return "", p.GenerateErr
	}
	return p.Answer, nil
}

func (p *Provider) Ping(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.PingCalls++
	return p.PingErr
}

// Calls returns a copy of the recorded Generate prompts.
func (p *Provider) Calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.GenerateCalls))
	copy(out, p.GenerateCalls)
	return out
}
