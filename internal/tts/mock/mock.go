// Package mock provides a synthesis backend test double.
package mock

import (
	"context"
	"sync"

	"github.com/voxenio/voxen/internal/engine"
	"github.com/voxenio/voxen/internal/tts"
)

var _ tts.Backend = (*Backend)(nil)

// InvokeCall records the arguments of one Invoke call.
type InvokeCall struct {
	Ctx context.Context
	Req tts.Request
}

// Backend is a configurable tts.Backend for tests. It records every Invoke
// call and returns the configured result or error.
type Backend struct {
	mu sync.Mutex

	// Meta is returned from Describe.
	Meta engine.Metadata
	// NotReady makes Ready return false.
	NotReady bool
	// Result is returned from Invoke when Err is nil.
	Result tts.Result
	// Err is returned from Invoke when set.
	Err error

	// InvokeCalls records every Invoke invocation in order.
	InvokeCalls []InvokeCall
}

// New creates a mock backend with the given name.
func New(name string) *Backend {
	return &Backend{Meta: engine.Metadata{Name: name, Kind: engine.KindSynthesis}}
}

func (b *Backend) Ready() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return !b.NotReady
}

func (b *Backend) Invoke(ctx context.Context, req tts.Request) (tts.Result, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.InvokeCalls = append(b.InvokeCalls, InvokeCall{Ctx: ctx, Req: req})
	if b.Err != nil {
		return tts.Result{}, b.Err
	}
	return b.Result, nil
}

func (b *Backend) Describe() engine.Metadata {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.Meta
}

// SetReady flips readiness.
func (b *Backend) SetReady(ready bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.NotReady = !ready
}

// Calls returns a copy of the recorded Invoke calls.
func (b *Backend) Calls() []InvokeCall {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]InvokeCall, len(b.InvokeCalls))
	copy(out, b.InvokeCalls)
	return out
}
