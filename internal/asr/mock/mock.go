// Package mock provides a configurable test double for the asr.Backend
// interface.
//
// Example:
//
//	b := mock.New("fake")
//	b.Transcript = "hello"
//	svc.Register(b)
package mock

import (
	"context"
	"sync"

	"github.com/voxenio/voxen/internal/asr"
	"github.com/voxenio/voxen/internal/engine"
)

// InvokeCall records a single invocation of Backend.Invoke.
type InvokeCall struct {
	// Ctx is the context passed to Invoke.
	Ctx context.Context
	// Req is the request passed to Invoke.
	Req asr.Request
}

// Backend is a mock implementation of asr.Backend.
type Backend struct {
	mu sync.Mutex

	// Meta is returned by Describe. Name is set by New.
	Meta engine.Metadata

	// NotReady makes Ready report false.
	NotReady bool

	// Transcript is the result returned by Invoke when Err is nil.
	Transcript string

	// Err, if non-nil, is returned as the error from Invoke.
	Err error

	// InvokeCalls records every call to Invoke.
	InvokeCalls []InvokeCall
}

// Compile-time assertion that Backend satisfies asr.Backend.
var _ asr.Backend = (*Backend)(nil)

// New creates a ready mock backend with the given name.
func New(name string) *Backend {
	return &Backend{
		Meta: engine.Metadata{Name: name, Kind: engine.KindRecognition},
	}
}

// Ready reports !NotReady.
func (b *Backend) Ready() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return !b.NotReady
}

// Invoke records the call and returns Transcript, Err.
func (b *Backend) Invoke(ctx context.Context, req asr.Request) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.InvokeCalls = append(b.InvokeCalls, InvokeCall{Ctx: ctx, Req: req})
	if b.Err != nil {
		return "", b.Err
	}
	return b.Transcript, nil
}

// Describe returns Meta.
func (b *Backend) Describe() engine.Metadata {
	return b.Meta
}

// SetReady toggles readiness. Thread-safe.
func (b *Backend) SetReady(ready bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.NotReady = !ready
}

// Calls returns the number of recorded invocations. Thread-safe.
func (b *Backend) Calls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.InvokeCalls)
}
