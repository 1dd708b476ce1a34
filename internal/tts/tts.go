// Package tts is the speech-synthesis capability facade.
//
// It owns an [engine.Group] of interchangeable synthesis backends (piper,
// sherpa-onnx, espeak-ng) and exposes the single Synthesize operation
// callers use. Unlike recognition there is no language branch: ranking is
// static, primary engine first.
package tts

import (
	"context"

	"github.com/voxenio/voxen/internal/engine"
)

// Request carries the text to synthesise plus the per-call selection hints.
type Request struct {
	// Text is the text to render as speech.
	Text string

	// Voice optionally names a backend-specific voice.
	Voice string

	// Backend optionally names a specific backend to use. It is a hint:
	// when unavailable, automatic selection applies.
	Backend string
}

// Result is the synthesis artifact.
type Result struct {
	// PCM is signed 16-bit little-endian mono audio. Empty when Direct.
	PCM []byte

	// SampleRate is the sample rate of PCM in Hz.
	SampleRate int

	// Direct is true when the backend rendered straight to the audio device
	// and produced no retrievable artifact (e.g. espeak-ng). The caller must
	// skip playback.
	Direct bool
}

// Backend is the adapter interface synthesis engines implement.
type Backend = engine.Backend[Request, Result]

// Service is the synthesis facade. It is safe for concurrent use.
type Service struct {
	group *engine.Group[Request, Result]
}

// NewService creates a Service with the given selection policy. cfg.Kind is
// forced to [engine.KindSynthesis] and any language preference is cleared:
// synthesis ranking is static.
func NewService(cfg engine.Config) *Service {
	cfg.Kind = engine.KindSynthesis
	cfg.Preference = ""
	return &Service{group: engine.New[Request, Result](cfg)}
}

// Register adds a synthesis backend.
func (s *Service) Register(b Backend) error {
	return s.group.Register(b)
}

// Synthesize renders the request's text as audio, failing over across
// backends as needed. It returns [engine.ErrNoBackendAvailable] when no
// backend is ready, or an [engine.ExhaustedError] when every candidate
// failed.
func (s *Service) Synthesize(ctx context.Context, req Request) (Result, error) {
	return s.group.Perform(ctx, req, engine.Options{Override: req.Backend})
}

// Switch makes the named backend the fixed primary when it is registered and
// ready. Returns false otherwise.
func (s *Service) Switch(name string) bool {
	return s.group.Switch(name)
}

// Ready reports whether at least one backend can currently be invoked.
func (s *Service) Ready() bool {
	return s.group.ReadyCount() > 0
}

// Info returns the diagnostic snapshot of the underlying group.
func (s *Service) Info() engine.Info {
	return s.group.Info()
}

// Stats returns the service's outcome tracker.
func (s *Service) Stats() *engine.Stats {
	return s.group.Stats()
}
