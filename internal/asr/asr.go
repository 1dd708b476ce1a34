// Package asr is the speech-recognition capability facade.
//
// It owns an [engine.Group] of interchangeable recognition backends (a
// general-purpose whisper.cpp model, a Chinese-specialised sherpa-onnx
// model) and exposes the single Transcribe operation callers use. Backend
// choice and failover are delegated entirely to the engine.
package asr

import (
	"context"

	"github.com/voxenio/voxen/internal/engine"
)

// Request carries the audio to recognise plus the per-call selection hints.
type Request struct {
	// Samples is signed 16-bit mono PCM.
	Samples []int16

	// SampleRate is the sample rate of Samples in Hz.
	SampleRate int

	// Language is an optional language preference (e.g. "zh") that ranks
	// specialised backends first. Empty uses the configured default.
	Language string

	// Backend optionally names a specific backend to use. It is a hint:
	// when unavailable, automatic selection applies.
	Backend string
}

// Backend is the adapter interface recognition engines implement.
type Backend = engine.Backend[Request, string]

// Service is the recognition facade. It is safe for concurrent use.
type Service struct {
	group *engine.Group[Request, string]
}

// NewService creates a Service with the given selection policy. cfg.Kind is
// forced to [engine.KindRecognition].
func NewService(cfg engine.Config) *Service {
	cfg.Kind = engine.KindRecognition
	return &Service{group: engine.New[Request, string](cfg)}
}

// Register adds a recognition backend. Backends failing to construct are
// simply never registered; the service stays usable as long as at least one
// backend is ready.
func (s *Service) Register(b Backend) error {
	return s.group.Register(b)
}

// Transcribe recognises the request's audio, failing over across backends as
// needed. It returns the transcript, [engine.ErrNoBackendAvailable] when no
// backend is ready, or an [engine.ExhaustedError] when every candidate
// failed.
func (s *Service) Transcribe(ctx context.Context, req Request) (string, error) {
	return s.group.Perform(ctx, req, engine.Options{
		Override:   req.Backend,
		Preference: req.Language,
	})
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
