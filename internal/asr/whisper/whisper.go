// Package whisper implements the recognition backend backed by the
// whisper.cpp CGO bindings. The whisper.cpp static library (libwhisper.a)
// and headers (whisper.h) must be available at link time via LIBRARY_PATH
// and C_INCLUDE_PATH environment variables.
//
// The model is loaded once at construction and shared across calls; each
// invocation creates its own whisper context, which is cheap compared to
// model loading and keeps the backend safe for concurrent use.
package whisper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/voxenio/voxen/internal/asr"
	"github.com/voxenio/voxen/internal/audio"
	"github.com/voxenio/voxen/internal/engine"
)

// Name is the stable backend identifier used in configuration and stats.
const Name = "whisper"

// sampleRate is the only input rate whisper.cpp accepts.
const sampleRate = 16000

// Compile-time assertion that Backend satisfies asr.Backend.
var _ asr.Backend = (*Backend)(nil)

// Backend is a general-purpose recognition backend. Construct with [New] and
// release the model with [Backend.Close].
type Backend struct {
	model    whisperlib.Model
	language string
}

// Option is a functional option for configuring a Backend.
type Option func(*Backend)

// WithLanguage sets the transcription language code (e.g. "en", "zh").
// Defaults to "auto".
func WithLanguage(lang string) Option {
	return func(b *Backend) { b.language = lang }
}

// New loads the whisper.cpp model from modelPath. Loading is the expensive
// step; a failure here means the backend is simply not registered and the
// recognition service degrades to its other backends.
func New(modelPath string, opts ...Option) (*Backend, error) {
	if modelPath == "" {
		return nil, errors.New("whisper: modelPath must not be empty")
	}
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("whisper: load model %q: %w", modelPath, err)
	}

	b := &Backend{
		model:    model,
		language: "auto",
	}
	for _, o := range opts {
		o(b)
	}
	return b, nil
}

// Ready reports whether the model is loaded.
func (b *Backend) Ready() bool {
	return b.model != nil
}

// Invoke transcribes the request's PCM audio. The input must be 16 kHz mono;
// any other rate is rejected rather than silently resampled.
func (b *Backend) Invoke(ctx context.Context, req asr.Request) (string, error) {
	if b.model == nil {
		return "", errors.New("whisper: model not loaded")
	}
	if req.SampleRate != sampleRate {
		return "", fmt.Errorf("whisper: unsupported sample rate %d, want %d", req.SampleRate, sampleRate)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	// Each inference gets a fresh context; whisper contexts are not safe for
	// concurrent use but the model is.
	wctx, err := b.model.NewContext()
	if err != nil {
		return "", fmt.Errorf("whisper: create context: %w", err)
	}

	lang := b.language
	if req.Language != "" {
		lang = req.Language
	}
	if err := wctx.SetLanguage(lang); err != nil {
		slog.Warn("whisper: failed to set language, using default",
			"language", lang, "error", err)
	}

	samples := audio.Int16ToFloat32(req.Samples)
	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return "", fmt.Errorf("whisper: process audio: %w", err)
	}

	var parts []string
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("whisper: read segment: %w", err)
		}
		if text := strings.TrimSpace(segment.Text); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " "), nil
}

// Describe returns the backend's metadata.
func (b *Backend) Describe() engine.Metadata {
	return engine.Metadata{
		Name:        Name,
		Kind:        engine.KindRecognition,
		Description: "whisper.cpp general-purpose transcription",
		Resources:   "ggml model file, libwhisper at link time",
	}
}

// Close releases the whisper.cpp model.
func (b *Backend) Close() error {
	if b.model == nil {
		return nil
	}
	err := b.model.Close()
	b.model = nil
	return err
}
