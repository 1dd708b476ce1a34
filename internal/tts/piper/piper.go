// Package piper implements the synthesis backend backed by the piper
// command-line synthesiser. Each invocation runs the binary as a subprocess:
// the text goes to stdin and the rendered WAV is read back from a temporary
// file.
package piper

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/voxenio/voxen/internal/audio"
	"github.com/voxenio/voxen/internal/engine"
	"github.com/voxenio/voxen/internal/tts"
)

// Name is the stable backend identifier used in configuration and stats.
const Name = "piper"

// Compile-time assertion that Backend satisfies tts.Backend.
var _ tts.Backend = (*Backend)(nil)

// Backend shells out to piper for synthesis. Readiness is re-evaluated on
// every check so that installing the binary or the voice model at runtime is
// picked up without a restart.
type Backend struct {
	binary string
	model  string
}

// Option is a functional option for configuring a Backend.
type Option func(*Backend)

// WithBinary overrides the piper binary name or path. Default "piper".
func WithBinary(path string) Option {
	return func(b *Backend) { b.binary = path }
}

// New creates a Backend using the given voice model file (.onnx). The model
// may be absent at construction time; the backend simply reports not-ready
// until it appears.
func New(modelPath string, opts ...Option) (*Backend, error) {
	if modelPath == "" {
		return nil, errors.New("piper: modelPath must not be empty")
	}
	b := &Backend{binary: "piper", model: modelPath}
	for _, o := range opts {
		o(b)
	}
	return b, nil
}

// Ready reports whether the piper binary is on PATH and the voice model file
// exists.
func (b *Backend) Ready() bool {
	if _, err := exec.LookPath(b.binary); err != nil {
		return false
	}
	_, err := os.Stat(b.model)
	return err == nil
}

// Invoke renders the request's text to a WAV file via the piper subprocess
// and returns the decoded PCM.
func (b *Backend) Invoke(ctx context.Context, req tts.Request) (tts.Result, error) {
	if strings.TrimSpace(req.Text) == "" {
		return tts.Result{}, errors.New("piper: empty text")
	}

	dir, err := os.MkdirTemp("", "piper-tts-")
	if err != nil {
		return tts.Result{}, fmt.Errorf("piper: temp dir: %w", err)
	}
	defer os.RemoveAll(dir)
	outFile := filepath.Join(dir, "out.wav")

	cmd := exec.CommandContext(ctx, b.binary,
		"--model", b.model,
		"--output_file", outFile,
	)
	cmd.Stdin = strings.NewReader(req.Text)
	if out, err := cmd.CombinedOutput(); err != nil {
		return tts.Result{}, fmt.Errorf("piper: %w: %s", err, strings.TrimSpace(string(out)))
	}

	data, err := os.ReadFile(outFile)
	if err != nil {
		return tts.Result{}, fmt.Errorf("piper: read output: %w", err)
	}
	wav, err := audio.DecodeWAV(data)
	if err != nil {
		return tts.Result{}, fmt.Errorf("piper: %w", err)
	}

	return tts.Result{
		PCM:        wav.Mono(),
		SampleRate: wav.SampleRate,
	}, nil
}

// Describe returns the backend's metadata.
func (b *Backend) Describe() engine.Metadata {
	return engine.Metadata{
		Name:        Name,
		Kind:        engine.KindSynthesis,
		Description: "piper neural synthesis (subprocess)",
		Resources:   "piper binary on PATH, voice model " + b.model,
	}
}
