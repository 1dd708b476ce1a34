// Package espeak implements the last-resort synthesis backend backed by the
// espeak-ng command-line synthesiser. Unlike the other backends it speaks
// through the system audio device itself, so results are marked Direct and
// carry no PCM.
package espeak

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/voxenio/voxen/internal/engine"
	"github.com/voxenio/voxen/internal/tts"
)

// Name is the stable backend identifier used in configuration and stats.
const Name = "espeak"

var _ tts.Backend = (*Backend)(nil)

// Backend shells out to espeak-ng and lets it play the audio directly.
type Backend struct {
	binary string
	voice  string
	rate   int
}

// Option is a functional option for configuring a Backend.
type Option func(*Backend)

// WithBinary overrides the espeak-ng binary name or path.
func WithBinary(path string) Option {
	return func(b *Backend) { b.binary = path }
}

// WithVoice sets the default voice, e.g. "en" or "zh".
func WithVoice(voice string) Option {
	return func(b *Backend) { b.voice = voice }
}

// WithRate sets the speaking rate in words per minute. Default 175.
func WithRate(wpm int) Option {
	return func(b *Backend) { b.rate = wpm }
}

// New creates a Backend. The binary may be installed later; readiness is
// checked on every use.
func New(opts ...Option) *Backend {
	b := &Backend{binary: "espeak-ng", rate: 175}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Ready reports whether the espeak-ng binary is on PATH.
func (b *Backend) Ready() bool {
	_, err := exec.LookPath(b.binary)
	return err == nil
}

// Invoke speaks the request's text through the system audio device. The
// returned Result has Direct set and no PCM.
func (b *Backend) Invoke(ctx context.Context, req tts.Request) (tts.Result, error) {
	if strings.TrimSpace(req.Text) == "" {
		return tts.Result{}, errors.New("espeak: empty text")
	}

	args := []string{"-s", strconv.Itoa(b.rate)}
	voice := b.voice
	if req.Voice != "" {
		voice = req.Voice
	}
	if voice != "" {
		args = append(args, "-v", voice)
	}
	args = append(args, req.Text)

	cmd := exec.CommandContext(ctx, b.binary, args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return tts.Result{}, fmt.Errorf("espeak: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return tts.Result{Direct: true}, nil
}

// Describe returns the backend's metadata.
func (b *Backend) Describe() engine.Metadata {
	return engine.Metadata{
		Name:        Name,
		Kind:        engine.KindSynthesis,
		Description: "espeak-ng formant synthesis (speaks directly)",
		Resources:   "espeak-ng binary on PATH",
	}
}
