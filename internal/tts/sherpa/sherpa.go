// Package sherpa implements the synthesis backend backed by a sherpa-onnx
// VITS model running in-process.
package sherpa

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	sherpa "github.com/k2-fsa/sherpa-onnx-go/sherpa_onnx"

	"github.com/voxenio/voxen/internal/audio"
	"github.com/voxenio/voxen/internal/engine"
	"github.com/voxenio/voxen/internal/tts"
)

// Name is the stable backend identifier used in configuration and stats.
const Name = "sherpa"

var _ tts.Backend = (*Backend)(nil)

// Config holds the model files for a VITS voice.
type Config struct {
	// ModelPath is the VITS .onnx model file.
	ModelPath string
	// TokensPath is the tokens.txt file shipped with the model.
	TokensPath string
	// LexiconPath is an optional lexicon file, required by some voices.
	LexiconPath string
	// DataDir is an optional espeak-ng data directory for phonemisation.
	DataDir string
	// NumThreads to run inference on. Defaults to 2.
	NumThreads int
	// Provider selects the onnxruntime execution provider. Defaults to "cpu".
	Provider string
	// SpeakerID selects the speaker for multi-speaker models.
	SpeakerID int
	// Speed scales speaking rate. Defaults to 1.0.
	Speed float32
}

// Backend synthesises speech with a sherpa-onnx VITS model. The underlying
// engine is not safe for concurrent use, so invocations are serialised.
type Backend struct {
	mu   sync.Mutex
	tts  *sherpa.OfflineTts
	conf Config
}

// New loads the VITS model and returns a ready Backend.
func New(conf Config) (*Backend, error) {
	if conf.ModelPath == "" || conf.TokensPath == "" {
		return nil, errors.New("sherpa tts: ModelPath and TokensPath must be set")
	}
	for _, f := range []string{conf.ModelPath, conf.TokensPath} {
		if _, err := os.Stat(f); err != nil {
			return nil, fmt.Errorf("sherpa tts: %w", err)
		}
	}
	if conf.NumThreads <= 0 {
		conf.NumThreads = 2
	}
	if conf.Provider == "" {
		conf.Provider = "cpu"
	}
	if conf.Speed <= 0 {
		conf.Speed = 1.0
	}

	cfg := sherpa.OfflineTtsConfig{
		Model: sherpa.OfflineTtsModelConfig{
			Vits: sherpa.OfflineTtsVitsModelConfig{
				Model:   conf.ModelPath,
				Lexicon: conf.LexiconPath,
				Tokens:  conf.TokensPath,
				DataDir: conf.DataDir,
			},
			NumThreads: conf.NumThreads,
			Provider:   conf.Provider,
		},
	}
	t := sherpa.NewOfflineTts(&cfg)
	if t == nil {
		return nil, errors.New("sherpa tts: failed to initialize engine")
	}
	return &Backend{tts: t, conf: conf}, nil
}

// Ready reports whether the engine is loaded.
func (b *Backend) Ready() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.tts != nil
}

// Invoke renders the request's text and returns 16-bit PCM at the model's
// native sample rate.
func (b *Backend) Invoke(ctx context.Context, req tts.Request) (tts.Result, error) {
	if strings.TrimSpace(req.Text) == "" {
		return tts.Result{}, errors.New("sherpa tts: empty text")
	}
	if err := ctx.Err(); err != nil {
		return tts.Result{}, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.tts == nil {
		return tts.Result{}, engine.ErrBackendUnavailable
	}

	gen := b.tts.Generate(req.Text, b.conf.SpeakerID, b.conf.Speed)
	if gen == nil || len(gen.Samples) == 0 {
		return tts.Result{}, errors.New("sherpa tts: engine produced no audio")
	}

	pcm := audio.Int16ToBytes(audio.Float32ToInt16(gen.Samples))
	return tts.Result{
		PCM:        pcm,
		SampleRate: gen.SampleRate,
	}, nil
}

// Describe returns the backend's metadata.
func (b *Backend) Describe() engine.Metadata {
	return engine.Metadata{
		Name:        Name,
		Kind:        engine.KindSynthesis,
		Description: "sherpa-onnx VITS synthesis (in-process)",
		Resources:   "model " + b.conf.ModelPath,
	}
}

// Close releases the underlying engine. The backend reports not-ready
// afterwards.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.tts != nil {
		sherpa.DeleteOfflineTts(b.tts)
		b.tts = nil
	}
	return nil
}
