// Package sherpa implements the Chinese-specialised recognition backend
// backed by a sherpa-onnx offline paraformer model.
//
// sherpa-onnx ships the model weights as ONNX files and performs inference
// through onnxruntime, so no GPU or external server is required. The
// recognizer is created once at construction; offline streams are created
// per invocation and serialised with a mutex because the underlying C
// recognizer is not safe for concurrent decoding.
package sherpa

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	sherpa "github.com/k2-fsa/sherpa-onnx-go/sherpa_onnx"

	"github.com/voxenio/voxen/internal/asr"
	"github.com/voxenio/voxen/internal/audio"
	"github.com/voxenio/voxen/internal/engine"
)

// Name is the stable backend identifier used in configuration and stats.
const Name = "sherpa"

// Compile-time assertion that Backend satisfies asr.Backend.
var _ asr.Backend = (*Backend)(nil)

// Config holds the model file locations and runtime knobs.
type Config struct {
	// ModelPath is the paraformer ONNX model file.
	ModelPath string

	// TokensPath is the tokens.txt shipped with the model.
	TokensPath string

	// NumThreads is the onnxruntime intra-op thread count. Default 2.
	NumThreads int

	// Provider is the onnxruntime execution provider ("cpu", "cuda",
	// "coreml"). Default "cpu".
	Provider string
}

// Backend is the sherpa-onnx recognition backend. Construct with [New] and
// release native resources with [Backend.Close].
type Backend struct {
	mu         sync.Mutex
	recognizer *sherpa.OfflineRecognizer
}

// New creates the recognizer from cfg. Both model files must exist; a missing
// file fails construction so the recognition service can degrade to its other
// backends.
func New(cfg Config) (*Backend, error) {
	for _, path := range []string{cfg.ModelPath, cfg.TokensPath} {
		if path == "" {
			return nil, errors.New("sherpa: model and tokens paths must not be empty")
		}
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("sherpa: model file: %w", err)
		}
	}
	if cfg.NumThreads <= 0 {
		cfg.NumThreads = 2
	}
	if cfg.Provider == "" {
		cfg.Provider = "cpu"
	}

	recCfg := sherpa.OfflineRecognizerConfig{
		FeatConfig: sherpa.FeatureConfig{SampleRate: 16000, FeatureDim: 80},
		ModelConfig: sherpa.OfflineModelConfig{
			Paraformer: sherpa.OfflineParaformerModelConfig{Model: cfg.ModelPath},
			Tokens:     cfg.TokensPath,
			NumThreads: cfg.NumThreads,
			Provider:   cfg.Provider,
		},
	}
	rec := sherpa.NewOfflineRecognizer(&recCfg)
	if rec == nil {
		return nil, errors.New("sherpa: failed to create offline recognizer")
	}
	return &Backend{recognizer: rec}, nil
}

// Ready reports whether the recognizer is loaded.
func (b *Backend) Ready() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.recognizer != nil
}

// Invoke decodes the request's PCM audio through the paraformer model.
func (b *Backend) Invoke(ctx context.Context, req asr.Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.recognizer == nil {
		return "", errors.New("sherpa: recognizer not loaded")
	}

	stream := sherpa.NewOfflineStream(b.recognizer)
	defer sherpa.DeleteOfflineStream(stream)

	stream.AcceptWaveform(req.SampleRate, audio.Int16ToFloat32(req.Samples))
	b.recognizer.Decode(stream)

	result := stream.GetResult()
	if result == nil {
		return "", errors.New("sherpa: decode produced no result")
	}
	return strings.TrimSpace(result.Text), nil
}

// Describe returns the backend's metadata. The "zh" language tag is what
// ranks this backend first when the caller prefers Chinese.
func (b *Backend) Describe() engine.Metadata {
	return engine.Metadata{
		Name:        Name,
		Kind:        engine.KindRecognition,
		Language:    "zh",
		Description: "sherpa-onnx paraformer, Mandarin-specialised",
		Resources:   "paraformer ONNX model + tokens.txt",
	}
}

// Close releases the native recognizer.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.recognizer != nil {
		sherpa.DeleteOfflineRecognizer(b.recognizer)
		b.recognizer = nil
	}
	return nil
}
