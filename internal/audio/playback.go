package audio

import (
	"context"
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"
)

// Playback plays mono int16 PCM on the default output device. The sample
// rate varies per synthesis backend, so the miniaudio device is created per
// Play call; the context is shared and created once.
type Playback struct {
	mu  sync.Mutex
	ctx *malgo.AllocatedContext
}

// NewPlayback initialises the miniaudio context for playback.
func NewPlayback() (*Playback, error) {
	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("audio: init playback context: %w", err)
	}
	return &Playback{ctx: mctx}, nil
}

// Play blocks until the PCM has been rendered to the device, ctx is
// cancelled, or an error occurs.
func (p *Playback) Play(ctx context.Context, pcm []byte, sampleRate int) error {
	if len(pcm) == 0 {
		return nil
	}
	if sampleRate <= 0 {
		return fmt.Errorf("audio: invalid playback sample rate %d", sampleRate)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ctx == nil {
		return fmt.Errorf("audio: playback context closed")
	}

	cfg := malgo.DefaultDeviceConfig(malgo.Playback)
	cfg.Playback.Format = malgo.FormatS16
	cfg.Playback.Channels = 1
	cfg.SampleRate = uint32(sampleRate)
	cfg.Alsa.NoMMap = 1

	var (
		offset   int
		doneOnce sync.Once
		done     = make(chan struct{})
	)

	callbacks := malgo.DeviceCallbacks{
		Data: func(out, _ []byte, _ uint32) {
			n := copy(out, pcm[offset:])
			offset += n
			if offset >= len(pcm) {
				// Remaining device buffer stays zeroed (silence).
				doneOnce.Do(func() { close(done) })
			}
		},
	}

	device, err := malgo.InitDevice(p.ctx.Context, cfg, callbacks)
	if err != nil {
		return fmt.Errorf("audio: init playback device: %w", err)
	}
	defer device.Uninit()

	if err := device.Start(); err != nil {
		return fmt.Errorf("audio: start playback: %w", err)
	}

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return device.Stop()
}

// Close releases the miniaudio context.
func (p *Playback) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ctx == nil {
		return nil
	}
	err := p.ctx.Uninit()
	p.ctx.Free()
	p.ctx = nil
	return err
}
