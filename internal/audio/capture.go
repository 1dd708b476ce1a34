package audio

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gen2brain/malgo"
)

// Capture records mono int16 PCM from the default microphone via the
// miniaudio backend. One Capture owns one miniaudio context; create it at
// startup and Close it on shutdown. Record calls are serialised internally.
type Capture struct {
	ctx        *malgo.AllocatedContext
	sampleRate int

	mu sync.Mutex // one recording at a time
}

// NewCapture initialises the miniaudio context. sampleRate is the capture
// rate in Hz (16000 for the recognition backends).
func NewCapture(sampleRate int) (*Capture, error) {
	if sampleRate <= 0 {
		sampleRate = 16000
	}
	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("audio: init capture context: %w", err)
	}
	return &Capture{ctx: mctx, sampleRate: sampleRate}, nil
}

// SampleRate returns the configured capture rate.
func (c *Capture) SampleRate() int {
	return c.sampleRate
}

// Record captures up to d of audio from the default input device and returns
// the samples. Cancelling ctx stops the recording early and returns whatever
// was captured so far.
func (c *Capture) Record(ctx context.Context, d time.Duration) ([]int16, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ctx == nil {
		return nil, fmt.Errorf("audio: capture context closed")
	}

	var (
		bufMu sync.Mutex
		buf   []byte
	)

	cfg := malgo.DefaultDeviceConfig(malgo.Capture)
	cfg.Capture.Format = malgo.FormatS16
	cfg.Capture.Channels = 1
	cfg.SampleRate = uint32(c.sampleRate)
	cfg.Alsa.NoMMap = 1

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, in []byte, _ uint32) {
			bufMu.Lock()
			buf = append(buf, in...)
			bufMu.Unlock()
		},
	}

	device, err := malgo.InitDevice(c.ctx.Context, cfg, callbacks)
	if err != nil {
		return nil, fmt.Errorf("audio: init capture device: %w", err)
	}
	defer device.Uninit()

	if err := device.Start(); err != nil {
		return nil, fmt.Errorf("audio: start capture: %w", err)
	}

	select {
	case <-time.After(d):
	case <-ctx.Done():
	}
	if err := device.Stop(); err != nil {
		return nil, fmt.Errorf("audio: stop capture: %w", err)
	}

	bufMu.Lock()
	defer bufMu.Unlock()
	return BytesToInt16(buf), nil
}

// Close releases the miniaudio context.
func (c *Capture) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ctx == nil {
		return nil
	}
	err := c.ctx.Uninit()
	c.ctx.Free()
	c.ctx = nil
	return err
}
