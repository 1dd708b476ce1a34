// Package app wires all Voxen subsystems into a running assistant.
//
// The App struct owns the full lifecycle: New connects the capability
// services, Run executes the interaction loop (and the diagnostics HTTP
// server when configured), and Shutdown tears everything down in order.
//
// All collaborators are accepted as small interfaces so tests can inject
// doubles; main constructs the real implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/voxenio/voxen/internal/asr"
	"github.com/voxenio/voxen/internal/config"
	"github.com/voxenio/voxen/internal/engine"
	"github.com/voxenio/voxen/internal/observe"
	"github.com/voxenio/voxen/internal/reply"
	"github.com/voxenio/voxen/internal/tts"
)

// Recognizer is the speech-to-text capability consumed by the loop.
type Recognizer interface {
	Transcribe(ctx context.Context, req asr.Request) (string, error)
	Ready() bool
	Switch(name string) bool
	Info() engine.Info
	Stats() *engine.Stats
}

// Synthesizer is the text-to-speech capability consumed by the loop.
type Synthesizer interface {
	Synthesize(ctx context.Context, req tts.Request) (tts.Result, error)
	Ready() bool
	Switch(name string) bool
	Info() engine.Info
	Stats() *engine.Stats
}

// Responder produces the assistant's answer for a transcript.
type Responder interface {
	Generate(ctx context.Context, utterance string) (string, error)
	Ready(ctx context.Context) error
}

// Recorder captures one utterance from the microphone.
type Recorder interface {
	Record(ctx context.Context, d time.Duration) ([]int16, error)
	SampleRate() int
}

// Player renders synthesised PCM through the speakers.
type Player interface {
	Play(ctx context.Context, pcm []byte, sampleRate int) error
}

// Trigger signals push-to-talk activations. Events is closed when the
// trigger source ends (e.g. stdin EOF).
type Trigger interface {
	Events() <-chan struct{}
	Close() error
}

// Deps bundles the collaborators an App needs. Recognizer, Recorder, and
// Trigger are required; the rest degrade gracefully when nil.
type Deps struct {
	Recognizer  Recognizer
	Synthesizer Synthesizer
	Responder   Responder
	Recorder    Recorder
	Player      Player
	Trigger     Trigger
}

// App owns the assistant's interaction loop and diagnostics server.
type App struct {
	cfg  *config.Config
	deps Deps

	metrics *observe.Metrics
	notify  func(title, body string)

	stopOnce sync.Once
	closers  []func() error
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithMetrics injects a metrics instance instead of the package default.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithNotifier replaces the desktop notification sink.
func WithNotifier(fn func(title, body string)) Option {
	return func(a *App) { a.notify = fn }
}

// New creates an App from the config and its collaborators.
func New(cfg *config.Config, deps Deps, opts ...Option) (*App, error) {
	if deps.Recognizer == nil {
		return nil, errors.New("app: a recognizer is required")
	}
	if deps.Recorder == nil {
		return nil, errors.New("app: a recorder is required")
	}
	if deps.Trigger == nil {
		return nil, errors.New("app: a trigger is required")
	}
	if deps.Responder == nil {
		slog.Warn("no responder configured; transcripts will not be answered")
	}
	if deps.Synthesizer == nil {
		slog.Warn("no synthesizer configured; answers will not be spoken")
	}

	a := &App{cfg: cfg, deps: deps}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}
	if a.notify == nil {
		a.notify = desktopNotifier(cfg.UI.Notifications)
	}

	a.closers = append(a.closers, deps.Trigger.Close)
	return a, nil
}

// Run executes the interaction loop, and the diagnostics HTTP server when
// server.listen_addr is set, until ctx is cancelled. Individual turn failures
// are logged and do not stop the loop.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	if addr := a.cfg.Server.ListenAddr; addr != "" {
		srv := &http.Server{
			Addr:              addr,
			Handler:           a.Routes(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			slog.Info("diagnostics server listening", "addr", addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("app: diagnostics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	g.Go(func() error { return a.loop(ctx) })

	slog.Info("assistant running",
		"recognition", a.deps.Recognizer.Info().Current,
		"hotkey", a.cfg.UI.Hotkey,
	)
	return g.Wait()
}

// loop waits for trigger activations and runs one turn per activation.
func (a *App) loop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case _, ok := <-a.deps.Trigger.Events():
			if !ok {
				slog.Info("trigger source closed, stopping loop")
				return nil
			}
			if err := a.Turn(ctx); err != nil {
				if errors.Is(err, context.Canceled) {
					return err
				}
				slog.Warn("turn failed", "err", err)
			}
		}
	}
}

// Turn runs one capture → transcribe → answer → speak cycle.
func (a *App) Turn(ctx context.Context) error {
	ctx, span := observe.StartSpan(ctx, "turn")
	defer span.End()

	start := time.Now()
	a.metrics.InFlightTurns.Add(ctx, 1)
	defer a.metrics.InFlightTurns.Add(ctx, -1)

	status := "error"
	defer func() {
		a.metrics.RecordTurn(ctx, status, time.Since(start))
	}()

	// Capture.
	a.notify("Voxen", "Listening...")
	recordFor := time.Duration(a.cfg.Audio.RecordSeconds) * time.Second
	recCtx, recSpan := observe.StartStage(ctx, "record")
	samples, err := a.deps.Recorder.Record(recCtx, recordFor)
	recSpan.End()
	if err != nil {
		return fmt.Errorf("record: %w", err)
	}
	if len(samples) == 0 {
		status = "empty"
		slog.Debug("no audio captured")
		return nil
	}

	// Transcribe.
	transcribeStart := time.Now()
	asrCtx, asrSpan := observe.StartStage(ctx, "recognition")
	transcript, err := a.deps.Recognizer.Transcribe(asrCtx, asr.Request{
		Samples:    samples,
		SampleRate: a.deps.Recorder.SampleRate(),
		Language:   a.cfg.Recognition.LanguagePreference,
	})
	asrSpan.End()
	a.metrics.RecognitionDuration.Record(ctx, time.Since(transcribeStart).Seconds())
	if err != nil {
		a.notify("Voxen", "Could not understand the audio")
		return fmt.Errorf("transcribe: %w", err)
	}
	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		status = "empty"
		slog.Debug("empty transcript")
		return nil
	}
	slog.Info("transcribed", "text", transcript, "backend", a.deps.Recognizer.Info().Current)

	// Answer.
	if a.deps.Responder == nil {
		status = "ok"
		return nil
	}
	replyStart := time.Now()
	replyCtx, replySpan := observe.StartStage(ctx, "reply")
	answer, err := a.deps.Responder.Generate(replyCtx, transcript)
	replySpan.End()
	a.metrics.ReplyDuration.Record(ctx, time.Since(replyStart).Seconds())
	if err != nil {
		if errors.Is(err, reply.ErrNoResponse) {
			status = "empty"
			slog.Info("no answer produced", "transcript", transcript)
			return nil
		}
		a.notify("Voxen", "Answer generation failed")
		return fmt.Errorf("answer: %w", err)
	}
	slog.Info("answered", "text", answer)
	a.notify("Voxen", answer)

	// Speak.
	if err := a.speak(ctx, answer); err != nil {
		return err
	}

	status = "ok"
	return nil
}

// speak synthesises and plays the answer. A missing synthesizer or player is
// not an error; the answer was already delivered as a notification and log.
func (a *App) speak(ctx context.Context, answer string) error {
	if a.deps.Synthesizer == nil {
		return nil
	}

	synthStart := time.Now()
	synthCtx, synthSpan := observe.StartStage(ctx, "synthesis")
	res, err := a.deps.Synthesizer.Synthesize(synthCtx, tts.Request{Text: answer})
	synthSpan.End()
	a.metrics.SynthesisDuration.Record(ctx, time.Since(synthStart).Seconds())
	if err != nil {
		return fmt.Errorf("synthesize: %w", err)
	}
	if res.Direct {
		// The backend already played the audio itself.
		return nil
	}
	if a.deps.Player == nil {
		slog.Warn("no player configured; dropping synthesised audio")
		return nil
	}
	playCtx, playSpan := observe.StartStage(ctx, "playback")
	err = a.deps.Player.Play(playCtx, res.PCM, res.SampleRate)
	playSpan.End()
	if err != nil {
		return fmt.Errorf("play: %w", err)
	}
	return nil
}

// ApplyPolicy applies a reloaded config's selection policy to the running
// services. Only primary-backend switches take effect at runtime; backend
// construction settings require a restart.
func (a *App) ApplyPolicy(cfg *config.Config) {
	if p := cfg.Recognition.Primary; p != "" && p != a.deps.Recognizer.Info().Primary {
		if a.deps.Recognizer.Switch(p) {
			slog.Info("recognition primary switched", "backend", p)
		} else {
			slog.Warn("recognition primary switch rejected", "backend", p)
		}
	}
	if a.deps.Synthesizer == nil {
		return
	}
	if p := cfg.Synthesis.Primary; p != "" && p != a.deps.Synthesizer.Info().Primary {
		if a.deps.Synthesizer.Switch(p) {
			slog.Info("synthesis primary switched", "backend", p)
		} else {
			slog.Warn("synthesis primary switch rejected", "backend", p)
		}
	}
}

// Shutdown tears down the app's resources. Safe to call more than once.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))
		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}
		slog.Info("shutdown complete")
	})
	return shutdownErr
}
