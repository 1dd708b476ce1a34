// Command voxen is the main entry point for the Voxen voice assistant.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/voxenio/voxen/internal/app"
	"github.com/voxenio/voxen/internal/asr"
	asrsherpa "github.com/voxenio/voxen/internal/asr/sherpa"
	"github.com/voxenio/voxen/internal/asr/whisper"
	"github.com/voxenio/voxen/internal/audio"
	"github.com/voxenio/voxen/internal/config"
	"github.com/voxenio/voxen/internal/engine"
	"github.com/voxenio/voxen/internal/observe"
	"github.com/voxenio/voxen/internal/reply"
	"github.com/voxenio/voxen/internal/tts"
	"github.com/voxenio/voxen/internal/tts/espeak"
	"github.com/voxenio/voxen/internal/tts/piper"
	ttssherpa "github.com/voxenio/voxen/internal/tts/sherpa"
)

// version is stamped at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "voxen: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "voxen: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("voxen starting",
		"version", version,
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	shutdownTelemetry, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    "voxen",
		ServiceVersion: version,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(flushCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	metrics, err := observe.NewMetrics(otel.GetMeterProvider())
	if err != nil {
		slog.Error("failed to create metrics", "err", err)
		return 1
	}

	// closers collects resources to release after Run returns, in reverse
	// order of construction.
	var closers []func() error
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				slog.Warn("close error", "err", err)
			}
		}
	}()

	// ── Recognition ───────────────────────────────────────────────────────────
	recognizer, recClosers, err := buildRecognition(cfg, metrics)
	closers = append(closers, recClosers...)
	if err != nil {
		slog.Error("failed to build recognition", "err", err)
		return 1
	}

	// ── Synthesis (optional) ──────────────────────────────────────────────────
	synthesizer, synthClosers := buildSynthesis(cfg, metrics)
	closers = append(closers, synthClosers...)

	// ── Reply generation ──────────────────────────────────────────────────────
	responder, err := buildResponder(cfg)
	if err != nil {
		slog.Error("failed to build reply provider", "err", err)
		return 1
	}

	// ── Audio devices ─────────────────────────────────────────────────────────
	capture, err := audio.NewCapture(cfg.Audio.SampleRate)
	if err != nil {
		slog.Error("failed to open capture device", "err", err)
		return 1
	}
	closers = append(closers, capture.Close)

	var player app.Player
	if playback, err := audio.NewPlayback(); err != nil {
		slog.Warn("no playback device; spoken answers disabled", "err", err)
	} else {
		player = playback
		closers = append(closers, playback.Close)
	}

	// ── Trigger ───────────────────────────────────────────────────────────────
	trigger := buildTrigger(cfg)

	// ── Application ───────────────────────────────────────────────────────────
	deps := app.Deps{
		Recognizer: recognizer,
		Recorder:   capture,
		Player:     player,
		Responder:  responder,
		Trigger:    trigger,
	}
	if synthesizer != nil {
		deps.Synthesizer = synthesizer
	}

	application, err := app.New(cfg, deps, app.WithMetrics(metrics))
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	// ── Config watcher ────────────────────────────────────────────────────────
	watcher, err := config.NewWatcher(*configPath, func(_, updated *config.Config) {
		application.ApplyPolicy(updated)
	})
	if err != nil {
		slog.Warn("config watcher disabled", "err", err)
	} else {
		defer watcher.Stop()
	}

	// ── Startup summary ───────────────────────────────────────────────────────
	printStartupSummary(cfg)

	slog.Info("assistant ready — press Ctrl+C to shut down")

	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	slog.Info("shutdown signal received, stopping…")

	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Subsystem wiring ──────────────────────────────────────────────────────────

// buildRecognition constructs the speech-to-text service with every backend
// the config enables. A backend that fails to construct is logged and
// skipped; at least one must succeed.
func buildRecognition(cfg *config.Config, metrics *observe.Metrics) (*asr.Service, []func() error, error) {
	svc := asr.NewService(engine.Config{
		Kind:       engine.KindRecognition,
		Mode:       cfg.Recognition.Mode,
		Primary:    cfg.Recognition.Primary,
		Fallback:   cfg.Recognition.Fallback,
		Preference: cfg.Recognition.LanguagePreference,
		Timeout:    cfg.Recognition.Timeout,
		Observer:   metrics.StageObserver("recognition", metrics.RecognitionDuration),
		Failover:   metrics.FailoverObserver("recognition"),
	})

	var closers []func() error
	registered := 0

	if wc := cfg.Recognition.Whisper; wc != nil {
		var opts []whisper.Option
		if wc.Language != "" {
			opts = append(opts, whisper.WithLanguage(wc.Language))
		}
		backend, err := whisper.New(wc.ModelPath, opts...)
		if err != nil {
			slog.Warn("whisper backend unavailable", "err", err)
		} else if err := svc.Register(backend); err != nil {
			slog.Warn("whisper backend rejected", "err", err)
		} else {
			closers = append(closers, backend.Close)
			registered++
			slog.Info("backend registered", "kind", "recognition", "name", whisper.Name)
		}
	}

	if sc := cfg.Recognition.Sherpa; sc != nil {
		backend, err := asrsherpa.New(asrsherpa.Config{
			ModelPath:  sc.ModelPath,
			TokensPath: sc.TokensPath,
			NumThreads: sc.NumThreads,
			Provider:   sc.Provider,
		})
		if err != nil {
			slog.Warn("sherpa recognition backend unavailable", "err", err)
		} else if err := svc.Register(backend); err != nil {
			slog.Warn("sherpa recognition backend rejected", "err", err)
		} else {
			closers = append(closers, backend.Close)
			registered++
			slog.Info("backend registered", "kind", "recognition", "name", asrsherpa.Name)
		}
	}

	if registered == 0 {
		return nil, closers, errors.New("no recognition backend could be constructed")
	}
	return svc, closers, nil
}

// buildSynthesis constructs the text-to-speech service. Returns nil when no
// synthesis backend is configured or constructible; the assistant then runs
// with notifications and logs only.
func buildSynthesis(cfg *config.Config, metrics *observe.Metrics) (*tts.Service, []func() error) {
	svc := tts.NewService(engine.Config{
		Kind:     engine.KindSynthesis,
		Mode:     cfg.Synthesis.Mode,
		Primary:  cfg.Synthesis.Primary,
		Fallback: cfg.Synthesis.Fallback,
		Timeout:  cfg.Synthesis.Timeout,
		Observer: metrics.StageObserver("synthesis", metrics.SynthesisDuration),
		Failover: metrics.FailoverObserver("synthesis"),
	})

	var closers []func() error
	registered := 0

	if pc := cfg.Synthesis.Piper; pc != nil {
		var opts []piper.Option
		if pc.Binary != "" {
			opts = append(opts, piper.WithBinary(pc.Binary))
		}
		backend, err := piper.New(pc.ModelPath, opts...)
		if err != nil {
			slog.Warn("piper backend unavailable", "err", err)
		} else if err := svc.Register(backend); err != nil {
			slog.Warn("piper backend rejected", "err", err)
		} else {
			registered++
			slog.Info("backend registered", "kind", "synthesis", "name", piper.Name)
		}
	}

	if sc := cfg.Synthesis.Sherpa; sc != nil {
		backend, err := ttssherpa.New(ttssherpa.Config{
			ModelPath:   sc.ModelPath,
			TokensPath:  sc.TokensPath,
			LexiconPath: sc.LexiconPath,
			DataDir:     sc.DataDir,
			NumThreads:  sc.NumThreads,
			Provider:    sc.Provider,
			SpeakerID:   sc.SpeakerID,
			Speed:       sc.Speed,
		})
		if err != nil {
			slog.Warn("sherpa synthesis backend unavailable", "err", err)
		} else if err := svc.Register(backend); err != nil {
			slog.Warn("sherpa synthesis backend rejected", "err", err)
		} else {
			closers = append(closers, backend.Close)
			registered++
			slog.Info("backend registered", "kind", "synthesis", "name", ttssherpa.Name)
		}
	}

	if ec := cfg.Synthesis.Espeak; ec != nil {
		var opts []espeak.Option
		if ec.Voice != "" {
			opts = append(opts, espeak.WithVoice(ec.Voice))
		}
		if ec.Rate != 0 {
			opts = append(opts, espeak.WithRate(ec.Rate))
		}
		if err := svc.Register(espeak.New(opts...)); err != nil {
			slog.Warn("espeak backend rejected", "err", err)
		} else {
			registered++
			slog.Info("backend registered", "kind", "synthesis", "name", espeak.Name)
		}
	}

	if registered == 0 {
		slog.Warn("no synthesis backend configured; answers will not be spoken")
		return nil, closers
	}
	return svc, closers
}

// buildResponder constructs the answer generator from the configured reply
// provider and the built-in command table.
func buildResponder(cfg *config.Config) (*reply.Generator, error) {
	var provider reply.Provider
	switch cfg.Reply.Provider {
	case config.ReplyOllama:
		opts := []reply.OllamaOption{reply.WithOllamaTimeout(cfg.Reply.Timeout)}
		if cfg.Reply.SystemPrompt != "" {
			opts = append(opts, reply.WithOllamaSystemPrompt(cfg.Reply.SystemPrompt))
		}
		p, err := reply.NewOllama(cfg.Reply.BaseURL, cfg.Reply.Model, opts...)
		if err != nil {
			return nil, err
		}
		provider = p
	case config.ReplyOpenAI:
		opts := []reply.OpenAIOption{reply.WithOpenAITimeout(cfg.Reply.Timeout)}
		if cfg.Reply.BaseURL != "" {
			opts = append(opts, reply.WithOpenAIBaseURL(cfg.Reply.BaseURL))
		}
		if cfg.Reply.SystemPrompt != "" {
			opts = append(opts, reply.WithOpenAISystemPrompt(cfg.Reply.SystemPrompt))
		}
		p, err := reply.NewOpenAI(cfg.Reply.APIKey, cfg.Reply.Model, opts...)
		if err != nil {
			return nil, err
		}
		provider = p
	case config.ReplyNone:
		slog.Info("reply provider disabled; only built-in commands will answer")
	}

	var genOpts []reply.GeneratorOption
	if !cfg.Reply.CommandsEnabled() {
		genOpts = append(genOpts, reply.WithCommands(nil))
	}
	return reply.NewGenerator(provider, genOpts...), nil
}

// buildTrigger sets up push-to-talk: the configured global hotkey, or Enter
// on stdin when no hotkey is configured or registration fails.
func buildTrigger(cfg *config.Config) app.Trigger {
	if cfg.UI.Hotkey != "" {
		trigger, err := app.NewHotkeyTrigger(cfg.UI.Hotkey)
		if err == nil {
			slog.Info("push-to-talk hotkey registered", "hotkey", cfg.UI.Hotkey)
			return trigger
		}
		slog.Warn("hotkey unavailable, falling back to stdin", "hotkey", cfg.UI.Hotkey, "err", err)
	}
	fmt.Println("Press Enter to talk.")
	return app.NewStdinTrigger(os.Stdin)
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║          Voxen — startup summary      ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printLine("Recognition", recognitionBackends(cfg))
	printLine("Synthesis", synthesisBackends(cfg))
	printLine("Reply", replySummary(cfg))
	if cfg.UI.Hotkey != "" {
		printLine("Hotkey", cfg.UI.Hotkey)
	} else {
		printLine("Hotkey", "(stdin)")
	}
	if cfg.Server.ListenAddr != "" {
		printLine("Listen addr", cfg.Server.ListenAddr)
	}
	fmt.Println("╚═══════════════════════════════════════╝")
}

func recognitionBackends(cfg *config.Config) string {
	var names []string
	if cfg.Recognition.Whisper != nil {
		names = append(names, whisper.Name)
	}
	if cfg.Recognition.Sherpa != nil {
		names = append(names, asrsherpa.Name)
	}
	return joinOrNone(names)
}

func synthesisBackends(cfg *config.Config) string {
	var names []string
	if cfg.Synthesis.Piper != nil {
		names = append(names, piper.Name)
	}
	if cfg.Synthesis.Sherpa != nil {
		names = append(names, ttssherpa.Name)
	}
	if cfg.Synthesis.Espeak != nil {
		names = append(names, espeak.Name)
	}
	return joinOrNone(names)
}

func replySummary(cfg *config.Config) string {
	if cfg.Reply.Provider == config.ReplyNone {
		return "commands only"
	}
	return string(cfg.Reply.Provider) + " / " + cfg.Reply.Model
}

func joinOrNone(names []string) string {
	if len(names) == 0 {
		return "(none)"
	}
	out := names[0]
	for _, n := range names[1:] {
		out += ", " + n
	}
	return out
}

func printLine(label, value string) {
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Printf("║  %-12s : %-19s ║\n", label, value)
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
