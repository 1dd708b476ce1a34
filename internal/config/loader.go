package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidBackendNames lists known backend names per subsystem. Used by
// [Validate] to warn about unrecognised names.
var ValidBackendNames = map[string][]string{
	"recognition": {"whisper", "sherpa"},
	"synthesis":   {"piper", "sherpa", "espeak"},
}

// Load reads the YAML configuration file at path, applies defaults, and
// returns a validated [Config].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults, and
// validates the result. Useful in tests where configs are constructed from
// string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	cfg.ApplyDefaults()
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	// Recognition
	if !cfg.Recognition.Mode.IsValid() {
		errs = append(errs, fmt.Errorf("recognition.mode %q is invalid; valid values: auto, fixed", cfg.Recognition.Mode))
	}
	validateBackendName("recognition", "recognition.primary", cfg.Recognition.Primary)
	validateBackendName("recognition", "recognition.fallback", cfg.Recognition.Fallback)
	if cfg.Recognition.Whisper == nil && cfg.Recognition.Sherpa == nil {
		errs = append(errs, errors.New("recognition: at least one backend (whisper or sherpa) must be configured"))
	}
	if w := cfg.Recognition.Whisper; w != nil && w.ModelPath == "" {
		errs = append(errs, errors.New("recognition.whisper.model_path is required"))
	}
	if s := cfg.Recognition.Sherpa; s != nil {
		if s.ModelPath == "" {
			errs = append(errs, errors.New("recognition.sherpa.model_path is required"))
		}
		if s.TokensPath == "" {
			errs = append(errs, errors.New("recognition.sherpa.tokens_path is required"))
		}
	}

	// Synthesis
	if !cfg.Synthesis.Mode.IsValid() {
		errs = append(errs, fmt.Errorf("synthesis.mode %q is invalid; valid values: auto, fixed", cfg.Synthesis.Mode))
	}
	validateBackendName("synthesis", "synthesis.primary", cfg.Synthesis.Primary)
	validateBackendName("synthesis", "synthesis.fallback", cfg.Synthesis.Fallback)
	if cfg.Synthesis.Piper == nil && cfg.Synthesis.Sherpa == nil && cfg.Synthesis.Espeak == nil {
		slog.Warn("synthesis: no backend configured; spoken replies will be unavailable")
	}
	if p := cfg.Synthesis.Piper; p != nil && p.ModelPath == "" {
		errs = append(errs, errors.New("synthesis.piper.model_path is required"))
	}
	if s := cfg.Synthesis.Sherpa; s != nil {
		if s.ModelPath == "" {
			errs = append(errs, errors.New("synthesis.sherpa.model_path is required"))
		}
		if s.TokensPath == "" {
			errs = append(errs, errors.New("synthesis.sherpa.tokens_path is required"))
		}
	}

	// Reply
	if !cfg.Reply.Provider.IsValid() {
		errs = append(errs, fmt.Errorf("reply.provider %q is invalid; valid values: ollama, openai, none", cfg.Reply.Provider))
	}
	if cfg.Reply.Provider != ReplyNone && cfg.Reply.Model == "" {
		errs = append(errs, fmt.Errorf("reply.model is required when reply.provider is %q", cfg.Reply.Provider))
	}
	if cfg.Reply.Provider == ReplyOpenAI && cfg.Reply.APIKey == "" {
		errs = append(errs, errors.New("reply.api_key is required when reply.provider is openai"))
	}
	if cfg.Reply.Provider == ReplyNone && !cfg.Reply.CommandsEnabled() {
		errs = append(errs, errors.New("reply: provider none with enable_commands false leaves no way to answer"))
	}

	// Audio
	if cfg.Audio.SampleRate != 8000 && cfg.Audio.SampleRate != 16000 && cfg.Audio.SampleRate != 22050 &&
		cfg.Audio.SampleRate != 44100 && cfg.Audio.SampleRate != 48000 {
		errs = append(errs, fmt.Errorf("audio.sample_rate %d is not a supported rate", cfg.Audio.SampleRate))
	}
	if cfg.Audio.RecordSeconds > 60 {
		errs = append(errs, fmt.Errorf("audio.record_seconds %d is out of range (1-60)", cfg.Audio.RecordSeconds))
	}

	return errors.Join(errs...)
}

// validateBackendName logs a warning if name is non-empty and not found in
// the [ValidBackendNames] list for the given subsystem.
func validateBackendName(kind, field, name string) {
	if name == "" {
		return
	}
	known, ok := ValidBackendNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown backend name — may be a typo",
		"field", field,
		"name", name,
		"known", known,
	)
}
