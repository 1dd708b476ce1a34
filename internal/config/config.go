// Package config provides the configuration schema and loader for the Voxen
// voice assistant.
package config

import (
	"time"

	"github.com/voxenio/voxen/internal/engine"
)

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// ReplyProvider selects which language-model backend answers free-form
// utterances.
type ReplyProvider string

const (
	// ReplyOllama uses a local Ollama server.
	ReplyOllama ReplyProvider = "ollama"

	// ReplyOpenAI uses an OpenAI-compatible chat completions API.
	ReplyOpenAI ReplyProvider = "openai"

	// ReplyNone disables the language model; only built-in commands answer.
	ReplyNone ReplyProvider = "none"
)

// IsValid reports whether p is a recognised reply provider.
func (p ReplyProvider) IsValid() bool {
	switch p {
	case ReplyOllama, ReplyOpenAI, ReplyNone:
		return true
	}
	return false
}

// Config is the root configuration structure for Voxen.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Recognition RecognitionConfig `yaml:"recognition"`
	Synthesis   SynthesisConfig   `yaml:"synthesis"`
	Reply       ReplyConfig       `yaml:"reply"`
	Audio       AudioConfig       `yaml:"audio"`
	UI          UIConfig          `yaml:"ui"`
}

// ServerConfig holds network and logging settings for the diagnostics
// endpoint.
type ServerConfig struct {
	// ListenAddr is the TCP address the diagnostics HTTP server listens on
	// (e.g., ":8090"). Empty disables the server.
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`
}

// RecognitionConfig configures the speech-to-text subsystem: the selection
// policy plus the individual backends.
type RecognitionConfig struct {
	// Mode selects the ranking policy. Defaults to "auto".
	Mode engine.Mode `yaml:"mode"`

	// Primary names the preferred backend in fixed mode.
	Primary string `yaml:"primary"`

	// Fallback names the backend tried right after the preferred candidates.
	Fallback string `yaml:"fallback"`

	// LanguagePreference biases selection toward backends specialised for
	// this language (e.g. "zh"). Empty applies no bias.
	LanguagePreference string `yaml:"language_preference"`

	// Timeout bounds a single backend invocation. Defaults to 30s.
	Timeout time.Duration `yaml:"timeout"`

	Whisper *WhisperConfig   `yaml:"whisper"`
	Sherpa  *SherpaASRConfig `yaml:"sherpa"`
}

// WhisperConfig configures the whisper.cpp recognition backend.
type WhisperConfig struct {
	// ModelPath is the GGML model file (e.g., ggml-base.en.bin).
	ModelPath string `yaml:"model_path"`

	// Language is the default transcription language. Empty lets the model
	// auto-detect.
	Language string `yaml:"language"`
}

// SherpaASRConfig configures the sherpa-onnx recognition backend.
type SherpaASRConfig struct {
	// ModelPath is the Paraformer .onnx model file.
	ModelPath string `yaml:"model_path"`

	// TokensPath is the tokens.txt file shipped with the model.
	TokensPath string `yaml:"tokens_path"`

	// NumThreads to run inference on. Defaults to 2.
	NumThreads int `yaml:"num_threads"`

	// Provider selects the onnxruntime execution provider. Defaults to "cpu".
	Provider string `yaml:"provider"`
}

// SynthesisConfig configures the text-to-speech subsystem.
type SynthesisConfig struct {
	// Mode selects the ranking policy. Defaults to "fixed".
	Mode engine.Mode `yaml:"mode"`

	// Primary names the preferred backend in fixed mode.
	Primary string `yaml:"primary"`

	// Fallback names the backend tried right after the preferred candidates.
	Fallback string `yaml:"fallback"`

	// Timeout bounds a single backend invocation. Defaults to 20s.
	Timeout time.Duration `yaml:"timeout"`

	Piper  *PiperConfig     `yaml:"piper"`
	Sherpa *SherpaTTSConfig `yaml:"sherpa"`
	Espeak *EspeakConfig    `yaml:"espeak"`
}

// PiperConfig configures the piper synthesis backend.
type PiperConfig struct {
	// ModelPath is the voice model file (.onnx).
	ModelPath string `yaml:"model_path"`

	// Binary overrides the piper executable name or path.
	Binary string `yaml:"binary"`
}

// SherpaTTSConfig configures the sherpa-onnx VITS synthesis backend.
type SherpaTTSConfig struct {
	ModelPath   string  `yaml:"model_path"`
	TokensPath  string  `yaml:"tokens_path"`
	LexiconPath string  `yaml:"lexicon_path"`
	DataDir     string  `yaml:"data_dir"`
	NumThreads  int     `yaml:"num_threads"`
	Provider    string  `yaml:"provider"`
	SpeakerID   int     `yaml:"speaker_id"`
	Speed       float32 `yaml:"speed"`
}

// EspeakConfig configures the espeak-ng synthesis backend.
type EspeakConfig struct {
	// Voice is the default espeak-ng voice (e.g., "en", "zh").
	Voice string `yaml:"voice"`

	// Rate is the speaking rate in words per minute.
	Rate int `yaml:"rate"`
}

// ReplyConfig configures answer generation.
type ReplyConfig struct {
	// Provider selects the language-model backend. Defaults to "ollama".
	Provider ReplyProvider `yaml:"provider"`

	// BaseURL overrides the provider's default endpoint. For ollama this is
	// the server address; for openai it may point at any compatible server.
	BaseURL string `yaml:"base_url"`

	// APIKey authenticates against the provider, when required.
	APIKey string `yaml:"api_key"`

	// Model is the model name (e.g., "llama3.2", "gpt-4o-mini").
	Model string `yaml:"model"`

	// Timeout bounds a single generation request. Defaults to 30s.
	Timeout time.Duration `yaml:"timeout"`

	// SystemPrompt overrides the default instruction steering the model
	// toward short spoken answers.
	SystemPrompt string `yaml:"system_prompt"`

	// EnableCommands toggles the built-in command table. Defaults to true;
	// set to false explicitly to route everything to the model.
	EnableCommands *bool `yaml:"enable_commands"`
}

// AudioConfig holds capture and playback settings.
type AudioConfig struct {
	// SampleRate for microphone capture in Hz. Defaults to 16000.
	SampleRate int `yaml:"sample_rate"`

	// RecordSeconds bounds a single utterance recording. Defaults to 10.
	RecordSeconds int `yaml:"record_seconds"`
}

// UIConfig holds interaction settings.
type UIConfig struct {
	// Hotkey is the global push-to-talk key (e.g., "space", "f9"). Empty
	// falls back to pressing Enter on stdin.
	Hotkey string `yaml:"hotkey"`

	// Notifications toggles desktop notifications for state changes.
	Notifications bool `yaml:"notifications"`
}

// ApplyDefaults fills unset fields with their documented defaults.
func (c *Config) ApplyDefaults() {
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = LogInfo
	}
	if c.Recognition.Mode == "" {
		c.Recognition.Mode = engine.ModeAuto
	}
	if c.Recognition.Timeout <= 0 {
		c.Recognition.Timeout = 30 * time.Second
	}
	if c.Synthesis.Mode == "" {
		c.Synthesis.Mode = engine.ModeFixed
	}
	if c.Synthesis.Timeout <= 0 {
		c.Synthesis.Timeout = 20 * time.Second
	}
	if c.Reply.Provider == "" {
		c.Reply.Provider = ReplyOllama
	}
	if c.Reply.Timeout <= 0 {
		c.Reply.Timeout = 30 * time.Second
	}
	if c.Audio.SampleRate <= 0 {
		c.Audio.SampleRate = 16000
	}
	if c.Audio.RecordSeconds <= 0 {
		c.Audio.RecordSeconds = 10
	}
}

// CommandsEnabled reports whether the built-in command table should answer
// before the language model.
func (c *ReplyConfig) CommandsEnabled() bool {
	return c.EnableCommands == nil || *c.EnableCommands
}
