// Package engine implements backend selection and failover for the voice
// pipeline capabilities.
//
// The central type is [Group], a capability facade that owns a ranked set of
// interchangeable [Backend] implementations. Each call selects an ordered
// candidate list according to the configured [Mode] and language preference,
// then walks that list until one backend succeeds or all are exhausted.
// Per-backend outcome counters are accumulated in a [Stats] tracker for
// diagnostics.
//
// The same engine drives both the speech-recognition and speech-synthesis
// subsystems; the capability-specific request and result types are supplied
// as type parameters.
//
// All types are safe for concurrent use.
package engine

import "context"

// Kind identifies the capability a backend implements.
type Kind string

const (
	// KindRecognition marks speech-to-text backends.
	KindRecognition Kind = "recognition"

	// KindSynthesis marks text-to-speech backends.
	KindSynthesis Kind = "synthesis"
)

// Mode selects the backend-ranking policy of a [Group].
type Mode string

const (
	// ModeAuto ranks backends by language preference, then fallback, then
	// registration order.
	ModeAuto Mode = "auto"

	// ModeFixed tries the configured primary backend first and proceeds as
	// [ModeAuto] when it is unavailable.
	ModeFixed Mode = "fixed"
)

// IsValid reports whether m is a recognised mode.
func (m Mode) IsValid() bool {
	return m == ModeAuto || m == ModeFixed
}

// Metadata describes a backend for selection and diagnostics. Only Name and
// Language influence selection; the remaining fields are informational.
type Metadata struct {
	// Name is the stable identifier used in configuration, overrides, and
	// outcome statistics. Must be unique within a Group.
	Name string `json:"name"`

	// Kind is the capability this backend implements.
	Kind Kind `json:"kind"`

	// Language is the language the backend is specialised for (e.g. "zh"),
	// or empty for general-purpose backends.
	Language string `json:"language,omitempty"`

	// Description is a human-readable summary for diagnostics.
	Description string `json:"description,omitempty"`

	// Resources notes model files, devices, or external binaries the backend
	// depends on. Never used for selection.
	Resources string `json:"resources,omitempty"`
}

// Backend is the uniform adapter interface every concrete engine implements.
//
// Req and Out are the capability-specific request and result types (audio in,
// text out for recognition; text in, audio out for synthesis).
//
// Implementations must be safe for concurrent use. Ready may be called at any
// time, including while an Invoke is in flight, and should be cheap: it is
// consulted during selection and re-checked immediately before each
// invocation.
type Backend[Req, Out any] interface {
	// Ready reports whether the backend can currently be invoked (model
	// loaded, binary present, device available).
	Ready() bool

	// Invoke performs the capability operation. It must honour ctx
	// cancellation where the underlying engine allows it.
	Invoke(ctx context.Context, req Req) (Out, error)

	// Describe returns the backend's static metadata.
	Describe() Metadata
}
