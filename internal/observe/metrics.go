// Package observe provides application-wide observability primitives for
// Voxen: OpenTelemetry metrics, tracing, structured logging, and HTTP
// middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all Voxen metrics.
const meterName = "github.com/voxenio/voxen"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms per pipeline stage ---

	// RecognitionDuration tracks speech-to-text transcription latency.
	RecognitionDuration metric.Float64Histogram

	// SynthesisDuration tracks text-to-speech synthesis latency.
	SynthesisDuration metric.Float64Histogram

	// ReplyDuration tracks answer generation latency.
	ReplyDuration metric.Float64Histogram

	// TurnDuration tracks full assistant turns, capture to playback.
	TurnDuration metric.Float64Histogram

	// --- Counters ---

	// BackendAttempts counts backend invocations. Use with attributes:
	//   attribute.String("kind", ...), attribute.String("backend", ...), attribute.String("status", ...)
	BackendAttempts metric.Int64Counter

	// Failovers counts invocations answered by a backend other than the
	// first candidate. Use with attributes:
	//   attribute.String("kind", ...), attribute.String("backend", ...)
	Failovers metric.Int64Counter

	// Turns counts completed assistant turns. Use with attribute:
	//   attribute.String("status", ...)
	Turns metric.Int64Counter

	// --- Gauges ---

	// InFlightTurns tracks assistant turns currently being processed.
	InFlightTurns metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) optimised
// for voice-pipeline latencies.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.RecognitionDuration, err = m.Float64Histogram("voxen.recognition.duration",
		metric.WithDescription("Latency of speech-to-text transcription."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.SynthesisDuration, err = m.Float64Histogram("voxen.synthesis.duration",
		metric.WithDescription("Latency of text-to-speech synthesis."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ReplyDuration, err = m.Float64Histogram("voxen.reply.duration",
		metric.WithDescription("Latency of answer generation."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TurnDuration, err = m.Float64Histogram("voxen.turn.duration",
		metric.WithDescription("End-to-end assistant turn latency, capture to playback."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.BackendAttempts, err = m.Int64Counter("voxen.backend.attempts",
		metric.WithDescription("Total backend invocations by kind, backend, and status."),
	); err != nil {
		return nil, err
	}
	if met.Failovers, err = m.Int64Counter("voxen.backend.failovers",
		metric.WithDescription("Invocations answered by a backend other than the first candidate."),
	); err != nil {
		return nil, err
	}
	if met.Turns, err = m.Int64Counter("voxen.turns",
		metric.WithDescription("Completed assistant turns by status."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.InFlightTurns, err = m.Int64UpDownCounter("voxen.turns.in_flight",
		metric.WithDescription("Assistant turns currently being processed."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("voxen.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordBackendAttempt records one backend invocation with the standard
// attribute set. status is "ok" or "error".
func (m *Metrics) RecordBackendAttempt(ctx context.Context, kind, backend, status string) {
	m.BackendAttempts.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("kind", kind),
			attribute.String("backend", backend),
			attribute.String("status", status),
		),
	)
}

// FailoverObserver returns a callback suitable for a selection group's
// failover hook: it records each failover with the stage's kind attribute.
func (m *Metrics) FailoverObserver(kind string) func(backend string) {
	return func(backend string) {
		m.RecordFailover(context.Background(), kind, backend)
	}
}

// RecordFailover records that an invocation was answered by a backend other
// than the first candidate.
func (m *Metrics) RecordFailover(ctx context.Context, kind, backend string) {
	m.Failovers.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("kind", kind),
			attribute.String("backend", backend),
		),
	)
}

// RecordTurn records a completed assistant turn and its total duration.
func (m *Metrics) RecordTurn(ctx context.Context, status string, d time.Duration) {
	m.Turns.Add(ctx, 1,
		metric.WithAttributes(attribute.String("status", status)),
	)
	m.TurnDuration.Record(ctx, d.Seconds())
}

// StageObserver returns an observer callback suitable for a selection group:
// it records the attempt counter and the stage's latency histogram for every
// backend invocation.
func (m *Metrics) StageObserver(kind string, hist metric.Float64Histogram) func(backend string, d time.Duration, err error) {
	return func(backend string, d time.Duration, err error) {
		status := "ok"
		if err != nil {
			status = "error"
		}
		ctx := context.Background()
		m.RecordBackendAttempt(ctx, kind, backend, status)
		hist.Record(ctx, d.Seconds(),
			metric.WithAttributes(
				attribute.String("backend", backend),
				attribute.String("status", status),
			),
		)
	}
}
