package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Config holds the selection policy and timeout settings for a [Group].
type Config struct {
	// Kind is the capability the group serves. Used in errors and logs.
	Kind Kind

	// Mode is the ranking policy. Defaults to [ModeAuto].
	Mode Mode

	// Primary is the configured primary backend name. In [ModeFixed] it is
	// tried first; [Group.Switch] replaces it at runtime.
	Primary string

	// Fallback is the configured fallback backend name, appended to every
	// candidate list that does not already contain it.
	Fallback string

	// Preference is the default language/content preference applied when a
	// request does not carry its own.
	Preference string

	// Timeout bounds each candidate invocation. Zero disables the bound.
	Timeout time.Duration

	// Stats is the outcome tracker to record into. When nil the group
	// creates its own. Injecting a tracker keeps tests isolated and lets
	// callers aggregate across groups.
	Stats *Stats

	// Observer, when non-nil, is called after every candidate invocation
	// with the backend name, the invocation duration, and its error (nil on
	// success). Used to feed metrics without coupling the engine to the
	// telemetry stack.
	Observer func(backend string, d time.Duration, err error)

	// Failover, when non-nil, is called when a candidate succeeds after at
	// least one earlier candidate failed within the same Perform call, with
	// the name of the backend that answered.
	Failover func(backend string)
}

// Options carries the per-request selection inputs of [Group.Perform].
type Options struct {
	// Override names a specific backend to use. Treated as a hint: when the
	// named backend is unknown or not ready, automatic selection applies.
	Override string

	// Preference is the language/content preference for this request. Empty
	// falls back to the group default.
	Preference string
}

// Info is a diagnostic snapshot of a [Group].
type Info struct {
	Kind       Kind            `json:"kind"`
	Mode       Mode            `json:"mode"`
	Primary    string          `json:"primary"`
	Fallback   string          `json:"fallback"`
	Preference string          `json:"preference,omitempty"`
	Current    string          `json:"current,omitempty"`
	Backends   []BackendStatus `json:"backends"`
}

// BackendStatus pairs a backend's metadata with its readiness at snapshot
// time.
type BackendStatus struct {
	Metadata
	Ready bool `json:"ready"`
}

// Group is the capability facade: it wires the selection policy, the failover
// loop, and the outcome tracker behind a single Perform operation. One Group
// instance exists per capability (recognition, synthesis).
//
// Backends are registered once at startup and live for the process lifetime;
// candidate lists are computed fresh per call and never shared. Group is safe
// for concurrent use.
type Group[Req, Out any] struct {
	kind     Kind
	timeout  time.Duration
	stats    *Stats
	observer func(backend string, d time.Duration, err error)
	failover func(backend string)

	mu         sync.RWMutex
	backends   []Backend[Req, Out] // registration order
	mode       Mode
	primary    string
	fallback   string
	preference string
	current    string
}

// New creates an empty [Group] with the given configuration. Backends are
// added via [Group.Register].
func New[Req, Out any](cfg Config) *Group[Req, Out] {
	if cfg.Mode == "" {
		cfg.Mode = ModeAuto
	}
	if cfg.Stats == nil {
		cfg.Stats = NewStats()
	}
	return &Group[Req, Out]{
		kind:       cfg.Kind,
		timeout:    cfg.Timeout,
		stats:      cfg.Stats,
		observer:   cfg.Observer,
		failover:   cfg.Failover,
		mode:       cfg.Mode,
		primary:    cfg.Primary,
		fallback:   cfg.Fallback,
		preference: cfg.Preference,
	}
}

// Register appends a backend in registration order and seeds its outcome
// counters. Registering a second backend with the same name is an error.
// A backend may be registered while not ready; it simply never appears in a
// candidate list until Ready reports true.
func (g *Group[Req, Out]) Register(b Backend[Req, Out]) error {
	name := b.Describe().Name
	if name == "" {
		return fmt.Errorf("%s: backend has empty name", g.kind)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	for _, existing := range g.backends {
		if existing.Describe().Name == name {
			return fmt.Errorf("%s: backend %q already registered", g.kind, name)
		}
	}
	g.backends = append(g.backends, b)
	g.stats.Seed(name)
	return nil
}

// Perform selects candidates for the request and invokes them in order until
// one succeeds.
//
// It returns [ErrNoBackendAvailable] without invoking anything when no
// registered backend is ready, and an [*ExhaustedError] (matching
// [ErrAllBackendsExhausted]) when every candidate failed. Individual
// candidate failures are logged, counted, and recovered here; they never
// propagate on their own.
func (g *Group[Req, Out]) Perform(ctx context.Context, req Req, opts Options) (Out, error) {
	var zero Out

	candidates := g.Select(opts.Override, opts.Preference)
	if len(candidates) == 0 {
		return zero, fmt.Errorf("%s: %w", g.kind, ErrNoBackendAvailable)
	}

	failures := make([]Failure, 0, len(candidates))
	for _, b := range candidates {
		name := b.Describe().Name

		if err := ctx.Err(); err != nil {
			// Caller is gone; stop without trying further candidates.
			return zero, fmt.Errorf("%s: %w", g.kind, err)
		}

		// Readiness may have changed between selection and invocation.
		if !b.Ready() {
			slog.Debug("skipping backend (no longer ready)",
				"kind", g.kind, "backend", name)
			// Not invoked, so it does not become the current backend.
			failures = append(failures, Failure{Backend: name, Err: ErrBackendUnavailable})
			continue
		}

		start := time.Now()
		out, err := g.invokeOne(ctx, b, req)
		elapsed := time.Since(start)

		g.stats.Record(name, err == nil)
		if g.observer != nil {
			g.observer(name, elapsed, err)
		}
		g.setCurrent(name)

		if err == nil {
			if len(failures) > 0 && g.failover != nil {
				g.failover(name)
			}
			return out, nil
		}
		if errors.Is(err, context.Canceled) {
			return zero, fmt.Errorf("%s: %w", g.kind, err)
		}

		slog.Warn("backend failed, trying next",
			"kind", g.kind, "backend", name, "error", err)
		if !errors.Is(err, ErrTimeout) {
			err = fmt.Errorf("%w: %w", ErrInvocationFailure, err)
		}
		failures = append(failures, Failure{Backend: name, Err: err})
	}

	return zero, &ExhaustedError{Kind: g.kind, Failures: failures}
}

// invokeOne runs a single candidate, bounding it with the per-backend timeout
// when one is configured. On timeout the in-flight invocation is abandoned:
// its eventual result is discarded and never recorded twice.
func (g *Group[Req, Out]) invokeOne(ctx context.Context, b Backend[Req, Out], req Req) (Out, error) {
	var zero Out
	if g.timeout <= 0 {
		return b.Invoke(ctx, req)
	}

	ictx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	type outcome struct {
		out Out
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		out, err := b.Invoke(ictx, req)
		done <- outcome{out: out, err: err}
	}()

	select {
	case o := <-done:
		if o.err != nil && errors.Is(o.err, context.DeadlineExceeded) {
			return zero, ErrTimeout
		}
		return o.out, o.err
	case <-ictx.Done():
		if errors.Is(ictx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return zero, ErrTimeout
		}
		return zero, context.Canceled
	}
}

// Switch validates that the named backend is registered and ready, and if so
// makes it the new fixed primary. Returns false (leaving the group unchanged)
// otherwise; it never returns an error or panics.
func (g *Group[Req, Out]) Switch(name string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, b := range g.backends {
		if b.Describe().Name == name {
			if !b.Ready() {
				slog.Warn("cannot switch to backend (not ready)",
					"kind", g.kind, "backend", name)
				return false
			}
			g.primary = name
			g.mode = ModeFixed
			slog.Info("switched primary backend",
				"kind", g.kind, "backend", name)
			return true
		}
	}
	slog.Warn("cannot switch to unknown backend",
		"kind", g.kind, "backend", name)
	return false
}

// Current returns the name of the backend used by the most recent completed
// call: the one that produced the success, or the last one tried when all
// failed. Empty before the first call.
func (g *Group[Req, Out]) Current() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.current
}

// Stats returns the group's outcome tracker.
func (g *Group[Req, Out]) Stats() *Stats {
	return g.stats
}

// Info returns a diagnostic snapshot: the active policy, the current backend,
// and the metadata plus readiness of every registered backend.
func (g *Group[Req, Out]) Info() Info {
	g.mu.RLock()
	defer g.mu.RUnlock()

	info := Info{
		Kind:       g.kind,
		Mode:       g.mode,
		Primary:    g.primary,
		Fallback:   g.fallback,
		Preference: g.preference,
		Current:    g.current,
		Backends:   make([]BackendStatus, 0, len(g.backends)),
	}
	for _, b := range g.backends {
		info.Backends = append(info.Backends, BackendStatus{
			Metadata: b.Describe(),
			Ready:    b.Ready(),
		})
	}
	return info
}

// ReadyCount reports how many registered backends are currently ready.
// Used by readiness probes.
func (g *Group[Req, Out]) ReadyCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n := 0
	for _, b := range g.backends {
		if b.Ready() {
			n++
		}
	}
	return n
}

func (g *Group[Req, Out]) setCurrent(name string) {
	g.mu.Lock()
	g.current = name
	g.mu.Unlock()
}
