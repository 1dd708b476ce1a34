package engine

import "sync"

// Outcome is a read-only snapshot of one backend's cumulative counters.
type Outcome struct {
	// Attempts is the number of invocations recorded for this backend.
	Attempts int `json:"attempts"`

	// Successes is the number of recorded invocations that succeeded.
	Successes int `json:"successes"`

	// SuccessRate is Successes/Attempts. Meaningless when Used is false.
	SuccessRate float64 `json:"success_rate"`

	// Used is false while Attempts is zero; such backends are reported as
	// unused rather than with a zero rate.
	Used bool `json:"used"`
}

// Stats accumulates per-backend attempt and success counters. Counters are
// append-only for the process lifetime: there is no eviction, decay, or reset.
// The tracker is advisory telemetry, not an adaptive learning loop.
//
// Stats is safe for concurrent use. The zero value is not usable; construct
// with [NewStats].
type Stats struct {
	mu       sync.Mutex
	counters map[string]*counter
}

type counter struct {
	attempts  int
	successes int
}

// NewStats returns an empty tracker. Each [Group] creates its own tracker by
// default; tests and callers that aggregate across groups may inject a shared
// one via [Config].
func NewStats() *Stats {
	return &Stats{counters: make(map[string]*counter)}
}

// Seed registers a backend name with zero counters so that [Stats.Snapshot]
// reports it as unused before its first invocation. Seeding an already-known
// name is a no-op.
func (s *Stats) Seed(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.counters[name]; !ok {
		s.counters[name] = &counter{}
	}
}

// Record increments the named backend's attempt counter, and its success
// counter iff success is true. Recording happens only after an invocation
// completes, never before.
func (s *Stats) Record(name string, success bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.counters[name]
	if !ok {
		c = &counter{}
		s.counters[name] = c
	}
	c.attempts++
	if success {
		c.successes++
	}
}

// Snapshot returns a copy of all counters keyed by backend name. It is safe
// to call concurrently with [Stats.Record]; the snapshot is consistent at the
// time of the call and never mutated afterwards.
func (s *Stats) Snapshot() map[string]Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]Outcome, len(s.counters))
	for name, c := range s.counters {
		o := Outcome{Attempts: c.attempts, Successes: c.successes}
		if c.attempts > 0 {
			o.Used = true
			o.SuccessRate = float64(c.successes) / float64(c.attempts)
		}
		out[name] = o
	}
	return out
}
