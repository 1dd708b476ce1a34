package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

var errTest = errors.New("test failure")

// testBackend is a configurable in-package test double.
type testBackend struct {
	meta Metadata

	mu      sync.Mutex
	ready   bool
	err     error
	out     string
	delay   time.Duration
	invokes int
}

func newTestBackend(name string) *testBackend {
	return &testBackend{
		meta:  Metadata{Name: name, Kind: KindRecognition},
		ready: true,
		out:   name + "-result",
	}
}

func (b *testBackend) Ready() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ready
}

func (b *testBackend) Invoke(ctx context.Context, _ string) (string, error) {
	b.mu.Lock()
	b.invokes++
	delay, err, out := b.delay, b.err, b.out
	b.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if err != nil {
		return "", err
	}
	return out, nil
}

func (b *testBackend) Describe() Metadata { return b.meta }

func (b *testBackend) setReady(v bool) {
	b.mu.Lock()
	b.ready = v
	b.mu.Unlock()
}

func (b *testBackend) invokeCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.invokes
}

func newTestGroup(cfg Config, backends ...*testBackend) *Group[string, string] {
	if cfg.Kind == "" {
		cfg.Kind = KindRecognition
	}
	g := New[string, string](cfg)
	for _, b := range backends {
		if err := g.Register(b); err != nil {
			panic(err)
		}
	}
	return g
}

func TestGroup_Register_DuplicateName(t *testing.T) {
	g := newTestGroup(Config{}, newTestBackend("a"))
	if err := g.Register(newTestBackend("a")); err == nil {
		t.Fatal("expected error registering duplicate backend name")
	}
}

func TestPerform_FirstSuccessStopsCascade(t *testing.T) {
	a := newTestBackend("a")
	b := newTestBackend("b")
	g := newTestGroup(Config{}, a, b)

	out, err := g.Perform(context.Background(), "req", Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "a-result" {
		t.Fatalf("out = %q, want a-result", out)
	}
	if a.invokeCount() != 1 {
		t.Fatalf("a invoked %d times, want 1", a.invokeCount())
	}
	if b.invokeCount() != 0 {
		t.Fatalf("b invoked %d times, want 0 (later candidate after success)", b.invokeCount())
	}
	if g.Current() != "a" {
		t.Fatalf("current = %q, want a", g.Current())
	}
}

func TestPerform_FailoverRecordsEveryAttempt(t *testing.T) {
	// Three failing backends and a succeeding one at the end: the call must
	// succeed with exactly four attempts and one success recorded.
	a := newTestBackend("a")
	a.err = errTest
	b := newTestBackend("b")
	b.err = errTest
	c := newTestBackend("c")
	c.err = errTest
	d := newTestBackend("d")

	g := newTestGroup(Config{}, a, b, c, d)

	out, err := g.Perform(context.Background(), "req", Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "d-result" {
		t.Fatalf("out = %q, want d-result", out)
	}

	snap := g.Stats().Snapshot()
	total, successes := 0, 0
	for _, o := range snap {
		total += o.Attempts
		successes += o.Successes
	}
	if total != 4 {
		t.Fatalf("total attempts = %d, want 4", total)
	}
	if successes != 1 {
		t.Fatalf("total successes = %d, want 1", successes)
	}
	if snap["d"].Successes != 1 {
		t.Fatalf("success not attributed to d: %+v", snap["d"])
	}
	if g.Current() != "d" {
		t.Fatalf("current = %q, want d", g.Current())
	}
}

func TestPerform_AllFailReturnsExhausted(t *testing.T) {
	a := newTestBackend("a")
	a.err = errTest
	b := newTestBackend("b")
	b.err = errTest
	g := newTestGroup(Config{}, a, b)

	_, err := g.Perform(context.Background(), "req", Options{})
	if !errors.Is(err, ErrAllBackendsExhausted) {
		t.Fatalf("err = %v, want ErrAllBackendsExhausted", err)
	}

	var ex *ExhaustedError
	if !errors.As(err, &ex) {
		t.Fatalf("err = %T, want *ExhaustedError", err)
	}
	if len(ex.Failures) != 2 {
		t.Fatalf("failures = %d, want 2", len(ex.Failures))
	}
	if ex.Failures[0].Backend != "a" || ex.Failures[1].Backend != "b" {
		t.Fatalf("failure order = %q,%q, want a,b", ex.Failures[0].Backend, ex.Failures[1].Backend)
	}
	for i, f := range ex.Failures {
		if !errors.Is(f.Err, ErrInvocationFailure) || !errors.Is(f.Err, errTest) {
			t.Fatalf("failure[%d] err = %v, want ErrInvocationFailure wrapping errTest", i, f.Err)
		}
	}

	snap := g.Stats().Snapshot()
	for _, name := range []string{"a", "b"} {
		if snap[name].Attempts != 1 {
			t.Fatalf("%s attempts = %d, want 1", name, snap[name].Attempts)
		}
		if snap[name].Successes != 0 {
			t.Fatalf("%s successes = %d, want 0", name, snap[name].Successes)
		}
	}
	if g.Current() != "b" {
		t.Fatalf("current = %q, want b (last tried)", g.Current())
	}
}

func TestPerform_NoBackendAvailable(t *testing.T) {
	t.Run("none registered", func(t *testing.T) {
		g := newTestGroup(Config{})
		_, err := g.Perform(context.Background(), "req", Options{})
		if !errors.Is(err, ErrNoBackendAvailable) {
			t.Fatalf("err = %v, want ErrNoBackendAvailable", err)
		}
	})

	t.Run("none ready", func(t *testing.T) {
		a := newTestBackend("a")
		a.setReady(false)
		g := newTestGroup(Config{}, a)
		_, err := g.Perform(context.Background(), "req", Options{})
		if !errors.Is(err, ErrNoBackendAvailable) {
			t.Fatalf("err = %v, want ErrNoBackendAvailable", err)
		}
		if a.invokeCount() != 0 {
			t.Fatalf("a invoked %d times, want 0", a.invokeCount())
		}
	})
}

// flakyBackend reports ready exactly once (during selection) and not-ready on
// every later check, simulating a backend that loses its resources between
// selection and invocation.
type flakyBackend struct {
	*testBackend
	readyOnce sync.Once
	wasReady  bool
}

func (b *flakyBackend) Ready() bool {
	b.readyOnce.Do(func() { b.wasReady = true })
	if b.wasReady {
		b.wasReady = false
		return true
	}
	return false
}

func TestPerform_ReadinessRecheckedBeforeInvocation(t *testing.T) {
	// a is ready at selection time but flips to not-ready before invocation;
	// the orchestrator must skip it without invoking and use b.
	a := &flakyBackend{testBackend: newTestBackend("a")}
	b := newTestBackend("b")
	g := newTestGroup(Config{})
	if err := g.Register(a); err != nil {
		t.Fatal(err)
	}
	if err := g.Register(b); err != nil {
		t.Fatal(err)
	}

	out, err := g.Perform(context.Background(), "req", Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "b-result" {
		t.Fatalf("out = %q, want b-result", out)
	}
	if a.invokeCount() != 0 {
		t.Fatalf("a invoked %d times, want 0 (skipped by re-check)", a.invokeCount())
	}
	// The skipped candidate is not invoked and therefore not counted.
	if snap := g.Stats().Snapshot(); snap["a"].Attempts != 0 {
		t.Fatalf("a attempts = %d, want 0", snap["a"].Attempts)
	}
}

func TestPerform_SkippedCandidateNeverBecomesCurrent(t *testing.T) {
	// a is invoked and fails; b loses readiness between selection and
	// invocation and is skipped. Current names the last invoked backend.
	a := newTestBackend("a")
	a.err = errTest
	b := &flakyBackend{testBackend: newTestBackend("b")}
	g := newTestGroup(Config{})
	if err := g.Register(a); err != nil {
		t.Fatal(err)
	}
	if err := g.Register(b); err != nil {
		t.Fatal(err)
	}

	_, err := g.Perform(context.Background(), "req", Options{})
	if !errors.Is(err, ErrAllBackendsExhausted) {
		t.Fatalf("err = %v, want ErrAllBackendsExhausted", err)
	}
	if g.Current() != "a" {
		t.Fatalf("current = %q, want a (last invoked)", g.Current())
	}
}

func TestPerform_TimeoutConvertsToFailureAndProceeds(t *testing.T) {
	slow := newTestBackend("slow")
	slow.delay = 500 * time.Millisecond
	fast := newTestBackend("fast")

	g := newTestGroup(Config{Timeout: 20 * time.Millisecond}, slow, fast)

	out, err := g.Perform(context.Background(), "req", Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "fast-result" {
		t.Fatalf("out = %q, want fast-result", out)
	}

	snap := g.Stats().Snapshot()
	if snap["slow"].Attempts != 1 || snap["slow"].Successes != 0 {
		t.Fatalf("slow outcome = %+v, want 1 failed attempt", snap["slow"])
	}
	if snap["fast"].Successes != 1 {
		t.Fatalf("fast outcome = %+v, want 1 success", snap["fast"])
	}
}

func TestPerform_AllTimeoutsReportedInExhausted(t *testing.T) {
	slow := newTestBackend("slow")
	slow.delay = 500 * time.Millisecond

	g := newTestGroup(Config{Timeout: 20 * time.Millisecond}, slow)

	_, err := g.Perform(context.Background(), "req", Options{})
	var ex *ExhaustedError
	if !errors.As(err, &ex) {
		t.Fatalf("err = %v, want *ExhaustedError", err)
	}
	if len(ex.Failures) != 1 || !errors.Is(ex.Failures[0].Err, ErrTimeout) {
		t.Fatalf("failures = %+v, want one ErrTimeout", ex.Failures)
	}
}

func TestPerform_CallerCancellationStopsCascade(t *testing.T) {
	a := newTestBackend("a")
	a.delay = 200 * time.Millisecond
	b := newTestBackend("b")

	g := newTestGroup(Config{Timeout: time.Second}, a, b)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := g.Perform(ctx, "req", Options{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if b.invokeCount() != 0 {
		t.Fatalf("b invoked %d times after cancellation, want 0", b.invokeCount())
	}
}

func TestSwitch(t *testing.T) {
	a := newTestBackend("a")
	b := newTestBackend("b")
	notReady := newTestBackend("c")
	notReady.setReady(false)
	g := newTestGroup(Config{Primary: "a"}, a, b, notReady)

	if !g.Switch("b") {
		t.Fatal("Switch(b) = false, want true")
	}
	if got := g.Info().Primary; got != "b" {
		t.Fatalf("primary = %q, want b", got)
	}
	if got := g.Info().Mode; got != ModeFixed {
		t.Fatalf("mode = %q, want fixed", got)
	}

	if g.Switch("c") {
		t.Fatal("Switch(c) = true for not-ready backend, want false")
	}
	if g.Switch("unknown") {
		t.Fatal("Switch(unknown) = true, want false")
	}
	if got := g.Info().Primary; got != "b" {
		t.Fatalf("primary changed by failed switch: %q", got)
	}
}

func TestPerform_FallbackScenario(t *testing.T) {
	// A is ready but fails, B is ready and succeeds; fallback=B,
	// preference "zh" with no language-specialised backend. Selection must
	// keep static order [A, B], the call must return B's result, and the
	// tracker must show A 1/0 and B 1/1.
	a := newTestBackend("A")
	a.err = errTest
	b := newTestBackend("B")

	g := newTestGroup(Config{Fallback: "B", Preference: "zh"}, a, b)

	candidates := g.Select("", "")
	if len(candidates) != 2 ||
		candidates[0].Describe().Name != "A" ||
		candidates[1].Describe().Name != "B" {
		names := make([]string, len(candidates))
		for i, c := range candidates {
			names[i] = c.Describe().Name
		}
		t.Fatalf("candidates = %v, want [A B]", names)
	}

	out, err := g.Perform(context.Background(), "req", Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "B-result" {
		t.Fatalf("out = %q, want B-result", out)
	}

	snap := g.Stats().Snapshot()
	if snap["A"].Attempts != 1 || snap["A"].Successes != 0 {
		t.Fatalf("A outcome = %+v, want 1 attempt / 0 successes", snap["A"])
	}
	if snap["B"].Attempts != 1 || snap["B"].Successes != 1 {
		t.Fatalf("B outcome = %+v, want 1 attempt / 1 success", snap["B"])
	}
}

func TestPerform_ObserverSeesEveryInvocation(t *testing.T) {
	a := newTestBackend("a")
	a.err = errTest
	b := newTestBackend("b")

	type obs struct {
		backend string
		failed  bool
	}
	var seen []obs
	g := newTestGroup(Config{
		Observer: func(backend string, _ time.Duration, err error) {
			seen = append(seen, obs{backend: backend, failed: err != nil})
		},
	}, a, b)

	if _, err := g.Perform(context.Background(), "req", Options{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []obs{{"a", true}, {"b", false}}
	if len(seen) != len(want) {
		t.Fatalf("observed %d invocations, want %d", len(seen), len(want))
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("observation[%d] = %+v, want %+v", i, seen[i], want[i])
		}
	}
}

func TestPerform_FailoverHookFiresOnlyAfterFailure(t *testing.T) {
	a := newTestBackend("a")
	a.err = errTest
	b := newTestBackend("b")

	var fired []string
	g := newTestGroup(Config{
		Failover: func(backend string) { fired = append(fired, backend) },
	}, a, b)

	if _, err := g.Perform(context.Background(), "req", Options{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fired) != 1 || fired[0] != "b" {
		t.Fatalf("failover hook fired %v, want [b]", fired)
	}

	a.mu.Lock()
	a.err = nil
	a.mu.Unlock()
	fired = nil
	if _, err := g.Perform(context.Background(), "req", Options{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fired) != 0 {
		t.Fatalf("failover hook fired %v on first-candidate success, want none", fired)
	}
}

func TestInfo(t *testing.T) {
	a := newTestBackend("a")
	b := newTestBackend("b")
	b.setReady(false)
	g := newTestGroup(Config{Kind: KindSynthesis, Primary: "a", Fallback: "b"}, a, b)

	info := g.Info()
	if info.Kind != KindSynthesis {
		t.Fatalf("kind = %q, want synthesis", info.Kind)
	}
	if len(info.Backends) != 2 {
		t.Fatalf("backends = %d, want 2", len(info.Backends))
	}
	if !info.Backends[0].Ready || info.Backends[1].Ready {
		t.Fatalf("readiness = %v/%v, want true/false",
			info.Backends[0].Ready, info.Backends[1].Ready)
	}
	if g.ReadyCount() != 1 {
		t.Fatalf("ReadyCount = %d, want 1", g.ReadyCount())
	}
}
