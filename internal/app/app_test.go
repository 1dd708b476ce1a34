package app_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/voxenio/voxen/internal/app"
	"github.com/voxenio/voxen/internal/asr"
	"github.com/voxenio/voxen/internal/config"
	"github.com/voxenio/voxen/internal/engine"
	"github.com/voxenio/voxen/internal/reply"
	"github.com/voxenio/voxen/internal/tts"
)

type fakeRecognizer struct {
	mu         sync.Mutex
	transcript string
	err        error
	calls      []asr.Request
	info       engine.Info
	stats      *engine.Stats
	switched   []string
	switchOK   bool
	ready      bool
}

func newFakeRecognizer(transcript string) *fakeRecognizer {
	return &fakeRecognizer{
		transcript: transcript,
		info:       engine.Info{Kind: engine.KindRecognition, Primary: "whisper", Current: "whisper"},
		stats:      engine.NewStats(),
		switchOK:   true,
		ready:      true,
	}
}

func (f *fakeRecognizer) Transcribe(_ context.Context, req asr.Request) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req)
	return f.transcript, f.err
}

func (f *fakeRecognizer) Ready() bool { return f.ready }

func (f *fakeRecognizer) Switch(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.switched = append(f.switched, name)
	return f.switchOK
}

func (f *fakeRecognizer) Info() engine.Info { return f.info }

func (f *fakeRecognizer) Stats() *engine.Stats { return f.stats }

func (f *fakeRecognizer) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeSynthesizer struct {
	result   tts.Result
	err      error
	calls    []tts.Request
	info     engine.Info
	stats    *engine.Stats
	switched []string
	switchOK bool
}

func newFakeSynthesizer(res tts.Result) *fakeSynthesizer {
	return &fakeSynthesizer{
		result:   res,
		info:     engine.Info{Kind: engine.KindSynthesis, Primary: "piper", Current: "piper"},
		stats:    engine.NewStats(),
		switchOK: true,
	}
}

func (f *fakeSynthesizer) Synthesize(_ context.Context, req tts.Request) (tts.Result, error) {
	f.calls = append(f.calls, req)
	return f.result, f.err
}

func (f *fakeSynthesizer) Ready() bool { return true }

func (f *fakeSynthesizer) Switch(name string) bool {
	f.switched = append(f.switched, name)
	return f.switchOK
}

func (f *fakeSynthesizer) Info() engine.Info { return f.info }

func (f *fakeSynthesizer) Stats() *engine.Stats { return f.stats }

type fakeResponder struct {
	answer string
	err    error
	calls  []string
}

func (f *fakeResponder) Generate(_ context.Context, utterance string) (string, error) {
	f.calls = append(f.calls, utterance)
	return f.answer, f.err
}

func (f *fakeResponder) Ready(context.Context) error { return nil }

type fakeRecorder struct {
	mu      sync.Mutex
	samples []int16
	err     error
	calls   int
}

func (f *fakeRecorder) Record(context.Context, time.Duration) ([]int16, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.samples, f.err
}

func (f *fakeRecorder) SampleRate() int { return 16000 }

func (f *fakeRecorder) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type playCall struct {
	pcm        []byte
	sampleRate int
}

type fakePlayer struct {
	err   error
	calls []playCall
}

func (f *fakePlayer) Play(_ context.Context, pcm []byte, sampleRate int) error {
	f.calls = append(f.calls, playCall{pcm: pcm, sampleRate: sampleRate})
	return f.err
}

type fakeTrigger struct {
	ch     chan struct{}
	closed bool
}

func newFakeTrigger() *fakeTrigger {
	return &fakeTrigger{ch: make(chan struct{})}
}

func (f *fakeTrigger) Events() <-chan struct{} { return f.ch }

func (f *fakeTrigger) Close() error {
	f.closed = true
	return nil
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.ApplyDefaults()
	return cfg
}

func testDeps(rec *fakeRecognizer, synth *fakeSynthesizer, resp *fakeResponder, recorder *fakeRecorder, player *fakePlayer) app.Deps {
	d := app.Deps{
		Recorder: recorder,
		Trigger:  newFakeTrigger(),
	}
	if rec != nil {
		d.Recognizer = rec
	}
	if synth != nil {
		d.Synthesizer = synth
	}
	if resp != nil {
		d.Responder = resp
	}
	if player != nil {
		d.Player = player
	}
	return d
}

func TestNew_RequiresCoreDependencies(t *testing.T) {
	cfg := testConfig()
	rec := newFakeRecognizer("hi")
	recorder := &fakeRecorder{samples: []int16{1}}

	cases := []struct {
		name string
		deps app.Deps
	}{
		{"no recognizer", app.Deps{Recorder: recorder, Trigger: newFakeTrigger()}},
		{"no recorder", app.Deps{Recognizer: rec, Trigger: newFakeTrigger()}},
		{"no trigger", app.Deps{Recognizer: rec, Recorder: recorder}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := app.New(cfg, tc.deps); err == nil {
				t.Fatal("New() error = nil, want error")
			}
		})
	}
}

func TestTurn_HappyPath(t *testing.T) {
	rec := newFakeRecognizer("what time is it")
	synth := newFakeSynthesizer(tts.Result{PCM: []byte{1, 2, 3, 4}, SampleRate: 22050})
	resp := &fakeResponder{answer: "It is noon."}
	recorder := &fakeRecorder{samples: []int16{10, 20, 30}}
	player := &fakePlayer{}

	var notes []string
	a, err := app.New(testConfig(), testDeps(rec, synth, resp, recorder, player),
		app.WithNotifier(func(_, body string) { notes = append(notes, body) }))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if err := a.Turn(context.Background()); err != nil {
		t.Fatalf("Turn() error = %v", err)
	}

	if len(rec.calls) != 1 {
		t.Fatalf("recognizer calls = %d, want 1", len(rec.calls))
	}
	if rec.calls[0].SampleRate != 16000 {
		t.Errorf("transcribe sample rate = %d, want 16000", rec.calls[0].SampleRate)
	}
	if len(resp.calls) != 1 || resp.calls[0] != "what time is it" {
		t.Errorf("responder calls = %v, want [what time is it]", resp.calls)
	}
	if len(synth.calls) != 1 || synth.calls[0].Text != "It is noon." {
		t.Errorf("synthesizer calls = %v, want the answer text", synth.calls)
	}
	if len(player.calls) != 1 || player.calls[0].sampleRate != 22050 {
		t.Fatalf("player calls = %v, want one call at 22050 Hz", player.calls)
	}

	wantNotes := []string{"Listening...", "It is noon."}
	if len(notes) != len(wantNotes) {
		t.Fatalf("notifications = %v, want %v", notes, wantNotes)
	}
	for i := range wantNotes {
		if notes[i] != wantNotes[i] {
			t.Errorf("notification[%d] = %q, want %q", i, notes[i], wantNotes[i])
		}
	}
}

func TestTurn_DirectResultSkipsPlayer(t *testing.T) {
	rec := newFakeRecognizer("hello")
	synth := newFakeSynthesizer(tts.Result{Direct: true})
	resp := &fakeResponder{answer: "Hi there."}
	recorder := &fakeRecorder{samples: []int16{1}}
	player := &fakePlayer{err: errors.New("should not be reached")}

	a, err := app.New(testConfig(), testDeps(rec, synth, resp, recorder, player),
		app.WithNotifier(func(string, string) {}))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if err := a.Turn(context.Background()); err != nil {
		t.Fatalf("Turn() error = %v", err)
	}
	if len(player.calls) != 0 {
		t.Errorf("player calls = %d, want 0 for a direct result", len(player.calls))
	}
}

func TestTurn_EmptyTranscriptStopsEarly(t *testing.T) {
	rec := newFakeRecognizer("   ")
	resp := &fakeResponder{answer: "unused"}
	recorder := &fakeRecorder{samples: []int16{1}}

	a, err := app.New(testConfig(), testDeps(rec, nil, resp, recorder, nil),
		app.WithNotifier(func(string, string) {}))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if err := a.Turn(context.Background()); err != nil {
		t.Fatalf("Turn() error = %v", err)
	}
	if len(resp.calls) != 0 {
		t.Errorf("responder calls = %d, want 0 for an empty transcript", len(resp.calls))
	}
}

func TestTurn_NoResponseIsNotAnError(t *testing.T) {
	rec := newFakeRecognizer("mumble")
	resp := &fakeResponder{err: reply.ErrNoResponse}
	recorder := &fakeRecorder{samples: []int16{1}}
	synth := newFakeSynthesizer(tts.Result{})

	a, err := app.New(testConfig(), testDeps(rec, synth, resp, recorder, nil),
		app.WithNotifier(func(string, string) {}))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if err := a.Turn(context.Background()); err != nil {
		t.Fatalf("Turn() error = %v, want nil", err)
	}
	if len(synth.calls) != 0 {
		t.Errorf("synthesizer calls = %d, want 0 when there is no answer", len(synth.calls))
	}
}

func TestTurn_TranscribeErrorPropagates(t *testing.T) {
	rec := newFakeRecognizer("")
	rec.err = errors.New("all backends exhausted")
	recorder := &fakeRecorder{samples: []int16{1}}

	a, err := app.New(testConfig(), testDeps(rec, nil, nil, recorder, nil),
		app.WithNotifier(func(string, string) {}))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if err := a.Turn(context.Background()); err == nil {
		t.Fatal("Turn() error = nil, want transcription error")
	}
}

func TestRun_LoopSurvivesTurnErrors(t *testing.T) {
	rec := newFakeRecognizer("ignored")
	recorder := &fakeRecorder{err: errors.New("device gone")}
	trigger := newFakeTrigger()

	deps := app.Deps{Recognizer: rec, Recorder: recorder, Trigger: trigger}
	a, err := app.New(testConfig(), deps, app.WithNotifier(func(string, string) {}))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- a.Run(ctx) }()

	trigger.ch <- struct{}{}
	trigger.ch <- struct{}{}
	for i := 0; recorder.callCount() < 2 && i < 100; i++ {
		time.Sleep(10 * time.Millisecond)
	}
	cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Run() error = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not stop after cancel")
	}
	if got := recorder.callCount(); got != 2 {
		t.Errorf("recorder calls = %d, want 2", got)
	}
}

func TestRun_StopsWhenTriggerCloses(t *testing.T) {
	rec := newFakeRecognizer("hi")
	recorder := &fakeRecorder{samples: []int16{1}}
	trigger := newFakeTrigger()

	deps := app.Deps{Recognizer: rec, Recorder: recorder, Trigger: trigger}
	a, err := app.New(testConfig(), deps, app.WithNotifier(func(string, string) {}))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- a.Run(context.Background()) }()
	close(trigger.ch)

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("Run() error = %v, want nil after trigger close", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not stop after the trigger closed")
	}
}

func TestApplyPolicy_SwitchesChangedPrimaries(t *testing.T) {
	rec := newFakeRecognizer("hi")
	synth := newFakeSynthesizer(tts.Result{})
	recorder := &fakeRecorder{samples: []int16{1}}

	a, err := app.New(testConfig(), testDeps(rec, synth, nil, recorder, nil),
		app.WithNotifier(func(string, string) {}))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	cfg := testConfig()
	cfg.Recognition.Primary = "sherpa"
	cfg.Synthesis.Primary = "piper" // unchanged
	a.ApplyPolicy(cfg)

	if len(rec.switched) != 1 || rec.switched[0] != "sherpa" {
		t.Errorf("recognizer switches = %v, want [sherpa]", rec.switched)
	}
	if len(synth.switched) != 0 {
		t.Errorf("synthesizer switches = %v, want none for an unchanged primary", synth.switched)
	}
}

func TestShutdown_ClosesTriggerOnce(t *testing.T) {
	rec := newFakeRecognizer("hi")
	recorder := &fakeRecorder{samples: []int16{1}}
	trigger := newFakeTrigger()

	deps := app.Deps{Recognizer: rec, Recorder: recorder, Trigger: trigger}
	a, err := app.New(testConfig(), deps, app.WithNotifier(func(string, string) {}))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if err := a.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if !trigger.closed {
		t.Error("trigger was not closed")
	}
	if err := a.Shutdown(context.Background()); err != nil {
		t.Fatalf("second Shutdown() error = %v", err)
	}
}
