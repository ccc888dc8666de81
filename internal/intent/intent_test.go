package intent

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/npratt/growth/internal/arbiter"
	"github.com/npratt/growth/internal/clock"
	"github.com/npratt/growth/internal/config"
	"github.com/npratt/growth/internal/events"
)

type call struct {
	origin string
	client string
	kind   Kind
}

type recordingHandler struct {
	mu    sync.Mutex
	calls []call
}

func (h *recordingHandler) ExternalStop(origin, client string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls = append(h.calls, call{origin, client, KindStop})
	return nil
}

func (h *recordingHandler) ExternalPauseResume(origin, client string, pause bool) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	kind := KindResume
	if pause {
		kind = KindPause
	}
	h.calls = append(h.calls, call{origin, client, kind})
	return nil
}

func (h *recordingHandler) Calls() []call {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]call(nil), h.calls...)
}

func testConfig() *config.IntentConfig {
	return &config.IntentConfig{
		Enabled:    true,
		StaleAfter: 30 * time.Second,
		Debounce:   10 * time.Millisecond,
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestActionValidate(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name    string
		action  Action
		wantErr bool
	}{
		{"stop main", Action{Kind: KindStop, Timer: TimerMain, At: now}, false},
		{"pause any", Action{Kind: KindPause, At: now}, false},
		{"unknown kind", Action{Kind: "rewind", At: now}, true},
		{"unknown timer", Action{Kind: KindStop, Timer: "lap", At: now}, true},
		{"missing timestamp", Action{Kind: KindResume}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.action.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestActionClient(t *testing.T) {
	tests := map[string]string{
		TimerMain:  arbiter.ClientMain,
		TimerQuick: arbiter.ClientQuickPractice,
		"":         "",
	}
	for timer, want := range tests {
		if got := (Action{Timer: timer}).Client(); got != want {
			t.Errorf("Client() for %q = %q, want %q", timer, got, want)
		}
	}
}

func TestWriteReadAction(t *testing.T) {
	path := filepath.Join(t.TempDir(), "widget", "intent.json")
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	if err := WriteAction(path, Action{Kind: KindStop, Timer: TimerQuick, At: at}); err != nil {
		t.Fatalf("WriteAction failed: %v", err)
	}
	got, err := ReadAction(path)
	if err != nil {
		t.Fatalf("ReadAction failed: %v", err)
	}
	if got.Kind != KindStop || got.Timer != TimerQuick || !got.At.Equal(at) {
		t.Errorf("got %+v", got)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temp file should not remain")
	}

	if err := WriteAction(path, Action{Kind: "bogus", At: at}); err == nil {
		t.Error("WriteAction should reject invalid actions")
	}
}

func TestApply(t *testing.T) {
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	t.Run("dispatches by kind and target", func(t *testing.T) {
		clk := clock.NewFake(start)
		h := &recordingHandler{}
		w := New(testConfig(), "unused", h, clk, nil)

		w.Apply(Action{Kind: KindPause, Timer: TimerMain, At: start.Add(-time.Second)})
		w.Apply(Action{Kind: KindResume, At: start})
		w.Apply(Action{Kind: KindStop, Timer: TimerQuick, At: start.Add(time.Second)})

		calls := h.Calls()
		want := []call{
			{events.SourceWidget, arbiter.ClientMain, KindPause},
			{events.SourceWidget, "", KindResume},
			{events.SourceWidget, arbiter.ClientQuickPractice, KindStop},
		}
		if len(calls) != len(want) {
			t.Fatalf("got %d calls, want %d", len(calls), len(want))
		}
		for i := range want {
			if calls[i] != want[i] {
				t.Errorf("call %d = %+v, want %+v", i, calls[i], want[i])
			}
		}
		if w.Applied() != 3 {
			t.Errorf("Applied() = %d, want 3", w.Applied())
		}
	})

	t.Run("stale actions are dropped", func(t *testing.T) {
		clk := clock.NewFake(start)
		h := &recordingHandler{}
		w := New(testConfig(), "unused", h, clk, nil)

		if w.Apply(Action{Kind: KindStop, At: start.Add(-time.Minute)}) {
			t.Error("stale action was applied")
		}
		if len(h.Calls()) != 0 || w.Dropped() != 1 {
			t.Errorf("calls %d dropped %d, want 0 and 1", len(h.Calls()), w.Dropped())
		}
	})

	t.Run("repeated actions apply once", func(t *testing.T) {
		clk := clock.NewFake(start)
		h := &recordingHandler{}
		w := New(testConfig(), "unused", h, clk, nil)

		a := Action{Kind: KindStop, At: start}
		if !w.Apply(a) {
			t.Fatal("first apply should succeed")
		}
		if w.Apply(a) {
			t.Error("the same action applied twice")
		}
		if len(h.Calls()) != 1 {
			t.Errorf("got %d calls, want 1", len(h.Calls()))
		}
	})
}

func TestWatcher(t *testing.T) {
	t.Run("applies written actions", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "intent.json")
		h := &recordingHandler{}
		w := New(testConfig(), path, h, clock.New(), nil)

		if err := w.Start(context.Background()); err != nil {
			t.Fatalf("Start failed: %v", err)
		}
		defer func() { _ = w.Stop() }()

		if !w.Running() {
			t.Error("watcher should be running")
		}
		if err := w.Start(context.Background()); err == nil {
			t.Error("second Start should fail")
		}

		if err := WriteAction(path, Action{Kind: KindStop, Timer: TimerMain, At: time.Now()}); err != nil {
			t.Fatalf("WriteAction failed: %v", err)
		}
		waitFor(t, func() bool { return len(h.Calls()) == 1 })

		if got := h.Calls()[0]; got.kind != KindStop || got.client != arbiter.ClientMain {
			t.Errorf("call = %+v", got)
		}
	})

	t.Run("applies a fresh file present at start", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "intent.json")
		if err := WriteAction(path, Action{Kind: KindPause, At: time.Now()}); err != nil {
			t.Fatalf("WriteAction failed: %v", err)
		}

		h := &recordingHandler{}
		w := New(testConfig(), path, h, clock.New(), nil)
		if err := w.Start(context.Background()); err != nil {
			t.Fatalf("Start failed: %v", err)
		}
		defer func() { _ = w.Stop() }()

		waitFor(t, func() bool { return len(h.Calls()) == 1 })
	})

	t.Run("ignores malformed files", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "intent.json")
		h := &recordingHandler{}
		w := New(testConfig(), path, h, clock.New(), nil)
		if err := w.Start(context.Background()); err != nil {
			t.Fatalf("Start failed: %v", err)
		}
		defer func() { _ = w.Stop() }()

		if err := os.WriteFile(path, []byte("not json"), 0644); err != nil {
			t.Fatalf("write: %v", err)
		}
		waitFor(t, func() bool { return w.Dropped() >= 1 })
		if len(h.Calls()) != 0 {
			t.Error("malformed action reached the handler")
		}
	})

	t.Run("stop is idempotent", func(t *testing.T) {
		w := New(testConfig(), filepath.Join(t.TempDir(), "intent.json"), &recordingHandler{}, nil, nil)
		if err := w.Stop(); err != nil {
			t.Errorf("Stop before Start: %v", err)
		}
		if err := w.Start(context.Background()); err != nil {
			t.Fatalf("Start failed: %v", err)
		}
		if err := w.Stop(); err != nil {
			t.Errorf("Stop: %v", err)
		}
		if w.Running() {
			t.Error("watcher should not be running after Stop")
		}
	})
}
