package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/npratt/growth/internal/clock"
	"github.com/npratt/growth/internal/config"
	"github.com/npratt/growth/internal/events"
	"github.com/npratt/growth/internal/schedule"
)

const testRoutine = `
id: starter
days:
  - day: 1
    methods:
      - id: warmup
        name: Warmup
        duration: 2m
      - id: hold
        name: Hold
        duration: 1m
`

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Paths = config.PathsConfig{
		State:    filepath.Join(dir, "state.json"),
		Timer:    filepath.Join(dir, "timer.json"),
		Log:      filepath.Join(dir, "events.jsonl"),
		Socket:   filepath.Join(dir, "growth.sock"),
		PID:      filepath.Join(dir, "growth.pid"),
		Progress: filepath.Join(dir, "progress.db"),
		Intent:   filepath.Join(dir, "intent.json"),
	}
	return cfg
}

func TestEngineLifecycle(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := testConfig(t)

	routine, err := schedule.ParseRoutine([]byte(testRoutine))
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	router := events.NewRouter(events.DefaultBufferSize)
	sinks, err := startSinks(ctx, cfg, router, logger)
	if err != nil {
		t.Fatalf("startSinks: %v", err)
	}

	ctrl := newController(cfg, router, clock.New(), logger)
	done, err := startEngine(ctx, ctrl, routine, 1, nil, logger)
	if err != nil {
		t.Fatalf("startEngine: %v", err)
	}

	status, err := ctrl.Status()
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.RoutineID != "starter" || status.Day != 1 || status.Total != 2 {
		t.Errorf("status = %+v", status)
	}

	if err := ctrl.StartCurrent(); err != nil {
		t.Fatalf("StartCurrent: %v", err)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("controller exit: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("controller did not stop")
	}
	sinks.Close()

	// The live run is suspended for the next process.
	if _, err := os.Stat(cfg.Paths.Timer); err != nil {
		t.Errorf("expected persisted timer record: %v", err)
	}
	if _, err := os.Stat(cfg.Paths.Log); err != nil {
		t.Errorf("expected event log: %v", err)
	}
}

func TestStartEngine_MissingDay(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := testConfig(t)
	cfg.Progress.Enabled = false

	routine, err := schedule.ParseRoutine([]byte(testRoutine))
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	router := events.NewRouter(events.DefaultBufferSize)
	ctrl := newController(cfg, router, clock.New(), logger)

	done, err := startEngine(ctx, ctrl, routine, 7, nil, logger)
	if err == nil {
		t.Error("expected error for missing day")
	}
	cancel()
	<-done
}

func TestEngineRestart_RestoresPersistedRun(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := testConfig(t)
	cfg.Progress.Enabled = false

	routine, err := schedule.ParseRoutine([]byte(testRoutine))
	if err != nil {
		t.Fatal(err)
	}
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	// First process: start the first method, then exit.
	ctx, cancel := context.WithCancel(context.Background())
	router := events.NewRouter(events.DefaultBufferSize)
	ctrl := newController(cfg, router, clock.NewFake(start), logger)
	done, err := startEngine(ctx, ctrl, routine, 1, nil, logger)
	if err != nil {
		t.Fatalf("startEngine: %v", err)
	}
	if err := ctrl.StartCurrent(); err != nil {
		t.Fatalf("StartCurrent: %v", err)
	}
	cancel()
	<-done
	router.Close()

	if _, err := os.Stat(cfg.Paths.Timer); err != nil {
		t.Fatalf("expected persisted timer record: %v", err)
	}

	// Second process on the same paths, 30s later.
	ctx2, cancel2 := context.WithCancel(context.Background())
	defer cancel2()
	router2 := events.NewRouter(events.DefaultBufferSize)
	defer router2.Close()
	ctrl2 := newController(cfg, router2, clock.NewFake(start.Add(30*time.Second)), logger)
	if _, err := startEngine(ctx2, ctrl2, routine, 1, nil, logger); err != nil {
		t.Fatalf("startEngine after restart: %v", err)
	}

	status, err := ctrl2.Status()
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.Timer.Owner != "warmup" || status.Timer.State != "running" {
		t.Fatalf("after restart: state=%s owner=%q, want warmup running", status.Timer.State, status.Timer.Owner)
	}
	if status.Timer.ElapsedMs != 30000 {
		t.Errorf("elapsed = %dms, want 30000", status.Timer.ElapsedMs)
	}
}
