package intent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/npratt/growth/internal/clock"
	"github.com/npratt/growth/internal/config"
	"github.com/npratt/growth/internal/events"
)

// Handler applies actions to the engine. The controller implements it.
type Handler interface {
	ExternalStop(origin, client string) error
	ExternalPauseResume(origin, client string, pause bool) error
}

// Watcher monitors the action file and applies each fresh action once.
type Watcher struct {
	config  *config.IntentConfig
	path    string
	handler Handler
	clock   clock.Clock
	logger  *slog.Logger

	running atomic.Bool
	done    chan struct{}
	cancel  context.CancelFunc
	mu      sync.Mutex
	// last is the timestamp of the newest applied action.
	last    time.Time
	applied int
	dropped int
}

// New creates a Watcher for the action file at path.
func New(cfg *config.IntentConfig, path string, handler Handler, clk clock.Clock, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	if clk == nil {
		clk = clock.New()
	}
	return &Watcher{
		config:  cfg,
		path:    path,
		handler: handler,
		clock:   clk,
		logger:  logger.With("component", "intent"),
	}
}

// Start begins watching in a background goroutine. An action file already
// present is applied if it is still fresh.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running.Load() {
		return fmt.Errorf("watcher already running")
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create file watcher: %w", err)
	}
	// Watch the parent directory since the file is replaced by rename.
	dir := filepath.Dir(w.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		_ = fsWatcher.Close()
		return fmt.Errorf("create action directory: %w", err)
	}
	if err := fsWatcher.Add(dir); err != nil {
		_ = fsWatcher.Close()
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	ctx, w.cancel = context.WithCancel(ctx)
	w.done = make(chan struct{})
	w.running.Store(true)

	go w.runLoop(ctx, fsWatcher)
	return nil
}

// Stop terminates the watcher.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if !w.running.Load() {
		w.mu.Unlock()
		return nil
	}
	w.mu.Unlock()

	w.cancel()
	<-w.done
	return nil
}

// Running returns whether the watcher is active.
func (w *Watcher) Running() bool {
	return w.running.Load()
}

// Applied returns how many actions reached the handler.
func (w *Watcher) Applied() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.applied
}

// Dropped returns how many actions were ignored as stale, repeated or
// malformed.
func (w *Watcher) Dropped() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.dropped
}

func (w *Watcher) runLoop(ctx context.Context, fsWatcher *fsnotify.Watcher) {
	defer func() {
		_ = fsWatcher.Close()
		w.running.Store(false)
		close(w.done)
	}()

	w.logger.Info("started watching action file", "path", w.path)
	w.consume()

	var debounceTimer *time.Timer
	var debounceMu sync.Mutex
	trigger := func() {
		debounceMu.Lock()
		defer debounceMu.Unlock()
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
		debounceTimer = time.AfterFunc(w.config.Debounce, w.consume)
	}

	target := filepath.Base(w.path)
	for {
		select {
		case <-ctx.Done():
			debounceMu.Lock()
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceMu.Unlock()
			return

		case event, ok := <-fsWatcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != target {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				trigger()
			}

		case err, ok := <-fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("file watcher error", "error", err)
		}
	}
}

// consume reads and applies the action file if present.
func (w *Watcher) consume() {
	a, err := ReadAction(w.path)
	if errors.Is(err, os.ErrNotExist) {
		return
	}
	if err != nil {
		w.logger.Warn("ignoring malformed action file", "path", w.path, "error", err)
		w.countDrop()
		return
	}
	w.Apply(a)
}

// Apply hands a to the handler unless it is stale or not newer than the last
// applied action. It reports whether the action was applied.
func (w *Watcher) Apply(a Action) bool {
	w.mu.Lock()
	now := w.clock.Now()
	switch {
	case a.Stale(now, w.config.StaleAfter):
		w.dropped++
		w.mu.Unlock()
		w.logger.Info("ignoring stale action", "action", a.Kind, "at", a.At, "age", now.Sub(a.At))
		return false
	case !a.At.After(w.last):
		w.dropped++
		w.mu.Unlock()
		w.logger.Debug("ignoring repeated action", "action", a.Kind, "at", a.At)
		return false
	}
	w.last = a.At
	w.applied++
	w.mu.Unlock()

	var err error
	client := a.Client()
	switch a.Kind {
	case KindStop:
		err = w.handler.ExternalStop(events.SourceWidget, client)
	case KindPause:
		err = w.handler.ExternalPauseResume(events.SourceWidget, client, true)
	case KindResume:
		err = w.handler.ExternalPauseResume(events.SourceWidget, client, false)
	}
	if err != nil {
		w.logger.Warn("action failed", "action", a.Kind, "timer", a.Timer, "error", err)
	} else {
		w.logger.Info("applied action", "action", a.Kind, "timer", a.Timer)
	}
	return true
}

func (w *Watcher) countDrop() {
	w.mu.Lock()
	w.dropped++
	w.mu.Unlock()
}
