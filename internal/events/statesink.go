package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// StateBufferSize is the recommended buffer size for state sink subscriptions.
const StateBufferSize = 1000

// CurrentStateVersion is the current state file format version.
// Increment this when making incompatible changes to the State struct.
const CurrentStateVersion = 1

// Day status values recorded in the state file.
const (
	DayNotStarted = "not_started"
	DayInProgress = "in_progress"
	DayCompleted  = "completed"
)

// State is the persisted progress of the day being practiced. A restarted
// daemon seeds its session progression from it.
type State struct {
	Version         int                       `json:"version"`
	Status          string                    `json:"status"`
	RoutineID       string                    `json:"routine_id,omitempty"`
	Day             int                       `json:"day"`
	Index           int                       `json:"index"`
	CurrentMethod   string                    `json:"current_method,omitempty"`
	History         map[string]*MethodHistory `json:"history"`
	TotalDurationMs int64                     `json:"total_duration_ms"`
	UpdatedAt       time.Time                 `json:"updated_at"`
}

// Clone returns a deep copy of the state.
func (s State) Clone() State {
	out := s
	out.History = make(map[string]*MethodHistory, len(s.History))
	for id, h := range s.History {
		copied := *h
		out.History[id] = &copied
	}
	return out
}

// Matches reports whether the state describes the given routine day.
func (s State) Matches(routineID string, day int) bool {
	return s.RoutineID == routineID && s.Day == day
}

// mainClient is the arbitration client name of the guided session.
const mainClient = "main"

// DefaultMinSaveDelay is the minimum time between debounced saves.
const DefaultMinSaveDelay = 2 * time.Second

// StateSink persists session progress to a JSON file for crash recovery.
// Only main-session events are recorded; quick practice runs leave the day's
// progress untouched.
type StateSink struct {
	path     string
	logger   *slog.Logger
	state    *State
	dirty    bool
	mu       sync.Mutex
	done     chan struct{}
	lastSave time.Time
	minDelay time.Duration
}

// NewStateSink creates a new StateSink that writes to the specified path.
func NewStateSink(path string, logger *slog.Logger) *StateSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &StateSink{
		path:     path,
		logger:   logger,
		state:    newState(),
		done:     make(chan struct{}),
		minDelay: DefaultMinSaveDelay,
	}
}

func newState() *State {
	return &State{
		Version: CurrentStateVersion,
		Status:  DayNotStarted,
		History: make(map[string]*MethodHistory),
	}
}

// Start ensures the directory exists, loads existing state, and begins processing events.
func (s *StateSink) Start(ctx context.Context, events <-chan Event) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}

	if err := s.Load(); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("load state: %w", err)
	}

	go s.run(ctx, events)
	return nil
}

func (s *StateSink) run(ctx context.Context, events <-chan Event) {
	defer close(s.done)

	for {
		select {
		case <-ctx.Done():
			s.flushIfDirty()
			return
		case event, ok := <-events:
			if !ok {
				s.flushIfDirty()
				return
			}
			s.handleEvent(event)
		}
	}
}

func (s *StateSink) history(id string) *MethodHistory {
	h := s.state.History[id]
	if h == nil {
		h = &MethodHistory{ID: id, Status: MethodPending}
		s.state.History[id] = h
	}
	return h
}

func (s *StateSink) handleEvent(event Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch e := event.(type) {
	case *SessionLoadedEvent:
		if !s.state.Matches(e.RoutineID, e.Day) {
			s.state = newState()
			s.state.RoutineID = e.RoutineID
			s.state.Day = e.Day
		}
		switch {
		case e.Rest || (e.MethodCount > 0 && e.Completed == e.MethodCount):
			s.state.Status = DayCompleted
		case e.Completed > 0:
			s.state.Status = DayInProgress
		}
		s.dirty = true

	case *MethodStartedEvent:
		if e.Client != mainClient {
			return
		}
		h := s.history(e.MethodID)
		if h.Status == MethodPending {
			h.Status = MethodStarted
			h.UpdatedAt = event.Timestamp()
		}
		s.state.CurrentMethod = e.MethodID
		if s.state.Status == DayNotStarted {
			s.state.Status = DayInProgress
		}
		s.dirty = true

	case *MethodCompletedEvent:
		if e.Client != mainClient {
			return
		}
		h := s.history(e.MethodID)
		if h.Status != MethodCompleted && h.Status != MethodSkipped {
			h.Status = MethodCompleted
			h.DurationMs = e.DurationMs
			h.UpdatedAt = event.Timestamp()
			s.state.TotalDurationMs += e.DurationMs
		}
		// Completions are what a crash must not lose.
		s.saveUnlocked()
		return

	case *MethodSkippedEvent:
		h := s.history(e.MethodID)
		if h.Status != MethodCompleted && h.Status != MethodSkipped {
			h.Status = MethodSkipped
			h.DurationMs = 0
			h.UpdatedAt = event.Timestamp()
		}
		s.dirty = true

	case *PromptResolvedEvent:
		h := s.state.History[e.MethodID]
		if h == nil || e.Choice != "partial" {
			return
		}
		s.state.TotalDurationMs += e.DurationMs - h.DurationMs
		h.DurationMs = e.DurationMs
		h.UpdatedAt = event.Timestamp()
		s.dirty = true

	case *SessionAdvancedEvent:
		s.state.Index = e.To
		s.state.CurrentMethod = e.MethodID
		s.dirty = true

	case *SessionCompletedEvent:
		s.state.Status = DayCompleted
		s.saveUnlocked()
		return

	case *SessionResetEvent:
		routine := s.state.RoutineID
		s.state = newState()
		s.state.RoutineID = routine
		s.state.Day = e.Day
		s.saveUnlocked()
		return
	}

	if s.dirty && time.Since(s.lastSave) >= s.minDelay {
		s.saveUnlocked()
	}
}

func (s *StateSink) saveUnlocked() {
	s.state.UpdatedAt = time.Now()

	data, err := json.MarshalIndent(s.state, "", "  ")
	if err != nil {
		s.logger.Error("state sink marshal failed", "error", err)
		return
	}

	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		s.logger.Error("state sink write failed", "path", tmpPath, "error", err)
		return
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		s.logger.Error("state sink rename failed", "path", s.path, "error", err)
		return
	}

	s.dirty = false
	s.lastSave = time.Now()
}

func (s *StateSink) flushIfDirty() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dirty {
		s.saveUnlocked()
	}
}

// Stop waits for the run goroutine to finish. Pending changes are flushed
// when the events channel closes or the context is canceled.
func (s *StateSink) Stop() error {
	<-s.done
	return nil
}

// Load reads the state file from disk.
// If the file is corrupt or its version is incompatible, it is backed up and
// a fresh state is used.
func (s *StateSink) Load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		s.discardUnlocked("state file corrupted", "error", err)
		return nil
	}
	if state.Version != CurrentStateVersion {
		s.discardUnlocked("incompatible state version",
			"file_version", state.Version,
			"current_version", CurrentStateVersion)
		return nil
	}
	if state.History == nil {
		state.History = make(map[string]*MethodHistory)
	}

	s.state = &state
	return nil
}

// discardUnlocked backs up the unreadable state file and starts fresh.
// Must be called with s.mu held.
func (s *StateSink) discardUnlocked(msg string, args ...any) {
	args = append(args, "path", s.path)
	if err := os.Rename(s.path, s.path+".backup"); err != nil {
		s.logger.Warn(msg+", failed to back up", append(args, "backup_error", err)...)
	} else {
		s.logger.Warn(msg+", backed up and starting fresh", args...)
	}
	s.state = newState()
}

// State returns a copy of the current state.
func (s *StateSink) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// Path returns the state file path.
func (s *StateSink) Path() string {
	return s.path
}

// SetMinDelay sets the minimum delay between debounced saves.
func (s *StateSink) SetMinDelay(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.minDelay = d
}

// LoadState reads a state file without starting a sink. A missing file
// yields a fresh state; an unreadable one is reported as an error.
func LoadState(path string) (State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return *newState(), nil
		}
		return State{}, fmt.Errorf("read state: %w", err)
	}
	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return State{}, fmt.Errorf("parse state: %w", err)
	}
	if state.Version != CurrentStateVersion {
		return State{}, fmt.Errorf("state version %d, want %d", state.Version, CurrentStateVersion)
	}
	if state.History == nil {
		state.History = make(map[string]*MethodHistory)
	}
	return state, nil
}
