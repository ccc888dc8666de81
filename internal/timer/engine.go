package timer

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/npratt/growth/internal/clock"
	"github.com/npratt/growth/internal/events"
	"github.com/npratt/growth/internal/persist"
)

// Reasons carried by state change events.
const (
	ReasonConfigured       = "configured"
	ReasonStarted          = "started"
	ReasonPaused           = "paused"
	ReasonResumed          = "resumed"
	ReasonStopped          = "stopped"
	ReasonInterval         = "interval"
	ReasonCompleted        = "completed"
	ReasonRestored         = "restored"
	ReasonRestoreDiscarded = "restore_discarded"
	ReasonAcknowledged     = "acknowledged"
)

// RestoreResult describes what RestoreFromBackground found.
type RestoreResult struct {
	// Restored is true when a persisted run was reconstructed.
	Restored bool
	// Discarded is true when a persisted run was dropped.
	Discarded bool
	Owner     string
	Client    string
	// Suspended is how long the run was persisted before being restored.
	Suspended time.Duration
	Snapshot  Snapshot
}

// Engine is the timer. All operations are synchronous state transitions and
// safe for concurrent use; the engine never blocks waiting for time to pass.
// A Scheduler re-enters it with Tick while a run is live.
type Engine struct {
	clock  clock.Clock
	store  persist.Store
	router *events.Router
	logger *slog.Logger
	newID  func() string

	mu               sync.Mutex
	cfg              Config
	configured       bool
	state            State
	accumulated      time.Duration
	resumedAt        time.Time
	elapsed          time.Duration
	intervalIndex    int
	overexertionSent bool
	overexertionAck  bool
	runID            string
}

// New creates a stopped, unconfigured engine. The store receives the
// background persistence record; router may be nil.
func New(clk clock.Clock, store persist.Store, router *events.Router, logger *slog.Logger) *Engine {
	if clk == nil {
		clk = clock.New()
	}
	if store == nil {
		store = persist.NewMemoryStore()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		clock:  clk,
		store:  store,
		router: router,
		logger: logger,
		newID:  uuid.NewString,
		state:  StateStopped,
	}
}

// Configure installs a new run configuration. A live run is stopped and its
// persisted record cleared first, so the new owner always starts clean.
func (e *Engine) Configure(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	cfg.Intervals = append([]Interval(nil), cfg.Intervals...)

	e.mu.Lock()
	now := e.clock.Now()
	if e.state != StateStopped {
		e.logger.Debug("configure replaces live run",
			"previous_owner", e.cfg.Owner,
			"state", e.state,
			"owner", cfg.Owner)
		e.clearStoreLocked()
	}
	e.resetLocked()
	e.cfg = cfg
	e.configured = true
	pending := []events.Event{e.changedLocked(now, ReasonConfigured)}
	e.mu.Unlock()

	e.emit(pending...)
	return nil
}

// Start begins the configured run and persists it.
func (e *Engine) Start() error {
	e.mu.Lock()
	if !e.configured {
		e.mu.Unlock()
		return ErrNotConfigured
	}
	if e.state != StateStopped {
		state := e.state
		e.mu.Unlock()
		return fmt.Errorf("%w: start from %s", ErrInvalidTransition, state)
	}

	now := e.clock.Now()
	e.state = StateRunning
	e.accumulated = 0
	e.elapsed = 0
	e.intervalIndex = 0
	e.overexertionSent = false
	e.overexertionAck = false
	e.resumedAt = now
	e.runID = e.newID()
	pending := e.saveLocked(now)
	pending = append(pending, e.changedLocked(now, ReasonStarted))
	e.mu.Unlock()

	e.emit(pending...)
	return nil
}

// Pause banks the elapsed time of the running segment. Time spent paused
// never counts toward elapsed.
func (e *Engine) Pause() error {
	e.mu.Lock()
	if e.state != StateRunning {
		state := e.state
		e.mu.Unlock()
		return fmt.Errorf("%w: pause from %s", ErrInvalidTransition, state)
	}

	now := e.clock.Now()
	pending := e.advanceLocked(now)
	if e.state == StateRunning {
		e.accumulated = e.elapsed
		e.state = StatePaused
		pending = append(pending, e.saveLocked(now)...)
		pending = append(pending, e.changedLocked(now, ReasonPaused))
	}
	e.mu.Unlock()

	e.emit(pending...)
	return nil
}

// Resume continues a paused run. A run that reached zero cannot be resumed;
// it must be configured again.
func (e *Engine) Resume() error {
	e.mu.Lock()
	if e.state != StatePaused {
		state := e.state
		e.mu.Unlock()
		return fmt.Errorf("%w: resume from %s", ErrInvalidTransition, state)
	}
	if e.reachedZeroLocked() {
		e.mu.Unlock()
		return fmt.Errorf("%w: run already reached zero", ErrInvalidTransition)
	}

	now := e.clock.Now()
	e.state = StateRunning
	e.resumedAt = now
	pending := e.saveLocked(now)
	pending = append(pending, e.changedLocked(now, ReasonResumed))
	e.mu.Unlock()

	e.emit(pending...)
	return nil
}

// Stop returns the engine to stopped, clears the owner and clears the
// persisted record. It is always legal; stopping a stopped engine only clears
// the store again.
func (e *Engine) Stop() {
	e.mu.Lock()
	now := e.clock.Now()
	changed := e.configured || e.state != StateStopped
	e.clearStoreLocked()

	var pending []events.Event
	if changed {
		e.resetLocked()
		pending = append(pending, e.changedLocked(now, ReasonStopped))
	}
	e.mu.Unlock()

	e.emit(pending...)
}

// AcknowledgeOverexertion clears the overexertion warning of the current run.
// The warning does not fire again for that run. It reports whether there was
// a warning to clear.
func (e *Engine) AcknowledgeOverexertion() bool {
	e.mu.Lock()
	if !e.overexertionSent || e.overexertionAck {
		e.mu.Unlock()
		return false
	}
	e.overexertionAck = true
	pending := []events.Event{e.changedLocked(e.clock.Now(), ReasonAcknowledged)}
	e.mu.Unlock()

	e.emit(pending...)
	return true
}

// Tick recomputes elapsed time from the clock. Countdown and interval runs
// that reach the end pause at zero instead of stopping.
func (e *Engine) Tick() Snapshot {
	e.mu.Lock()
	now := e.clock.Now()
	pending := e.advanceLocked(now)
	snap := e.snapshotLocked(now)
	e.mu.Unlock()

	e.emit(pending...)
	return snap
}

// Snapshot returns the current timer state without changing it.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked(e.clock.Now())
}

// Suspend persists a live run before the host goes to the background.
// ownerName, when non-empty, overrides the display name stored with it.
// Stopped runs are not persisted. A run that reached zero is saved paused at
// zero; restoring it reports the completion nobody observed before suspend.
func (e *Engine) Suspend(ownerName string) error {
	e.mu.Lock()
	if e.state == StateStopped || !e.configured {
		e.mu.Unlock()
		return nil
	}

	now := e.clock.Now()
	pending := e.advanceLocked(now)
	if ownerName != "" {
		e.cfg.OwnerName = ownerName
	}
	var err error
	if err = e.store.Save(e.recordLocked(now)); err != nil {
		err = fmt.Errorf("persist timer run: %w", err)
	}
	e.mu.Unlock()

	e.emit(pending...)
	return err
}

// ClearPersisted drops the persisted record without touching the live run.
// Used once a completion has been fully handled so it cannot be restored.
func (e *Engine) ClearPersisted() {
	e.mu.Lock()
	e.clearStoreLocked()
	e.mu.Unlock()
}

// RestoreFromBackground reconstructs a persisted run from wall-clock deltas.
// No record is a no-op. A record whose owner is rejected by valid, or that no
// longer describes a runnable configuration, is cleared, the engine is left
// stopped and ErrStaleRestoration is returned. Restoring never writes the
// store.
func (e *Engine) RestoreFromBackground(valid func(owner string) bool) (RestoreResult, error) {
	rec, err := e.store.Load()
	if err != nil {
		return RestoreResult{}, fmt.Errorf("load timer record: %w", err)
	}
	if rec == nil {
		return RestoreResult{}, nil
	}

	cfg := configFromRecord(*rec)
	reason := ""
	if valid != nil && !valid(rec.Owner) {
		reason = "owner not in schedule"
	} else if verr := cfg.Validate(); verr != nil {
		reason = verr.Error()
	}

	e.mu.Lock()
	now := e.clock.Now()

	if reason != "" {
		e.clearStoreLocked()
		e.resetLocked()
		pending := []events.Event{
			&events.TimerRestoreDiscardedEvent{
				BaseEvent: events.NewEvent(events.EventTimerRestoreDiscarded, events.SourceEngine, now),
				Owner:     rec.Owner,
				Reason:    reason,
			},
			e.changedLocked(now, ReasonRestoreDiscarded),
		}
		e.mu.Unlock()

		e.emit(pending...)
		return RestoreResult{Discarded: true, Owner: rec.Owner, Client: rec.Client},
			fmt.Errorf("%w: %s: %s", ErrStaleRestoration, rec.Owner, reason)
	}

	e.resetLocked()
	e.cfg = cfg
	e.configured = true
	e.runID = rec.RunID
	e.accumulated = rec.AccumulatedDuration()
	e.elapsed = e.accumulated
	if rec.Paused {
		e.state = StatePaused
	} else {
		e.state = StateRunning
		e.resumedAt = rec.StartedAt
	}
	if cfg.Mode == ModeStopwatch && cfg.MaxRecommended > 0 && e.accumulated > cfg.MaxRecommended {
		e.overexertionSent = true
	}
	if cfg.Mode == ModeInterval {
		e.intervalIndex, _ = cfg.intervalAt(e.accumulated)
	}
	pending := e.advanceLocked(now)

	suspended := now.Sub(rec.SavedAt)
	if suspended < 0 {
		suspended = 0
	}
	snap := e.snapshotLocked(now)
	pending = append(pending,
		&events.TimerRestoredEvent{
			BaseEvent:   events.NewEvent(events.EventTimerRestored, events.SourceEngine, now),
			Owner:       cfg.Owner,
			Client:      cfg.Client,
			State:       string(e.state),
			ElapsedMs:   e.elapsed.Milliseconds(),
			SuspendedMs: suspended.Milliseconds(),
		},
		e.changedLocked(now, ReasonRestored),
	)
	e.mu.Unlock()

	e.emit(pending...)
	return RestoreResult{
		Restored:  true,
		Owner:     cfg.Owner,
		Client:    cfg.Client,
		Suspended: suspended,
		Snapshot:  snap,
	}, nil
}

// resetLocked returns the engine to an unconfigured stop.
func (e *Engine) resetLocked() {
	e.cfg = Config{}
	e.configured = false
	e.state = StateStopped
	e.accumulated = 0
	e.elapsed = 0
	e.resumedAt = time.Time{}
	e.intervalIndex = 0
	e.overexertionSent = false
	e.overexertionAck = false
	e.runID = ""
}

// elapsedAtLocked computes elapsed time at now. Elapsed never decreases,
// even if the wall clock moves backwards.
func (e *Engine) elapsedAtLocked(now time.Time) time.Duration {
	if e.state != StateRunning {
		return e.accumulated
	}
	elapsed := e.accumulated
	if delta := now.Sub(e.resumedAt); delta > 0 {
		elapsed += delta
	}
	if elapsed < e.elapsed {
		elapsed = e.elapsed
	}
	return elapsed
}

// advanceLocked moves a running run forward to now and returns the events
// the movement produced.
func (e *Engine) advanceLocked(now time.Time) []events.Event {
	if e.state != StateRunning {
		return nil
	}

	var pending []events.Event
	e.elapsed = e.elapsedAtLocked(now)

	if e.cfg.Mode == ModeStopwatch {
		if e.cfg.MaxRecommended > 0 && e.elapsed > e.cfg.MaxRecommended && !e.overexertionSent {
			e.overexertionSent = true
			pending = append(pending, &events.TimerOverexertionEvent{
				BaseEvent:        events.NewEvent(events.EventTimerOverexertion, events.SourceEngine, now),
				Owner:            e.cfg.Owner,
				ElapsedMs:        e.elapsed.Milliseconds(),
				MaxRecommendedMs: e.cfg.MaxRecommended.Milliseconds(),
			})
		}
		return pending
	}

	total, _ := e.cfg.Total()
	if e.cfg.Mode == ModeInterval {
		index, _ := e.cfg.intervalAt(e.elapsed)
		if index != e.intervalIndex && e.elapsed < total {
			e.intervalIndex = index
			pending = append(pending, e.changedLocked(now, ReasonInterval))
		}
	}

	if e.elapsed >= total {
		e.elapsed = total
		e.accumulated = total
		e.state = StatePaused
		if e.cfg.Mode == ModeInterval {
			e.intervalIndex = len(e.cfg.Intervals) - 1
		}
		pending = append(pending, e.changedLocked(now, ReasonCompleted))
	}
	return pending
}

func (e *Engine) reachedZeroLocked() bool {
	total, ok := e.cfg.Total()
	return ok && e.state == StatePaused && e.accumulated >= total && total > 0
}

func (e *Engine) snapshotLocked(now time.Time) Snapshot {
	snap := Snapshot{
		Mode:        e.cfg.Mode,
		State:       e.state,
		Elapsed:     e.elapsedAtLocked(now),
		Owner:       e.cfg.Owner,
		OwnerName:   e.cfg.OwnerName,
		Client:      e.cfg.Client,
		RunID:       e.runID,
		Overexerted: e.overexertionSent && !e.overexertionAck,
	}
	if !e.configured {
		snap.Mode = ""
		return snap
	}

	if total, ok := e.cfg.Total(); ok {
		if snap.Elapsed > total {
			snap.Elapsed = total
		}
		remaining := total - snap.Elapsed
		snap.Total = &total
		snap.Remaining = &remaining
		if total > 0 {
			snap.Progress = float64(snap.Elapsed) / float64(total)
		}
	}
	if e.cfg.Mode == ModeInterval {
		index, left := e.cfg.intervalAt(snap.Elapsed)
		current := e.cfg.Intervals[index]
		snap.IntervalIndex = &index
		snap.IntervalName = current.Name
		snap.IntervalRemaining = left
		snap.IntervalCount = len(e.cfg.Intervals)
		if current.Duration > 0 {
			snap.IntervalProgress = 1 - float64(left)/float64(current.Duration)
		}
	}
	return snap
}

func (e *Engine) recordLocked(now time.Time) persist.Record {
	rec := persist.Record{
		Client:         e.cfg.Client,
		Owner:          e.cfg.Owner,
		OwnerName:      e.cfg.OwnerName,
		Mode:           string(e.cfg.Mode),
		StartedAt:      now,
		Accumulated:    persist.Seconds(e.accumulated),
		MaxRecommended: persist.Seconds(e.cfg.MaxRecommended),
		Paused:         e.state == StatePaused,
		RunID:          e.runID,
		SavedAt:        now,
	}
	if e.state == StateRunning {
		rec.StartedAt = e.resumedAt
	}
	if e.cfg.Mode == ModeCountdown {
		total := persist.Seconds(e.cfg.Duration)
		rec.Total = &total
	}
	if e.cfg.Mode == ModeInterval {
		total, _ := e.cfg.Total()
		seconds := persist.Seconds(total)
		rec.Total = &seconds
		for _, iv := range e.cfg.Intervals {
			rec.Intervals = append(rec.Intervals, persist.IntervalRecord{
				Name:    iv.Name,
				Seconds: persist.Seconds(iv.Duration),
			})
		}
	}
	return rec
}

func configFromRecord(rec persist.Record) Config {
	cfg := Config{
		Mode:           Mode(rec.Mode),
		Owner:          rec.Owner,
		OwnerName:      rec.OwnerName,
		Client:         rec.Client,
		MaxRecommended: persist.Duration(rec.MaxRecommended),
	}
	if total, ok := rec.TotalDuration(); ok && cfg.Mode == ModeCountdown {
		cfg.Duration = total
	}
	for _, iv := range rec.Intervals {
		cfg.Intervals = append(cfg.Intervals, Interval{Name: iv.Name, Duration: persist.Duration(iv.Seconds)})
	}
	return cfg
}

// saveLocked persists the live run. A failed write is reported as an error
// event; the run itself continues.
func (e *Engine) saveLocked(now time.Time) []events.Event {
	if err := e.store.Save(e.recordLocked(now)); err != nil {
		e.logger.Warn("persist timer run failed", "owner", e.cfg.Owner, "error", err)
		return []events.Event{&events.ErrorEvent{
			BaseEvent: events.NewEvent(events.EventError, events.SourceEngine, now),
			Message:   fmt.Sprintf("persist timer run: %v", err),
			Severity:  events.SeverityWarning,
			MethodID:  e.cfg.Owner,
		}}
	}
	return nil
}

func (e *Engine) clearStoreLocked() {
	if err := e.store.Clear(); err != nil {
		e.logger.Warn("clear persisted timer run failed", "error", err)
	}
}

// changedLocked builds the canonical state change event for the current
// state.
func (e *Engine) changedLocked(now time.Time, reason string) events.Event {
	snap := e.snapshotLocked(now)
	ev := &events.TimerStateChangedEvent{
		BaseEvent: events.NewEvent(events.EventTimerStateChanged, events.SourceEngine, now),
		Reason:    reason,
		Mode:      string(snap.Mode),
		State:     string(snap.State),
		Owner:     snap.Owner,
		OwnerName: snap.OwnerName,
		RunID:     snap.RunID,
		ElapsedMs: snap.Elapsed.Milliseconds(),
	}
	if snap.Remaining != nil {
		remaining := snap.Remaining.Milliseconds()
		total := snap.Total.Milliseconds()
		ev.RemainingMs = &remaining
		ev.TotalMs = &total
	}
	if snap.IntervalIndex != nil {
		index := *snap.IntervalIndex
		ev.IntervalIndex = &index
		ev.IntervalName = snap.IntervalName
	}
	e.logger.Debug("timer transition",
		"reason", reason,
		"state", snap.State,
		"owner", snap.Owner,
		"elapsed", snap.Elapsed)
	return ev
}

func (e *Engine) emit(pending ...events.Event) {
	if e.router == nil {
		return
	}
	for _, ev := range pending {
		e.router.Emit(ev)
	}
}
