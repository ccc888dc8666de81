// Package controller owns the engine's single cooperative event queue. Every
// input (ticks, host lifecycle changes, user commands, out-of-process stop
// requests and delayed auto-advances) is processed one at a time on the Run
// goroutine, so the timer, the gate, the progression and the resolver never
// observe interleaved transitions.
package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/npratt/growth/internal/arbiter"
	"github.com/npratt/growth/internal/clock"
	"github.com/npratt/growth/internal/config"
	"github.com/npratt/growth/internal/events"
	"github.com/npratt/growth/internal/resolver"
	"github.com/npratt/growth/internal/schedule"
	"github.com/npratt/growth/internal/session"
	"github.com/npratt/growth/internal/timer"
)

// Errors returned by controller operations.
var (
	ErrNoMethod = errors.New("no method to start")
	ErrClosed   = errors.New("controller is not running")
)

// QuickOwnerPrefix prefixes the owner IDs of quick practice runs.
const QuickOwnerPrefix = "quick:"

// inboxSize bounds queued inputs. Ticks are dropped rather than block when
// the queue is full; commands and auto-advances wait.
const inboxSize = 64

type input struct {
	name  string
	fn    func() error
	reply chan error
}

// Deps are the controller's collaborators. One of each exists per process.
type Deps struct {
	Engine      *timer.Engine
	Gate        *arbiter.Gate
	Progression *session.Progression
	Resolver    *resolver.Resolver
	Router      *events.Router
	Clock       clock.Clock
	Logger      *slog.Logger
}

// Controller serializes every input to the engine.
type Controller struct {
	config   *config.Config
	engine   *timer.Engine
	gate     *arbiter.Gate
	progress *session.Progression
	resolver *resolver.Resolver
	router   *events.Router
	clock    clock.Clock
	logger   *slog.Logger

	inbox chan input
	done  chan struct{}

	// Owned by the Run goroutine.
	autoTimer clock.Timer
	autoFor   string
}

// New creates a Controller with the given dependencies.
func New(cfg *config.Config, deps Deps) *Controller {
	if cfg == nil {
		cfg = config.Default()
	}
	if deps.Clock == nil {
		deps.Clock = clock.New()
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Gate == nil {
		deps.Gate = arbiter.New(deps.Logger)
	}
	if deps.Engine == nil {
		deps.Engine = timer.New(deps.Clock, nil, deps.Router, deps.Logger)
	}
	if deps.Progression == nil {
		deps.Progression = session.New(deps.Clock, deps.Router, deps.Logger)
	}
	if deps.Resolver == nil {
		deps.Resolver = resolver.New(deps.Clock, deps.Router, deps.Logger)
	}
	deps.Progression.SetAutoProgression(cfg.Session.AutoProgression)

	return &Controller{
		config:   cfg,
		engine:   deps.Engine,
		gate:     deps.Gate,
		progress: deps.Progression,
		resolver: deps.Resolver,
		router:   deps.Router,
		clock:    deps.Clock,
		logger:   deps.Logger,
		inbox:    make(chan input, inboxSize),
		done:     make(chan struct{}),
	}
}

// Run processes inputs until ctx is canceled. A live run is suspended to the
// persistence store on the way out so a restarted process can restore it.
func (c *Controller) Run(ctx context.Context) error {
	defer close(c.done)
	c.logger.Info("controller started")

	for {
		select {
		case <-ctx.Done():
			c.shutdown()
			return nil
		case in := <-c.inbox:
			err := in.fn()
			if err != nil && in.reply == nil {
				c.logger.Warn("input failed", "input", in.name, "error", err)
			}
			if in.reply != nil {
				in.reply <- err
			}
		}
	}
}

// RunScheduler posts a tick into the queue every configured tick interval
// until ctx is canceled.
func (c *Controller) RunScheduler(ctx context.Context) {
	timer.NewScheduler(c.config.Timer.TickInterval, func(time.Time) {
		c.post("tick", c.handleTick)
	}).Run(ctx)
}

func (c *Controller) shutdown() {
	c.cancelAutoAdvance()
	if err := c.suspend(); err != nil {
		c.logger.Warn("suspend on shutdown failed", "error", err)
	}
	c.logger.Info("controller stopped")
}

// suspend persists the live run. A run sitting at zero whose completion was
// already handled stays cleared; one nobody observed yet is saved at zero and
// completes when the next process restores it.
func (c *Controller) suspend() error {
	snap := c.engine.Snapshot()
	if snap.State == timer.StateStopped {
		return nil
	}
	if snap.ReachedZero() && c.resolver.Phase() == resolver.PhaseHandled && c.resolver.Owner() == snap.Owner {
		return nil
	}
	return c.engine.Suspend(snap.OwnerName)
}

// do submits fn to the queue and waits for it to run.
func (c *Controller) do(name string, fn func() error) error {
	reply := make(chan error, 1)
	select {
	case c.inbox <- input{name: name, fn: fn, reply: reply}:
	case <-c.done:
		return ErrClosed
	}
	select {
	case err := <-reply:
		return err
	case <-c.done:
		return ErrClosed
	}
}

// post queues fn without waiting and drops it when the queue is full. Only
// ticks use it; the next tick observes the same clock.
func (c *Controller) post(name string, fn func() error) {
	select {
	case c.inbox <- input{name: name, fn: fn}:
	default:
		c.logger.Debug("input dropped, queue full", "input", name)
	}
}

// deliver queues fn without waiting for its result. It blocks until the queue
// has room and gives up only once the controller has stopped.
func (c *Controller) deliver(name string, fn func() error) {
	select {
	case c.inbox <- input{name: name, fn: fn}:
	case <-c.done:
		c.logger.Debug("input dropped, controller stopped", "input", name)
	}
}

// LoadDay replaces the active day. Records in prior seed the progression,
// typically from the crash recovery state file. A main-session run of the
// previous day is stopped; a quick practice run is left alone.
func (c *Controller) LoadDay(routine schedule.Routine, number int, prior map[string]session.Record) error {
	day, err := routine.Day(number)
	if err != nil {
		return err
	}
	return c.do("load_day", func() error {
		c.stopMainRun()
		c.progress.Load(routine.ID, day, prior)
		return nil
	})
}

// Restore reconstructs a run persisted by a previous process. Call once at
// startup, after LoadDay.
func (c *Controller) Restore() error {
	return c.do("restore", func() error {
		c.restore()
		return nil
	})
}

// StartCurrent starts the current method's timer. A paused run of the same
// method is resumed instead.
func (c *Controller) StartCurrent() error {
	return c.do("start", c.handleStartCurrent)
}

// Pause pauses the live run, whichever client owns it.
func (c *Controller) Pause() error {
	return c.do("pause", c.engine.Pause)
}

// Resume resumes a paused run.
func (c *Controller) Resume() error {
	return c.do("resume", c.engine.Resume)
}

// Stop stops the live run and releases the timer.
func (c *Controller) Stop() error {
	return c.do("stop", func() error {
		c.stopRun()
		return nil
	})
}

// ExternalStop handles a stop requested from outside the process. It is
// processed exactly like Stop. A non-empty client limits the request to runs
// of that client.
func (c *Controller) ExternalStop(origin, client string) error {
	return c.do("external_stop", func() error {
		snap := c.engine.Snapshot()
		if client != "" && snap.Client != client {
			c.logger.Info("external stop ignored, targets another client",
				"origin", origin, "client", client, "holder", snap.Client)
			return nil
		}
		c.emit(&events.StopRequestedEvent{
			BaseEvent: events.NewEvent(events.EventStopRequested, origin, c.clock.Now()),
			Client:    snap.Client,
			Origin:    origin,
		})
		c.stopRun()
		return nil
	})
}

// ExternalPauseResume applies a pause or resume requested from outside the
// process, limited to runs of client when it is non-empty.
func (c *Controller) ExternalPauseResume(origin, client string, pause bool) error {
	return c.do("external_pause_resume", func() error {
		snap := c.engine.Snapshot()
		if client != "" && snap.Client != client {
			return nil
		}
		c.logger.Info("external timer action", "origin", origin, "pause", pause)
		if pause {
			return c.engine.Pause()
		}
		return c.engine.Resume()
	})
}

// AcknowledgeOverexertion dismisses the warning for a stopwatch run that went
// past its recommended maximum.
func (c *Controller) AcknowledgeOverexertion() error {
	return c.do("acknowledge", func() error {
		if c.engine.AcknowledgeOverexertion() {
			c.logger.Info("overexertion acknowledged", "owner", c.engine.Snapshot().Owner)
		}
		return nil
	})
}

// Next moves to the next method without completing the current one.
func (c *Controller) Next() error {
	return c.do("next", func() error {
		c.stopMainRun()
		c.progress.Advance()
		return nil
	})
}

// Previous moves back one method.
func (c *Controller) Previous() error {
	return c.do("previous", func() error {
		c.stopMainRun()
		c.progress.GoToPrevious()
		return nil
	})
}

// Skip marks the current method skipped and moves on.
func (c *Controller) Skip() error {
	return c.do("skip", func() error {
		c.stopMainRun()
		c.progress.Skip()
		return nil
	})
}

// ResetProgress clears the day's records and rearms completion detection.
func (c *Controller) ResetProgress() error {
	return c.do("reset", func() error {
		c.stopMainRun()
		c.progress.Reset()
		c.resolver.Rearm()
		return nil
	})
}

// SetAutoProgression toggles automatic advancing after natural completions.
func (c *Controller) SetAutoProgression(enabled bool) error {
	return c.do("set_auto_progression", func() error {
		c.progress.SetAutoProgression(enabled)
		return nil
	})
}

// QuickStart starts an ad-hoc countdown outside the day's schedule. It is
// denied while the main session holds the timer. A zero duration uses the
// configured default. It returns the run's owner ID.
func (c *Controller) QuickStart(name string, duration time.Duration) (string, error) {
	var owner string
	err := c.do("quick_start", func() error {
		var err error
		owner, err = c.handleQuickStart(name, duration)
		return err
	})
	return owner, err
}

// Background records that the host went to the background and persists the
// live run.
func (c *Controller) Background() error {
	return c.do("background", func() error {
		c.emit(&events.LifecycleEvent{
			BaseEvent: events.NewEvent(events.EventLifecycleBackground, events.SourceHost, c.clock.Now()),
			Visible:   false,
		})
		c.resolver.SetVisible(false)
		// A countdown may have reached zero since the last tick.
		c.observe(resolver.SourceTick, c.engine.Tick())
		if err := c.suspend(); err != nil {
			c.reportError(err, c.engine.Snapshot().Owner)
		}
		return nil
	})
}

// Foreground records that the host became visible. The persisted run is
// restored before anything observes the timer; then completion is checked
// and any held prompt is released.
func (c *Controller) Foreground() error {
	return c.do("foreground", func() error {
		c.emit(&events.LifecycleEvent{
			BaseEvent: events.NewEvent(events.EventLifecycleForeground, events.SourceHost, c.clock.Now()),
			Visible:   true,
		})
		c.restore()
		c.resolver.SetVisible(true)
		c.observe(resolver.SourceAppActive, c.engine.Tick())
		return nil
	})
}

// Tick advances the timer and checks for completion. The scheduler posts
// ticks without waiting; Tick waits, which tests and hosts without a
// scheduler rely on.
func (c *Controller) Tick() error {
	return c.do("tick", c.handleTick)
}

// PromptResult records the user's answer to the open completion prompt.
// Partial records the given duration instead of the timed one. Logging a
// main-session method moves on to the next method.
func (c *Controller) PromptResult(choice string, duration time.Duration) error {
	return c.do("prompt_result", func() error {
		completion, err := c.resolver.PromptClosed(choice, duration)
		if err != nil {
			return err
		}
		if completion.Client != arbiter.ClientMain {
			return nil
		}
		if choice == resolver.ChoicePartial {
			c.progress.CorrectDuration(completion.Owner, duration)
		}
		if choice == resolver.ChoiceDismiss {
			return nil
		}
		if m, ok := c.progress.CurrentMethod(); ok && m.ID == completion.Owner {
			c.progress.Advance()
		}
		return nil
	})
}

// Status observes the timer and reports the whole engine state.
func (c *Controller) Status() (Status, error) {
	var st Status
	err := c.do("status", func() error {
		c.observe(resolver.SourceRemaining, c.engine.Tick())
		st = c.status()
		return nil
	})
	return st, err
}

func (c *Controller) handleTick() error {
	c.observe(resolver.SourceTick, c.engine.Tick())
	return nil
}

func (c *Controller) handleStartCurrent() error {
	m, ok := c.progress.CurrentMethod()
	if !ok {
		return ErrNoMethod
	}

	snap := c.engine.Snapshot()
	if snap.Client == arbiter.ClientMain && snap.Owner == m.ID {
		switch {
		case snap.State == timer.StateRunning:
			return nil
		case snap.State == timer.StatePaused && !snap.ReachedZero():
			return c.engine.Resume()
		}
	}

	if err := c.gate.Acquire(arbiter.ClientMain); err != nil {
		return fmt.Errorf("start %s: %w", m.ID, err)
	}
	c.cancelAutoAdvance()
	if err := c.startMethod(m); err != nil {
		c.gate.Release(arbiter.ClientMain)
		return err
	}
	return nil
}

// startMethod configures and starts the engine for m. The caller holds the
// main client's slot in the gate.
func (c *Controller) startMethod(m schedule.Method) error {
	cfg := m.EngineConfig()
	cfg.Client = arbiter.ClientMain
	if cfg.Mode == timer.ModeStopwatch && cfg.MaxRecommended == 0 {
		cfg.MaxRecommended = c.config.Timer.MaxRecommended
	}
	if err := c.configure(cfg); err != nil {
		return fmt.Errorf("configure %s: %w", m.ID, err)
	}
	if err := c.engine.Start(); err != nil {
		return fmt.Errorf("start %s: %w", m.ID, err)
	}
	c.progress.MarkStarted(m.ID)
	c.logger.Info("method started", "method", m.ID, "name", m.Name, "mode", cfg.Mode)
	return nil
}

// configure reconfigures the engine with completion detection suppressed.
func (c *Controller) configure(cfg timer.Config) error {
	c.resolver.BeginConfigure(cfg.Owner)
	defer c.resolver.EndConfigure()
	return c.engine.Configure(cfg)
}

func (c *Controller) handleQuickStart(name string, duration time.Duration) (string, error) {
	if duration == 0 {
		duration = c.config.Quick.Duration
	}
	if name == "" {
		name = c.config.Quick.Name
	}
	cfg := timer.Config{
		Mode:      timer.ModeCountdown,
		Duration:  duration,
		Owner:     QuickOwnerPrefix + uuid.NewString(),
		OwnerName: name,
		Client:    arbiter.ClientQuickPractice,
	}
	if err := cfg.Validate(); err != nil {
		return "", err
	}
	if err := c.gate.Acquire(arbiter.ClientQuickPractice); err != nil {
		return "", fmt.Errorf("quick practice: %w", err)
	}
	if err := c.configure(cfg); err != nil {
		c.gate.Release(arbiter.ClientQuickPractice)
		return "", err
	}
	if err := c.engine.Start(); err != nil {
		c.gate.Release(arbiter.ClientQuickPractice)
		return "", err
	}
	c.emit(&events.MethodStartedEvent{
		BaseEvent:  events.NewEvent(events.EventMethodStarted, events.SourceEngine, c.clock.Now()),
		MethodID:   cfg.Owner,
		MethodName: name,
		Client:     arbiter.ClientQuickPractice,
	})
	c.logger.Info("quick practice started", "owner", cfg.Owner, "duration", duration)
	return cfg.Owner, nil
}

// observe hands a snapshot to the resolver and acts on a new completion.
func (c *Controller) observe(source resolver.Source, snap timer.Snapshot) {
	if completion, ok := c.resolver.Observe(source, snap); ok {
		c.handleCompletion(completion)
	}
}

// handleCompletion runs once per completed configuration. The persisted
// record is cleared first so a finished run can never be restored.
func (c *Controller) handleCompletion(completion resolver.Completion) {
	c.engine.ClearPersisted()

	if completion.Client != arbiter.ClientMain {
		c.emit(&events.MethodCompletedEvent{
			BaseEvent:  events.NewEvent(events.EventMethodCompleted, events.SourceEngine, c.clock.Now()),
			MethodID:   completion.Owner,
			MethodName: completion.OwnerName,
			Client:     completion.Client,
			DurationMs: completion.Duration.Milliseconds(),
			Trigger:    string(completion.Source),
		})
		c.requestPromptThenStop(completion)
		return
	}

	c.progress.MarkCompleted(completion.Owner, completion.Duration, string(completion.Source))
	if c.progress.Decide(completion.Owner) == session.DecisionAutoAdvance {
		c.scheduleAutoAdvance(completion.Owner)
		return
	}
	c.requestPromptThenStop(completion)
}

// requestPromptThenStop asks for the completion prompt and only then stops
// the timer, so the prompt owns what happens next.
func (c *Controller) requestPromptThenStop(completion resolver.Completion) {
	action := c.resolver.RequestPrompt(completion)
	c.logger.Info("completion prompt", "owner", completion.Owner, "action", action)
	c.engine.Stop()
	c.gate.Release(completion.Client)
}

func (c *Controller) scheduleAutoAdvance(owner string) {
	c.cancelAutoAdvance()
	delay := c.config.Session.AutoProgressDelay
	c.autoFor = owner
	c.autoTimer = c.clock.AfterFunc(delay, func() {
		c.deliver("auto_advance", func() error { return c.handleAutoAdvance(owner) })
	})
	c.logger.Info("auto-advance scheduled", "after", owner, "delay", delay)
}

func (c *Controller) cancelAutoAdvance() {
	if c.autoTimer != nil {
		c.autoTimer.Stop()
	}
	c.autoTimer = nil
	c.autoFor = ""
}

func (c *Controller) handleAutoAdvance(owner string) error {
	if c.autoFor != owner {
		// Canceled after the callback fired but before it ran.
		return nil
	}
	c.autoTimer = nil
	c.autoFor = ""

	if m, ok := c.progress.CurrentMethod(); !ok || m.ID != owner {
		c.logger.Info("auto-advance skipped, session moved", "after", owner)
		return nil
	}
	if !c.progress.Advance() {
		return nil
	}
	next, _ := c.progress.CurrentMethod()
	if err := c.gate.Acquire(arbiter.ClientMain); err != nil {
		c.reportError(err, next.ID)
		return err
	}
	if err := c.startMethod(next); err != nil {
		c.gate.Release(arbiter.ClientMain)
		c.reportError(err, next.ID)
		return err
	}
	return nil
}

// stopRun stops whatever run is live and frees its gate slot.
func (c *Controller) stopRun() {
	c.cancelAutoAdvance()
	snap := c.engine.Snapshot()
	c.engine.Stop()
	if snap.Client != "" {
		c.gate.Release(snap.Client)
	}
}

// stopMainRun stops the live run only if it belongs to the main session. An
// idle engine is left alone so a record persisted by a previous process
// survives until Restore reads it.
func (c *Controller) stopMainRun() {
	c.cancelAutoAdvance()
	if c.engine.Snapshot().Client != arbiter.ClientMain {
		return
	}
	c.engine.Stop()
	c.gate.Release(arbiter.ClientMain)
}

// restore reconstructs a persisted run. Stale records are discarded by the
// engine and never surface as errors.
func (c *Controller) restore() {
	res, err := c.engine.RestoreFromBackground(c.validOwner)
	switch {
	case errors.Is(err, timer.ErrStaleRestoration):
		c.logger.Info("discarded stale timer record", "owner", res.Owner)
		c.gate.Release(res.Client)
		return
	case err != nil:
		c.reportError(err, "")
		return
	case !res.Restored:
		return
	}

	if err := c.gate.Acquire(res.Client); err != nil {
		c.logger.Warn("restored run conflicts with the timer holder", "client", res.Client, "error", err)
	}
	c.resolver.BeginConfigure(res.Owner)
	c.resolver.EndConfigure()
	c.logger.Info("timer restored",
		"owner", res.Owner,
		"client", res.Client,
		"suspended", res.Suspended,
		"state", res.Snapshot.State)
	c.observe(resolver.SourceRestore, res.Snapshot)
}

func (c *Controller) validOwner(owner string) bool {
	if strings.HasPrefix(owner, QuickOwnerPrefix) {
		return true
	}
	return c.progress.Contains(owner)
}

func (c *Controller) reportError(err error, methodID string) {
	c.logger.Error("engine error", "error", err, "method", methodID)
	c.emit(&events.ErrorEvent{
		BaseEvent: events.NewEvent(events.EventError, events.SourceEngine, c.clock.Now()),
		Message:   err.Error(),
		Severity:  events.SeverityError,
		MethodID:  methodID,
	})
}

func (c *Controller) emit(event events.Event) {
	if c.router != nil {
		c.router.Emit(event)
	}
}
