// Package resolver turns the many signals that can observe a finished timer
// into exactly one completion per timer configuration, and keeps at most one
// completion prompt open.
package resolver

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/npratt/growth/internal/clock"
	"github.com/npratt/growth/internal/events"
	"github.com/npratt/growth/internal/timer"
)

// Source names a signal that can observe completion.
type Source string

// Completion signal sources.
const (
	SourceTick      Source = "tick"
	SourceAppActive Source = "app_active"
	SourceRestore   Source = "restore"
	SourceRemaining Source = "remaining_observed"
)

// Phase is the latch state for the current configuration.
type Phase string

// Latch phases. Idle has no run to watch; Configuring suppresses detection
// while the engine is being reconfigured; Detecting accepts the first
// completion; Handled drops every later one.
const (
	PhaseIdle        Phase = "idle"
	PhaseConfiguring Phase = "configuring"
	PhaseDetecting   Phase = "detecting"
	PhaseHandled     Phase = "handled"
)

// Prompt choices reported by the completion prompt collaborator.
const (
	ChoiceLog     = "log"
	ChoiceDismiss = "dismiss"
	ChoicePartial = "partial"
)

// ValidChoice reports whether choice is a known prompt answer.
func ValidChoice(choice string) bool {
	switch choice {
	case ChoiceLog, ChoiceDismiss, ChoicePartial:
		return true
	}
	return false
}

// Completion is one authoritative completion of a timer run.
type Completion struct {
	Owner     string
	OwnerName string
	Client    string
	RunID     string
	Duration  time.Duration
	Source    Source
	At        time.Time
}

// PromptAction is the gating decision for a completion prompt.
type PromptAction int

// Prompt actions.
const (
	// PromptShow means the prompt should be opened now.
	PromptShow PromptAction = iota
	// PromptDefer means the host is not visible; the prompt is held until it is.
	PromptDefer
	// PromptDrop means a prompt is already open or held, so this one is discarded.
	PromptDrop
)

func (a PromptAction) String() string {
	switch a {
	case PromptShow:
		return "show"
	case PromptDefer:
		return "defer"
	}
	return "drop"
}

type promptState int

const (
	promptNone promptState = iota
	promptHeld
	promptOpen
)

// Resolver is the completion latch and prompt gate.
type Resolver struct {
	clock  clock.Clock
	router *events.Router
	logger *slog.Logger

	mu         sync.Mutex
	phase      Phase
	owner      string
	visible    bool
	prompt     promptState
	promptFor  Completion
	duplicates int
}

// New creates an idle resolver. The host starts visible.
func New(clk clock.Clock, router *events.Router, logger *slog.Logger) *Resolver {
	if clk == nil {
		clk = clock.New()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		clock:   clk,
		router:  router,
		logger:  logger,
		phase:   PhaseIdle,
		visible: true,
	}
}

// BeginConfigure suppresses detection while the engine is configured for
// owner. A new owner clears the latch; reconfiguring the same owner keeps a
// handled latch handled.
func (r *Resolver) BeginConfigure(owner string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if owner != r.owner {
		r.owner = owner
		r.phase = PhaseConfiguring
		return
	}
	if r.phase != PhaseHandled {
		r.phase = PhaseConfiguring
	}
}

// EndConfigure re-enables detection once configuration has finished.
func (r *Resolver) EndConfigure() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.phase == PhaseConfiguring {
		r.phase = PhaseDetecting
	}
}

// Rearm clears a handled latch for the current owner. Used when the user
// explicitly restarts after resetting progress.
func (r *Resolver) Rearm() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.owner != "" {
		r.phase = PhaseDetecting
	}
}

// Clear forgets the watched run. Later observations are ignored until the
// next configuration.
func (r *Resolver) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.owner = ""
	r.phase = PhaseIdle
}

// Phase returns the latch phase.
func (r *Resolver) Phase() Phase {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.phase
}

// Owner returns the owner the latch is scoped to.
func (r *Resolver) Owner() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.owner
}

// Duplicates returns how many completion observations were suppressed by a
// handled latch.
func (r *Resolver) Duplicates() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.duplicates
}

// Observe checks a snapshot seen by source. It returns a completion only for
// the first completion-shaped snapshot of the watched configuration; every
// other observation is a no-op.
func (r *Resolver) Observe(source Source, snap timer.Snapshot) (Completion, bool) {
	if !snap.ReachedZero() {
		return Completion{}, false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if snap.Owner != r.owner {
		r.logger.Debug("completion for unwatched owner ignored",
			"source", source, "owner", snap.Owner, "watched", r.owner)
		return Completion{}, false
	}
	switch r.phase {
	case PhaseDetecting:
	case PhaseHandled:
		r.duplicates++
		r.logger.Debug("duplicate completion suppressed", "source", source, "owner", snap.Owner)
		return Completion{}, false
	default:
		r.logger.Debug("completion suppressed", "source", source, "owner", snap.Owner, "phase", r.phase)
		return Completion{}, false
	}

	r.phase = PhaseHandled
	c := Completion{
		Owner:     snap.Owner,
		OwnerName: snap.OwnerName,
		Client:    snap.Client,
		RunID:     snap.RunID,
		Duration:  snap.Elapsed,
		Source:    source,
		At:        r.clock.Now(),
	}
	r.logger.Info("completion detected", "source", source, "owner", c.Owner, "duration", c.Duration)
	return c, true
}

// Visible reports whether the host is visible.
func (r *Resolver) Visible() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.visible
}

// RequestPrompt gates the completion prompt for c. Only one prompt may be
// open or held at a time; while the host is not visible the prompt is held.
func (r *Resolver) RequestPrompt(c Completion) PromptAction {
	r.mu.Lock()
	if r.prompt != promptNone {
		r.mu.Unlock()
		r.logger.Info("completion prompt dropped, another is pending", "owner", c.Owner)
		return PromptDrop
	}
	r.promptFor = c
	action := PromptShow
	r.prompt = promptOpen
	if !r.visible {
		action = PromptDefer
		r.prompt = promptHeld
	}
	r.mu.Unlock()

	r.emitRequested(c, action == PromptDefer)
	return action
}

// SetVisible records host visibility. Becoming visible releases a held
// prompt, which is returned so the caller can show it.
func (r *Resolver) SetVisible(visible bool) (Completion, bool) {
	r.mu.Lock()
	r.visible = visible
	if !visible || r.prompt != promptHeld {
		r.mu.Unlock()
		return Completion{}, false
	}
	r.prompt = promptOpen
	c := r.promptFor
	r.mu.Unlock()

	r.emitRequested(c, false)
	return c, true
}

// PromptOpen reports whether a prompt is open or held, and for which
// completion.
func (r *Resolver) PromptOpen() (Completion, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.promptFor, r.prompt != promptNone
}

// PromptClosed records the user's answer and frees the prompt slot. It
// returns the completion the prompt was shown for.
func (r *Resolver) PromptClosed(choice string, duration time.Duration) (Completion, error) {
	if !ValidChoice(choice) {
		return Completion{}, fmt.Errorf("unknown prompt choice %q", choice)
	}

	r.mu.Lock()
	if r.prompt == promptNone {
		r.mu.Unlock()
		return Completion{}, fmt.Errorf("no completion prompt is open")
	}
	c := r.promptFor
	r.prompt = promptNone
	r.promptFor = Completion{}
	r.mu.Unlock()

	if choice != ChoicePartial {
		duration = c.Duration
	}
	if r.router != nil {
		r.router.Emit(&events.PromptResolvedEvent{
			BaseEvent:  events.NewEvent(events.EventPromptResolved, events.SourceResolver, r.clock.Now()),
			MethodID:   c.Owner,
			Choice:     choice,
			DurationMs: duration.Milliseconds(),
		})
	}
	return c, nil
}

func (r *Resolver) emitRequested(c Completion, deferred bool) {
	if r.router == nil {
		return
	}
	r.router.Emit(&events.PromptRequestedEvent{
		BaseEvent:  events.NewEvent(events.EventPromptRequested, events.SourceResolver, r.clock.Now()),
		MethodID:   c.Owner,
		MethodName: c.OwnerName,
		Client:     c.Client,
		DurationMs: c.Duration.Milliseconds(),
		Deferred:   deferred,
	})
}
