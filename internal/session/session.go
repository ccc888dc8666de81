// Package session tracks progression through one practice day: which method
// is current, what each method's run record says, and whether completing a
// method should advance automatically or ask the user.
package session

import (
	"log/slog"
	"sync"
	"time"

	"github.com/npratt/growth/internal/clock"
	"github.com/npratt/growth/internal/events"
	"github.com/npratt/growth/internal/schedule"
)

// DayState is the progression state of the loaded day.
type DayState string

// Day states.
const (
	DayNotStarted DayState = "not_started"
	DayInProgress DayState = "in_progress"
	DayCompleted  DayState = "completed"
)

// Decision is what should follow a natural completion.
type Decision int

// Completion decisions.
const (
	// DecisionPrompt asks the completion prompt collaborator, then stops the timer.
	DecisionPrompt Decision = iota
	// DecisionAutoAdvance moves to the next method and starts it after a delay.
	DecisionAutoAdvance
)

func (d Decision) String() string {
	if d == DecisionAutoAdvance {
		return "auto_advance"
	}
	return "prompt"
}

// Record is the run record of one method.
type Record struct {
	MethodID  string
	Started   bool
	Completed bool
	// Skipped marks a method advanced past without completing. Skipped
	// methods also count as Completed, with zero duration.
	Skipped   bool
	Duration  time.Duration
	UpdatedAt time.Time
}

// Status maps the record onto the per-method lifecycle.
func (r Record) Status() events.MethodStatus {
	switch {
	case r.Skipped:
		return events.MethodSkipped
	case r.Completed:
		return events.MethodCompleted
	case r.Started:
		return events.MethodStarted
	}
	return events.MethodPending
}

// History converts the record to its persisted form.
func (r Record) History() *events.MethodHistory {
	return &events.MethodHistory{
		ID:         r.MethodID,
		Status:     r.Status(),
		DurationMs: r.Duration.Milliseconds(),
		UpdatedAt:  r.UpdatedAt,
	}
}

// RecordsFromHistory converts persisted history back into run records.
func RecordsFromHistory(history map[string]*events.MethodHistory) map[string]Record {
	out := make(map[string]Record, len(history))
	for id, h := range history {
		if h == nil {
			continue
		}
		rec := Record{
			MethodID:  id,
			Duration:  time.Duration(h.DurationMs) * time.Millisecond,
			UpdatedAt: h.UpdatedAt,
		}
		switch h.Status {
		case events.MethodSkipped:
			rec.Started, rec.Completed, rec.Skipped = true, true, true
			rec.Duration = 0
		case events.MethodCompleted:
			rec.Started, rec.Completed = true, true
		case events.MethodStarted:
			rec.Started = true
		}
		out[id] = rec
	}
	return out
}

// Progression is the session progression state machine for one day. It
// mutates only its own records; the timer is driven by the caller.
type Progression struct {
	clock  clock.Clock
	router *events.Router
	logger *slog.Logger

	mu              sync.Mutex
	routineID       string
	day             schedule.Day
	index           int
	records         map[string]*Record
	autoProgression bool
	announced       bool
}

// New creates an empty progression. Load a day before use.
func New(clk clock.Clock, router *events.Router, logger *slog.Logger) *Progression {
	if clk == nil {
		clk = clock.New()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Progression{
		clock:   clk,
		router:  router,
		logger:  logger,
		records: make(map[string]*Record),
	}
}

// Load replaces the schedule with day. Records from prior are kept for
// methods the day still schedules, so a restarted process resumes where it
// left off; the current index moves to the first unfinished method.
func (p *Progression) Load(routineID string, day schedule.Day, prior map[string]Record) {
	p.mu.Lock()
	p.routineID = routineID
	p.day = day
	p.index = 0
	p.records = make(map[string]*Record, len(day.Methods))
	for _, m := range day.Methods {
		rec := Record{MethodID: m.ID}
		if old, ok := prior[m.ID]; ok {
			rec = old
			rec.MethodID = m.ID
		}
		p.records[m.ID] = &rec
	}

	p.index = len(day.Methods) - 1
	if p.index < 0 {
		p.index = 0
	}
	for i, m := range day.Methods {
		if !p.records[m.ID].Completed {
			p.index = i
			break
		}
	}

	completed, total := p.progressLocked()
	p.announced = total > 0 && completed == total
	now := p.clock.Now()
	ev := &events.SessionLoadedEvent{
		BaseEvent:   events.NewEvent(events.EventSessionLoaded, events.SourceSession, now),
		RoutineID:   routineID,
		Day:         day.Number,
		Rest:        day.Rest,
		MethodCount: total,
		Completed:   completed,
	}
	p.mu.Unlock()

	p.logger.Info("day loaded",
		"routine", routineID,
		"day", day.Number,
		"rest", day.Rest,
		"methods", total,
		"completed", completed)
	p.emit(ev)
}

// RoutineID returns the loaded routine's ID.
func (p *Progression) RoutineID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.routineID
}

// Day returns the loaded day.
func (p *Progression) Day() schedule.Day {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.day
}

// State derives the day's progression state from its records.
func (p *Progression) State() DayState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stateLocked()
}

func (p *Progression) stateLocked() DayState {
	if p.day.Rest {
		return DayCompleted
	}
	completed, total := p.progressLocked()
	if total > 0 && completed == total {
		return DayCompleted
	}
	for _, rec := range p.records {
		if rec.Started || rec.Completed {
			return DayInProgress
		}
	}
	return DayNotStarted
}

// CurrentMethod returns the method at the current index. It reports false
// when the day has no methods.
func (p *Progression) CurrentMethod() (schedule.Method, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.index < 0 || p.index >= len(p.day.Methods) {
		return schedule.Method{}, false
	}
	return p.day.Methods[p.index], true
}

// Index returns the current position.
func (p *Progression) Index() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.index
}

// Methods returns the day's methods in order.
func (p *Progression) Methods() []schedule.Method {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]schedule.Method(nil), p.day.Methods...)
}

// Method looks up a scheduled method by ID.
func (p *Progression) Method(id string) (schedule.Method, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	i := p.positionLocked(id)
	if i < 0 {
		return schedule.Method{}, false
	}
	return p.day.Methods[i], true
}

// Contains reports whether the loaded day schedules id.
func (p *Progression) Contains(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.positionLocked(id) >= 0
}

// Record returns the run record for id.
func (p *Progression) Record(id string) (Record, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	rec, ok := p.records[id]
	if !ok {
		return Record{}, false
	}
	return *rec, true
}

// Records returns a copy of every run record.
func (p *Progression) Records() map[string]Record {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]Record, len(p.records))
	for id, rec := range p.records {
		out[id] = *rec
	}
	return out
}

// CanAdvance reports whether a method follows the current one.
func (p *Progression) CanAdvance() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.index < len(p.day.Methods)-1
}

// CanGoBack reports whether a method precedes the current one.
func (p *Progression) CanGoBack() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.index > 0
}

// Progress returns how many methods are completed (skipped included) out
// of the day's total.
func (p *Progression) Progress() (completed, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.progressLocked()
}

func (p *Progression) progressLocked() (completed, total int) {
	for _, m := range p.day.Methods {
		if rec := p.records[m.ID]; rec != nil && rec.Completed {
			completed++
		}
	}
	return completed, len(p.day.Methods)
}

// TotalDuration sums the recorded durations of completed methods.
func (p *Progression) TotalDuration() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.totalDurationLocked()
}

func (p *Progression) totalDurationLocked() time.Duration {
	var total time.Duration
	for _, rec := range p.records {
		if rec.Completed {
			total += rec.Duration
		}
	}
	return total
}

// AutoProgression reports whether natural completions advance automatically.
func (p *Progression) AutoProgression() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.autoProgression
}

// SetAutoProgression enables or disables automatic advancing.
func (p *Progression) SetAutoProgression(enabled bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.autoProgression = enabled
}

// Decide returns what should follow the natural completion of id:
// auto-advance when enabled and a method follows it, otherwise prompt.
func (p *Progression) Decide(id string) Decision {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.decideLocked(id)
}

func (p *Progression) decideLocked(id string) Decision {
	i := p.positionLocked(id)
	if p.autoProgression && i >= 0 && i < len(p.day.Methods)-1 {
		return DecisionAutoAdvance
	}
	return DecisionPrompt
}

func (p *Progression) positionLocked(id string) int {
	for i, m := range p.day.Methods {
		if m.ID == id {
			return i
		}
	}
	return -1
}
