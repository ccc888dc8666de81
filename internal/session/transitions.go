package session

import (
	"time"

	"github.com/npratt/growth/internal/arbiter"
	"github.com/npratt/growth/internal/events"
)

// MarkStarted moves a pending method to started. Calling it again, or for a
// method that is already completed, changes nothing.
func (p *Progression) MarkStarted(id string) bool {
	p.mu.Lock()
	rec, ok := p.records[id]
	if !ok || rec.Started || rec.Completed {
		p.mu.Unlock()
		return false
	}
	method := p.day.Methods[p.positionLocked(id)]
	now := p.clock.Now()
	rec.Started = true
	rec.UpdatedAt = now
	ev := &events.MethodStartedEvent{
		BaseEvent:  events.NewEvent(events.EventMethodStarted, events.SourceSession, now),
		MethodID:   id,
		MethodName: method.Name,
		Client:     arbiter.ClientMain,
		Day:        p.day.Number,
	}
	p.mu.Unlock()

	p.emit(ev)
	return true
}

// MarkCompleted records the completion of id with its duration. Only the
// first call is authoritative; later calls return false and leave the record
// alone. Use CorrectDuration to change a recorded duration.
func (p *Progression) MarkCompleted(id string, duration time.Duration, trigger string) bool {
	p.mu.Lock()
	rec, ok := p.records[id]
	if !ok {
		p.mu.Unlock()
		p.logger.Warn("completion for unscheduled method ignored", "method", id)
		return false
	}
	if rec.Completed {
		p.mu.Unlock()
		p.logger.Debug("duplicate completion ignored", "method", id, "trigger", trigger)
		return false
	}

	now := p.clock.Now()
	rec.Started = true
	rec.Completed = true
	rec.Duration = duration
	rec.UpdatedAt = now
	method := p.day.Methods[p.positionLocked(id)]
	pending := []events.Event{&events.MethodCompletedEvent{
		BaseEvent:   events.NewEvent(events.EventMethodCompleted, events.SourceSession, now),
		MethodID:    id,
		MethodName:  method.Name,
		Client:      arbiter.ClientMain,
		Day:         p.day.Number,
		RoutineID:   p.routineID,
		DurationMs:  duration.Milliseconds(),
		Trigger:     trigger,
		AutoAdvance: p.decideLocked(id) == DecisionAutoAdvance,
	}}
	pending = append(pending, p.announceLocked(now)...)
	p.mu.Unlock()

	p.emit(pending...)
	return true
}

// CorrectDuration replaces the recorded duration of a completed method, for
// example when the user logs a partial session. Skipped methods keep zero.
func (p *Progression) CorrectDuration(id string, duration time.Duration) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	rec, ok := p.records[id]
	if !ok || !rec.Completed || rec.Skipped || duration < 0 {
		return false
	}
	rec.Duration = duration
	rec.UpdatedAt = p.clock.Now()
	return true
}

// Advance moves to the next method. At the last method it does nothing and
// returns false.
func (p *Progression) Advance() bool {
	p.mu.Lock()
	if p.index >= len(p.day.Methods)-1 {
		p.mu.Unlock()
		return false
	}
	ev := p.moveLocked(p.index + 1)
	p.mu.Unlock()

	p.emit(ev)
	return true
}

// GoToPrevious moves back one method. At the first method it does nothing
// and returns false.
func (p *Progression) GoToPrevious() bool {
	p.mu.Lock()
	if p.index <= 0 {
		p.mu.Unlock()
		return false
	}
	ev := p.moveLocked(p.index - 1)
	p.mu.Unlock()

	p.emit(ev)
	return true
}

// Skip advances past the current method without completing it. The method
// is recorded as completed with zero duration so progress counts stay
// consistent. A method that already completed keeps its record.
func (p *Progression) Skip() bool {
	p.mu.Lock()
	if p.index >= len(p.day.Methods) {
		p.mu.Unlock()
		return false
	}

	now := p.clock.Now()
	method := p.day.Methods[p.index]
	rec := p.records[method.ID]
	var pending []events.Event
	if !rec.Completed {
		rec.Completed = true
		rec.Skipped = true
		rec.Duration = 0
		rec.UpdatedAt = now
		pending = append(pending, &events.MethodSkippedEvent{
			BaseEvent: events.NewEvent(events.EventMethodSkipped, events.SourceSession, now),
			MethodID:  method.ID,
			Day:       p.day.Number,
		})
		pending = append(pending, p.announceLocked(now)...)
	}
	if p.index < len(p.day.Methods)-1 {
		pending = append(pending, p.moveLocked(p.index+1))
	}
	p.mu.Unlock()

	p.emit(pending...)
	return len(pending) > 0
}

// Reset clears every run record and returns to the first method.
func (p *Progression) Reset() {
	p.mu.Lock()
	for id := range p.records {
		p.records[id] = &Record{MethodID: id}
	}
	p.index = 0
	p.announced = false
	ev := &events.SessionResetEvent{
		BaseEvent: events.NewEvent(events.EventSessionReset, events.SourceSession, p.clock.Now()),
		Day:       p.day.Number,
	}
	p.mu.Unlock()

	p.logger.Info("session progress reset", "day", ev.Day)
	p.emit(ev)
}

func (p *Progression) moveLocked(to int) events.Event {
	from := p.index
	p.index = to
	return &events.SessionAdvancedEvent{
		BaseEvent: events.NewEvent(events.EventSessionAdvanced, events.SourceSession, p.clock.Now()),
		From:      from,
		To:        to,
		MethodID:  p.day.Methods[to].ID,
	}
}

// announceLocked returns the session completed event the first time every
// method is completed.
func (p *Progression) announceLocked(now time.Time) []events.Event {
	completed, total := p.progressLocked()
	if p.announced || total == 0 || completed < total {
		return nil
	}
	p.announced = true
	return []events.Event{&events.SessionCompletedEvent{
		BaseEvent:       events.NewEvent(events.EventSessionCompleted, events.SourceSession, now),
		RoutineID:       p.routineID,
		Day:             p.day.Number,
		MethodCount:     total,
		TotalDurationMs: p.totalDurationLocked().Milliseconds(),
	}}
}

func (p *Progression) emit(pending ...events.Event) {
	if p.router == nil {
		return
	}
	for _, ev := range pending {
		p.router.Emit(ev)
	}
}
