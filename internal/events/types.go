// Package events defines the engine's event taxonomy and the router that
// carries it. Every observable transition of the timer, the session, and the
// completion prompt is published here exactly once.
package events

import "time"

// EventType identifies the category and nature of an event.
type EventType string

const (
	// Timer events
	EventTimerStateChanged     EventType = "timer.state_changed"
	EventTimerOverexertion     EventType = "timer.overexertion"
	EventTimerRestored         EventType = "timer.restored"
	EventTimerRestoreDiscarded EventType = "timer.restore_discarded"

	// Host lifecycle events
	EventLifecycleBackground EventType = "lifecycle.background"
	EventLifecycleForeground EventType = "lifecycle.foreground"

	// Method events
	EventMethodStarted   EventType = "method.started"
	EventMethodCompleted EventType = "method.completed"
	EventMethodSkipped   EventType = "method.skipped"

	// Session events
	EventSessionLoaded    EventType = "session.loaded"
	EventSessionAdvanced  EventType = "session.advanced"
	EventSessionCompleted EventType = "session.completed"
	EventSessionReset     EventType = "session.reset"

	// Completion prompt events
	EventPromptRequested EventType = "prompt.requested"
	EventPromptResolved  EventType = "prompt.resolved"

	// Out-of-process control
	EventStopRequested EventType = "stop.requested"

	// Error events
	EventError EventType = "error"
)

// Source constants identify the origin of events.
const (
	SourceEngine   = "engine"
	SourceSession  = "session"
	SourceResolver = "resolver"
	SourceHost     = "host"
	SourceWidget   = "widget"
	SourceDaemon   = "daemon"
)

// Event is the base interface for all events in the system.
type Event interface {
	Type() EventType
	Timestamp() time.Time
	Source() string
}

// BaseEvent provides the common fields for all events.
type BaseEvent struct {
	EventType EventType `json:"type"`
	Time      time.Time `json:"timestamp"`
	Src       string    `json:"source"`
}

// Type returns the event type.
func (e BaseEvent) Type() EventType {
	return e.EventType
}

// Timestamp returns when the event occurred.
func (e BaseEvent) Timestamp() time.Time {
	return e.Time
}

// Source returns the origin of the event.
func (e BaseEvent) Source() string {
	return e.Src
}

// NewEvent creates a BaseEvent with the given type, source and time.
func NewEvent(eventType EventType, source string, at time.Time) BaseEvent {
	return BaseEvent{
		EventType: eventType,
		Time:      at,
		Src:       source,
	}
}

// TimerStateChangedEvent is the canonical notification for every timer
// transition. Reason names the operation that caused it.
type TimerStateChangedEvent struct {
	BaseEvent
	Reason        string `json:"reason"`
	Mode          string `json:"mode"`
	State         string `json:"state"`
	Owner         string `json:"owner,omitempty"`
	OwnerName     string `json:"owner_name,omitempty"`
	RunID         string `json:"run_id,omitempty"`
	ElapsedMs     int64  `json:"elapsed_ms"`
	RemainingMs   *int64 `json:"remaining_ms,omitempty"`
	TotalMs       *int64 `json:"total_ms,omitempty"`
	IntervalIndex *int   `json:"interval_index,omitempty"`
	IntervalName  string `json:"interval_name,omitempty"`
}

// TimerOverexertionEvent is emitted once per run when a stopwatch method runs
// past its recommended maximum.
type TimerOverexertionEvent struct {
	BaseEvent
	Owner            string `json:"owner"`
	ElapsedMs        int64  `json:"elapsed_ms"`
	MaxRecommendedMs int64  `json:"max_recommended_ms"`
}

// TimerRestoredEvent is emitted when a persisted run is reconstructed.
type TimerRestoredEvent struct {
	BaseEvent
	Owner       string `json:"owner"`
	Client      string `json:"client"`
	State       string `json:"state"`
	ElapsedMs   int64  `json:"elapsed_ms"`
	SuspendedMs int64  `json:"suspended_ms"`
}

// TimerRestoreDiscardedEvent is emitted when a persisted run no longer matches
// the loaded schedule and was dropped.
type TimerRestoreDiscardedEvent struct {
	BaseEvent
	Owner  string `json:"owner"`
	Reason string `json:"reason"`
}

// LifecycleEvent records the host moving to the background or foreground.
type LifecycleEvent struct {
	BaseEvent
	Visible bool `json:"visible"`
}

// MethodStartedEvent is emitted the first time a method's timer starts.
type MethodStartedEvent struct {
	BaseEvent
	MethodID   string `json:"method_id"`
	MethodName string `json:"method_name"`
	Client     string `json:"client"`
	Day        int    `json:"day,omitempty"`
}

// MethodCompletedEvent is emitted once per completed method run.
type MethodCompletedEvent struct {
	BaseEvent
	MethodID    string `json:"method_id"`
	MethodName  string `json:"method_name"`
	Client      string `json:"client"`
	Day         int    `json:"day,omitempty"`
	RoutineID   string `json:"routine_id,omitempty"`
	DurationMs  int64  `json:"duration_ms"`
	Trigger     string `json:"trigger"`
	AutoAdvance bool   `json:"auto_advance"`
}

// MethodSkippedEvent is emitted when the user advances past a method without
// completing it.
type MethodSkippedEvent struct {
	BaseEvent
	MethodID string `json:"method_id"`
	Day      int    `json:"day,omitempty"`
}

// SessionLoadedEvent is emitted when a day's schedule is loaded.
type SessionLoadedEvent struct {
	BaseEvent
	RoutineID   string `json:"routine_id"`
	Day         int    `json:"day"`
	Rest        bool   `json:"rest"`
	MethodCount int    `json:"method_count"`
	Completed   int    `json:"completed"`
}

// SessionAdvancedEvent is emitted when the current method index changes.
type SessionAdvancedEvent struct {
	BaseEvent
	From     int    `json:"from"`
	To       int    `json:"to"`
	MethodID string `json:"method_id,omitempty"`
}

// SessionCompletedEvent is emitted once when every method of the day is
// completed.
type SessionCompletedEvent struct {
	BaseEvent
	RoutineID       string `json:"routine_id"`
	Day             int    `json:"day"`
	MethodCount     int    `json:"method_count"`
	TotalDurationMs int64  `json:"total_duration_ms"`
}

// SessionResetEvent is emitted when the user resets the day's progress.
type SessionResetEvent struct {
	BaseEvent
	Day int `json:"day"`
}

// PromptRequestedEvent asks the completion prompt collaborator to offer the
// user log/dismiss/partial choices.
type PromptRequestedEvent struct {
	BaseEvent
	MethodID   string `json:"method_id"`
	MethodName string `json:"method_name"`
	Client     string `json:"client"`
	DurationMs int64  `json:"duration_ms"`
	Deferred   bool   `json:"deferred,omitempty"`
}

// PromptResolvedEvent records the user's answer to a completion prompt.
type PromptResolvedEvent struct {
	BaseEvent
	MethodID   string `json:"method_id"`
	Choice     string `json:"choice"`
	DurationMs int64  `json:"duration_ms"`
}

// StopRequestedEvent records an out-of-process stop request.
type StopRequestedEvent struct {
	BaseEvent
	Client string `json:"client"`
	Origin string `json:"origin"`
}

// Severity constants for error events.
const (
	SeverityWarning = "warning"
	SeverityError   = "error"
)

// ErrorEvent is emitted for any error condition worth surfacing.
type ErrorEvent struct {
	BaseEvent
	Message  string `json:"message"`
	Severity string `json:"severity"`
	MethodID string `json:"method_id,omitempty"`
}

// MethodStatus represents the state of one method in the day's history.
type MethodStatus string

// MethodStatus constants.
const (
	MethodPending   MethodStatus = "pending"
	MethodStarted   MethodStatus = "started"
	MethodCompleted MethodStatus = "completed"
	MethodSkipped   MethodStatus = "skipped"
)

// MethodHistory tracks one method's run record. Shared between the session
// progression and the state sink.
type MethodHistory struct {
	ID         string       `json:"id"`
	Status     MethodStatus `json:"status"`
	DurationMs int64        `json:"duration_ms"`
	UpdatedAt  time.Time    `json:"updated_at"`
}
