// Package timer implements the single process-wide timer: stopwatch,
// countdown and interval modes, pause accounting, and background
// persistence of a live run.
package timer

import (
	"errors"
	"fmt"
	"time"
)

// Mode selects how the timer measures a run.
type Mode string

// Timer modes.
const (
	ModeStopwatch Mode = "stopwatch"
	ModeCountdown Mode = "countdown"
	ModeInterval  Mode = "interval"
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	switch m {
	case ModeStopwatch, ModeCountdown, ModeInterval:
		return true
	}
	return false
}

// State is the run state of the timer.
type State string

// Run states.
const (
	StateStopped State = "stopped"
	StateRunning State = "running"
	StatePaused  State = "paused"
)

// Errors returned by engine operations.
var (
	ErrInvalidConfiguration = errors.New("invalid timer configuration")
	ErrNotConfigured        = errors.New("timer not configured")
	ErrInvalidTransition    = errors.New("invalid timer transition")
	// ErrStaleRestoration reports that a persisted run named an owner that is
	// no longer scheduled. The record has already been discarded.
	ErrStaleRestoration = errors.New("stale timer restoration")
)

// Interval is one named segment of an interval-mode run.
type Interval struct {
	Name     string
	Duration time.Duration
}

// Config describes one run of the timer for one owner.
type Config struct {
	Mode      Mode
	Duration  time.Duration
	Intervals []Interval
	// Owner is the method ID that owns the run.
	Owner     string
	OwnerName string
	// Client is the arbitration client that started the run.
	Client string
	// MaxRecommended triggers a one-shot overexertion warning in stopwatch mode.
	MaxRecommended time.Duration
}

// Validate rejects configurations the engine cannot run. Durations are never
// clamped.
func (c Config) Validate() error {
	if c.Owner == "" {
		return fmt.Errorf("%w: owner is required", ErrInvalidConfiguration)
	}
	switch c.Mode {
	case ModeStopwatch:
	case ModeCountdown:
		if c.Duration <= 0 {
			return fmt.Errorf("%w: countdown duration must be positive, got %s", ErrInvalidConfiguration, c.Duration)
		}
	case ModeInterval:
		if len(c.Intervals) == 0 {
			return fmt.Errorf("%w: interval mode needs at least one interval", ErrInvalidConfiguration)
		}
		for i, iv := range c.Intervals {
			if iv.Duration <= 0 {
				return fmt.Errorf("%w: interval %d (%q) duration must be positive, got %s",
					ErrInvalidConfiguration, i, iv.Name, iv.Duration)
			}
		}
	default:
		return fmt.Errorf("%w: unknown mode %q", ErrInvalidConfiguration, c.Mode)
	}
	if c.MaxRecommended < 0 {
		return fmt.Errorf("%w: max recommended duration must not be negative", ErrInvalidConfiguration)
	}
	return nil
}

// Total returns the run's total duration. Stopwatch runs have none.
func (c Config) Total() (time.Duration, bool) {
	switch c.Mode {
	case ModeCountdown:
		return c.Duration, true
	case ModeInterval:
		var total time.Duration
		for _, iv := range c.Intervals {
			total += iv.Duration
		}
		return total, true
	}
	return 0, false
}

// intervalAt returns the index of the interval containing elapsed and the
// time left in it. Past the end it reports the last interval with nothing
// left.
func (c Config) intervalAt(elapsed time.Duration) (int, time.Duration) {
	var end time.Duration
	for i, iv := range c.Intervals {
		end += iv.Duration
		if elapsed < end {
			return i, end - elapsed
		}
	}
	return len(c.Intervals) - 1, 0
}

// Snapshot is a copy of what the timer is doing. Callers may keep it; the
// engine never mutates a returned snapshot.
type Snapshot struct {
	Mode      Mode
	State     State
	Elapsed   time.Duration
	Remaining *time.Duration
	Total     *time.Duration
	Owner     string
	OwnerName string
	Client    string
	// Progress is elapsed over total, 0 to 1. Zero for a stopwatch.
	Progress float64
	// IntervalIndex is set only in interval mode.
	IntervalIndex     *int
	IntervalName      string
	IntervalRemaining time.Duration
	IntervalProgress  float64
	IntervalCount     int
	RunID             string
	// Overexerted stays set from the warning until it is acknowledged.
	Overexerted bool
}

// ReachedZero reports whether the snapshot is a natural completion: paused
// with nothing remaining after time has actually elapsed. A manual pause
// always has time remaining; a stop is never paused.
func (s Snapshot) ReachedZero() bool {
	return s.State == StatePaused &&
		s.Remaining != nil && *s.Remaining == 0 &&
		s.Elapsed > 0
}

// Configured reports whether the snapshot has an owner.
func (s Snapshot) Configured() bool {
	return s.Owner != ""
}

// Format renders a duration the way the timer displays it: mm:ss, or
// h:mm:ss from one hour up. Negative durations render as zero.
func Format(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d / time.Second)
	h, m, s := total/3600, (total%3600)/60, total%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}
