// Package schedule defines the routine data the engine reads: methods, their
// timer configuration, and the ordered methods of each practice day.
package schedule

import (
	"fmt"
	"time"

	"github.com/npratt/growth/internal/timer"
)

// Interval is one named segment of an interval-mode method.
type Interval struct {
	Name     string
	Duration time.Duration
}

// TimerConfig describes how a method is timed. A zero Duration with no
// Intervals in countdown mode means "use the method's default duration".
type TimerConfig struct {
	Mode           timer.Mode
	Duration       time.Duration
	Intervals      []Interval
	MaxRecommended time.Duration
}

// Method is one timed exercise within a day.
type Method struct {
	ID              string
	Name            string
	DefaultDuration time.Duration
	Timer           *TimerConfig
}

// TimerSettings returns the effective timer configuration for the method.
// Methods without an explicit configuration run as a countdown of their
// default duration.
func (m Method) TimerSettings() TimerConfig {
	if m.Timer == nil {
		return TimerConfig{Mode: timer.ModeCountdown, Duration: m.DefaultDuration}
	}
	cfg := *m.Timer
	if cfg.Mode == "" {
		cfg.Mode = timer.ModeCountdown
	}
	if cfg.Mode == timer.ModeCountdown && cfg.Duration <= 0 {
		cfg.Duration = m.DefaultDuration
	}
	return cfg
}

// EngineConfig converts the method's timer settings into an engine
// configuration owned by the method.
func (m Method) EngineConfig() timer.Config {
	settings := m.TimerSettings()
	cfg := timer.Config{
		Mode:           settings.Mode,
		Duration:       settings.Duration,
		Owner:          m.ID,
		OwnerName:      m.Name,
		MaxRecommended: settings.MaxRecommended,
	}
	for _, iv := range settings.Intervals {
		cfg.Intervals = append(cfg.Intervals, timer.Interval{Name: iv.Name, Duration: iv.Duration})
	}
	return cfg
}

// Day is the ordered list of methods for one practice day, or a rest day.
type Day struct {
	Number  int
	Rest    bool
	Methods []Method
}

// Contains reports whether the day schedules a method with the given ID.
func (d Day) Contains(methodID string) bool {
	for _, m := range d.Methods {
		if m.ID == methodID {
			return true
		}
	}
	return false
}

// Routine is a multi-day practice plan.
type Routine struct {
	ID   string
	Name string
	Days []Day
}

// Day returns the day with the given number.
func (r Routine) Day(number int) (Day, error) {
	for _, d := range r.Days {
		if d.Number == number {
			return d, nil
		}
	}
	return Day{}, fmt.Errorf("routine %q has no day %d", r.ID, number)
}

// Validate checks that the routine is usable by the engine: unique method IDs
// per day, and that every method yields a valid timer configuration.
func (r Routine) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("routine id is required")
	}
	seenDays := make(map[int]bool)
	for _, d := range r.Days {
		if d.Number <= 0 {
			return fmt.Errorf("day number must be positive, got %d", d.Number)
		}
		if seenDays[d.Number] {
			return fmt.Errorf("duplicate day %d", d.Number)
		}
		seenDays[d.Number] = true

		if d.Rest && len(d.Methods) > 0 {
			return fmt.Errorf("day %d: rest day cannot list methods", d.Number)
		}
		seenMethods := make(map[string]bool)
		for _, m := range d.Methods {
			if m.ID == "" {
				return fmt.Errorf("day %d: method id is required", d.Number)
			}
			if seenMethods[m.ID] {
				return fmt.Errorf("day %d: duplicate method %q", d.Number, m.ID)
			}
			seenMethods[m.ID] = true
			if err := m.EngineConfig().Validate(); err != nil {
				return fmt.Errorf("day %d: method %q: %w", d.Number, m.ID, err)
			}
		}
	}
	return nil
}
