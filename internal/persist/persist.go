// Package persist is the background persistence store: the durable record of
// a live timer run written when the host suspends and read back on resume.
package persist

import (
	"time"
)

// CurrentVersion is the record format version. Records with any other
// version are treated as absent.
const CurrentVersion = 1

// IntervalRecord is one persisted interval of an interval-mode run.
type IntervalRecord struct {
	Name    string  `json:"name"`
	Seconds float64 `json:"seconds"`
}

// Record is the persisted state of one timer run. Elapsed time is
// reconstructed from wall-clock deltas, so the record stays valid however
// long the process was suspended.
type Record struct {
	Version   int    `json:"version"`
	Client    string `json:"client"`
	Owner     string `json:"owner_method_id"`
	OwnerName string `json:"owner_name,omitempty"`
	Mode      string `json:"mode"`
	// StartedAt is the wall-clock time the current running segment began.
	StartedAt time.Time `json:"start_wall_clock_time"`
	// Accumulated is elapsed time banked before StartedAt, in seconds.
	Accumulated    float64          `json:"accumulated_elapsed_seconds"`
	Total          *float64         `json:"total_duration_seconds"`
	Intervals      []IntervalRecord `json:"intervals,omitempty"`
	MaxRecommended float64          `json:"max_recommended_seconds,omitempty"`
	Paused         bool             `json:"paused"`
	RunID          string           `json:"run_id,omitempty"`
	SavedAt        time.Time        `json:"saved_at"`
}

// Seconds converts a duration to the record's seconds representation.
func Seconds(d time.Duration) float64 {
	return d.Seconds()
}

// Duration converts record seconds back to a duration.
func Duration(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}

// AccumulatedDuration returns the banked elapsed time.
func (r Record) AccumulatedDuration() time.Duration {
	return Duration(r.Accumulated)
}

// TotalDuration returns the run's total duration, if it has one.
func (r Record) TotalDuration() (time.Duration, bool) {
	if r.Total == nil {
		return 0, false
	}
	return Duration(*r.Total), true
}

// Elapsed reconstructs the run's elapsed time at now. A paused run does not
// advance; a clock that went backwards never reduces elapsed below the
// banked amount.
func (r Record) Elapsed(now time.Time) time.Duration {
	elapsed := r.AccumulatedDuration()
	if r.Paused {
		return elapsed
	}
	if delta := now.Sub(r.StartedAt); delta > 0 {
		elapsed += delta
	}
	return elapsed
}

// Store persists at most one timer record.
type Store interface {
	// Save replaces the stored record.
	Save(rec Record) error
	// Load returns the stored record, or nil when there is none.
	Load() (*Record, error)
	// Clear removes the stored record. Clearing an empty store is not an error.
	Clear() error
}
