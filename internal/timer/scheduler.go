package timer

import (
	"context"
	"time"
)

// DefaultTickInterval is how often a Scheduler re-enters the engine.
const DefaultTickInterval = 250 * time.Millisecond

// Scheduler drives periodic ticks from a ticker goroutine. The callback
// decides what a tick means; the controller uses it to post a tick into its
// event queue so ticks are ordered with every other input.
type Scheduler struct {
	interval time.Duration
	fn       func(time.Time)
}

// NewScheduler creates a scheduler calling fn every interval.
// Non-positive intervals use DefaultTickInterval.
func NewScheduler(interval time.Duration, fn func(time.Time)) *Scheduler {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	return &Scheduler{interval: interval, fn: fn}
}

// Interval returns the tick period.
func (s *Scheduler) Interval() time.Duration {
	return s.interval
}

// Run ticks until ctx is canceled.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case tickTime := <-ticker.C:
			s.fn(tickTime)
		}
	}
}
