package controller

import (
	"time"

	"github.com/npratt/growth/internal/events"
	"github.com/npratt/growth/internal/session"
	"github.com/npratt/growth/internal/timer"
)

// TimerStatus is the wire form of a timer snapshot.
type TimerStatus struct {
	Mode                string `json:"mode,omitempty"`
	State               string `json:"state"`
	Owner               string `json:"owner,omitempty"`
	OwnerName           string `json:"owner_name,omitempty"`
	Client              string `json:"client,omitempty"`
	RunID               string `json:"run_id,omitempty"`
	ElapsedMs           int64  `json:"elapsed_ms"`
	RemainingMs         *int64 `json:"remaining_ms,omitempty"`
	TotalMs             *int64 `json:"total_ms,omitempty"`
	IntervalIndex       *int   `json:"interval_index,omitempty"`
	IntervalName        string `json:"interval_name,omitempty"`
	IntervalRemainingMs int64   `json:"interval_remaining_ms,omitempty"`
	IntervalCount       int     `json:"interval_count,omitempty"`
	IntervalProgress    float64 `json:"interval_progress,omitempty"`
	Progress            float64 `json:"progress,omitempty"`
	Overexerted         bool    `json:"overexerted,omitempty"`
	Display             string `json:"display"`
}

// MethodStatus is one method of the loaded day.
type MethodStatus struct {
	ID         string              `json:"id"`
	Name       string              `json:"name"`
	Status     events.MethodStatus `json:"status"`
	DurationMs int64               `json:"duration_ms"`
	Current    bool                `json:"current"`
}

// Status is a point-in-time report of the whole engine.
type Status struct {
	Timer              TimerStatus    `json:"timer"`
	Holder             string         `json:"holder,omitempty"`
	RoutineID          string         `json:"routine_id,omitempty"`
	Day                int            `json:"day"`
	Rest               bool           `json:"rest,omitempty"`
	DayState           string         `json:"day_state"`
	Index              int            `json:"index"`
	Methods            []MethodStatus `json:"methods"`
	Completed          int            `json:"completed"`
	Total              int            `json:"total"`
	TotalDurationMs    int64          `json:"total_duration_ms"`
	AutoProgression    bool           `json:"auto_progression"`
	AutoAdvancePending bool           `json:"auto_advance_pending,omitempty"`
	Visible            bool           `json:"visible"`
	PromptOpen         bool           `json:"prompt_open,omitempty"`
	PromptOwner        string         `json:"prompt_owner,omitempty"`
	PromptDurationMs   int64          `json:"prompt_duration_ms,omitempty"`

	// Snapshot is the raw timer state for in-process views.
	Snapshot timer.Snapshot `json:"-"`
}

// NewTimerStatus converts a snapshot to its wire form.
func NewTimerStatus(snap timer.Snapshot) TimerStatus {
	ts := TimerStatus{
		Mode:                string(snap.Mode),
		State:               string(snap.State),
		Owner:               snap.Owner,
		OwnerName:           snap.OwnerName,
		Client:              snap.Client,
		RunID:               snap.RunID,
		ElapsedMs:           snap.Elapsed.Milliseconds(),
		IntervalIndex:       snap.IntervalIndex,
		IntervalName:        snap.IntervalName,
		IntervalRemainingMs: snap.IntervalRemaining.Milliseconds(),
		IntervalCount:       snap.IntervalCount,
		IntervalProgress:    snap.IntervalProgress,
		Progress:            snap.Progress,
		Overexerted:         snap.Overexerted,
		Display:             timer.Format(snap.Elapsed),
	}
	if snap.Remaining != nil {
		ms := snap.Remaining.Milliseconds()
		ts.RemainingMs = &ms
		ts.Display = timer.Format(*snap.Remaining)
	}
	if snap.Total != nil {
		ms := snap.Total.Milliseconds()
		ts.TotalMs = &ms
	}
	return ts
}

// Remaining returns the remaining time, or zero for a stopwatch.
func (t TimerStatus) Remaining() time.Duration {
	if t.RemainingMs == nil {
		return 0
	}
	return time.Duration(*t.RemainingMs) * time.Millisecond
}

func (c *Controller) status() Status {
	snap := c.engine.Snapshot()
	day := c.progress.Day()
	current := c.progress.Index()
	records := c.progress.Records()
	completed, total := c.progress.Progress()

	st := Status{
		Timer:              NewTimerStatus(snap),
		Holder:             c.gate.Holder(),
		RoutineID:          c.progress.RoutineID(),
		Day:                day.Number,
		Rest:               day.Rest,
		DayState:           string(c.progress.State()),
		Index:              current,
		Completed:          completed,
		Total:              total,
		TotalDurationMs:    c.progress.TotalDuration().Milliseconds(),
		AutoProgression:    c.progress.AutoProgression(),
		AutoAdvancePending: c.autoTimer != nil,
		Visible:            c.resolver.Visible(),
		Snapshot:           snap,
	}
	for i, m := range day.Methods {
		rec, ok := records[m.ID]
		if !ok {
			rec = session.Record{MethodID: m.ID}
		}
		st.Methods = append(st.Methods, MethodStatus{
			ID:         m.ID,
			Name:       m.Name,
			Status:     rec.Status(),
			DurationMs: rec.Duration.Milliseconds(),
			Current:    i == current,
		})
	}
	if prompt, ok := c.resolver.PromptOpen(); ok {
		st.PromptOpen = true
		st.PromptOwner = prompt.Owner
		st.PromptDurationMs = prompt.Duration.Milliseconds()
	}
	return st
}
