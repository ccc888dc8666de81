package timer

import (
	"errors"
	"testing"
	"time"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"stopwatch needs no duration", Config{Mode: ModeStopwatch, Owner: "m1"}, false},
		{"countdown", Config{Mode: ModeCountdown, Duration: time.Minute, Owner: "m1"}, false},
		{"countdown zero", Config{Mode: ModeCountdown, Owner: "m1"}, true},
		{"countdown negative", Config{Mode: ModeCountdown, Duration: -time.Second, Owner: "m1"}, true},
		{"interval", Config{Mode: ModeInterval, Intervals: []Interval{{"a", time.Second}}, Owner: "m1"}, false},
		{"interval empty", Config{Mode: ModeInterval, Owner: "m1"}, true},
		{"interval zero segment", Config{Mode: ModeInterval, Intervals: []Interval{{"a", time.Second}, {"b", 0}}, Owner: "m1"}, true},
		{"missing owner", Config{Mode: ModeStopwatch}, true},
		{"unknown mode", Config{Mode: "lap", Owner: "m1"}, true},
		{"negative max", Config{Mode: ModeStopwatch, Owner: "m1", MaxRecommended: -time.Second}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidConfiguration) {
				t.Errorf("error %v does not wrap ErrInvalidConfiguration", err)
			}
		})
	}
}

func TestConfigTotal(t *testing.T) {
	if _, ok := (Config{Mode: ModeStopwatch}).Total(); ok {
		t.Error("stopwatch should have no total")
	}
	cfg := Config{Mode: ModeInterval, Intervals: []Interval{{"a", 30 * time.Second}, {"b", 15 * time.Second}}}
	if total, ok := cfg.Total(); !ok || total != 45*time.Second {
		t.Errorf("Total = %v, %v; want 45s, true", total, ok)
	}
}

func TestIntervalAt(t *testing.T) {
	cfg := Config{Mode: ModeInterval, Intervals: []Interval{{"a", 10 * time.Second}, {"b", 20 * time.Second}}}
	tests := []struct {
		elapsed   time.Duration
		wantIndex int
		wantLeft  time.Duration
	}{
		{0, 0, 10 * time.Second},
		{9 * time.Second, 0, time.Second},
		{10 * time.Second, 1, 20 * time.Second},
		{29 * time.Second, 1, time.Second},
		{45 * time.Second, 1, 0},
	}
	for _, tt := range tests {
		index, left := cfg.intervalAt(tt.elapsed)
		if index != tt.wantIndex || left != tt.wantLeft {
			t.Errorf("intervalAt(%v) = %d, %v; want %d, %v", tt.elapsed, index, left, tt.wantIndex, tt.wantLeft)
		}
	}
}

func TestSnapshotReachedZero(t *testing.T) {
	zero := time.Duration(0)
	some := 10 * time.Second
	tests := []struct {
		name string
		snap Snapshot
		want bool
	}{
		{"paused at zero", Snapshot{State: StatePaused, Remaining: &zero, Elapsed: time.Minute}, true},
		{"manual pause", Snapshot{State: StatePaused, Remaining: &some, Elapsed: time.Minute}, false},
		{"stopped", Snapshot{State: StateStopped, Remaining: &zero, Elapsed: time.Minute}, false},
		{"fresh configuration", Snapshot{State: StatePaused, Remaining: &zero}, false},
		{"stopwatch", Snapshot{State: StatePaused, Elapsed: time.Minute}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.snap.ReachedZero(); got != tt.want {
				t.Errorf("ReachedZero() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFormat(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "00:00"},
		{-5 * time.Second, "00:00"},
		{59*time.Second + 900*time.Millisecond, "00:59"},
		{5*time.Minute + 3*time.Second, "05:03"},
		{time.Hour + 2*time.Minute + 3*time.Second, "1:02:03"},
	}
	for _, tt := range tests {
		if got := Format(tt.d); got != tt.want {
			t.Errorf("Format(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}
