package tui

import (
	"strings"
	"testing"
	"time"

	"github.com/npratt/growth/internal/events"
	"github.com/npratt/growth/internal/timer"
)

func base(t events.EventType) events.BaseEvent {
	return events.NewEvent(t, events.SourceEngine, time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
}

func TestFormat(t *testing.T) {
	tests := []struct {
		name  string
		event events.Event
		want  string
	}{
		{
			name:  "nil event",
			event: nil,
			want:  "",
		},
		{
			name: "timer started",
			event: &events.TimerStateChangedEvent{
				BaseEvent: base(events.EventTimerStateChanged),
				Reason:    timer.ReasonStarted,
				Owner:     "m1",
				OwnerName: "Breathing",
				ElapsedMs: 0,
			},
			want: "started Breathing at 00:00",
		},
		{
			name: "timer configured is quiet",
			event: &events.TimerStateChangedEvent{
				BaseEvent: base(events.EventTimerStateChanged),
				Reason:    timer.ReasonConfigured,
				Owner:     "m1",
			},
			want: "",
		},
		{
			name: "timer stopped falls back to owner id",
			event: &events.TimerStateChangedEvent{
				BaseEvent: base(events.EventTimerStateChanged),
				Reason:    timer.ReasonStopped,
				Owner:     "m1",
				ElapsedMs: 90_000,
			},
			want: "stopped m1 at 01:30",
		},
		{
			name: "interval change",
			event: &events.TimerStateChangedEvent{
				BaseEvent:    base(events.EventTimerStateChanged),
				Reason:       timer.ReasonInterval,
				IntervalName: "Rest",
			},
			want: "interval: Rest",
		},
		{
			name: "method completed with auto advance",
			event: &events.MethodCompletedEvent{
				BaseEvent:   base(events.EventMethodCompleted),
				MethodID:    "m1",
				MethodName:  "Breathing",
				DurationMs:  60_000,
				AutoAdvance: true,
			},
			want: "completed Breathing in 01:00 (auto-advance)",
		},
		{
			name: "rest day loaded",
			event: &events.SessionLoadedEvent{
				BaseEvent: base(events.EventSessionLoaded),
				Day:       3,
				Rest:      true,
			},
			want: "day 3: rest day",
		},
		{
			name: "session loaded",
			event: &events.SessionLoadedEvent{
				BaseEvent:   base(events.EventSessionLoaded),
				Day:         2,
				MethodCount: 4,
				Completed:   1,
			},
			want: "day 2: 1/4 methods done",
		},
		{
			name: "session advanced is one-based",
			event: &events.SessionAdvancedEvent{
				BaseEvent: base(events.EventSessionAdvanced),
				From:      0,
				To:        1,
			},
			want: "method 1 -> 2",
		},
		{
			name: "deferred prompt",
			event: &events.PromptRequestedEvent{
				BaseEvent:  base(events.EventPromptRequested),
				MethodID:   "m2",
				DurationMs: 30_000,
				Deferred:   true,
			},
			want: "log m2? (00:30) [deferred]",
		},
		{
			name: "warning",
			event: &events.ErrorEvent{
				BaseEvent: base(events.EventError),
				Message:   "stale restoration",
				Severity:  events.SeverityWarning,
			},
			want: "WARN: stale restoration",
		},
		{
			name: "background",
			event: &events.LifecycleEvent{
				BaseEvent: base(events.EventLifecycleBackground),
			},
			want: "background",
		},
		{
			name: "stop requested",
			event: &events.StopRequestedEvent{
				BaseEvent: base(events.EventStopRequested),
				Origin:    events.SourceWidget,
			},
			want: "stop requested by widget",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Format(tt.event); got != tt.want {
				t.Errorf("Format() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFormat_TruncatesLongErrors(t *testing.T) {
	e := &events.ErrorEvent{
		BaseEvent: base(events.EventError),
		Message:   strings.Repeat("x", 500),
		Severity:  events.SeverityError,
	}

	got := Format(e)
	if !strings.HasSuffix(got, truncateIndicator) {
		t.Errorf("expected truncation indicator, got %q", got)
	}
	if len(got) > len("ERROR: ")+maxTextLength {
		t.Errorf("length = %d, too long", len(got))
	}
}

func TestSafeString(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain", "plain"},
		{"line\nbreak", "line break"},
		{"\x1b[31mred\x1b[0m", "red"},
		{"  many   spaces  ", "many spaces"},
		{"tab\there", "tabhere"},
	}

	for _, tt := range tests {
		if got := safeString(tt.in); got != tt.want {
			t.Errorf("safeString(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatDurationHuman(t *testing.T) {
	tests := []struct {
		ms   int64
		want string
	}{
		{0, "<60s"},
		{59_000, "<60s"},
		{60_000, "1m"},
		{3_600_000, "1h"},
		{5_400_000, "1h 30m"},
	}

	for _, tt := range tests {
		if got := formatDurationHuman(tt.ms); got != tt.want {
			t.Errorf("formatDurationHuman(%d) = %q, want %q", tt.ms, got, tt.want)
		}
	}
}

func TestStatusSymbol(t *testing.T) {
	tests := map[events.MethodStatus]string{
		events.MethodPending:   "-",
		events.MethodStarted:   "~",
		events.MethodCompleted: "+",
		events.MethodSkipped:   ">",
	}
	for status, want := range tests {
		if got := statusSymbol(status); got != want {
			t.Errorf("statusSymbol(%s) = %q, want %q", status, got, want)
		}
	}
}
