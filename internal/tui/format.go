package tui

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/npratt/growth/internal/events"
	"github.com/npratt/growth/internal/timer"
)

const (
	maxTextLength     = 120
	truncateIndicator = "..."
)

// Format converts an event to a human-readable string for display.
// Returns empty string for nil or unknown event types and for transitions
// not worth a line of their own.
func Format(event events.Event) string {
	if event == nil {
		return ""
	}

	switch e := event.(type) {
	case *events.TimerStateChangedEvent:
		return formatTimerStateChanged(e)
	case *events.TimerOverexertionEvent:
		return fmt.Sprintf("past recommended time: %s (max %s)",
			formatMs(e.ElapsedMs), formatMs(e.MaxRecommendedMs))
	case *events.TimerRestoredEvent:
		return fmt.Sprintf("restored %s (%s, away %s)",
			safeString(e.Owner), e.State, formatDurationHuman(e.SuspendedMs))
	case *events.TimerRestoreDiscardedEvent:
		return fmt.Sprintf("discarded saved timer for %s: %s", safeString(e.Owner), truncate(e.Reason, maxTextLength))
	case *events.LifecycleEvent:
		if e.Visible {
			return "foreground"
		}
		return "background"
	case *events.MethodStartedEvent:
		return fmt.Sprintf("started %s", displayName(e.MethodName, e.MethodID))
	case *events.MethodCompletedEvent:
		return formatMethodCompleted(e)
	case *events.MethodSkippedEvent:
		return fmt.Sprintf("skipped %s", safeString(e.MethodID))
	case *events.SessionLoadedEvent:
		return formatSessionLoaded(e)
	case *events.SessionAdvancedEvent:
		return fmt.Sprintf("method %d -> %d", e.From+1, e.To+1)
	case *events.SessionCompletedEvent:
		return fmt.Sprintf("day %d complete: %d methods in %s",
			e.Day, e.MethodCount, formatDurationHuman(e.TotalDurationMs))
	case *events.SessionResetEvent:
		return fmt.Sprintf("day %d progress reset", e.Day)
	case *events.PromptRequestedEvent:
		return formatPromptRequested(e)
	case *events.PromptResolvedEvent:
		return fmt.Sprintf("prompt: %s %s (%s)", e.Choice, safeString(e.MethodID), formatMs(e.DurationMs))
	case *events.StopRequestedEvent:
		return fmt.Sprintf("stop requested by %s", e.Origin)
	case *events.ErrorEvent:
		return formatError(e)
	default:
		return ""
	}
}

func formatTimerStateChanged(e *events.TimerStateChangedEvent) string {
	name := displayName(e.OwnerName, e.Owner)
	switch e.Reason {
	case timer.ReasonConfigured, timer.ReasonRestored, timer.ReasonRestoreDiscarded:
		return ""
	case timer.ReasonInterval:
		return fmt.Sprintf("interval: %s", safeString(e.IntervalName))
	case timer.ReasonCompleted:
		return fmt.Sprintf("time up: %s", name)
	case timer.ReasonStopped:
		return fmt.Sprintf("stopped %s at %s", name, formatMs(e.ElapsedMs))
	default:
		return fmt.Sprintf("%s %s at %s", e.Reason, name, formatMs(e.ElapsedMs))
	}
}

func formatMethodCompleted(e *events.MethodCompletedEvent) string {
	text := fmt.Sprintf("completed %s in %s", displayName(e.MethodName, e.MethodID), formatMs(e.DurationMs))
	if e.AutoAdvance {
		text += " (auto-advance)"
	}
	return text
}

func formatSessionLoaded(e *events.SessionLoadedEvent) string {
	if e.Rest {
		return fmt.Sprintf("day %d: rest day", e.Day)
	}
	return fmt.Sprintf("day %d: %d/%d methods done", e.Day, e.Completed, e.MethodCount)
}

func formatPromptRequested(e *events.PromptRequestedEvent) string {
	text := fmt.Sprintf("log %s? (%s)", displayName(e.MethodName, e.MethodID), formatMs(e.DurationMs))
	if e.Deferred {
		text += " [deferred]"
	}
	return text
}

func formatError(e *events.ErrorEvent) string {
	prefix := "ERROR"
	if e.Severity == events.SeverityWarning {
		prefix = "WARN"
	}
	return fmt.Sprintf("%s: %s", prefix, truncate(e.Message, maxTextLength))
}

// displayName prefers the human name and falls back to the ID.
func displayName(name, id string) string {
	if name = safeString(name); name != "" {
		return name
	}
	return safeString(id)
}

// formatMs renders milliseconds on the timer clock face.
func formatMs(ms int64) string {
	return timer.Format(time.Duration(ms) * time.Millisecond)
}

// truncate shortens text to maxLen, adding indicator if truncated.
func truncate(s string, maxLen int) string {
	s = safeString(s)
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= len(truncateIndicator) {
		return truncateIndicator
	}
	return s[:maxLen-len(truncateIndicator)] + truncateIndicator
}

// safeString sanitizes a string for display by removing control characters
// and limiting newlines.
func safeString(s string) string {
	s = stripANSI(s)

	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\r", " ")

	var sb strings.Builder
	sb.Grow(len(s))
	for _, r := range s {
		if r == ' ' || !unicode.IsControl(r) {
			sb.WriteRune(r)
		}
	}

	result := sb.String()
	for strings.Contains(result, "  ") {
		result = strings.ReplaceAll(result, "  ", " ")
	}

	return strings.TrimSpace(result)
}

// ansiRegex matches ANSI escape sequences.
var ansiRegex = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

// stripANSI removes ANSI escape sequences from a string.
func stripANSI(s string) string {
	return ansiRegex.ReplaceAllString(s, "")
}

// statusSymbol returns a symbol for a method status.
func statusSymbol(status events.MethodStatus) string {
	switch status {
	case events.MethodStarted:
		return "~"
	case events.MethodCompleted:
		return "+"
	case events.MethodSkipped:
		return ">"
	default:
		return "-"
	}
}

// formatDurationHuman formats milliseconds as a human-readable duration.
// Returns "<60s" for under a minute, "Xm" for minutes, "Xh" for hours only,
// or "Xh Ym" for hours and minutes.
func formatDurationHuman(ms int64) string {
	if ms <= 0 {
		return "<60s"
	}

	totalSeconds := ms / 1000
	if totalSeconds < 60 {
		return "<60s"
	}

	totalMinutes := totalSeconds / 60
	hours := totalMinutes / 60
	minutes := totalMinutes % 60

	if hours == 0 {
		return fmt.Sprintf("%dm", minutes)
	}
	if minutes == 0 {
		return fmt.Sprintf("%dh", hours)
	}
	return fmt.Sprintf("%dh %dm", hours, minutes)
}
