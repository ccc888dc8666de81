package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/npratt/growth/internal/events"
	"github.com/npratt/growth/internal/session"
	"github.com/npratt/growth/internal/timer"
)

const (
	minWidth  = 50
	minHeight = 15

	// maxMethodRows caps the method list; longer days scroll with the cursor.
	maxMethodRows = 8
)

// View implements tea.Model. This renders the full TUI display.
func (m model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	if m.width < minWidth || m.height < minHeight {
		return m.renderTooSmall()
	}

	if m.modal.IsOpen() {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center,
			m.modal.View(m.width))
	}

	sections := []string{
		m.renderHeader(),
		m.renderDivider(),
		m.renderMethods(),
		m.renderDivider(),
		m.renderEvents(),
		m.renderDivider(),
		m.renderFooter(),
	}

	rendered := styles.Container.
		Width(safeWidth(m.width - 2)).
		Render(strings.Join(sections, "\n"))

	return lipgloss.Place(m.width, m.height, lipgloss.Left, lipgloss.Top, rendered)
}

func (m model) renderTooSmall() string {
	msg := fmt.Sprintf("Terminal too small (%dx%d), need %dx%d", m.width, m.height, minWidth, minHeight)
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, msg)
}

// renderHeader renders the status line, the clock and the day summary.
func (m model) renderHeader() string {
	w := safeWidth(m.width - 4)
	st := m.status

	// Line 1: status and clock
	status := m.renderStatus()
	clock := styles.Clock.Render(m.clockText())
	statusLine := lipgloss.JoinHorizontal(
		lipgloss.Top,
		status,
		strings.Repeat(" ", max(1, w-lipgloss.Width(status)-lipgloss.Width(clock))),
		clock,
	)

	// Line 2: what is running
	var runLine string
	switch {
	case m.timerActive():
		name := displayName(st.Timer.OwnerName, st.Timer.Owner)
		runLine = styles.Method.Render(truncate(name, w))
		if st.Timer.IntervalName != "" {
			runLine += styles.Interval.Render(fmt.Sprintf("  %s %s",
				safeString(st.Timer.IntervalName),
				formatMs(st.Timer.IntervalRemainingMs)))
		}
		if st.Timer.Overexerted {
			runLine += styles.Warning.Render("  past recommended time (o to dismiss)")
		}
	case st.Rest:
		runLine = styles.Muted.Render("Rest day")
	default:
		if name := m.currentName(); name != "" {
			runLine = styles.Muted.Render("Next: ") + styles.Method.Render(truncate(name, w-6))
		} else {
			runLine = styles.Muted.Render("No method selected")
		}
	}

	// Line 3: day progress
	dayText := fmt.Sprintf("day %d  %d/%d done  %s",
		st.Day, st.Completed, st.Total, formatDurationHuman(st.TotalDurationMs))
	autoText := "auto: off"
	if st.AutoProgression {
		autoText = "auto: on"
		if st.AutoAdvancePending {
			autoText = "auto: advancing..."
		}
	}
	styledDay := styles.Muted.Render(dayText)
	styledAuto := styles.Muted.Render(autoText)
	dayLine := lipgloss.JoinHorizontal(
		lipgloss.Top,
		styledDay,
		strings.Repeat(" ", max(1, w-lipgloss.Width(styledDay)-lipgloss.Width(styledAuto))),
		styledAuto,
	)

	return strings.Join([]string{statusLine, runLine, dayLine}, "\n")
}

// clockText is the big number: remaining time for countdowns, elapsed otherwise.
func (m model) clockText() string {
	if !m.hasStatus || !m.status.Snapshot.Configured() {
		return timer.Format(0)
	}
	return m.status.Timer.Display
}

// currentName returns the name of the method at the cursor.
func (m model) currentName() string {
	idx := m.status.Index
	if idx < 0 || idx >= len(m.status.Methods) {
		return ""
	}
	ms := m.status.Methods[idx]
	return displayName(ms.Name, ms.ID)
}

// renderStatus renders the status indicator with appropriate styling.
func (m model) renderStatus() string {
	label, style := "IDLE", styles.StatusIdle

	switch {
	case m.status.Snapshot.State == timer.StateRunning:
		label, style = "RUNNING", styles.StatusRunning
	case m.status.Snapshot.State == timer.StatePaused && m.status.Snapshot.ReachedZero():
		label, style = "TIME UP", styles.StatusDone
	case m.status.Snapshot.State == timer.StatePaused:
		label, style = "PAUSED", styles.StatusPaused
	case m.status.DayState == string(session.DayCompleted):
		label, style = "DAY COMPLETE", styles.StatusDone
	}

	text := style.Render(label)
	if m.status.Snapshot.State == timer.StateRunning {
		text = m.spinner.View() + " " + text
	}
	if m.status.Holder != "" && m.status.Snapshot.Client != "" && m.status.Holder != m.status.Snapshot.Client {
		text += styles.Muted.Render(" [" + m.status.Holder + "]")
	}
	return text
}

// renderDivider renders a horizontal divider line.
func (m model) renderDivider() string {
	w := safeWidth(m.width - 4)
	return styles.Divider.Render(strings.Repeat("─", w))
}

// renderMethods renders the day's methods around the cursor.
func (m model) renderMethods() string {
	w := safeWidth(m.width - 4)
	methods := m.status.Methods
	if len(methods) == 0 {
		if m.status.Rest {
			return styles.Muted.Render("Nothing scheduled today")
		}
		return styles.Muted.Render("No day loaded")
	}

	start := 0
	if len(methods) > maxMethodRows {
		start = min(max(0, m.status.Index-maxMethodRows/2), len(methods)-maxMethodRows)
	}
	end := min(start+maxMethodRows, len(methods))

	lines := make([]string, 0, end-start)
	for i := start; i < end; i++ {
		ms := methods[i]
		cursor := "  "
		if ms.Current {
			cursor = "> "
		}
		text := fmt.Sprintf("%s%s %d. %s", cursor, statusSymbol(ms.Status), i+1, displayName(ms.Name, ms.ID))
		if ms.DurationMs > 0 {
			text += "  " + formatMs(ms.DurationMs)
		}
		text = truncate(text, w)

		style := styles.MethodPending
		switch {
		case ms.Current:
			style = styles.MethodCurrent
		case ms.Status == events.MethodCompleted || ms.Status == events.MethodSkipped:
			style = styles.MethodDone
		}
		lines = append(lines, style.Render(text))
	}
	return strings.Join(lines, "\n")
}

// renderEvents renders the scrollable event feed.
func (m model) renderEvents() string {
	visible := m.visibleLines()
	w := safeWidth(m.width - 4)

	if len(m.eventLines) == 0 {
		placeholder := "Waiting for events..."
		padding := strings.Repeat("\n", visible/2)
		lines := padding + lipgloss.PlaceHorizontal(w, lipgloss.Center, placeholder)
		return lines + strings.Repeat("\n", max(0, visible-visible/2-1))
	}

	scrollPos := safeScroll(m.scrollPos, len(m.eventLines), visible)
	endPos := min(scrollPos+visible, len(m.eventLines))

	var lines []string
	for _, el := range m.eventLines[scrollPos:endPos] {
		lines = append(lines, m.renderEventLine(el, w))
	}
	for len(lines) < visible {
		lines = append(lines, "")
	}

	return strings.Join(lines, "\n")
}

// renderEventLine renders a single event with timestamp and styling.
func (m model) renderEventLine(el eventLine, maxWidth int) string {
	prefix := el.Time.Local().Format("15:04:05") + " "

	textWidth := max(10, maxWidth-len(prefix))
	text := el.Text
	if len(text) > textWidth {
		text = text[:textWidth-3] + "..."
	}

	return styles.Muted.Render(prefix) + el.Style.Render(text)
}

// renderFooter renders the last error, if any, and key help.
func (m model) renderFooter() string {
	helpView := m.help.View(keys)
	if m.lastError == "" {
		return helpView
	}
	return styles.Error.Render(truncate(m.lastError, safeWidth(m.width-4))) + "\n" + helpView
}

// safeWidth returns a width that is at least 1 to prevent negative values.
func safeWidth(w int) int {
	if w < 1 {
		return 1
	}
	return w
}

// safeScroll clamps scroll position to valid bounds.
func safeScroll(pos, totalLines, visibleLines int) int {
	if pos < 0 {
		return 0
	}
	maxScroll := totalLines - visibleLines
	if maxScroll < 0 {
		return 0
	}
	if pos > maxScroll {
		return maxScroll
	}
	return pos
}

// StyleForEvent returns the appropriate style for an event type.
func StyleForEvent(event events.Event) lipgloss.Style {
	switch e := event.(type) {
	case *events.TimerStateChangedEvent, *events.TimerRestoredEvent, *events.LifecycleEvent:
		return styles.Timer
	case *events.TimerOverexertionEvent, *events.TimerRestoreDiscardedEvent, *events.StopRequestedEvent:
		return styles.Warning
	case *events.MethodStartedEvent, *events.MethodCompletedEvent, *events.MethodSkippedEvent,
		*events.SessionLoadedEvent, *events.SessionAdvancedEvent, *events.SessionCompletedEvent,
		*events.SessionResetEvent:
		return styles.Session
	case *events.PromptRequestedEvent, *events.PromptResolvedEvent:
		return styles.Prompt
	case *events.ErrorEvent:
		if e.Severity == events.SeverityWarning {
			return styles.Warning
		}
		return styles.Error
	default:
		return styles.Timer
	}
}
