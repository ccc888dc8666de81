package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/npratt/growth/internal/controller"
	"github.com/npratt/growth/internal/events"
	"github.com/npratt/growth/internal/timer"
)

// eventLine represents a formatted event for display.
type eventLine struct {
	Time  time.Time
	Text  string
	Style lipgloss.Style
}

// model is the bubbletea model for the TUI.
type model struct {
	// Event source and controller
	eventChan <-chan events.Event
	ctrl      Controller

	// Last status pulled from the controller
	status    controller.Status
	hasStatus bool
	lastError string

	// Event log
	eventLines []eventLine

	// UI state
	width      int
	height     int
	scrollPos  int
	autoScroll bool
	spinner    spinner.Model
	help       help.Model
	modal      *PromptModal

	// Quick practice defaults
	quickName     string
	quickDuration time.Duration

	onQuit func()
}

// eventMsg wraps an event for the bubbletea message system.
type eventMsg events.Event

// newModel creates a new model with the given configuration.
func newModel(
	eventChan <-chan events.Event,
	ctrl Controller,
	onQuit func(),
	quickName string,
	quickDuration time.Duration,
) model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styles.StatusRunning

	m := model{
		eventChan:     eventChan,
		ctrl:          ctrl,
		autoScroll:    true,
		spinner:       sp,
		help:          help.New(),
		modal:         NewPromptModal(),
		quickName:     quickName,
		quickDuration: quickDuration,
		onQuit:        onQuit,
	}
	m.refresh()
	return m
}

// Init implements tea.Model.
func (m model) Init() tea.Cmd {
	return tea.Batch(
		waitForEvent(m.eventChan),
		doTick(),
		m.spinner.Tick,
	)
}

// Update, handleKey, handleEvent, handleTick are implemented in update.go
// View is implemented in view.go

// visibleLines returns the number of event lines that fit in the viewport.
func (m model) visibleLines() int {
	// Height minus: border (2), header (3), methods, dividers (3), footer (1)
	return max(1, m.height-9-m.methodLines())
}

// methodLines returns the rows the method list occupies.
func (m model) methodLines() int {
	n := len(m.status.Methods)
	if n == 0 {
		return 1
	}
	return min(n, maxMethodRows)
}

// timerActive reports whether a run is configured and not stopped.
func (m model) timerActive() bool {
	return m.hasStatus && m.status.Snapshot.State != timer.StateStopped && m.status.Snapshot.Configured()
}
