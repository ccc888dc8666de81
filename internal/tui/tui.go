// Package tui provides a terminal UI for running a growth session using bubbletea.
package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/npratt/growth/internal/controller"
	"github.com/npratt/growth/internal/events"
)

// Controller is the subset of the session controller the TUI drives.
type Controller interface {
	Status() (controller.Status, error)
	StartCurrent() error
	Pause() error
	Resume() error
	Stop() error
	Next() error
	Previous() error
	Skip() error
	ResetProgress() error
	SetAutoProgression(enabled bool) error
	AcknowledgeOverexertion() error
	QuickStart(name string, duration time.Duration) (string, error)
	PromptResult(choice string, duration time.Duration) error
}

// TUI is the terminal UI for a growth session.
type TUI struct {
	eventChan     <-chan events.Event
	ctrl          Controller
	onQuit        func()
	quickName     string
	quickDuration time.Duration
}

// Option configures the TUI.
type Option func(*TUI)

// New creates a new TUI reading from the given event channel and driving ctrl.
func New(eventChan <-chan events.Event, ctrl Controller, opts ...Option) *TUI {
	t := &TUI{
		eventChan:     eventChan,
		ctrl:          ctrl,
		quickName:     "Quick Practice",
		quickDuration: 5 * time.Minute,
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

// WithOnQuit sets the callback invoked when the user presses 'q'.
func WithOnQuit(fn func()) Option {
	return func(t *TUI) {
		t.onQuit = fn
	}
}

// WithQuickPractice sets the name and default length of quick-practice runs.
func WithQuickPractice(name string, duration time.Duration) Option {
	return func(t *TUI) {
		if name != "" {
			t.quickName = name
		}
		if duration > 0 {
			t.quickDuration = duration
		}
	}
}

// Run starts the TUI and blocks until it exits. Without a usable terminal it
// falls back to line-by-line event output.
func (t *TUI) Run() error {
	if !usableTerminal() {
		return t.runLines()
	}

	m := newModel(t.eventChan, t.ctrl, t.onQuit, t.quickName, t.quickDuration)

	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err := p.Run()
	return err
}
