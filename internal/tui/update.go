package tui

import (
	"errors"
	"log/slog"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/npratt/growth/internal/controller"
	"github.com/npratt/growth/internal/events"
	"github.com/npratt/growth/internal/timer"
)

const (
	// maxEventLines is the maximum number of event lines to keep in the buffer.
	maxEventLines = 1000
	// trimEventLines is the number of lines to remove when buffer exceeds max.
	trimEventLines = 100
	// tickInterval is the interval for refreshing the clock face.
	tickInterval = 250 * time.Millisecond
)

// channelClosedMsg signals that the event channel was closed.
type channelClosedMsg struct{}

// tickMsg signals a periodic status refresh.
type tickMsg time.Time

// waitForEvent creates a command that waits for the next event from the channel.
// Returns channelClosedMsg if the channel is closed.
func waitForEvent(ch <-chan events.Event) tea.Cmd {
	return func() tea.Msg {
		event, ok := <-ch
		if !ok {
			return channelClosedMsg{}
		}
		return eventMsg(event)
	}
}

// doTick creates a command that waits for the tick interval and sends a tickMsg.
func doTick() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update implements tea.Model. It handles all message types and updates the model.
func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil

	case eventMsg:
		m.handleEvent(events.Event(msg))
		return m, waitForEvent(m.eventChan)

	case channelClosedMsg:
		slog.Info("event channel closed, exiting TUI")
		return m, tea.Quit

	case tickMsg:
		if closed := m.handleTick(); closed {
			return m, tea.Quit
		}
		return m, doTick()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	default:
		return m, nil
	}
}

// handleKey processes keyboard input and returns the updated model and command.
func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m.quit()
	}

	// The completion prompt takes every key while open.
	if m.modal.IsOpen() {
		answer, done, cmd := m.modal.Update(msg)
		if done {
			m.apply(m.ctrl.PromptResult(answer.Choice, answer.Duration))
		}
		return m, cmd
	}

	switch {
	case key.Matches(msg, keys.Quit):
		return m.quit()

	case key.Matches(msg, keys.Help):
		m.help.ShowAll = !m.help.ShowAll

	case key.Matches(msg, keys.Start):
		m.apply(m.ctrl.StartCurrent())

	case key.Matches(msg, keys.Pause):
		m.togglePause()

	case key.Matches(msg, keys.Stop):
		m.apply(m.ctrl.Stop())

	case key.Matches(msg, keys.Next):
		m.apply(m.ctrl.Next())

	case key.Matches(msg, keys.Previous):
		m.apply(m.ctrl.Previous())

	case key.Matches(msg, keys.Skip):
		m.apply(m.ctrl.Skip())

	case key.Matches(msg, keys.Quick):
		_, err := m.ctrl.QuickStart(m.quickName, m.quickDuration)
		m.apply(err)

	case key.Matches(msg, keys.Auto):
		m.apply(m.ctrl.SetAutoProgression(!m.status.AutoProgression))

	case key.Matches(msg, keys.Reset):
		m.apply(m.ctrl.ResetProgress())

	case key.Matches(msg, keys.Ack):
		m.apply(m.ctrl.AcknowledgeOverexertion())

	case key.Matches(msg, keys.Up):
		m.autoScroll = false
		if m.scrollPos > 0 {
			m.scrollPos--
		}

	case key.Matches(msg, keys.Down):
		maxScroll := len(m.eventLines) - m.visibleLines()
		if m.scrollPos < maxScroll {
			m.scrollPos++
		}
		if m.scrollPos >= maxScroll {
			m.autoScroll = true
		}
	}

	return m, nil
}

func (m model) quit() (tea.Model, tea.Cmd) {
	if m.onQuit != nil {
		m.onQuit()
	}
	return m, tea.Quit
}

// togglePause pauses a running timer and resumes a paused one.
func (m *model) togglePause() {
	switch m.status.Snapshot.State {
	case timer.StateRunning:
		m.apply(m.ctrl.Pause())
	case timer.StatePaused:
		m.apply(m.ctrl.Resume())
	}
}

// apply records the outcome of a controller call and refreshes the view.
func (m *model) apply(err error) {
	if err != nil {
		m.lastError = err.Error()
	} else {
		m.lastError = ""
	}
	m.refresh()
}

// refresh pulls a fresh status from the controller. It returns false once
// the controller has shut down.
func (m *model) refresh() bool {
	if m.ctrl == nil {
		return true
	}
	st, err := m.ctrl.Status()
	if err != nil {
		if errors.Is(err, controller.ErrClosed) {
			return false
		}
		slog.Warn("status refresh failed", "error", err)
		return true
	}
	m.status = st
	m.hasStatus = true

	// A prompt held while the host was hidden is released on foreground
	// without the TUI seeing the request event.
	if st.PromptOpen && !m.modal.IsOpen() {
		m.modal.Open(st.PromptOwner, methodName(st, st.PromptOwner),
			time.Duration(st.PromptDurationMs)*time.Millisecond)
	}
	if !st.PromptOpen && m.modal.IsOpen() {
		m.modal.Close()
	}
	return true
}

// handleEvent processes an event and updates model state.
func (m *model) handleEvent(event events.Event) {
	switch e := event.(type) {
	case *events.PromptRequestedEvent:
		m.modal.Open(e.MethodID, displayName(e.MethodName, e.MethodID),
			time.Duration(e.DurationMs)*time.Millisecond)

	case *events.PromptResolvedEvent:
		m.modal.Close()

	case *events.ErrorEvent:
		m.lastError = e.Message
	}

	text := Format(event)
	if text == "" {
		return
	}

	m.eventLines = append(m.eventLines, eventLine{
		Time:  event.Timestamp(),
		Text:  text,
		Style: StyleForEvent(event),
	})

	if len(m.eventLines) > maxEventLines {
		m.eventLines = m.eventLines[trimEventLines:]
		m.scrollPos = max(0, m.scrollPos-trimEventLines)
	}

	if m.autoScroll {
		maxScroll := len(m.eventLines) - m.visibleLines()
		if maxScroll > 0 {
			m.scrollPos = maxScroll
		}
	}
}

// handleTick refreshes status. It reports true when the controller is gone.
func (m *model) handleTick() bool {
	return !m.refresh()
}

// methodName looks up a method's display name in the status, falling back to
// the ID for quick-practice owners.
func methodName(st controller.Status, id string) string {
	for _, ms := range st.Methods {
		if ms.ID == id {
			return displayName(ms.Name, ms.ID)
		}
	}
	if st.Timer.Owner == id && st.Timer.OwnerName != "" {
		return st.Timer.OwnerName
	}
	return id
}
