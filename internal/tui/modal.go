package tui

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/npratt/growth/internal/resolver"
	"github.com/npratt/growth/internal/timer"
)

// promptAnswer is the user's response to a completion prompt.
type promptAnswer struct {
	Choice   string
	Duration time.Duration
}

// PromptModal asks whether a completed run should be logged, dismissed, or
// logged with a corrected duration.
type PromptModal struct {
	owner    string
	name     string
	duration time.Duration
	editing  bool
	input    textinput.Model
	errorMsg string
	open     bool
}

// NewPromptModal creates a closed PromptModal.
func NewPromptModal() *PromptModal {
	ti := textinput.New()
	ti.Placeholder = "minutes or 2m30s"
	ti.CharLimit = 16
	ti.Width = 20
	return &PromptModal{input: ti}
}

// Open shows the prompt for the given run.
func (m *PromptModal) Open(owner, name string, duration time.Duration) {
	m.open = true
	m.owner = owner
	m.name = name
	m.duration = duration
	m.editing = false
	m.errorMsg = ""
	m.input.Reset()
	m.input.Blur()
}

// Close hides the prompt.
func (m *PromptModal) Close() {
	m.open = false
	m.editing = false
	m.errorMsg = ""
	m.input.Blur()
}

// IsOpen returns true if the prompt is showing.
func (m *PromptModal) IsOpen() bool {
	return m.open
}

// Owner returns the run the prompt is about.
func (m *PromptModal) Owner() string {
	return m.owner
}

// Update handles a key while the prompt is open. done is true when the user
// has answered; the prompt closes itself in that case.
func (m *PromptModal) Update(msg tea.KeyMsg) (answer promptAnswer, done bool, cmd tea.Cmd) {
	if m.editing {
		return m.updateEditing(msg)
	}

	switch msg.String() {
	case "l", "enter", "y":
		m.Close()
		return promptAnswer{Choice: resolver.ChoiceLog, Duration: m.duration}, true, nil

	case "d", "esc", "n":
		m.Close()
		return promptAnswer{Choice: resolver.ChoiceDismiss, Duration: m.duration}, true, nil

	case "p", "e":
		m.editing = true
		m.errorMsg = ""
		m.input.SetValue(strconv.FormatFloat(m.duration.Minutes(), 'f', -1, 64))
		m.input.CursorEnd()
		return promptAnswer{}, false, m.input.Focus()
	}

	return promptAnswer{}, false, nil
}

func (m *PromptModal) updateEditing(msg tea.KeyMsg) (promptAnswer, bool, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.editing = false
		m.errorMsg = ""
		m.input.Blur()
		return promptAnswer{}, false, nil

	case "enter":
		d, err := parsePartial(m.input.Value())
		if err != nil {
			m.errorMsg = err.Error()
			return promptAnswer{}, false, nil
		}
		m.Close()
		return promptAnswer{Choice: resolver.ChoicePartial, Duration: d}, true, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return promptAnswer{}, false, cmd
}

// parsePartial reads a corrected duration as decimal minutes or a Go duration.
func parsePartial(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New("enter a duration")
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		minutes, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil {
			return 0, fmt.Errorf("invalid duration %q", s)
		}
		d = time.Duration(minutes * float64(time.Minute))
	}
	if d <= 0 {
		return 0, errors.New("duration must be positive")
	}
	return d.Round(time.Second), nil
}

// View renders the prompt box.
func (m *PromptModal) View(parentWidth int) string {
	if !m.open {
		return ""
	}

	modalWidth := min(max(parentWidth*60/100, 40), parentWidth)

	var content strings.Builder
	content.WriteString(styles.ModalTitle.Render("Log " + m.name + "?"))
	content.WriteString("\n\n")
	content.WriteString(styles.Muted.Render(fmt.Sprintf("Duration: %s", timer.Format(m.duration))))
	content.WriteString("\n\n")

	if m.editing {
		content.WriteString("Actual time: ")
		content.WriteString(m.input.View())
		content.WriteString("\n")
		if m.errorMsg != "" {
			content.WriteString(styles.Error.Render(m.errorMsg))
			content.WriteString("\n")
		}
		content.WriteString("\n")
		content.WriteString(styles.Footer.Render("[Enter] save | [Esc] back"))
	} else {
		content.WriteString(styles.Footer.Render("[l] log | [p] partial | [d] dismiss"))
	}

	return styles.Modal.Width(modalWidth - 2).Render(content.String())
}
