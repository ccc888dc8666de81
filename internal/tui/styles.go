package tui

import "github.com/charmbracelet/lipgloss"

// styles contains all lipgloss styles used by the TUI.
var styles = struct {
	// Layout styles
	Container lipgloss.Style
	Divider   lipgloss.Style

	// Header styles
	Status   lipgloss.Style
	Clock    lipgloss.Style
	Method   lipgloss.Style
	Interval lipgloss.Style
	Muted    lipgloss.Style

	// Footer style
	Footer lipgloss.Style

	// Event styles
	Timer   lipgloss.Style
	Session lipgloss.Style
	Prompt  lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style

	// Method list
	MethodCurrent lipgloss.Style
	MethodDone    lipgloss.Style
	MethodPending lipgloss.Style

	// Status colors
	StatusIdle    lipgloss.Style
	StatusRunning lipgloss.Style
	StatusPaused  lipgloss.Style
	StatusDone    lipgloss.Style

	// Prompt modal
	Modal      lipgloss.Style
	ModalTitle lipgloss.Style
}{
	Container: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")),

	Divider: lipgloss.NewStyle().
		Foreground(lipgloss.Color("240")),

	Status: lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("212")),

	Clock: lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("220")),

	Method: lipgloss.NewStyle().
		Foreground(lipgloss.Color("39")),

	Interval: lipgloss.NewStyle().
		Foreground(lipgloss.Color("177")),

	Muted: lipgloss.NewStyle().
		Foreground(lipgloss.Color("245")),

	Footer: lipgloss.NewStyle().
		Foreground(lipgloss.Color("245")),

	Timer: lipgloss.NewStyle().
		Foreground(lipgloss.Color("250")),

	Session: lipgloss.NewStyle().
		Foreground(lipgloss.Color("114")),

	Prompt: lipgloss.NewStyle().
		Foreground(lipgloss.Color("205")),

	Warning: lipgloss.NewStyle().
		Foreground(lipgloss.Color("214")),

	Error: lipgloss.NewStyle().
		Foreground(lipgloss.Color("196")),

	MethodCurrent: lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("82")),

	MethodDone: lipgloss.NewStyle().
		Foreground(lipgloss.Color("240")),

	MethodPending: lipgloss.NewStyle().
		Foreground(lipgloss.Color("252")),

	StatusIdle: lipgloss.NewStyle().
		Foreground(lipgloss.Color("245")),

	StatusRunning: lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("82")),

	StatusPaused: lipgloss.NewStyle().
		Foreground(lipgloss.Color("214")),

	StatusDone: lipgloss.NewStyle().
		Foreground(lipgloss.Color("114")),

	Modal: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("205")).
		Padding(1, 2),

	ModalTitle: lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("205")),
}
