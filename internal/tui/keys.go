package tui

import "github.com/charmbracelet/bubbles/key"

// keyMap holds the session view bindings. It satisfies help.KeyMap.
type keyMap struct {
	Start    key.Binding
	Pause    key.Binding
	Stop     key.Binding
	Next     key.Binding
	Previous key.Binding
	Skip     key.Binding
	Quick    key.Binding
	Auto     key.Binding
	Reset    key.Binding
	Ack      key.Binding
	Up       key.Binding
	Down     key.Binding
	Help     key.Binding
	Quit     key.Binding
}

var keys = keyMap{
	Start: key.NewBinding(
		key.WithKeys("s", "enter"),
		key.WithHelp("s", "start"),
	),
	Pause: key.NewBinding(
		key.WithKeys(" ", "p"),
		key.WithHelp("space", "pause/resume"),
	),
	Stop: key.NewBinding(
		key.WithKeys("x"),
		key.WithHelp("x", "stop"),
	),
	Next: key.NewBinding(
		key.WithKeys("n", "right"),
		key.WithHelp("n", "next"),
	),
	Previous: key.NewBinding(
		key.WithKeys("b", "left"),
		key.WithHelp("b", "back"),
	),
	Skip: key.NewBinding(
		key.WithKeys("k"),
		key.WithHelp("k", "skip"),
	),
	Quick: key.NewBinding(
		key.WithKeys("f"),
		key.WithHelp("f", "quick practice"),
	),
	Auto: key.NewBinding(
		key.WithKeys("a"),
		key.WithHelp("a", "auto-advance"),
	),
	Reset: key.NewBinding(
		key.WithKeys("R"),
		key.WithHelp("R", "reset day"),
	),
	Ack: key.NewBinding(
		key.WithKeys("o"),
		key.WithHelp("o", "ok warning"),
	),
	Up: key.NewBinding(
		key.WithKeys("up"),
		key.WithHelp("↑", "scroll up"),
	),
	Down: key.NewBinding(
		key.WithKeys("down"),
		key.WithHelp("↓", "scroll down"),
	),
	Help: key.NewBinding(
		key.WithKeys("?"),
		key.WithHelp("?", "more"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

// ShortHelp implements help.KeyMap.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Start, k.Pause, k.Stop, k.Next, k.Help, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Start, k.Pause, k.Stop},
		{k.Next, k.Previous, k.Skip},
		{k.Quick, k.Auto, k.Reset, k.Ack},
		{k.Up, k.Down, k.Help, k.Quit},
	}
}
