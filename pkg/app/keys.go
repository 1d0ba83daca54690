package app

import "github.com/charmbracelet/bubbles/key"

// KeyMap is the global key binding set.
type KeyMap struct {
	Next     key.Binding
	Prev     key.Binding
	Expand   key.Binding
	Collapse key.Binding
	Retry    key.Binding
	RetryAll key.Binding
	Auto     key.Binding
	Help     key.Binding
	Quit     key.Binding
}

// DefaultKeyMap returns the standard bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Next:     key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next")),
		Prev:     key.NewBinding(key.WithKeys("shift+tab"), key.WithHelp("shift+tab", "prev")),
		Expand:   key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "expand")),
		Collapse: key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "collapse")),
		Retry:    key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "retry")),
		RetryAll: key.NewBinding(key.WithKeys("R"), key.WithHelp("R", "retry all")),
		Auto:     key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "auto-refresh")),
		Help:     key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Quit:     key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

// ShortHelp implements help.KeyMap.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Retry, k.Auto, k.Next, k.Help, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Next, k.Prev, k.Expand, k.Collapse},
		{k.Retry, k.RetryAll, k.Auto},
		{k.Help, k.Quit},
	}
}
