package app

import tea "github.com/charmbracelet/bubbletea"

// Widget is one panel of the dashboard. Widgets for refresher views use the
// view name as ID so key actions can find the view.
type Widget interface {
	ID() string
	Title() string
	Update(msg tea.Msg) tea.Cmd
	View(width, height int) string
	MinSize() (int, int)
	HandleKey(key tea.KeyMsg) tea.Cmd
}

// Initializer is implemented by widgets that need a command at startup,
// such as a spinner tick.
type Initializer interface {
	Init() tea.Cmd
}

// Focusable is implemented by widgets that draw focus themselves. The model
// sets focus right before rendering.
type Focusable interface {
	SetFocused(focused bool)
}
