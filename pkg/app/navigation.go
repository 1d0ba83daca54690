package app

import "slices"

// CycleFocusForward focuses the next view, wrapping after the last.
func (m *AppModel) CycleFocusForward() { m.stepFocus(1) }

// CycleFocusBackward focuses the previous view, wrapping before the first.
func (m *AppModel) CycleFocusBackward() { m.stepFocus(-1) }

func (m *AppModel) stepFocus(step int) {
	n := len(m.widgetOrder)
	if n == 0 {
		return
	}
	i := max(slices.Index(m.widgetOrder, m.focusedWidget), 0)
	m.focusedWidget = m.widgetOrder[((i+step)%n+n)%n]
}

// FocusWidget focuses the view with id. Unknown ids are ignored.
func (m *AppModel) FocusWidget(id string) {
	if _, ok := m.widgets[id]; ok {
		m.focusedWidget = id
	}
}

// ToggleExpand switches the focused view between fullscreen and the
// stacked layout.
func (m *AppModel) ToggleExpand() {
	switch {
	case m.focusedWidget == "":
	case m.expandedWidget == m.focusedWidget:
		m.expandedWidget = ""
	default:
		m.expandedWidget = m.focusedWidget
	}
}
