package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	zone "github.com/lrstanley/bubblezone"

	"gitlab.com/tinyland/lab/livedash/pkg/refresher"
)

// Config holds the model settings.
type Config struct {
	Title        string
	TickInterval time.Duration

	// Manager owns the views shown by the widgets. Views lists what Init
	// mounts on it; leave it empty when the caller mounts them.
	Manager *refresher.Manager
	Views   []*refresher.View

	// Zones enables click targets. Nil disables mouse actions.
	Zones *zone.Manager
}

// DefaultConfig returns a config with a 1s render tick and no views.
func DefaultConfig() Config {
	return Config{
		Title:        "livedash",
		TickInterval: time.Second,
	}
}

// RetryZoneID and WidgetZoneID name the click targets of a widget.
func RetryZoneID(widgetID string) string  { return "retry:" + widgetID }
func WidgetZoneID(widgetID string) string { return "widget:" + widgetID }

// AppModel is the root bubbletea model.
type AppModel struct {
	ctx  context.Context
	cfg  Config
	keys KeyMap
	help help.Model

	widgets     map[string]Widget
	widgetOrder []string

	focusedWidget  string
	expandedWidget string

	width, height int
	layoutDirty   bool
	helpVisible   bool
	quitting      bool

	now      time.Time
	lastErr  error
	inflight map[string]bool
}

// NewAppModel builds the model. Widgets are shown in the given order and
// the first one has focus.
func NewAppModel(ctx context.Context, cfg Config, widgets ...Widget) AppModel {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Second
	}
	m := AppModel{
		ctx:         ctx,
		cfg:         cfg,
		keys:        DefaultKeyMap(),
		help:        help.New(),
		widgets:     make(map[string]Widget, len(widgets)),
		layoutDirty: true,
		now:         time.Now(),
		inflight:    make(map[string]bool),
	}
	for _, w := range widgets {
		m.widgets[w.ID()] = w
		m.widgetOrder = append(m.widgetOrder, w.ID())
	}
	if len(m.widgetOrder) > 0 {
		m.focusedWidget = m.widgetOrder[0]
	}
	return m
}

// Init starts the render tick, widget commands and, when configured, the
// mounting of views.
func (m AppModel) Init() tea.Cmd {
	cmds := []tea.Cmd{TickCmd(m.cfg.TickInterval)}
	for _, id := range m.widgetOrder {
		if in, ok := m.widgets[id].(Initializer); ok {
			cmds = append(cmds, in.Init())
		}
	}
	if m.cfg.Manager != nil && len(m.cfg.Views) > 0 {
		cmds = append(cmds, MountCmd(m.ctx, m.cfg.Manager, m.cfg.Views))
	}
	return tea.Batch(cmds...)
}

// Update implements tea.Model.
func (m AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		m.layoutDirty = true
		return m, nil

	case tea.KeyMsg:
		cmd := m.handleKey(msg)
		return m, cmd

	case tea.MouseMsg:
		cmd := m.handleMouse(msg)
		return m, cmd

	case TickEvent:
		m.now = msg.Time
		return m, tea.Batch(m.broadcast(msg), TickCmd(m.cfg.TickInterval))

	case ActionDoneEvent:
		if msg.Action == ActionRetry {
			delete(m.inflight, msg.View)
		}
		if msg.Err != nil && msg.Action == ActionToggle {
			m.lastErr = fmt.Errorf("%s: %w", msg.View, msg.Err)
		}
		return m, m.broadcast(ViewUpdateEvent{Snapshot: msg.Snapshot})

	case MountedEvent:
		m.lastErr = msg.Err
		return m, nil
	}

	return m, m.broadcast(msg)
}

func (m *AppModel) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		return tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.helpVisible = !m.helpVisible
		m.help.ShowAll = m.helpVisible
		return nil
	case key.Matches(msg, m.keys.Next):
		m.CycleFocusForward()
		return nil
	case key.Matches(msg, m.keys.Prev):
		m.CycleFocusBackward()
		return nil
	case key.Matches(msg, m.keys.Expand):
		m.ToggleExpand()
		return nil
	case key.Matches(msg, m.keys.Collapse):
		m.expandedWidget = ""
		return nil
	case key.Matches(msg, m.keys.Retry):
		return m.retry(m.focusedWidget)
	case key.Matches(msg, m.keys.RetryAll):
		var cmds []tea.Cmd
		for _, id := range m.widgetOrder {
			cmds = append(cmds, m.retry(id))
		}
		return tea.Batch(cmds...)
	case key.Matches(msg, m.keys.Auto):
		return m.toggle(m.focusedWidget)
	}

	if w, ok := m.widgets[m.focusedWidget]; ok {
		return w.HandleKey(msg)
	}
	return nil
}

func (m *AppModel) handleMouse(msg tea.MouseMsg) tea.Cmd {
	if m.cfg.Zones == nil || msg.Action != tea.MouseActionRelease || msg.Button != tea.MouseButtonLeft {
		return nil
	}
	for _, id := range m.widgetOrder {
		if z := m.cfg.Zones.Get(RetryZoneID(id)); z != nil && z.InBounds(msg) {
			return m.retry(id)
		}
	}
	for _, id := range m.widgetOrder {
		if z := m.cfg.Zones.Get(WidgetZoneID(id)); z != nil && z.InBounds(msg) {
			m.FocusWidget(id)
			return nil
		}
	}
	return nil
}

// retry issues a Retry on the view behind widget id. A retry already in
// flight for that view is not duplicated.
func (m AppModel) retry(id string) tea.Cmd {
	v, ok := m.view(id)
	if !ok || m.inflight[id] {
		return nil
	}
	m.inflight[id] = true
	return RetryCmd(m.ctx, v)
}

func (m AppModel) toggle(id string) tea.Cmd {
	v, ok := m.view(id)
	if !ok {
		return nil
	}
	return ToggleCmd(m.ctx, v)
}

func (m AppModel) view(id string) (*refresher.View, bool) {
	if m.cfg.Manager == nil || id == "" {
		return nil, false
	}
	return m.cfg.Manager.Get(id)
}

func (m AppModel) broadcast(msg tea.Msg) tea.Cmd {
	var cmds []tea.Cmd
	for _, id := range m.widgetOrder {
		if cmd := m.widgets[id].Update(msg); cmd != nil {
			cmds = append(cmds, cmd)
		}
	}
	return tea.Batch(cmds...)
}

// View implements tea.Model.
func (m AppModel) View() string {
	if m.quitting {
		return ""
	}
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	header := m.renderHeader()
	footer := m.help.View(m.keys)
	bodyHeight := m.height - lipgloss.Height(header) - lipgloss.Height(footer)
	if bodyHeight < 1 {
		bodyHeight = 1
	}

	var body string
	if w, ok := m.widgets[m.expandedWidget]; ok {
		m.setFocus(w)
		body = m.mark(w.ID(), w.View(m.width, bodyHeight))
	} else {
		body = m.renderStack(bodyHeight)
	}

	out := lipgloss.JoinVertical(lipgloss.Left, header, body, footer)
	if m.cfg.Zones != nil {
		out = m.cfg.Zones.Scan(out)
	}
	return out
}

func (m AppModel) renderHeader() string {
	title := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED")).Render(m.cfg.Title)
	line := title + "  " + lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280")).
		Render(m.now.Format("15:04:05"))
	if m.lastErr != nil {
		line += "  " + lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444")).Render(m.lastErr.Error())
	}
	return line
}

// renderStack splits height evenly between widgets, giving the remainder
// to the first ones and never going below a widget's minimum height.
func (m AppModel) renderStack(height int) string {
	n := len(m.widgetOrder)
	if n == 0 {
		return lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280")).Render("No views configured")
	}
	each, extra := height/n, height%n

	parts := make([]string, 0, n)
	for i, id := range m.widgetOrder {
		w := m.widgets[id]
		h := each
		if i < extra {
			h++
		}
		if _, minH := w.MinSize(); h < minH {
			h = minH
		}
		m.setFocus(w)
		parts = append(parts, m.mark(id, w.View(m.width, h)))
	}
	return strings.Join(parts, "\n")
}

func (m AppModel) setFocus(w Widget) {
	if f, ok := w.(Focusable); ok {
		f.SetFocused(w.ID() == m.focusedWidget)
	}
}

func (m AppModel) mark(id, s string) string {
	if m.cfg.Zones == nil {
		return s
	}
	return m.cfg.Zones.Mark(WidgetZoneID(id), s)
}

// Accessors used by the CLI and tests.

func (m AppModel) Width() int               { return m.width }
func (m AppModel) Height() int              { return m.height }
func (m AppModel) LayoutDirty() bool        { return m.layoutDirty }
func (m AppModel) HelpVisible() bool        { return m.helpVisible }
func (m AppModel) Quitting() bool           { return m.quitting }
func (m AppModel) FocusedWidgetID() string  { return m.focusedWidget }
func (m AppModel) ExpandedWidgetID() string { return m.expandedWidget }
func (m AppModel) WidgetOrder() []string    { return append([]string(nil), m.widgetOrder...) }
