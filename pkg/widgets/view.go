package widgets

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	zone "github.com/lrstanley/bubblezone"

	"gitlab.com/tinyland/lab/livedash/pkg/app"
	"gitlab.com/tinyland/lab/livedash/pkg/refresher"
)

// ViewWidget renders the latest snapshot of one refresher view.
type ViewWidget struct {
	name      string
	title     string
	resources []string
	interval  time.Duration
	zones     *zone.Manager

	snap    refresher.Snapshot
	now     time.Time
	spin    spinner.Model
	focused bool
	offset  int
	cached  bool
}

// ViewOption customizes a ViewWidget.
type ViewOption func(*ViewWidget)

// WithTitle sets the frame title. The view name is used otherwise.
func WithTitle(title string) ViewOption {
	return func(w *ViewWidget) {
		if title != "" {
			w.title = title
		}
	}
}

// WithZones marks the Retry hint as a click target.
func WithZones(z *zone.Manager) ViewOption {
	return func(w *ViewWidget) { w.zones = z }
}

// WithCachedData shows data persisted by an earlier run until the view's
// first tick is applied.
func WithCachedData(data map[string]interface{}, at time.Time) ViewOption {
	return func(w *ViewWidget) {
		if len(data) == 0 || w.snap.HasData() {
			return
		}
		w.snap.Data = data
		w.snap.LastSuccess = at
		w.cached = true
	}
}

// NewViewWidget returns a widget for v. It starts from v's current snapshot
// and follows ViewUpdateEvents for v afterwards.
func NewViewWidget(v *refresher.View, opts ...ViewOption) *ViewWidget {
	w := &ViewWidget{
		name:      v.Name(),
		title:     v.Name(),
		resources: v.Resources(),
		interval:  v.Interval(),
		snap:      v.Snapshot(),
		now:       time.Now(),
		spin:      spinner.New(spinner.WithSpinner(spinner.Dot)),
	}
	w.spin.Style = lipgloss.NewStyle().Foreground(lipgloss.Color(ColorAccent))
	for _, opt := range opts {
		opt(w)
	}
	return w
}

var (
	_ app.Widget      = (*ViewWidget)(nil)
	_ app.Initializer = (*ViewWidget)(nil)
	_ app.Focusable   = (*ViewWidget)(nil)
)

func (w *ViewWidget) ID() string    { return w.name }
func (w *ViewWidget) Title() string { return w.title }

// Snapshot returns the snapshot being shown.
func (w *ViewWidget) Snapshot() refresher.Snapshot { return w.snap }

func (w *ViewWidget) MinSize() (int, int) { return 24, 5 }

func (w *ViewWidget) SetFocused(focused bool) { w.focused = focused }

// Init starts the spinner.
func (w *ViewWidget) Init() tea.Cmd { return w.spin.Tick }

// Update applies snapshots for this view. A snapshot older than the one
// shown, judged by its tick number, is ignored.
func (w *ViewWidget) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case app.ViewUpdateEvent:
		s := msg.Snapshot
		if s.View != w.name || s.Tick < w.snap.Tick {
			return nil
		}
		if w.cached && !s.HasData() {
			s.Data = w.snap.Data
			s.LastSuccess = w.snap.LastSuccess
		} else {
			w.cached = false
		}
		w.snap = s
	case app.TickEvent:
		w.now = msg.Time
	case spinner.TickMsg:
		var cmd tea.Cmd
		w.spin, cmd = w.spin.Update(msg)
		return cmd
	}
	return nil
}

// HandleKey scrolls the body.
func (w *ViewWidget) HandleKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "j", "down":
		w.offset++
	case "k", "up":
		if w.offset > 0 {
			w.offset--
		}
	case "g", "home":
		w.offset = 0
	}
	return nil
}

// View renders the frame: status lines first, then resource data, then the
// footer with refresh age and mode.
func (w *ViewWidget) View(width, height int) string {
	inner := width - 2
	if inner < 1 || height < 3 {
		return ""
	}
	bodyH := height - 2

	var top []string
	if w.busy() {
		top = append(top, w.spin.View()+" "+dim("Loading"))
	}
	if w.snap.Err != nil {
		top = append(top, w.errorLines(inner)...)
	}

	body := w.bodyLines(inner)
	footer := dim(w.footer())

	avail := bodyH - len(top) - 1
	if avail < 0 {
		avail = 0
	}
	if w.offset > len(body)-avail {
		w.offset = max(0, len(body)-avail)
	}
	body = body[w.offset:]
	if len(body) > avail {
		body = body[:avail]
	}

	lines := append(top, body...)
	for len(lines) < bodyH-1 {
		lines = append(lines, "")
	}
	lines = append(lines, footer)
	return Frame(w.title, lines, width, height, w.focused)
}

func (w *ViewWidget) busy() bool {
	return w.snap.Loading || w.snap.State == refresher.StateLoading
}

func (w *ViewWidget) errorLines(width int) []string {
	hint := "[r] Retry"
	if w.zones != nil {
		hint = w.zones.Mark(app.RetryZoneID(w.name), hint)
	}
	msg := colored(ColorError, "✗ "+w.snap.Message())
	lines := Wrap(msg, width)
	if len(lines) > 2 {
		lines = lines[:2]
	}
	return append(lines, colored(ColorWarn, hint))
}

// bodyLines renders resources in configured order. Resources without data
// are skipped; a view with a single resource gets no section headings.
func (w *ViewWidget) bodyLines(width int) []string {
	if !w.snap.HasData() {
		if w.busy() || w.snap.State == refresher.StateIdle {
			return nil
		}
		return []string{dim("no data")}
	}

	names := w.resources
	if len(names) == 0 {
		for n := range w.snap.Data {
			names = append(names, n)
		}
		sort.Strings(names)
	}

	var lines []string
	for _, name := range names {
		v, ok := w.snap.Get(name)
		if !ok {
			continue
		}
		if len(names) > 1 {
			lines = append(lines, colored(ColorAccent, strings.ToUpper(Label(name))))
		}
		lines = append(lines, RenderValue(v, width)...)
	}
	return lines
}

func (w *ViewWidget) footer() string {
	parts := []string{"updated " + Ago(w.snap.LastSuccess, w.now)}
	if w.cached {
		parts[0] += " (cached)"
	}
	switch {
	case !w.snap.AutoRefresh:
		parts = append(parts, "auto off")
	case w.interval > 0:
		parts = append(parts, fmt.Sprintf("every %s", w.interval))
	}
	if !w.snap.LastPush.IsZero() {
		parts = append(parts, "push "+Ago(w.snap.LastPush, w.now))
	}
	return strings.Join(parts, " · ")
}
