package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"gitlab.com/tinyland/lab/livedash/pkg/refresher"
	"gitlab.com/tinyland/lab/livedash/pkg/resources"
)

// stubWidget records the messages it receives.
type stubWidget struct {
	id   string
	msgs []tea.Msg
	keys []string
}

func (w *stubWidget) ID() string    { return w.id }
func (w *stubWidget) Title() string { return strings.ToUpper(w.id) }
func (w *stubWidget) Update(msg tea.Msg) tea.Cmd {
	w.msgs = append(w.msgs, msg)
	return nil
}
func (w *stubWidget) View(width, height int) string {
	return w.Title()
}
func (w *stubWidget) MinSize() (int, int) { return 10, 1 }
func (w *stubWidget) HandleKey(k tea.KeyMsg) tea.Cmd {
	w.keys = append(w.keys, k.String())
	return nil
}

func (w *stubWidget) snapshots() []refresher.Snapshot {
	var out []refresher.Snapshot
	for _, m := range w.msgs {
		if ev, ok := m.(ViewUpdateEvent); ok {
			out = append(out, ev.Snapshot)
		}
	}
	return out
}

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestModel(widgets ...Widget) AppModel {
	if len(widgets) == 0 {
		widgets = []Widget{&stubWidget{id: "cpu"}, &stubWidget{id: "mem"}, &stubWidget{id: "net"}}
	}
	return NewAppModel(context.Background(), DefaultConfig(), widgets...)
}

// newManagedModel mounts one view per resource name. Views have no
// interval, so nothing runs in the background.
func newManagedModel(t *testing.T, res ...*resources.MockResource) (AppModel, *refresher.Manager, []*stubWidget) {
	t.Helper()
	m := refresher.NewManager()
	t.Cleanup(func() { _ = m.StopAll(context.Background()) })

	cfg := DefaultConfig()
	cfg.Manager = m
	var widgets []Widget
	var stubs []*stubWidget
	for _, r := range res {
		v := refresher.New(r.Name(), []resources.Resource{r}, refresher.WithLogger(quiet()))
		if err := m.Mount(context.Background(), v); err != nil {
			t.Fatalf("Mount: %v", err)
		}
		s := &stubWidget{id: r.Name()}
		stubs = append(stubs, s)
		widgets = append(widgets, s)
	}
	return NewAppModel(context.Background(), cfg, widgets...), m, stubs
}

func update(m AppModel, msg tea.Msg) (AppModel, tea.Cmd) {
	updated, cmd := m.Update(msg)
	return updated.(AppModel), cmd
}

func keyPress(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestInitReturnsCmd(t *testing.T) {
	if newTestModel().Init() == nil {
		t.Fatal("Init() returned nil")
	}
}

func TestWindowSizeMsg(t *testing.T) {
	m := newTestModel()
	m.layoutDirty = false
	m, _ = update(m, tea.WindowSizeMsg{Width: 120, Height: 40})

	if m.Width() != 120 || m.Height() != 40 {
		t.Errorf("size = %dx%d", m.Width(), m.Height())
	}
	if !m.LayoutDirty() {
		t.Error("layout should be dirty after resize")
	}
}

func TestFocusCycling(t *testing.T) {
	m := newTestModel()
	if m.FocusedWidgetID() != "cpu" {
		t.Fatalf("initial focus = %q", m.FocusedWidgetID())
	}

	for _, want := range []string{"mem", "net", "cpu"} {
		m, _ = update(m, tea.KeyMsg{Type: tea.KeyTab})
		if m.FocusedWidgetID() != want {
			t.Errorf("after Tab focus = %q, want %q", m.FocusedWidgetID(), want)
		}
	}

	m, _ = update(m, tea.KeyMsg{Type: tea.KeyShiftTab})
	if m.FocusedWidgetID() != "net" {
		t.Errorf("Shift+Tab from cpu = %q, want net", m.FocusedWidgetID())
	}
}

func TestExpandAndCollapse(t *testing.T) {
	m := newTestModel()
	m, _ = update(m, tea.KeyMsg{Type: tea.KeyEnter})
	if m.ExpandedWidgetID() != "cpu" {
		t.Fatalf("expanded = %q", m.ExpandedWidgetID())
	}
	m, _ = update(m, tea.WindowSizeMsg{Width: 80, Height: 24})
	if out := m.View(); strings.Contains(out, "MEM") {
		t.Error("expanded view should only show the focused widget")
	}
	m, _ = update(m, tea.KeyMsg{Type: tea.KeyEscape})
	if m.ExpandedWidgetID() != "" {
		t.Errorf("after Esc expanded = %q", m.ExpandedWidgetID())
	}
}

func TestQuitKeys(t *testing.T) {
	for _, msg := range []tea.KeyMsg{keyPress("q"), {Type: tea.KeyCtrlC}} {
		m, cmd := update(newTestModel(), msg)
		if !m.Quitting() || cmd == nil {
			t.Errorf("%s did not quit", msg)
		}
		if m.View() != "" {
			t.Error("View() should be empty while quitting")
		}
	}
}

func TestHelpToggle(t *testing.T) {
	m := newTestModel()
	m, _ = update(m, keyPress("?"))
	if !m.HelpVisible() {
		t.Fatal("help not shown")
	}
	m, _ = update(m, tea.WindowSizeMsg{Width: 100, Height: 30})
	if out := m.View(); !strings.Contains(out, "retry all") {
		t.Errorf("full help missing from view:\n%s", out)
	}
	m, _ = update(m, keyPress("?"))
	if m.HelpVisible() {
		t.Error("help still shown")
	}
}

func TestViewBeforeResize(t *testing.T) {
	if out := newTestModel().View(); out != "Initializing..." {
		t.Errorf("View() = %q", out)
	}
}

func TestViewStacksWidgets(t *testing.T) {
	m, _ := update(newTestModel(), tea.WindowSizeMsg{Width: 80, Height: 24})
	out := m.View()
	for _, s := range []string{"livedash", "CPU", "MEM", "NET"} {
		if !strings.Contains(out, s) {
			t.Errorf("view missing %q", s)
		}
	}
}

func TestNoWidgets(t *testing.T) {
	m := NewAppModel(context.Background(), DefaultConfig())
	if m.FocusedWidgetID() != "" {
		t.Errorf("focus = %q", m.FocusedWidgetID())
	}
	m.CycleFocusForward()
	m.CycleFocusBackward()
	m.ToggleExpand()
	m, _ = update(m, tea.WindowSizeMsg{Width: 40, Height: 10})
	if !strings.Contains(m.View(), "No views configured") {
		t.Error("empty dashboard message missing")
	}
}

func TestUnboundKeysGoToFocusedWidget(t *testing.T) {
	cpu := &stubWidget{id: "cpu"}
	m := newTestModel(cpu, &stubWidget{id: "mem"})
	update(m, keyPress("x"))
	if len(cpu.keys) != 1 || cpu.keys[0] != "x" {
		t.Errorf("focused widget keys = %v", cpu.keys)
	}
}

func TestViewUpdateEventBroadcast(t *testing.T) {
	a, b := &stubWidget{id: "a"}, &stubWidget{id: "b"}
	m := newTestModel(a, b)
	update(m, ViewUpdateEvent{Snapshot: refresher.Snapshot{View: "a", Tick: 1}})

	if len(a.snapshots()) != 1 || len(b.snapshots()) != 1 {
		t.Errorf("broadcast reached a=%d b=%d", len(a.snapshots()), len(b.snapshots()))
	}
}

func TestTickEventUpdatesClockAndReschedules(t *testing.T) {
	m := newTestModel()
	at := time.Date(2026, 10, 17, 12, 30, 0, 0, time.UTC)
	m, cmd := update(m, TickEvent{Time: at})
	if cmd == nil {
		t.Fatal("TickEvent should schedule the next tick")
	}
	m, _ = update(m, tea.WindowSizeMsg{Width: 80, Height: 10})
	if !strings.Contains(m.View(), "12:30:00") {
		t.Error("header clock not updated")
	}
}

func TestRetryKeyFetchesOnce(t *testing.T) {
	res := resources.NewMockResource("summary", resources.WithData(1))
	m, _, stubs := newManagedModel(t, res)
	before := res.CallCount()

	m, cmd := update(m, keyPress("r"))
	if cmd == nil {
		t.Fatal("r produced no command")
	}
	// A second press while the first is in flight is ignored.
	if _, dup := update(m, keyPress("r")); dup != nil {
		t.Error("duplicate retry issued while one is in flight")
	}

	msg := cmd()
	done, ok := msg.(ActionDoneEvent)
	if !ok || done.Action != ActionRetry || done.Err != nil {
		t.Fatalf("cmd() = %#v", msg)
	}
	if got := res.CallCount() - before; got != 1 {
		t.Errorf("retry fetched %d times, want 1", got)
	}

	m, _ = update(m, msg)
	if snaps := stubs[0].snapshots(); len(snaps) != 1 || snaps[0].State != refresher.StateSuccess {
		t.Errorf("widget snapshots = %+v", snaps)
	}
	if _, again := update(m, keyPress("r")); again == nil {
		t.Error("retry should be possible again after completion")
	}
}

func TestRetryAll(t *testing.T) {
	a := resources.NewMockResource("a")
	b := resources.NewMockResource("b", resources.WithError(errors.New("down")))
	m, _, _ := newManagedModel(t, a, b)
	beforeA, beforeB := a.CallCount(), b.CallCount()

	_, cmd := update(m, keyPress("R"))
	if cmd == nil {
		t.Fatal("R produced no command")
	}
	batch, ok := cmd().(tea.BatchMsg)
	if !ok {
		t.Fatalf("R should batch retries, got %T", cmd())
	}
	for _, c := range batch {
		if c != nil {
			c()
		}
	}
	if a.CallCount()-beforeA != 1 || b.CallCount()-beforeB != 1 {
		t.Errorf("fetches a=%d b=%d, want 1 each", a.CallCount()-beforeA, b.CallCount()-beforeB)
	}
}

func TestAutoToggle(t *testing.T) {
	res := resources.NewMockResource("summary")
	m, mgr, _ := newManagedModel(t, res)
	v, _ := mgr.Get("summary")

	_, cmd := update(m, keyPress("a"))
	if cmd == nil {
		t.Fatal("a produced no command")
	}
	done := cmd().(ActionDoneEvent)
	if done.Action != ActionToggle || v.AutoRefresh() {
		t.Errorf("auto-refresh still on after toggle: %+v", done)
	}
	if done.Snapshot.State != refresher.StateStopped {
		t.Errorf("state = %v, want stopped", done.Snapshot.State)
	}
}

func TestAutoToggleTwiceReturnsToOn(t *testing.T) {
	res := resources.NewMockResource("summary")
	m, mgr, _ := newManagedModel(t, res)
	v, _ := mgr.Get("summary")

	_, first := update(m, keyPress("a"))
	_, second := update(m, keyPress("a"))
	if first == nil || second == nil {
		t.Fatal("a produced no command")
	}

	var wg sync.WaitGroup
	for _, cmd := range []tea.Cmd{first, second} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = cmd()
		}()
	}
	wg.Wait()

	if !v.AutoRefresh() {
		t.Error("two toggles left auto-refresh off")
	}
	if v.Snapshot().State == refresher.StateStopped {
		t.Error("view stopped after two toggles")
	}
}

func TestActionsWithoutManagerAreNoOps(t *testing.T) {
	m := newTestModel()
	for _, k := range []string{"r", "a", "R"} {
		if _, cmd := update(m, keyPress(k)); cmd != nil {
			if msg := cmd(); msg != nil {
				if b, ok := msg.(tea.BatchMsg); !ok || len(nonNil(b)) > 0 {
					t.Errorf("%s without a manager produced %T", k, msg)
				}
			}
		}
	}
}

func nonNil(b tea.BatchMsg) []tea.Cmd {
	var out []tea.Cmd
	for _, c := range b {
		if c != nil {
			out = append(out, c)
		}
	}
	return out
}

func TestMountCmd(t *testing.T) {
	mgr := refresher.NewManager()
	defer mgr.StopAll(context.Background())

	res := resources.NewMockResource("x", resources.WithError(errors.New("down")))
	v := refresher.New("x", []resources.Resource{res}, refresher.WithLogger(quiet()))

	msg := MountCmd(context.Background(), mgr, []*refresher.View{v})().(MountedEvent)
	if msg.Err != nil || len(msg.Views) != 1 {
		t.Errorf("MountedEvent = %+v", msg)
	}

	again := MountCmd(context.Background(), mgr, []*refresher.View{v})().(MountedEvent)
	if !errors.Is(again.Err, refresher.ErrAlreadyMounted) {
		t.Errorf("second mount err = %v", again.Err)
	}
}

func TestBridgeWithoutProgramDropsUpdates(t *testing.T) {
	var b Bridge
	b.OnUpdate(refresher.Snapshot{View: "x"})
}
