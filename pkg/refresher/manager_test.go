package refresher

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"gitlab.com/tinyland/lab/livedash/pkg/resources"
)

func newManagedView(name string, opts ...Option) (*View, *resources.MockResource) {
	res := resources.NewMockResource(name+"-res", resources.WithData(name))
	opts = append([]Option{WithLogger(quietLogger()), WithClock(newFakeClock())}, opts...)
	return New(name, []resources.Resource{res}, opts...), res
}

func TestManagerMountStartsView(t *testing.T) {
	m := NewManager()
	defer func() { _ = m.StopAll(context.Background()) }()

	v, res := newManagedView("a", WithInterval(time.Minute))
	if err := m.Mount(context.Background(), v); err != nil {
		t.Fatalf("Mount: %v", err)
	}
	if res.CallCount() != 1 {
		t.Errorf("CallCount = %d, want 1", res.CallCount())
	}
	if v.Handle() == nil {
		t.Error("mounted view has no poll handle")
	}
	if got, ok := m.Get("a"); !ok || got != v {
		t.Error("Get did not return the mounted view")
	}
}

func TestManagerMountDuplicate(t *testing.T) {
	m := NewManager()
	defer func() { _ = m.StopAll(context.Background()) }()

	a1, _ := newManagedView("a")
	a2, res2 := newManagedView("a")
	if err := m.Mount(context.Background(), a1); err != nil {
		t.Fatal(err)
	}
	if err := m.Mount(context.Background(), a2); !errors.Is(err, ErrAlreadyMounted) {
		t.Fatalf("second Mount err = %v, want ErrAlreadyMounted", err)
	}
	if res2.CallCount() != 0 {
		t.Error("rejected view was started")
	}
}

func TestManagerMountClosedViewIsNotKept(t *testing.T) {
	m := NewManager()
	defer func() { _ = m.StopAll(context.Background()) }()

	v, res := newManagedView("gone")
	v.Close()
	if err := m.Mount(context.Background(), v); !errors.Is(err, ErrClosed) {
		t.Fatalf("Mount err = %v, want ErrClosed", err)
	}
	if _, ok := m.Get("gone"); ok {
		t.Error("closed view left mounted")
	}
	if names := m.List(); len(names) != 0 {
		t.Errorf("List = %v, want empty", names)
	}
	if res.CallCount() != 0 {
		t.Errorf("CallCount = %d, want 0", res.CallCount())
	}

	// The name is free for a fresh view.
	fresh, _ := newManagedView("gone")
	if err := m.Mount(context.Background(), fresh); err != nil {
		t.Fatalf("Mount fresh: %v", err)
	}
}

func TestManagerMountKeepsFailingView(t *testing.T) {
	m := NewManager()
	defer func() { _ = m.StopAll(context.Background()) }()

	v, res := newManagedView("bad")
	res.SetError(errors.New("boom"))
	if err := m.Mount(context.Background(), v); err == nil {
		t.Fatal("expected initial tick error")
	}
	if _, ok := m.Get("bad"); !ok {
		t.Error("view with failing initial tick was not kept")
	}
}

func TestManagerUnmount(t *testing.T) {
	m := NewManager()
	v, _ := newManagedView("a", WithInterval(time.Minute))
	if err := m.Mount(context.Background(), v); err != nil {
		t.Fatal(err)
	}
	if err := m.Unmount("a"); err != nil {
		t.Fatalf("Unmount: %v", err)
	}
	v.Wait()
	if v.Snapshot().State != StateStopped {
		t.Errorf("State = %v, want stopped", v.Snapshot().State)
	}
	if err := v.Start(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("Start after Unmount err = %v, want ErrClosed", err)
	}
	if err := m.Unmount("a"); !errors.Is(err, ErrViewNotFound) {
		t.Errorf("second Unmount err = %v, want ErrViewNotFound", err)
	}
}

func TestManagerListAndSnapshotsSorted(t *testing.T) {
	m := NewManager()
	defer func() { _ = m.StopAll(context.Background()) }()

	for _, name := range []string{"c", "a", "b"} {
		v, _ := newManagedView(name)
		if err := m.Mount(context.Background(), v); err != nil {
			t.Fatal(err)
		}
	}
	if diff := cmp.Diff([]string{"a", "b", "c"}, m.List()); diff != "" {
		t.Errorf("List mismatch (-want +got):\n%s", diff)
	}
	var names []string
	for _, s := range m.Snapshots() {
		names = append(names, s.View)
		if s.State != StateSuccess {
			t.Errorf("%s state = %v", s.View, s.State)
		}
	}
	if diff := cmp.Diff([]string{"a", "b", "c"}, names); diff != "" {
		t.Errorf("Snapshots order mismatch (-want +got):\n%s", diff)
	}
}

func TestManagerTouch(t *testing.T) {
	m := NewManager()
	defer func() { _ = m.StopAll(context.Background()) }()

	a, resA := newManagedView("a")
	b, _ := newManagedView("b")
	for _, v := range []*View{a, b} {
		if err := m.Mount(context.Background(), v); err != nil {
			t.Fatal(err)
		}
	}

	at := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	if err := m.Touch("a", at); err != nil {
		t.Fatalf("Touch(a): %v", err)
	}
	if !a.Snapshot().LastPush.Equal(at) || !b.Snapshot().LastPush.IsZero() {
		t.Error("Touch(a) affected the wrong views")
	}
	if resA.CallCount() != 1 {
		t.Error("Touch fetched")
	}

	later := at.Add(time.Minute)
	if err := m.Touch("", later); err != nil {
		t.Fatalf("Touch(all): %v", err)
	}
	for _, v := range []*View{a, b} {
		if !v.Snapshot().LastPush.Equal(later) {
			t.Errorf("%s LastPush = %v", v.Name(), v.Snapshot().LastPush)
		}
	}

	if err := m.Touch("missing", later); !errors.Is(err, ErrViewNotFound) {
		t.Errorf("Touch(missing) err = %v, want ErrViewNotFound", err)
	}
}

func TestManagerStopAll(t *testing.T) {
	m := NewManager()
	var views []*View
	for _, name := range []string{"a", "b"} {
		v, _ := newManagedView(name, WithInterval(time.Minute))
		if err := m.Mount(context.Background(), v); err != nil {
			t.Fatal(err)
		}
		views = append(views, v)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := m.StopAll(ctx); err != nil {
		t.Fatalf("StopAll: %v", err)
	}
	if len(m.List()) != 0 {
		t.Errorf("List after StopAll = %v", m.List())
	}
	for _, v := range views {
		if h := v.Handle(); h != nil {
			t.Errorf("%s still has a handle", v.Name())
		}
		if err := v.Retry(context.Background()); !errors.Is(err, ErrClosed) {
			t.Errorf("%s Retry err = %v, want ErrClosed", v.Name(), err)
		}
	}
}
