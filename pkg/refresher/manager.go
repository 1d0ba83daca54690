package refresher

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Sentinel errors returned by Manager.
var (
	ErrAlreadyMounted = errors.New("refresher: view already mounted")
	ErrViewNotFound   = errors.New("refresher: view not found")
)

// Manager owns the views mounted on one dashboard. Mounting starts a view,
// unmounting closes it. It is safe for concurrent use.
type Manager struct {
	mu    sync.RWMutex
	views map[string]*View
}

// NewManager returns an empty manager.
func NewManager() *Manager {
	return &Manager{views: make(map[string]*View)}
}

// Mount registers v and starts it. The view stays mounted even if its
// initial tick fails; that error is returned for the caller to log. A closed
// view is not kept.
func (m *Manager) Mount(ctx context.Context, v *View) error {
	m.mu.Lock()
	if _, exists := m.views[v.Name()]; exists {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrAlreadyMounted, v.Name())
	}
	m.views[v.Name()] = v
	m.mu.Unlock()

	err := v.Start(ctx)
	if errors.Is(err, ErrClosed) {
		m.mu.Lock()
		if m.views[v.Name()] == v {
			delete(m.views, v.Name())
		}
		m.mu.Unlock()
	}
	return err
}

// Unmount closes the named view and forgets it.
func (m *Manager) Unmount(name string) error {
	m.mu.Lock()
	v, ok := m.views[name]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrViewNotFound, name)
	}
	delete(m.views, name)
	m.mu.Unlock()

	v.Close()
	return nil
}

// Get returns the named view.
func (m *Manager) Get(name string) (*View, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.views[name]
	return v, ok
}

// List returns the sorted names of mounted views.
func (m *Manager) List() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.views))
	for name := range m.views {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Snapshots returns the state of every mounted view, sorted by name.
func (m *Manager) Snapshots() []Snapshot {
	m.mu.RLock()
	views := make([]*View, 0, len(m.views))
	for _, v := range m.views {
		views = append(views, v)
	}
	m.mu.RUnlock()

	out := make([]Snapshot, 0, len(views))
	for _, v := range views {
		out = append(out, v.Snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].View < out[j].View })
	return out
}

// Touch records a push notification on the named view, or on every view
// when name is empty.
func (m *Manager) Touch(name string, t time.Time) error {
	if name == "" {
		m.mu.RLock()
		views := make([]*View, 0, len(m.views))
		for _, v := range m.views {
			views = append(views, v)
		}
		m.mu.RUnlock()
		for _, v := range views {
			v.Touch(t)
		}
		return nil
	}

	v, ok := m.Get(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrViewNotFound, name)
	}
	v.Touch(t)
	return nil
}

// StopAll closes and forgets every view, then waits for their goroutines
// until ctx ends.
func (m *Manager) StopAll(ctx context.Context) error {
	m.mu.Lock()
	views := m.views
	m.views = make(map[string]*View)
	m.mu.Unlock()

	for _, v := range views {
		v.Close()
	}

	done := make(chan struct{})
	go func() {
		for _, v := range views {
			v.Wait()
		}
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
