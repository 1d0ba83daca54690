// Package refresher keeps dashboard views fresh. A View polls a fixed set of
// resources: it fetches them all once when started, then again on every tick
// of its PollHandle until it is stopped.
//
// Three rules hold for every view:
//   - at most one PollHandle is active at a time; starting again replaces it,
//   - a tick is applied as a whole, only after every resource resolved,
//   - results of a tick that began before Stop (or before a restart) are
//     dropped, never applied.
//
// Stop cancels the context passed to in-flight fetches. The generation
// counter covers fetches that ignore cancellation.
package refresher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"k8s.io/utils/clock"

	"gitlab.com/tinyland/lab/livedash/pkg/resources"
)

// ErrClosed is returned by operations on a view that has been closed.
var ErrClosed = errors.New("refresher: view closed")

// View is a named surface whose data is refreshed from a set of resources.
// All methods are safe for concurrent use.
type View struct {
	name      string
	resources []resources.Resource
	interval  time.Duration
	schedule  Schedule
	policy    ErrorPolicy
	timeout   time.Duration
	clock     clock.WithTicker
	logger    *slog.Logger
	recorder  resources.Recorder
	onUpdate  func(Snapshot)
	onError   func(error)

	mu          sync.Mutex
	autoRefresh bool
	started     bool
	closed      bool
	generation  uint64
	genCtx      context.Context
	genCancel   context.CancelFunc
	handle      *PollHandle
	seq         uint64
	applied     uint64
	inflight    int
	snap        Snapshot

	workers sync.WaitGroup
}

// New creates a view over the given resources. The view does nothing until
// Start is called.
func New(name string, res []resources.Resource, opts ...Option) *View {
	v := &View{
		name:        name,
		resources:   append([]resources.Resource(nil), res...),
		clock:       clock.RealClock{},
		logger:      slog.Default(),
		autoRefresh: true,
	}
	for _, opt := range opts {
		opt(v)
	}
	v.snap = Snapshot{View: name, State: StateIdle}
	return v
}

// Name returns the view name.
func (v *View) Name() string { return v.name }

// Interval returns the configured polling interval.
func (v *View) Interval() time.Duration { return v.interval }

// Resources returns the names of the polled resources in order.
func (v *View) Resources() []string {
	names := make([]string, len(v.resources))
	for i, r := range v.resources {
		names[i] = r.Name()
	}
	return names
}

// Start fetches every resource once, applies the result, and then schedules
// the repeating timer when auto-refresh is enabled and an interval is set.
// Any previous handle is cancelled first. The returned error is the initial
// tick's error; the timer is scheduled regardless so the next tick can
// recover.
func (v *View) Start(ctx context.Context) error {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return ErrClosed
	}
	gen, genCtx := v.beginLocked(ctx)
	v.mu.Unlock()

	return v.run(genCtx, gen)
}

// beginLocked opens a new generation and marks the view started.
// Caller must hold v.mu.
func (v *View) beginLocked(ctx context.Context) (uint64, context.Context) {
	v.resetLocked()
	v.generation++
	v.genCtx, v.genCancel = context.WithCancel(ctx)
	v.started = true
	if v.snap.State == StateIdle || v.snap.State == StateStopped {
		v.snap.State = StateLoading
	}
	return v.generation, v.genCtx
}

// run performs the initial tick of generation gen and then arms the timer,
// unless the generation was superseded or auto-refresh is off by then.
func (v *View) run(genCtx context.Context, gen uint64) error {
	v.logger.Debug("view started", "view", v.name, "generation", gen)

	err := v.runTick(genCtx, gen)

	v.mu.Lock()
	defer v.mu.Unlock()
	if gen != v.generation || !v.autoRefresh || v.interval <= 0 {
		return err
	}
	hctx, hcancel := context.WithCancel(genCtx)
	h := newPollHandle(v.interval, v.schedule, v.clock.Now(), hcancel)
	v.handle = h
	v.workers.Add(1)
	go v.poll(hctx, h, gen)
	v.logger.Debug("poll scheduled", "view", v.name, "handle", h.ID(),
		"interval", v.interval, "schedule", v.schedule)
	return err
}

// Stop cancels the active poll handle and any in-flight tick. Results that
// arrive afterwards are dropped. Calling Stop on a stopped view is a no-op.
func (v *View) Stop() {
	v.mu.Lock()
	stopped := v.stopLocked()
	v.mu.Unlock()
	if stopped {
		v.logger.Debug("view stopped", "view", v.name)
	}
}

// stopLocked ends the current generation. It reports false if the view was
// not running. Caller must hold v.mu.
func (v *View) stopLocked() bool {
	if !v.started {
		return false
	}
	v.resetLocked()
	v.generation++
	v.started = false
	v.snap.State = StateStopped
	v.snap.Loading = false
	return true
}

// Close stops the view for good. Start and Retry fail with ErrClosed
// afterwards.
func (v *View) Close() {
	v.Stop()
	v.mu.Lock()
	v.closed = true
	v.snap.State = StateStopped
	v.mu.Unlock()
}

// Wait blocks until every goroutine started by the view has returned. It
// must not run concurrently with Start.
func (v *View) Wait() {
	v.workers.Wait()
}

// SetAutoRefresh enables or disables the repeating timer. Enabling a
// disabled view starts it; disabling stops it. Setting the current value
// again does nothing, so repeated enables never stack timers.
func (v *View) SetAutoRefresh(ctx context.Context, enabled bool) error {
	_, err := v.setAutoRefresh(ctx, func(bool) bool { return enabled })
	return err
}

// ToggleAutoRefresh flips auto-refresh and returns the new setting.
func (v *View) ToggleAutoRefresh(ctx context.Context) (bool, error) {
	return v.setAutoRefresh(ctx, func(cur bool) bool { return !cur })
}

// setAutoRefresh changes the flag and starts or stops the view under one
// lock. Only the initial tick of an enable runs outside it.
func (v *View) setAutoRefresh(ctx context.Context, next func(current bool) bool) (bool, error) {
	v.mu.Lock()
	if v.closed {
		cur := v.autoRefresh
		v.mu.Unlock()
		return cur, ErrClosed
	}
	enabled := next(v.autoRefresh)
	if enabled == v.autoRefresh {
		v.mu.Unlock()
		return enabled, nil
	}
	v.autoRefresh = enabled
	v.snap.AutoRefresh = enabled
	var (
		gen    uint64
		genCtx context.Context
	)
	if enabled {
		gen, genCtx = v.beginLocked(ctx)
	} else {
		v.stopLocked()
	}
	v.mu.Unlock()

	v.logger.Info("auto-refresh toggled", "view", v.name, "enabled", enabled)
	if !enabled {
		return false, nil
	}
	return true, v.run(genCtx, gen)
}

// AutoRefresh reports whether the repeating timer is enabled.
func (v *View) AutoRefresh() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.autoRefresh
}

// Retry runs exactly one extra tick now. It does not create or reset the
// timer. On a running view the tick is cancelled by Stop like any other.
func (v *View) Retry(ctx context.Context) error {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return ErrClosed
	}
	gen := v.generation
	if v.started {
		ctx = v.genCtx
	}
	v.mu.Unlock()

	v.logger.Debug("manual retry", "view", v.name)
	return v.runTick(ctx, gen)
}

// Touch records a push notification. It never fetches; it only refreshes the
// push timestamp and notifies OnUpdate.
func (v *View) Touch(t time.Time) {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return
	}
	v.snap.LastPush = t
	snap := v.snapshotLocked()
	v.mu.Unlock()

	if v.onUpdate != nil {
		v.onUpdate(snap)
	}
}

// Snapshot returns a copy of the current state.
func (v *View) Snapshot() Snapshot {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.snapshotLocked()
}

// Handle returns the active poll handle, or nil.
func (v *View) Handle() *PollHandle {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.handle
}

// Generation returns the current generation counter.
func (v *View) Generation() uint64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.generation
}

// resetLocked cancels the current generation and its handle.
// Caller must hold v.mu.
func (v *View) resetLocked() {
	if v.handle != nil {
		v.handle.Stop()
		v.handle = nil
	}
	if v.genCancel != nil {
		v.genCancel()
		v.genCancel = nil
	}
}

func (v *View) snapshotLocked() Snapshot {
	s := v.snap
	s.View = v.name
	s.AutoRefresh = v.autoRefresh
	s.Loading = v.inflight > 0
	return s
}

// poll drives the repeating timer until ctx is cancelled.
func (v *View) poll(ctx context.Context, h *PollHandle, gen uint64) {
	var ticks sync.WaitGroup
	defer func() {
		ticks.Wait()
		close(h.done)
		v.workers.Done()
	}()

	if h.schedule == FixedRate {
		tk := v.clock.NewTicker(h.interval)
		defer tk.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-tk.C():
			}
			if ctx.Err() != nil {
				return
			}
			ticks.Add(1)
			go func() {
				defer ticks.Done()
				_ = v.runTick(ctx, gen)
			}()
		}
	}

	for {
		t := v.clock.NewTimer(h.interval)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C():
		}
		if ctx.Err() != nil {
			return
		}
		_ = v.runTick(ctx, gen)
	}
}

// runTick fetches every resource in parallel and applies the outcome as a
// whole. Ticks from a stale generation neither fetch nor apply.
func (v *View) runTick(ctx context.Context, gen uint64) error {
	v.mu.Lock()
	if gen != v.generation || v.closed {
		v.mu.Unlock()
		return nil
	}
	v.seq++
	seq := v.seq
	v.inflight++
	v.mu.Unlock()

	if v.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, v.timeout)
		defer cancel()
	}

	data, errs := v.fetchAll(ctx)

	var tickErr error
	if len(errs) > 0 {
		joined := make([]error, 0, len(errs))
		for _, r := range v.resources {
			if err, ok := errs[r.Name()]; ok {
				joined = append(joined, err)
			}
		}
		tickErr = errors.Join(joined...)
	}

	v.mu.Lock()
	v.inflight--
	if gen != v.generation || v.closed {
		v.mu.Unlock()
		v.logger.Debug("dropping stale tick", "view", v.name, "tick", seq)
		return nil
	}
	if seq <= v.applied {
		v.mu.Unlock()
		v.logger.Debug("dropping out-of-order tick", "view", v.name, "tick", seq, "applied", v.applied)
		return nil
	}
	v.applied = seq

	now := v.clock.Now()
	v.snap.Tick = seq
	v.snap.LastAttempt = now
	if tickErr == nil {
		v.snap.State = StateSuccess
		v.snap.Data = data
		v.snap.Errors = nil
		v.snap.Err = nil
		v.snap.LastSuccess = now
	} else {
		v.snap.State = StateError
		v.snap.Errors = errs
		v.snap.Err = tickErr
		if v.policy == DiscardOnError {
			v.snap.Data = nil
		}
	}
	snap := v.snapshotLocked()
	v.mu.Unlock()

	if tickErr != nil {
		v.logger.Warn("refresh failed", "view", v.name, "tick", seq, "error", tickErr)
		if v.onError != nil {
			v.onError(tickErr)
		}
	} else {
		v.logger.Debug("refresh applied", "view", v.name, "tick", seq)
	}
	if v.onUpdate != nil {
		v.onUpdate(snap)
	}
	return tickErr
}

// fetchAll runs every resource to completion. It never cancels siblings on
// failure; the tick waits for all of them.
func (v *View) fetchAll(ctx context.Context) (map[string]interface{}, map[string]error) {
	results := make([]interface{}, len(v.resources))
	failures := make([]error, len(v.resources))

	var g errgroup.Group
	for i, r := range v.resources {
		g.Go(func() error {
			start := time.Now()
			out, err := r.Fetch(ctx)
			if v.recorder != nil {
				v.recorder.Record(r.Name(), time.Since(start), err)
			}
			if err != nil {
				failures[i] = fmt.Errorf("%s: %w", r.Name(), err)
				return nil
			}
			results[i] = out
			return nil
		})
	}
	_ = g.Wait()

	data := make(map[string]interface{}, len(v.resources))
	var errs map[string]error
	for i, r := range v.resources {
		if failures[i] != nil {
			if errs == nil {
				errs = make(map[string]error)
			}
			errs[r.Name()] = failures[i]
			continue
		}
		data[r.Name()] = results[i]
	}
	return data, errs
}
