package refresher

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// PollHandle represents the active repeating timer of one view. It is owned
// by the view that created it and is stopped when the view stops, restarts
// or closes.
type PollHandle struct {
	id       string
	interval time.Duration
	schedule Schedule
	started  time.Time

	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once
}

func newPollHandle(interval time.Duration, schedule Schedule, now time.Time, cancel context.CancelFunc) *PollHandle {
	return &PollHandle{
		id:       uuid.NewString(),
		interval: interval,
		schedule: schedule,
		started:  now,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
}

// ID returns the random identifier used in logs and health output.
func (h *PollHandle) ID() string { return h.id }

// Interval returns the polling interval.
func (h *PollHandle) Interval() time.Duration { return h.interval }

// Schedule returns the timing mode.
func (h *PollHandle) Schedule() Schedule { return h.schedule }

// Started returns when the handle was created.
func (h *PollHandle) Started() time.Time { return h.started }

// Stop cancels the timer. It is safe to call more than once.
func (h *PollHandle) Stop() {
	h.stopOnce.Do(h.cancel)
}

// Done is closed once the timer goroutine and every tick it launched have
// returned.
func (h *PollHandle) Done() <-chan struct{} { return h.done }
