package refresher

import (
	"log/slog"
	"time"

	"k8s.io/utils/clock"

	"gitlab.com/tinyland/lab/livedash/pkg/resources"
)

// Schedule selects how consecutive ticks are timed.
type Schedule int

const (
	// FixedDelay arms the next tick only after the current one completes, so
	// ticks never overlap.
	FixedDelay Schedule = iota
	// FixedRate fires on a ticker regardless of fetch latency. Ticks may
	// overlap; results older than the last applied tick are discarded.
	FixedRate
)

// String returns the config spelling of the schedule.
func (s Schedule) String() string {
	if s == FixedRate {
		return "fixed-rate"
	}
	return "fixed-delay"
}

// ParseSchedule converts a config string to a Schedule. Empty means
// FixedDelay.
func ParseSchedule(s string) (Schedule, bool) {
	switch s {
	case "", "fixed-delay":
		return FixedDelay, true
	case "fixed-rate":
		return FixedRate, true
	}
	return FixedDelay, false
}

// ErrorPolicy decides what happens to previously applied data when a tick
// fails. Either way a failed tick is never partially applied.
type ErrorPolicy int

const (
	// PreserveLastGood keeps the last successful data set visible next to
	// the error.
	PreserveLastGood ErrorPolicy = iota
	// DiscardOnError clears all data when a tick fails.
	DiscardOnError
)

// String returns the config spelling of the policy.
func (p ErrorPolicy) String() string {
	if p == DiscardOnError {
		return "discard"
	}
	return "keep-last-good"
}

// ParseErrorPolicy converts a config string to an ErrorPolicy. Empty means
// PreserveLastGood.
func ParseErrorPolicy(s string) (ErrorPolicy, bool) {
	switch s {
	case "", "keep-last-good":
		return PreserveLastGood, true
	case "discard":
		return DiscardOnError, true
	}
	return PreserveLastGood, false
}

// Option configures a View.
type Option func(*View)

// WithInterval sets the polling interval. Zero disables the repeating timer;
// the view then only fetches on Start and Retry.
func WithInterval(d time.Duration) Option {
	return func(v *View) { v.interval = d }
}

// WithAutoRefresh sets the initial auto-refresh flag. Views default to
// auto-refresh enabled.
func WithAutoRefresh(enabled bool) Option {
	return func(v *View) { v.autoRefresh = enabled }
}

// WithSchedule selects FixedDelay (default) or FixedRate timing.
func WithSchedule(s Schedule) Option {
	return func(v *View) { v.schedule = s }
}

// WithErrorPolicy selects what a failed tick does to existing data.
func WithErrorPolicy(p ErrorPolicy) Option {
	return func(v *View) { v.policy = p }
}

// WithTimeout bounds every tick. Zero means no deadline.
func WithTimeout(d time.Duration) Option {
	return func(v *View) { v.timeout = d }
}

// WithClock replaces the wall clock, typically with a fake clock in tests.
func WithClock(c clock.WithTicker) Option {
	return func(v *View) { v.clock = c }
}

// WithLogger sets the logger. Nil keeps slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(v *View) {
		if l != nil {
			v.logger = l
		}
	}
}

// WithRecorder reports every fetch outcome, typically to a
// *resources.Registry.
func WithRecorder(r resources.Recorder) Option {
	return func(v *View) { v.recorder = r }
}

// OnUpdate registers a callback invoked after every applied tick, successful
// or not, and after Touch. It runs on the goroutine that applied the tick,
// outside the view's lock.
func OnUpdate(fn func(Snapshot)) Option {
	return func(v *View) { v.onUpdate = fn }
}

// OnError registers a callback invoked after every applied tick that failed.
func OnError(fn func(error)) Option {
	return func(v *View) { v.onError = fn }
}
