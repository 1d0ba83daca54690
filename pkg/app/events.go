// Package app is the bubbletea program behind `livedash tui`. It routes
// refresher snapshots to widgets, owns focus and expansion, and turns key
// presses and clicks into view actions (retry, auto-refresh toggle).
package app

import (
	"time"

	"gitlab.com/tinyland/lab/livedash/pkg/refresher"
)

// ViewUpdateEvent carries a view snapshot into the update loop. It is sent
// by the Bridge from refresher callbacks and by finished actions.
type ViewUpdateEvent struct {
	Snapshot refresher.Snapshot
}

// TickEvent drives periodic re-rendering so relative times stay current.
type TickEvent struct {
	Time time.Time
}

// ActionDoneEvent reports the end of a retry or toggle. Err is the tick
// error, if any; the snapshot already reflects it.
type ActionDoneEvent struct {
	View     string
	Action   string
	Err      error
	Snapshot refresher.Snapshot
}

// MountedEvent reports that the configured views were mounted.
type MountedEvent struct {
	Views []string
	Err   error
}

// Action names used in ActionDoneEvent.
const (
	ActionRetry   = "retry"
	ActionToggle  = "toggle"
	ActionMounted = "mount"
)
