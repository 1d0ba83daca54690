package refresher

import "time"

// State is the position of a view in its refresh cycle.
type State int

const (
	// StateIdle means the view has been created but no tick has run yet.
	StateIdle State = iota
	// StateLoading means a tick is in flight and nothing has been applied
	// since the view was started.
	StateLoading
	// StateSuccess means the last applied tick fetched every resource.
	StateSuccess
	// StateError means the last applied tick had at least one failure.
	StateError
	// StateStopped means the view has no active poll handle.
	StateStopped
)

// String returns the lower-case state name used in logs and health files.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateSuccess:
		return "success"
	case StateError:
		return "error"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Snapshot is an immutable copy of a view's state. Maps are replaced, never
// mutated, when a tick is applied, so a Snapshot may be read without locks.
type Snapshot struct {
	View        string
	State       State
	Loading     bool
	AutoRefresh bool

	// Data holds the last applied result per resource name.
	Data map[string]interface{}

	// Errors holds the per-resource failures of the last applied tick.
	Errors map[string]error

	// Err joins Errors; nil after a successful tick.
	Err error

	// Tick is the sequence number of the last applied tick.
	Tick uint64

	LastSuccess time.Time
	LastAttempt time.Time
	LastPush    time.Time
}

// Get returns the data of the named resource.
func (s Snapshot) Get(name string) (interface{}, bool) {
	v, ok := s.Data[name]
	return v, ok
}

// Message returns the human-readable error text, or "" when the last tick
// succeeded.
func (s Snapshot) Message() string {
	if s.Err == nil {
		return ""
	}
	return s.Err.Error()
}

// HasData reports whether any resource data is available for rendering.
func (s Snapshot) HasData() bool {
	return len(s.Data) > 0
}
