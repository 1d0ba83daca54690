// Package resources defines the data sources polled by livedash views. A
// Resource is anything with a name and a fetch function: a REST endpoint
// (see httpjson), host metrics (sysmetrics), a Kubernetes cluster (k8s) or a
// tailnet (tailscale). Resources carry no identity beyond their name.
package resources

import (
	"context"
	"time"
)

// Resource is the interface all data sources implement. Implementations live
// in sub-packages and are bound to views at startup.
type Resource interface {
	// Name returns the identifier of this resource within a view
	// (e.g., "summary", "agents").
	Name() string

	// Fetch performs one request and returns the decoded result. The value is
	// opaque here; renderers type-switch on it.
	Fetch(ctx context.Context) (interface{}, error)
}

// Status tracks the runtime state of a single resource across every view
// that polls it. The registry updates it after each fetch.
type Status struct {
	Name        string
	Healthy     bool
	LastRun     time.Time
	LastError   error
	RunCount    int64
	ErrorCount  int64
	LastLatency time.Duration
}

// Recorder receives the outcome of every fetch. *Registry implements it.
type Recorder interface {
	Record(name string, latency time.Duration, err error)
}

// Prefixed returns a Recorder that forwards to rec with prefix prepended to
// every name.
func Prefixed(rec Recorder, prefix string) Recorder {
	return prefixed{rec: rec, prefix: prefix}
}

type prefixed struct {
	rec    Recorder
	prefix string
}

func (p prefixed) Record(name string, latency time.Duration, err error) {
	p.rec.Record(p.prefix+name, latency, err)
}

// Unavailable returns a resource whose every fetch fails with err. It stands
// in for a source that could not be constructed, so the view still mounts
// and shows the reason.
func Unavailable(name string, err error) Resource {
	return unavailable{name: name, err: err}
}

type unavailable struct {
	name string
	err  error
}

func (u unavailable) Name() string { return u.name }

func (u unavailable) Fetch(context.Context) (interface{}, error) { return nil, u.err }
