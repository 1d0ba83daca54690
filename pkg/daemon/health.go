// Package daemon supports `livedash serve`: a PID file guarding a single
// instance, a health file describing every mounted view, persisted view
// snapshots for `livedash status`, and a control socket.
package daemon

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	jsoniter "github.com/json-iterator/go"

	"gitlab.com/tinyland/lab/livedash/pkg/refresher"
	"gitlab.com/tinyland/lab/livedash/pkg/resources"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// HealthStatus is the content of health.json.
type HealthStatus struct {
	PID       int              `json:"pid"`
	StartedAt time.Time        `json:"started_at"`
	UpdatedAt time.Time        `json:"updated_at"`
	Views     []ViewHealth     `json:"views"`
	Resources []ResourceHealth `json:"resources,omitempty"`
}

// ViewHealth summarises one view.
type ViewHealth struct {
	Name        string    `json:"name"`
	State       string    `json:"state"`
	AutoRefresh bool      `json:"auto_refresh"`
	Tick        uint64    `json:"tick"`
	LastSuccess time.Time `json:"last_success,omitempty"`
	LastAttempt time.Time `json:"last_attempt,omitempty"`
	LastPush    time.Time `json:"last_push,omitempty"`
	Error       string    `json:"error,omitempty"`
}

// ResourceHealth mirrors resources.Status with the error flattened.
type ResourceHealth struct {
	Name       string        `json:"name"`
	Healthy    bool          `json:"healthy"`
	RunCount   int64         `json:"run_count"`
	ErrorCount int64         `json:"error_count"`
	LastError  string        `json:"last_error,omitempty"`
	Latency    time.Duration `json:"latency"`
}

// NewHealthStatus assembles a status from view snapshots and resource stats.
func NewHealthStatus(started, now time.Time, snaps []refresher.Snapshot, stats []resources.Status) *HealthStatus {
	h := &HealthStatus{
		PID:       os.Getpid(),
		StartedAt: started,
		UpdatedAt: now,
		Views:     make([]ViewHealth, 0, len(snaps)),
	}
	for _, s := range snaps {
		h.Views = append(h.Views, ViewHealth{
			Name:        s.View,
			State:       s.State.String(),
			AutoRefresh: s.AutoRefresh,
			Tick:        s.Tick,
			LastSuccess: s.LastSuccess,
			LastAttempt: s.LastAttempt,
			LastPush:    s.LastPush,
			Error:       s.Message(),
		})
	}
	for _, st := range stats {
		rh := ResourceHealth{
			Name:       st.Name,
			Healthy:    st.Healthy,
			RunCount:   st.RunCount,
			ErrorCount: st.ErrorCount,
			Latency:    st.LastLatency,
		}
		if st.LastError != nil {
			rh.LastError = st.LastError.Error()
		}
		h.Resources = append(h.Resources, rh)
	}
	return h
}

// Healthy reports whether no view is in the error state.
func (h *HealthStatus) Healthy() bool {
	for _, v := range h.Views {
		if v.Error != "" {
			return false
		}
	}
	return true
}

// WriteHealthFile writes status as indented JSON. The file is replaced by
// rename so readers never see a partial write.
func WriteHealthFile(path string, status *HealthStatus) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create health directory: %w", err)
	}

	data, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal health status: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp health file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename health file: %w", err)
	}
	return nil
}

// ReadHealthFile parses the health file at path.
func ReadHealthFile(path string) (*HealthStatus, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read health file: %w", err)
	}
	var status HealthStatus
	if err := json.Unmarshal(data, &status); err != nil {
		return nil, fmt.Errorf("unmarshal health file: %w", err)
	}
	return &status, nil
}
