package daemon

import (
	"time"

	"gitlab.com/tinyland/lab/livedash/pkg/cache"
	"gitlab.com/tinyland/lab/livedash/pkg/refresher"
)

const snapshotNamespace = "snapshot"

// SnapshotRecord is the persisted form of a view snapshot. Errors are kept
// as their message.
type SnapshotRecord struct {
	View        string                 `json:"view"`
	State       string                 `json:"state"`
	Tick        uint64                 `json:"tick"`
	LastSuccess time.Time              `json:"last_success,omitempty"`
	LastAttempt time.Time              `json:"last_attempt,omitempty"`
	Error       string                 `json:"error,omitempty"`
	Data        map[string]interface{} `json:"data,omitempty"`
}

// SaveSnapshot stores snap under its view name with the given TTL.
func SaveSnapshot(store *cache.Store, snap refresher.Snapshot, ttl time.Duration) error {
	rec := SnapshotRecord{
		View:        snap.View,
		State:       snap.State.String(),
		Tick:        snap.Tick,
		LastSuccess: snap.LastSuccess,
		LastAttempt: snap.LastAttempt,
		Error:       snap.Message(),
		Data:        snap.Data,
	}
	return snapshots(store).Save(snap.View, rec, ttl)
}

// LoadSnapshot returns the stored snapshot of view, if present and fresh.
func LoadSnapshot(store *cache.Store, view string) (SnapshotRecord, bool) {
	return snapshots(store).Load(view)
}

// LoadSnapshots returns every stored snapshot sorted by view name.
func LoadSnapshots(store *cache.Store) []SnapshotRecord {
	ns := snapshots(store)
	var out []SnapshotRecord
	for _, id := range ns.IDs() {
		if rec, ok := ns.Load(id); ok {
			out = append(out, rec)
		}
	}
	return out
}

func snapshots(store *cache.Store) cache.Namespace[SnapshotRecord] {
	return cache.NewNamespace[SnapshotRecord](store, snapshotNamespace)
}
