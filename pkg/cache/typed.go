package cache

import (
	"fmt"
	"strings"
	"time"
)

// Namespace is a typed view of a Store. Every key it touches is prefixed
// with its name, and values are JSON encoded as T.
type Namespace[T any] struct {
	store  *Store
	prefix string
}

// NewNamespace returns the namespace name of s. The separator "/" is
// appended to name.
func NewNamespace[T any](s *Store, name string) Namespace[T] {
	return Namespace[T]{store: s, prefix: name + "/"}
}

// Load decodes the value stored under id. A missing, expired or undecodable
// entry reports false.
func (n Namespace[T]) Load(id string) (T, bool) {
	var v T
	data, ok := n.store.Get(n.prefix + id)
	if !ok {
		return v, false
	}
	if err := json.Unmarshal(data, &v); err != nil {
		var zero T
		return zero, false
	}
	return v, true
}

// Save stores value under id. A ttl of zero uses the store's default.
func (n Namespace[T]) Save(id string, value T, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache: encode %s%s: %w", n.prefix, id, err)
	}
	if ttl <= 0 {
		return n.store.Put(n.prefix+id, data)
	}
	return n.store.PutWithTTL(n.prefix+id, data, ttl)
}

// IDs returns the sorted ids of live entries in the namespace.
func (n Namespace[T]) IDs() []string {
	var ids []string
	for _, k := range n.store.Keys() {
		if id, ok := strings.CutPrefix(k, n.prefix); ok {
			ids = append(ids, id)
		}
	}
	return ids
}
