package resources

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// Registry manages a set of named resources and their fetch statistics. It is
// safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	resources map[string]Resource
	statuses  map[string]*Status
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		resources: make(map[string]Resource),
		statuses:  make(map[string]*Status),
	}
}

// Register adds a resource under its own name. It returns an error if a
// resource with the same name is already registered.
func (r *Registry) Register(res Resource) error {
	return r.RegisterAs(res.Name(), res)
}

// RegisterAs adds a resource under name, which may differ from res.Name().
// Views that share resource names register them qualified by view.
func (r *Registry) RegisterAs(name string, res Resource) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.resources[name]; exists {
		return fmt.Errorf("resource %q already registered", name)
	}

	r.resources[name] = res
	r.statuses[name] = &Status{
		Name:    name,
		Healthy: true,
	}
	return nil
}

// Unregister removes a resource by name. Unknown names are ignored.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.resources, name)
	delete(r.statuses, name)
}

// Get returns the resource with the given name, or false if not found.
func (r *Registry) Get(name string) (Resource, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	res, ok := r.resources[name]
	return res, ok
}

// Lookup resolves names to resources in the given order. It fails on the
// first unknown name.
func (r *Registry) Lookup(names ...string) ([]Resource, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Resource, 0, len(names))
	for _, name := range names {
		res, ok := r.resources[name]
		if !ok {
			return nil, fmt.Errorf("resource %q not registered", name)
		}
		out = append(out, res)
	}
	return out, nil
}

// List returns the sorted names of all registered resources.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.resources))
	for name := range r.resources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Status returns a copy of the named resource's status.
func (r *Registry) Status(name string) (Status, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.statuses[name]
	if !ok {
		return Status{}, false
	}
	return *s, true
}

// AllStatus returns copies of all statuses sorted by name.
func (r *Registry) AllStatus() []Status {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Status, 0, len(r.statuses))
	for _, s := range r.statuses {
		result = append(result, *s)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Name < result[j].Name
	})
	return result
}

// Record updates the status of the named resource after a fetch. Fetches of
// unregistered resources are not tracked.
func (r *Registry) Record(name string, latency time.Duration, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.statuses[name]
	if !ok {
		return
	}
	s.LastRun = time.Now()
	s.LastLatency = latency
	s.RunCount++
	if err != nil {
		s.ErrorCount++
		s.LastError = err
		s.Healthy = false
		return
	}
	s.LastError = nil
	s.Healthy = true
}
