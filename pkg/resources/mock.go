package resources

import (
	"context"
	"sync"
	"sync/atomic"
)

// MockResource implements Resource for tests and the --use-mocks mode. It
// returns configurable data or an error and counts Fetch calls.
type MockResource struct {
	name string

	mu   sync.RWMutex
	data interface{}
	err  error

	calls atomic.Int64

	// FetchFunc, if set, overrides the configured data and error. Tests use
	// it to block until a signal or to vary results per call.
	FetchFunc func(ctx context.Context) (interface{}, error)
}

// MockOption configures a MockResource.
type MockOption func(*MockResource)

// WithData sets the data returned by Fetch.
func WithData(data interface{}) MockOption {
	return func(m *MockResource) { m.data = data }
}

// WithError sets the error returned by Fetch.
func WithError(err error) MockOption {
	return func(m *MockResource) { m.err = err }
}

// WithFetchFunc sets a custom fetch function.
func WithFetchFunc(fn func(ctx context.Context) (interface{}, error)) MockOption {
	return func(m *MockResource) { m.FetchFunc = fn }
}

// NewMockResource creates a mock resource with the given name and options.
func NewMockResource(name string, opts ...MockOption) *MockResource {
	m := &MockResource{name: name}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Name returns the resource name.
func (m *MockResource) Name() string { return m.name }

// SetData replaces the returned data.
func (m *MockResource) SetData(data interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = data
}

// SetError replaces the returned error. A nil error restores success.
func (m *MockResource) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Fetch increments the call counter and returns the configured result, or
// delegates to FetchFunc.
func (m *MockResource) Fetch(ctx context.Context) (interface{}, error) {
	m.calls.Add(1)

	if m.FetchFunc != nil {
		return m.FetchFunc(ctx)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data, m.err
}

// CallCount returns how many times Fetch has been called.
func (m *MockResource) CallCount() int64 {
	return m.calls.Load()
}
