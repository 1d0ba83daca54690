// Package credentials supplies the bearer token sent with REST requests.
// Providers are passed explicitly to the resources that need them; nothing
// reads ambient storage behind the caller's back.
package credentials

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"gitlab.com/tinyland/lab/livedash/pkg/cache"
)

// ErrNoToken is returned by SetToken on read-only providers and may be
// wrapped by callers that require a token.
var ErrNoToken = errors.New("credentials: no token")

// TokenKey is the cache key of the persisted token.
const TokenKey = "auth/token"

// TokenEnv is the environment variable read by the default chain.
const TokenEnv = "LIVEDASH_TOKEN"

// Provider returns the current token. An empty token with a nil error means
// requests go out unauthenticated.
type Provider interface {
	Token(ctx context.Context) (string, error)
	SetToken(ctx context.Context, token string) error
}

// Static holds a token in memory.
type Static struct {
	mu    sync.RWMutex
	token string
}

// NewStatic returns a provider holding token.
func NewStatic(token string) *Static {
	return &Static{token: token}
}

// Token returns the held token.
func (s *Static) Token(context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token, nil
}

// SetToken replaces the held token.
func (s *Static) SetToken(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	return nil
}

// Env reads the token from an environment variable on every call.
type Env struct {
	Var string
}

// Token returns the variable's value.
func (e Env) Token(context.Context) (string, error) {
	return os.Getenv(e.Var), nil
}

// SetToken always fails: the environment is read-only here.
func (e Env) SetToken(context.Context, string) error {
	return fmt.Errorf("%w: %s is read-only", ErrNoToken, e.Var)
}

// Stored persists the token in the cache store with no expiry.
type Stored struct {
	store *cache.Store
}

// NewStored returns a provider backed by store.
func NewStored(store *cache.Store) *Stored {
	return &Stored{store: store}
}

// Token returns the persisted token, or "" if none is stored.
func (s *Stored) Token(context.Context) (string, error) {
	data, ok := s.store.Get(TokenKey)
	if !ok {
		return "", nil
	}
	return string(data), nil
}

// SetToken persists token. An empty token deletes the entry.
func (s *Stored) SetToken(_ context.Context, token string) error {
	if token == "" {
		return s.store.Delete(TokenKey)
	}
	return s.store.PutWithTTL(TokenKey, []byte(token), 0)
}

// Chain returns the first non-empty token from its providers. SetToken goes
// to the first provider that accepts it.
type Chain []Provider

// Token walks the chain in order.
func (c Chain) Token(ctx context.Context) (string, error) {
	for _, p := range c {
		tok, err := p.Token(ctx)
		if err != nil {
			return "", err
		}
		if tok != "" {
			return tok, nil
		}
	}
	return "", nil
}

// SetToken stores token in the first writable provider.
func (c Chain) SetToken(ctx context.Context, token string) error {
	var errs []error
	for _, p := range c {
		err := p.SetToken(ctx, token)
		if err == nil {
			return nil
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return ErrNoToken
	}
	return errors.Join(errs...)
}
