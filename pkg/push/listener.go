// Package push listens on a websocket for change notifications. A frame
// names the view that changed; the listener only records the notification
// time on that view and never carries data.
package push

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	jsoniter "github.com/json-iterator/go"
	"k8s.io/utils/clock"

	"gitlab.com/tinyland/lab/livedash/pkg/credentials"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// DefaultRedialDelay is the pause between a dropped connection and the next
// dial attempt.
const DefaultRedialDelay = 5 * time.Second

// Frame is one notification. An empty View addresses every view.
type Frame struct {
	View string `json:"view"`
}

// Toucher receives notifications. *refresher.Manager satisfies it.
type Toucher interface {
	Touch(view string, t time.Time) error
}

// Listener keeps a websocket session open and forwards frames to a Toucher.
type Listener struct {
	url    string
	target Toucher
	redial time.Duration
	clock  clock.Clock
	creds  credentials.Provider
	logger *slog.Logger
}

// Option configures a Listener.
type Option func(*Listener)

// WithRedialDelay sets the pause between reconnect attempts. Non-positive
// values keep DefaultRedialDelay.
func WithRedialDelay(d time.Duration) Option {
	return func(l *Listener) {
		if d > 0 {
			l.redial = d
		}
	}
}

// WithClock injects the clock used for redial waits and frame timestamps.
func WithClock(c clock.Clock) Option {
	return func(l *Listener) { l.clock = c }
}

// WithCredentials sends a bearer token on the handshake.
func WithCredentials(p credentials.Provider) Option {
	return func(l *Listener) { l.creds = p }
}

// WithLogger sets the logger. Nil keeps slog.Default().
func WithLogger(lg *slog.Logger) Option {
	return func(l *Listener) {
		if lg != nil {
			l.logger = lg
		}
	}
}

// New returns a listener for url ("ws://" or "wss://").
func New(url string, target Toucher, opts ...Option) *Listener {
	l := &Listener{
		url:    url,
		target: target,
		redial: DefaultRedialDelay,
		clock:  clock.RealClock{},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Run dials, reads frames until the connection drops, waits the redial
// delay and dials again. It returns ctx.Err() once ctx ends.
func (l *Listener) Run(ctx context.Context) error {
	for {
		err := l.session(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		l.logger.Warn("push channel disconnected", "url", l.url, "error", err, "redial", l.redial)

		t := l.clock.NewTimer(l.redial)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C():
		}
	}
}

// session runs one connection to completion.
func (l *Listener) session(ctx context.Context) error {
	header := http.Header{}
	if l.creds != nil {
		tok, err := l.creds.Token(ctx)
		if err != nil && !errors.Is(err, credentials.ErrNoToken) {
			return fmt.Errorf("push: token: %w", err)
		}
		if tok != "" {
			header.Set("Authorization", "Bearer "+tok)
		}
	}

	conn, _, err := websocket.Dial(ctx, l.url, &websocket.DialOptions{HTTPHeader: header})
	if err != nil {
		return fmt.Errorf("push: dial: %w", err)
	}
	defer conn.CloseNow()
	l.logger.Info("push channel connected", "url", l.url)

	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			return fmt.Errorf("push: read: %w", err)
		}
		if typ != websocket.MessageText {
			continue
		}
		l.handle(data)
	}
}

func (l *Listener) handle(data []byte) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		l.logger.Warn("ignoring malformed push frame", "error", err)
		return
	}
	if err := l.target.Touch(f.View, l.clock.Now()); err != nil {
		l.logger.Debug("push frame for unknown view", "view", f.View, "error", err)
	}
}
