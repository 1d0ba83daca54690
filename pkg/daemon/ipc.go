package daemon

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"gitlab.com/tinyland/lab/livedash/pkg/refresher"
)

// IPCHandler answers one control command with a JSON document.
type IPCHandler interface {
	HandleCommand(cmd string, args map[string]string) (string, error)
}

// IPCServer serves line-based commands on a Unix socket.
//
// Protocol:
//   - Client sends one line: COMMAND [view] [value]
//   - Server answers with one JSON line.
//   - Commands: HEALTH, LIST, RETRY view, AUTO view [on|off], TOUCH [view]
//   - AUTO without a value toggles auto-refresh.
type IPCServer struct {
	socketPath string
	handler    IPCHandler
	logger     *slog.Logger
	listener   net.Listener
	wg         sync.WaitGroup
	done       chan struct{}
	stopOnce   sync.Once
}

// IPCOption customizes an IPCServer.
type IPCOption func(*IPCServer)

// WithIPCLogger sets the logger for accept failures.
func WithIPCLogger(l *slog.Logger) IPCOption {
	return func(s *IPCServer) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewIPCServer returns a server for socketPath. Call Start to listen.
func NewIPCServer(socketPath string, handler IPCHandler, opts ...IPCOption) *IPCServer {
	s := &IPCServer{
		socketPath: socketPath,
		handler:    handler,
		logger:     slog.Default(),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start listens on the socket, replacing a stale socket file. The socket is
// owner-only.
func (s *IPCServer) Start() error {
	os.Remove(s.socketPath)

	ln, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.socketPath, err)
	}
	if err := os.Chmod(s.socketPath, 0o600); err != nil {
		ln.Close()
		return fmt.Errorf("chmod socket: %w", err)
	}
	s.listener = ln

	s.wg.Add(1)
	go s.acceptLoop()
	return nil
}

// Stop closes the listener, waits for open connections and removes the
// socket file. It is safe to call more than once.
func (s *IPCServer) Stop() {
	s.stopOnce.Do(func() {
		close(s.done)
		if s.listener != nil {
			s.listener.Close()
		}
		s.wg.Wait()
		os.Remove(s.socketPath)
	})
}

// Accept failures back off from acceptMinDelay up to acceptMaxDelay.
const (
	acceptMinDelay = 5 * time.Millisecond
	acceptMaxDelay = time.Second
)

func (s *IPCServer) acceptLoop() {
	defer s.wg.Done()
	var delay time.Duration
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.done:
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			delay = min(max(2*delay, acceptMinDelay), acceptMaxDelay)
			s.logger.Warn("control socket accept failed", "error", err, "retry_in", delay)
			select {
			case <-s.done:
				return
			case <-time.After(delay):
			}
			continue
		}
		delay = 0
		s.wg.Add(1)
		go s.handleConn(conn)
	}
}

func (s *IPCServer) handleConn(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	scanner := bufio.NewScanner(conn)
	if !scanner.Scan() {
		return
	}
	line := strings.TrimSpace(scanner.Text())
	if line == "" {
		return
	}

	cmd, args := parseIPCCommand(line)
	resp, err := s.handler.HandleCommand(cmd, args)
	if err != nil {
		data, _ := json.Marshal(map[string]string{"error": err.Error()})
		fmt.Fprintf(conn, "%s\n", data)
		return
	}
	fmt.Fprintf(conn, "%s\n", resp)
}

// parseIPCCommand splits a command line.
//
//	HEALTH            -> cmd="HEALTH", args={}
//	RETRY summary     -> cmd="RETRY", args={view:summary}
//	AUTO summary off  -> cmd="AUTO", args={view:summary, value:off}
func parseIPCCommand(line string) (string, map[string]string) {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return "", nil
	}
	args := make(map[string]string)
	if len(parts) >= 2 {
		args["view"] = parts[1]
	}
	if len(parts) >= 3 {
		args["value"] = parts[2]
	}
	return strings.ToUpper(parts[0]), args
}

// IPCClient sends commands to a running daemon.
type IPCClient struct {
	socketPath string
	timeout    time.Duration
}

// NewIPCClient returns a client for the daemon at socketPath.
func NewIPCClient(socketPath string) *IPCClient {
	return &IPCClient{socketPath: socketPath, timeout: 30 * time.Second}
}

// SendCommand sends one command line and returns the JSON response line.
func (c *IPCClient) SendCommand(cmd string) (string, error) {
	conn, err := net.DialTimeout("unix", c.socketPath, c.timeout)
	if err != nil {
		return "", fmt.Errorf("connect to daemon: %w", err)
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(c.timeout))

	fmt.Fprintf(conn, "%s\n", cmd)

	scanner := bufio.NewScanner(conn)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return "", fmt.Errorf("read response: %w", err)
		}
		return "", errors.New("empty response from daemon")
	}
	return scanner.Text(), nil
}

// Controller answers control commands against a view manager.
type Controller struct {
	ctx     context.Context
	manager *refresher.Manager
	health  func() *HealthStatus
	now     func() time.Time
}

// NewController returns a handler. ctx bounds retries and restarts issued
// through the socket; health builds the HEALTH answer.
func NewController(ctx context.Context, m *refresher.Manager, health func() *HealthStatus) *Controller {
	return &Controller{ctx: ctx, manager: m, health: health, now: time.Now}
}

type viewReply struct {
	View        string `json:"view"`
	State       string `json:"state"`
	AutoRefresh bool   `json:"auto_refresh"`
	Tick        uint64 `json:"tick"`
	Error       string `json:"error,omitempty"`
}

// HandleCommand implements IPCHandler.
func (c *Controller) HandleCommand(cmd string, args map[string]string) (string, error) {
	switch cmd {
	case "HEALTH":
		return marshal(c.health())

	case "LIST":
		return marshal(map[string][]string{"views": c.manager.List()})

	case "TOUCH":
		if err := c.manager.Touch(args["view"], c.now()); err != nil {
			return "", err
		}
		return marshal(map[string]string{"touched": args["view"]})

	case "RETRY", "AUTO":
		v, ok := c.manager.Get(args["view"])
		if !ok {
			return "", fmt.Errorf("%w: %q", refresher.ErrViewNotFound, args["view"])
		}
		// A failed tick is reported through the view state in the reply.
		if cmd == "RETRY" {
			_ = v.Retry(c.ctx)
		} else if args["value"] == "" {
			_, _ = v.ToggleAutoRefresh(c.ctx)
		} else {
			on, err := parseSwitch(args["value"])
			if err != nil {
				return "", err
			}
			_ = v.SetAutoRefresh(c.ctx, on)
		}
		s := v.Snapshot()
		return marshal(viewReply{
			View:        s.View,
			State:       s.State.String(),
			AutoRefresh: s.AutoRefresh,
			Tick:        s.Tick,
			Error:       s.Message(),
		})
	}
	return "", fmt.Errorf("unknown command %q", cmd)
}

func parseSwitch(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "on", "true", "1":
		return true, nil
	case "off", "false", "0":
		return false, nil
	}
	return false, fmt.Errorf("expected on or off, got %q", s)
}

func marshal(v interface{}) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
