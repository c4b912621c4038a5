package ipc

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

// Client defaults.
const (
	DefaultReadTimeout    = 30 * time.Second
	DefaultKeepAlive      = 30 * time.Second
	DefaultReconnectDelay = 500 * time.Millisecond
	defaultDialTimeout    = 10 * time.Second
)

// State is the connection state of a Client.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "DISCONNECTED"
	case StateConnecting:
		return "CONNECTING"
	case StateConnected:
		return "CONNECTED"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Dialer opens the underlying stream. *net.Dialer satisfies it.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// ClientOption configures a Client.
type ClientOption func(*Client)

func WithDialer(d Dialer) ClientOption {
	return func(c *Client) { c.dialer = d }
}

func WithReadTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.readTimeout = d }
}

func WithKeepAlive(d time.Duration) ClientOption {
	return func(c *Client) { c.keepAlive = d }
}

func WithReconnectDelay(d time.Duration) ClientOption {
	return func(c *Client) { c.reconnectDelay = d }
}

func WithClientLogger(l Logger) ClientOption {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// Client owns one connection to a server. Calls are serialized: each
// request's write and read complete before the next request starts.
type Client struct {
	addr           string
	dialer         Dialer
	readTimeout    time.Duration
	keepAlive      time.Duration
	reconnectDelay time.Duration
	logger         Logger

	mu    sync.Mutex
	conn  net.Conn
	state atomic.Int32
}

// NewClient returns a disconnected client for the TCP address addr.
func NewClient(addr string, opts ...ClientOption) *Client {
	c := &Client{
		addr:           addr,
		readTimeout:    DefaultReadTimeout,
		keepAlive:      DefaultKeepAlive,
		reconnectDelay: DefaultReconnectDelay,
		logger:         nopLogger{},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.dialer == nil {
		c.dialer = &net.Dialer{Timeout: defaultDialTimeout, KeepAlive: c.keepAlive}
	}
	return c
}

func (c *Client) State() State {
	return State(c.state.Load())
}

func (c *Client) Addr() string { return c.addr }

// Connect opens the connection if it is not already open.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connectLocked(ctx)
}

// Disconnect closes the connection. It is safe to call at any time.
func (c *Client) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disconnectLocked()
}

// Reconnect drops the current connection, waits the reconnect delay and connects again.
func (c *Client) Reconnect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reconnectLocked(ctx)
}

// SendRequest delivers req and returns its response. Failures are reported as
// ERROR responses; the result is never nil. An I/O failure mid-call triggers one
// reconnect and one retry of the same request.
func (c *Client) SendRequest(ctx context.Context, req *Request) *Response {
	if req == nil {
		return Errorf("Invalid request: nil")
	}
	frame, err := Encode(req)
	if err != nil {
		return Errorf("Cannot encode %s request: %v", req.Kind, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		if err := c.connectLocked(ctx); err != nil {
			return Errorf("Cannot connect to server: %v", err)
		}
	}
	resp, err := c.roundTrip(ctx, frame)
	if err == nil {
		return resp
	}
	c.logger.Warnw("request failed, reconnecting", "kind", req.Kind, "error", err)
	if ctx.Err() != nil {
		c.disconnectLocked()
		return Errorf("Request %s aborted: %v", req.Kind, ctx.Err())
	}
	if err := c.reconnectLocked(ctx); err != nil {
		return Errorf("Connection lost and reconnect failed: %v", err)
	}
	resp, err = c.roundTrip(ctx, frame)
	if err != nil {
		c.disconnectLocked()
		return Errorf("Request %s failed after reconnect: %v", req.Kind, err)
	}
	return resp
}

func (c *Client) roundTrip(ctx context.Context, frame []byte) (*Response, error) {
	deadline := time.Now().Add(c.readTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.conn.SetDeadline(deadline); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	if _, err := c.conn.Write(frame); err != nil {
		return nil, fmt.Errorf("%w: write: %v", ErrTransport, err)
	}
	resp, err := ReadResponse(c.conn)
	if err != nil {
		return nil, fmt.Errorf("%w: read: %w", ErrTransport, err)
	}
	return resp, nil
}

func (c *Client) connectLocked(ctx context.Context) error {
	if c.conn != nil {
		return nil
	}
	c.state.Store(int32(StateConnecting))
	conn, err := c.dialer.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		c.state.Store(int32(StateDisconnected))
		return fmt.Errorf("%w: connect %s: %v", ErrTransport, c.addr, err)
	}
	if tc, ok := conn.(*net.TCPConn); ok && c.keepAlive > 0 {
		_ = tc.SetKeepAlive(true)
		_ = tc.SetKeepAlivePeriod(c.keepAlive)
	}
	c.conn = conn
	c.state.Store(int32(StateConnected))
	c.logger.Infow("connected", "addr", c.addr)
	return nil
}

func (c *Client) disconnectLocked() {
	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			c.logger.Warnw("close failed", "addr", c.addr, "error", err)
		}
		c.conn = nil
		c.logger.Infow("disconnected", "addr", c.addr)
	}
	c.state.Store(int32(StateDisconnected))
}

func (c *Client) reconnectLocked(ctx context.Context) error {
	c.disconnectLocked()
	if c.reconnectDelay > 0 {
		t := time.NewTimer(c.reconnectDelay)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		}
	}
	return c.connectLocked(ctx)
}
