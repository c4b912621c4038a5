package ipc

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"time"
)

// DefaultIdleTimeout closes a connection that sends nothing for this long.
const DefaultIdleTimeout = 5 * time.Minute

// Logger is satisfied by *zap.SugaredLogger.
type Logger interface {
	Infow(msg string, keysAndValues ...any)
	Warnw(msg string, keysAndValues ...any)
	Errorw(msg string, keysAndValues ...any)
}

// Observer receives dispatcher lifecycle events.
type Observer interface {
	ConnOpened()
	ConnClosed()
	RequestHandled(kind string, status Status, elapsed time.Duration)
}

type nopLogger struct{}

func (nopLogger) Infow(string, ...any) {}
func (nopLogger) Warnw(string, ...any) {}
func (nopLogger) Errorw(string, ...any) {}

type nopObserver struct{}

func (nopObserver) ConnOpened() {}
func (nopObserver) ConnClosed() {}
func (nopObserver) RequestHandled(string, Status, time.Duration) {}

// ServerOption configures a Server.
type ServerOption func(*Server)

func WithLogger(l Logger) ServerOption {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithObserver(o Observer) ServerOption {
	return func(s *Server) {
		if o != nil {
			s.observer = o
		}
	}
}

// WithIdleTimeout overrides DefaultIdleTimeout. Zero disables the timeout.
func WithIdleTimeout(d time.Duration) ServerOption {
	return func(s *Server) { s.idleTimeout = d }
}

// Server accepts stream connections and serves each one on its own goroutine.
type Server struct {
	router      *Router
	logger      Logger
	observer    Observer
	idleTimeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	ln     net.Listener
	conns  map[*serverConn]struct{}
	closed bool
	wg     sync.WaitGroup
}

type serverConn struct {
	conn    net.Conn
	writeMu sync.Mutex
}

// NewServer constructs a server dispatching through router.
func NewServer(router *Router, opts ...ServerOption) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		router:      router,
		logger:      nopLogger{},
		observer:    nopObserver{},
		idleTimeout: DefaultIdleTimeout,
		ctx:         ctx,
		cancel:      cancel,
		conns:       make(map[*serverConn]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start listens on addr (TCP) and serves in the background.
func (s *Server) Start(ctx context.Context, addr string) error {
	if s == nil {
		return errors.New("nil server")
	}
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	if err := s.setListener(ln); err != nil {
		_ = ln.Close()
		return err
	}
	go func() { _ = s.serve(ln) }()
	return nil
}

// Serve accepts connections on ln until Stop is called. It returns nil after Stop.
func (s *Server) Serve(ln net.Listener) error {
	if err := s.setListener(ln); err != nil {
		return err
	}
	return s.serve(ln)
}

// Addr returns the listening address, or nil before Start/Serve.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// ActiveConnections reports the number of live connections.
func (s *Server) ActiveConnections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

func (s *Server) setListener(ln net.Listener) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("server stopped")
	}
	if s.ln != nil {
		return errors.New("server already listening")
	}
	s.ln = ln
	return nil
}

func (s *Server) serve(ln net.Listener) error {
	s.logger.Infow("listening", "addr", ln.Addr().String())
	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.isClosed() {
				return nil
			}
			s.logger.Warnw("accept error", "error", err)
			if errors.Is(err, net.ErrClosed) {
				return err
			}
			time.Sleep(50 * time.Millisecond)
			continue
		}
		c := &serverConn{conn: conn}
		if !s.track(c) {
			_ = conn.Close()
			return nil
		}
		go s.handleConn(c)
	}
}

func (s *Server) track(c *serverConn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.conns[c] = struct{}{}
	s.wg.Add(1)
	s.observer.ConnOpened()
	return true
}

func (s *Server) untrack(c *serverConn) {
	s.mu.Lock()
	_, ok := s.conns[c]
	delete(s.conns, c)
	s.mu.Unlock()
	_ = c.conn.Close()
	if ok {
		s.observer.ConnClosed()
	}
	s.wg.Done()
}

func (s *Server) handleConn(c *serverConn) {
	remote := c.conn.RemoteAddr().String()
	defer s.untrack(c)
	defer func() {
		if p := recover(); p != nil {
			s.logger.Errorw("connection worker panicked", "remote", remote, "panic", p)
		}
	}()
	s.logger.Infow("client connected", "remote", remote)

	for {
		if s.idleTimeout > 0 {
			_ = c.conn.SetReadDeadline(time.Now().Add(s.idleTimeout))
		}
		req, err := ReadRequest(c.conn)
		if err != nil {
			s.readFailed(c, remote, err)
			return
		}
		start := time.Now()
		resp := s.router.Dispatch(s.ctx, req)
		s.observer.RequestHandled(req.Kind, resp.Status, time.Since(start))
		if err := c.send(resp); err != nil {
			s.logger.Warnw("write failed", "remote", remote, "kind", req.Kind, "error", err)
			return
		}
	}
}

func (s *Server) readFailed(c *serverConn, remote string, err error) {
	var ne net.Error
	switch {
	case errors.Is(err, io.EOF):
		s.logger.Infow("client disconnected", "remote", remote)
	case errors.Is(err, ErrMalformedFrame):
		s.logger.Warnw("malformed frame", "remote", remote, "error", err)
		_ = c.send(Errorf("Malformed request: %v", err))
	case errors.As(err, &ne) && ne.Timeout():
		s.logger.Infow("idle timeout", "remote", remote)
	case s.isClosed():
	default:
		s.logger.Warnw("read failed", "remote", remote, "error", err)
	}
}

// send encodes resp and writes it as one frame. A response that cannot be
// encoded is replaced by an ERROR response.
func (c *serverConn) send(resp *Response) error {
	frame, err := Encode(resp)
	if err != nil {
		if frame, err = Encode(Errorf("Internal error: %v", err)); err != nil {
			return err
		}
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_, err = c.conn.Write(frame)
	return err
}

// Stop closes the listener and every live connection, then waits for workers to exit.
func (s *Server) Stop() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	var err error
	if s.ln != nil {
		err = s.ln.Close()
	}
	for c := range s.conns {
		_ = c.conn.Close()
	}
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
	s.logger.Infow("server stopped")
	return err
}

func (s *Server) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
