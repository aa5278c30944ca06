package wstransport

import (
	"errors"
	"net/http"
	"sync"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/leandrodaf/paramrelay/internal/setup"
	"github.com/leandrodaf/paramrelay/sdk/contracts"
)

// ErrBusy is reported to a client that connects while another session is active.
var ErrBusy = errors.New("wstransport: another client is connected")

// SessionFunc is called with every accepted connection before its loop
// starts. The returned release function, if any, runs after the loop ends.
type SessionFunc func(c *Conn) (release func())

// Server accepts one relay session at a time.
type Server struct {
	onConnect SessionFunc
	opts      options
	logger    contracts.Logger

	mu     sync.Mutex
	busy   bool
	closed bool
	active *Conn
	wg     sync.WaitGroup
}

var _ http.Handler = (*Server)(nil)

// NewServer returns a handler serving sessions with onConnect.
func NewServer(onConnect SessionFunc, opts ...Option) (*Server, error) {
	o := applyOptions(opts)
	client, err := setup.ApplyDefaultOptions(o.clientOpts...)
	if err != nil {
		return nil, err
	}
	return &Server{onConnect: onConnect, opts: o, logger: client.Logger}, nil
}

// Accept upgrades a single request to a Conn, outside of any Server.
func Accept(w http.ResponseWriter, r *http.Request, opts ...Option) (*Conn, error) {
	o := applyOptions(opts)
	return accept(w, r, o)
}

func accept(w http.ResponseWriter, r *http.Request, o options) (*Conn, error) {
	session := uuid.NewString()
	w.Header().Set(SessionHeader, session)

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: o.originPatterns})
	if err != nil {
		return nil, err
	}
	c, err := newConn(ws, session, o)
	if err != nil {
		_ = ws.CloseNow()
		return nil, err
	}
	return c, nil
}

// Active returns the connection of the current session, or nil.
func (s *Server) Active() *Conn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// ServeHTTP upgrades the request and runs the session until it ends.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		http.Error(w, ErrClosed.Error(), http.StatusServiceUnavailable)
		return
	}
	if s.busy {
		s.mu.Unlock()
		s.logger.Warn("rejecting second client", s.logger.Field().String("remote", r.RemoteAddr))
		http.Error(w, ErrBusy.Error(), http.StatusConflict)
		return
	}
	s.busy = true
	s.wg.Add(1)
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.busy = false
		s.active = nil
		s.mu.Unlock()
		s.wg.Done()
	}()

	c, err := accept(w, r, s.opts)
	if err != nil {
		s.logger.Warn("websocket upgrade failed",
			s.logger.Field().String("remote", r.RemoteAddr),
			s.logger.Field().Error("error", err))
		return
	}

	s.mu.Lock()
	s.active = c
	closed := s.closed
	s.mu.Unlock()
	if closed {
		_ = c.Close()
		return
	}

	c.logger.Info("session started", c.logger.Field().String("remote", r.RemoteAddr))

	var release func()
	if s.onConnect != nil {
		release = s.onConnect(c)
	}
	if err := c.Run(r.Context()); err != nil {
		c.logger.Warn("session ended with error", c.logger.Field().Error("error", err))
	}
	if release != nil {
		release()
	}
	c.logger.Info("session ended")
}

// Close ends the active session, waits for it to finish and rejects new clients.
func (s *Server) Close() error {
	s.mu.Lock()
	s.closed = true
	active := s.active
	s.mu.Unlock()

	var err error
	if active != nil {
		err = active.Close()
	}
	s.wg.Wait()
	return err
}
