// Package wstransport carries relay events over a websocket, one JSON frame
// {"channel": ..., "payload": ...} per message.
//
// A Conn has a single owner loop, Run. Inbound frames are dispatched to
// subscribers there, and functions queued with Post run there too, so relays
// bound to a Conn only ever execute on the Run goroutine. Publish may be
// called from any goroutine.
package wstransport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/leandrodaf/paramrelay/internal/setup"
	"github.com/leandrodaf/paramrelay/sdk/contracts"
	"github.com/leandrodaf/paramrelay/sdk/wire"
	"go.uber.org/multierr"
)

var (
	// ErrClosed is returned by Publish and Post after the connection closed.
	ErrClosed = errors.New("wstransport: connection closed")
	// ErrAlreadyRunning is returned when Run is called twice.
	ErrAlreadyRunning = errors.New("wstransport: already running")
)

const postQueueSize = 64

type subscription struct {
	id      uint64
	handler contracts.Handler
}

// Conn is a websocket connection implementing contracts.Transport.
type Conn struct {
	ws           *websocket.Conn
	session      string
	logger       contracts.Logger
	writeTimeout time.Duration

	mu      sync.Mutex
	nextID  uint64
	subs    map[string][]subscription
	running bool

	posts     chan func()
	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

var _ contracts.Transport = (*Conn)(nil)

func newConn(ws *websocket.Conn, session string, o options) (*Conn, error) {
	client, err := setup.ApplyDefaultOptions(o.clientOpts...)
	if err != nil {
		return nil, err
	}
	if session == "" {
		session = uuid.NewString()
	}
	ws.SetReadLimit(o.readLimit)

	return &Conn{
		ws:           ws,
		session:      session,
		logger:       client.Logger.With(client.Logger.Field().String("session", session)),
		writeTimeout: o.writeTimeout,
		subs:         make(map[string][]subscription),
		posts:        make(chan func(), postQueueSize),
		done:         make(chan struct{}),
	}, nil
}

// Dial connects to a relay server at url.
func Dial(ctx context.Context, url string, opts ...Option) (*Conn, error) {
	o := applyOptions(opts)

	ws, resp, err := websocket.Dial(ctx, url, &websocket.DialOptions{HTTPHeader: o.header})
	if err != nil {
		return nil, fmt.Errorf("dial websocket: %w", err)
	}

	var session string
	if resp != nil {
		session = resp.Header.Get(SessionHeader)
	}
	c, err := newConn(ws, session, o)
	if err != nil {
		_ = ws.CloseNow()
		return nil, err
	}
	c.logger.Info("connected", c.logger.Field().String("url", url))
	return c, nil
}

// SessionID identifies the connection in logs on both ends.
func (c *Conn) SessionID() string {
	return c.session
}

// Done is closed once the connection is closed.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// Subscribe registers h for frames received on channel.
func (c *Conn) Subscribe(channel string, h contracts.Handler) contracts.Subscription {
	c.mu.Lock()
	c.nextID++
	id := c.nextID
	c.subs[channel] = append(c.subs[channel], subscription{id: id, handler: h})
	c.mu.Unlock()

	var once sync.Once
	return contracts.SubscriptionFunc(func() {
		once.Do(func() { c.unsubscribe(channel, id) })
	})
}

func (c *Conn) unsubscribe(channel string, id uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	subs := c.subs[channel]
	for i, s := range subs {
		if s.id == id {
			c.subs[channel] = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
	if len(c.subs[channel]) == 0 {
		delete(c.subs, channel)
	}
}

// Publish writes e as one frame. It does not wait for any reply.
func (c *Conn) Publish(channel string, e contracts.Event) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}

	frame, err := wire.EncodeFrame(channel, e)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.writeTimeout)
	defer cancel()
	if err := c.ws.Write(ctx, websocket.MessageText, frame); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// Post queues fn to run on the Run goroutine. It blocks while the queue is full.
func (c *Conn) Post(fn func()) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	select {
	case c.posts <- fn:
		return nil
	case <-c.done:
		return ErrClosed
	}
}

// Run reads and dispatches frames and runs posted functions until the
// connection closes or ctx is done. A normal closure by either side and
// cancellation return nil.
func (c *Conn) Run(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return ErrAlreadyRunning
	}
	c.running = true
	c.mu.Unlock()

	frames := make(chan []byte)
	readErr := make(chan error, 1)
	stop := make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			_, data, err := c.ws.Read(context.Background())
			if err != nil {
				readErr <- err
				return
			}
			select {
			case frames <- data:
			case <-stop:
				return
			}
		}
	}()

	defer func() {
		close(stop)
		_ = c.Close()
		wg.Wait()
	}()

	for {
		select {
		case <-ctx.Done():
			c.logger.Debug("connection loop cancelled")
			return nil
		case <-c.done:
			return nil
		case fn := <-c.posts:
			fn()
		case data := <-frames:
			c.dispatch(data)
		case err := <-readErr:
			return c.classify(err)
		}
	}
}

func (c *Conn) classify(err error) error {
	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		c.logger.Info("peer closed connection")
		return nil
	}
	select {
	case <-c.done:
		return nil
	default:
	}
	return fmt.Errorf("read frame: %w", err)
}

func (c *Conn) dispatch(data []byte) {
	channel, ev, err := wire.DecodeFrame(data)
	if err != nil {
		c.logger.Warn("dropping malformed frame",
			c.logger.Field().String("channel", channel),
			c.logger.Field().Error("error", err))
		return
	}

	c.mu.Lock()
	handlers := make([]contracts.Handler, 0, len(c.subs[channel]))
	for _, s := range c.subs[channel] {
		handlers = append(handlers, s.handler)
	}
	c.mu.Unlock()

	for _, h := range handlers {
		h(ev)
	}
}

// Close performs the closing handshake. Queued posts that have not run are dropped.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
		err := c.ws.Close(websocket.StatusNormalClosure, "")
		if err != nil && websocket.CloseStatus(err) == -1 && !errors.Is(err, net.ErrClosed) {
			c.closeErr = multierr.Append(err, c.ws.CloseNow())
		}
		c.logger.Debug("connection closed")
	})
	return c.closeErr
}
