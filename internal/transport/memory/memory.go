// Package memory provides an in-process transport made of two connected
// endpoints, one for the control surface and one for the engine.
//
// Publishing never calls handlers directly: frames are encoded with the wire
// codec and queued, and Flush delivers them in FIFO order on the caller's
// goroutine. This keeps delivery asynchronous relative to Publish, the way a
// host event loop behaves, while staying deterministic for tests.
package memory

import (
	"errors"
	"fmt"
	"sync"

	"github.com/leandrodaf/paramrelay/internal/setup"
	"github.com/leandrodaf/paramrelay/sdk/contracts"
	"github.com/leandrodaf/paramrelay/sdk/wire"
)

// DefaultMaxDeliveries bounds a single Flush. Exceeding it usually means two
// sides keep echoing each other.
const DefaultMaxDeliveries = 10000

var (
	// ErrNotQuiescent is returned by Flush when the queue keeps refilling.
	ErrNotQuiescent = errors.New("memory: transport did not settle")
	// ErrClosed is returned by Publish after Close.
	ErrClosed = errors.New("memory: transport closed")
)

type delivery struct {
	to    *Endpoint
	frame []byte
}

// Pair is a connected surface/engine endpoint pair.
type Pair struct {
	mu            sync.Mutex
	queue         []delivery
	flushing      bool
	closed        bool
	maxDeliveries int
	logger        contracts.Logger

	surface *Endpoint
	engine  *Endpoint
}

// NewPair creates a connected pair.
func NewPair(opts ...contracts.Option) (*Pair, error) {
	options, err := setup.ApplyDefaultOptions(opts...)
	if err != nil {
		return nil, err
	}

	p := &Pair{
		maxDeliveries: DefaultMaxDeliveries,
		logger:        options.Logger,
	}
	p.surface = newEndpoint(p, "surface")
	p.engine = newEndpoint(p, "engine")
	p.surface.peer = p.engine
	p.engine.peer = p.surface
	return p, nil
}

// SetMaxDeliveries changes the Flush bound.
func (p *Pair) SetMaxDeliveries(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.maxDeliveries = n
}

// Surface returns the control surface endpoint.
func (p *Pair) Surface() *Endpoint { return p.surface }

// Engine returns the engine endpoint.
func (p *Pair) Engine() *Endpoint { return p.engine }

// Pending returns the number of queued frames.
func (p *Pair) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

// Close drops queued frames and rejects further publishing.
func (p *Pair) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	p.queue = nil
}

// Flush delivers queued frames, including the ones published by handlers
// while flushing, until the queue is empty. A nested call from inside a
// handler returns immediately.
func (p *Pair) Flush() error {
	p.mu.Lock()
	if p.flushing {
		p.mu.Unlock()
		return nil
	}
	p.flushing = true
	limit := p.maxDeliveries
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.flushing = false
		p.mu.Unlock()
	}()

	for delivered := 0; ; delivered++ {
		p.mu.Lock()
		if len(p.queue) == 0 {
			p.mu.Unlock()
			return nil
		}
		if delivered >= limit {
			pending := len(p.queue)
			p.mu.Unlock()
			return fmt.Errorf("%w: %d frames still pending after %d deliveries", ErrNotQuiescent, pending, delivered)
		}
		d := p.queue[0]
		p.queue = p.queue[1:]
		p.mu.Unlock()

		d.to.deliver(d.frame)
	}
}

func (p *Pair) enqueue(d delivery) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}
	p.queue = append(p.queue, d)
	return nil
}

type subscription struct {
	id      uint64
	handler contracts.Handler
}

// Endpoint is one side of a Pair. It implements contracts.Transport.
type Endpoint struct {
	pair   *Pair
	peer   *Endpoint
	name   string
	mu     sync.Mutex
	nextID uint64
	subs   map[string][]subscription
}

var _ contracts.Transport = (*Endpoint)(nil)

func newEndpoint(p *Pair, name string) *Endpoint {
	return &Endpoint{pair: p, name: name, subs: make(map[string][]subscription)}
}

// Subscribe registers h for frames published by the peer on channel.
func (e *Endpoint) Subscribe(channel string, h contracts.Handler) contracts.Subscription {
	e.mu.Lock()
	e.nextID++
	id := e.nextID
	e.subs[channel] = append(e.subs[channel], subscription{id: id, handler: h})
	e.mu.Unlock()

	var once sync.Once
	return contracts.SubscriptionFunc(func() {
		once.Do(func() { e.unsubscribe(channel, id) })
	})
}

func (e *Endpoint) unsubscribe(channel string, id uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	subs := e.subs[channel]
	for i, s := range subs {
		if s.id == id {
			e.subs[channel] = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
	if len(e.subs[channel]) == 0 {
		delete(e.subs, channel)
	}
}

// Publish encodes ev and queues it for the peer.
func (e *Endpoint) Publish(channel string, ev contracts.Event) error {
	frame, err := wire.EncodeFrame(channel, ev)
	if err != nil {
		return err
	}
	return e.pair.enqueue(delivery{to: e.peer, frame: frame})
}

// Inject queues a raw frame for this endpoint as if the peer had sent it.
// Useful to exercise malformed input.
func (e *Endpoint) Inject(frame []byte) error {
	return e.pair.enqueue(delivery{to: e, frame: append([]byte(nil), frame...)})
}

func (e *Endpoint) deliver(frame []byte) {
	channel, ev, err := wire.DecodeFrame(frame)
	if err != nil {
		log := e.pair.logger
		log.Warn("dropping malformed frame",
			log.Field().String("endpoint", e.name),
			log.Field().String("channel", channel),
			log.Field().Error("error", err))
		return
	}

	e.mu.Lock()
	handlers := make([]contracts.Handler, 0, len(e.subs[channel]))
	for _, s := range e.subs[channel] {
		handlers = append(handlers, s.handler)
	}
	e.mu.Unlock()

	for _, h := range handlers {
		h(ev)
	}
}
