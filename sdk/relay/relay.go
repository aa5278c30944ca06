// Package relay implements the surface side of the parameter relay protocol.
//
// A relay mirrors one engine control. It is bound to a single transport
// channel, asks the engine for its current state with RequestInitialUpdate,
// keeps a cached value and properties replica, emits value and gesture events
// when the user interacts with it and notifies local listeners when the
// engine pushes updates.
//
// Relays are not safe for concurrent use. Every call, and every transport
// delivery, must happen on the same logical thread.
package relay

import (
	"errors"
	"fmt"
	"math"

	"github.com/leandrodaf/paramrelay/internal/setup"
	"github.com/leandrodaf/paramrelay/sdk/contracts"
)

var (
	// ErrNilTransport is returned when a relay is constructed without a transport.
	ErrNilTransport = errors.New("relay: nil transport")
	// ErrEmptyName is returned when a relay is constructed without a control name.
	ErrEmptyName = errors.New("relay: empty control name")
)

// State is the initialization handshake state of a relay.
type State int

const (
	// Uninitialized relays hold default values; the engine has not answered yet.
	Uninitialized State = iota
	// Ready relays have received at least one update after requesting the initial state.
	Ready
)

func (s State) String() string {
	if s == Ready {
		return "ready"
	}
	return "uninitialized"
}

// binding holds what every relay variant shares: its identity, the transport
// subscription, the handshake and the logger.
type binding struct {
	id        contracts.Identity
	transport contracts.Transport
	logger    contracts.Logger
	sub       contracts.Subscription
	requested bool
	closed    bool
	state     State
	ready     Listeners
}

func newBinding(t contracts.Transport, id contracts.Identity, opts ...contracts.Option) (*binding, error) {
	if t == nil {
		return nil, ErrNilTransport
	}
	if id.Name == "" {
		return nil, fmt.Errorf("%w: %s", ErrEmptyName, id.Kind)
	}

	options, err := setup.ApplyDefaultOptions(opts...)
	if err != nil {
		return nil, err
	}

	log := options.Logger
	return &binding{
		id:        id,
		transport: t,
		logger:    log.With(log.Field().String("channel", id.ChannelName())),
	}, nil
}

func (b *binding) listen(h contracts.Handler) {
	b.sub = b.transport.Subscribe(b.id.ChannelName(), h)
}

// Identity returns the control identity the relay was built with.
func (b *binding) Identity() contracts.Identity {
	return b.id
}

// RequestInitialUpdate asks the engine for its current properties and value.
// Only the first call emits; the handshake has no deadline.
func (b *binding) RequestInitialUpdate() {
	if b.requested {
		b.logger.Debug("initial update already requested")
		return
	}
	b.requested = true
	b.emit(contracts.RequestInitialUpdate{})
}

// State returns the handshake state.
func (b *binding) State() State {
	return b.state
}

// Ready reports whether the engine has answered the handshake.
func (b *binding) Ready() bool {
	return b.state == Ready
}

// AddReadyListener registers fn to run once when the relay becomes Ready.
// If it already is, fn runs immediately and no registration is kept.
func (b *binding) AddReadyListener(fn func()) ListenerID {
	if b.state == Ready {
		if fn != nil {
			fn()
		}
		return 0
	}
	return b.ready.Add(fn)
}

// RemoveReadyListener drops a ready callback that has not fired yet.
func (b *binding) RemoveReadyListener(id ListenerID) bool {
	return b.ready.Remove(id)
}

// Close stops receiving events. Later mutator calls are dropped.
func (b *binding) Close() {
	if b.closed {
		return
	}
	b.closed = true
	if b.sub != nil {
		b.sub.Unsubscribe()
	}
}

func (b *binding) emit(e contracts.Event) {
	if b.closed {
		b.logger.Debug("relay closed; event dropped", b.logger.Field().String("eventType", string(e.Type())))
		return
	}
	if err := b.transport.Publish(b.id.ChannelName(), e); err != nil {
		b.logger.Warn("relay publish failed",
			b.logger.Field().String("eventType", string(e.Type())),
			b.logger.Field().Error("error", err))
		return
	}
	b.logger.Debug("relay event sent", b.logger.Field().String("eventType", string(e.Type())))
}

// received records an inbound update and reports whether it completed the handshake.
func (b *binding) received() bool {
	if !b.requested || b.state == Ready {
		return false
	}
	b.state = Ready
	return true
}

// completeHandshake fires and clears the ready listeners.
func (b *binding) completeHandshake() {
	b.logger.Debug("relay ready")
	ready := b.ready
	b.ready = Listeners{}
	ready.Notify()
}

func (b *binding) ignored(e contracts.Event) {
	b.logger.Debug("relay event ignored", b.logger.Field().String("eventType", string(e.Type())))
}

// sameBits reports whether a and b are bit-for-bit identical.
func sameBits(a, b float64) bool {
	return math.Float64bits(a) == math.Float64bits(b)
}
