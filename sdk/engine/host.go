// Package engine implements the engine side of the parameter relay protocol.
//
// A Registry holds the authoritative parameters. A Host binds a Registry to a
// transport: it answers the initialization handshake of every relay, applies
// values sent by the surface, tracks drag gestures and pushes engine-side
// changes (automation, preset loads, property updates) back to the surface.
//
// Unlike relays, parameters and hosts are safe for concurrent use: the audio
// goroutine reads values while transport deliveries write them.
package engine

import (
	"errors"
	"sync"

	"github.com/leandrodaf/paramrelay/internal/setup"
	"github.com/leandrodaf/paramrelay/sdk/contracts"
)

// ErrNilTransport is returned when a host is created without a transport.
var ErrNilTransport = errors.New("engine: nil transport")

// GestureListener is told when the surface starts or ends dragging a control.
type GestureListener func(id contracts.Identity, active bool)

// Host serves one registry over one transport.
type Host struct {
	registry  *Registry
	transport contracts.Transport
	logger    contracts.Logger

	mu        sync.Mutex
	gestures  map[string]bool
	listeners []GestureListener
	cleanup   []func()
	closed    bool
}

// NewHost subscribes to the relay channel of every parameter in r.
func NewHost(t contracts.Transport, r *Registry, opts ...contracts.Option) (*Host, error) {
	if t == nil {
		return nil, ErrNilTransport
	}

	options, err := setup.ApplyDefaultOptions(opts...)
	if err != nil {
		return nil, err
	}

	h := &Host{
		registry:  r,
		transport: t,
		logger:    options.Logger,
		gestures:  make(map[string]bool),
	}

	for _, p := range r.Parameters() {
		h.bind(p)
	}

	h.logger.Info("engine host ready", h.logger.Field().Int("parameters", len(r.Parameters())))
	return h, nil
}

func (h *Host) bind(p Parameter) {
	channel := p.Identity().ChannelName()

	sub := h.transport.Subscribe(channel, func(e contracts.Event) { h.handle(p, e) })
	cancel := p.observe(
		func(origin any) {
			if origin == h {
				return
			}
			h.publish(channel, p.WireValue())
		},
		func(patch contracts.PropertiesPatch) {
			h.publish(channel, contracts.PropertiesChanged{Patch: patch})
		},
	)

	h.cleanup = append(h.cleanup, sub.Unsubscribe, cancel)
}

// Registry returns the served registry.
func (h *Host) Registry() *Registry {
	return h.registry
}

// OnGesture registers fn for gesture boundaries.
func (h *Host) OnGesture(fn GestureListener) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.listeners = append(h.listeners, fn)
}

// Gesturing reports whether the surface is dragging the control id.
func (h *Host) Gesturing(id contracts.Identity) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.gestures[id.ChannelName()]
}

// UpdateProperties merges patch into the parameter bound to id.
func (h *Host) UpdateProperties(id contracts.Identity, patch contracts.PropertiesPatch) error {
	p, err := h.registry.Lookup(id)
	if err != nil {
		return err
	}
	p.UpdateProperties(patch)
	return nil
}

// Close unsubscribes from the transport and stops pushing parameter changes.
func (h *Host) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	cleanup := h.cleanup
	h.cleanup = nil
	h.mu.Unlock()

	for _, fn := range cleanup {
		fn()
	}
	h.logger.Debug("engine host closed")
}

func (h *Host) handle(p Parameter, e contracts.Event) {
	id := p.Identity()
	channel := id.ChannelName()

	switch ev := e.(type) {
	case contracts.RequestInitialUpdate:
		h.logger.Debug("initial update requested", h.logger.Field().String("channel", channel))
		h.publish(channel, contracts.PropertiesChanged{Patch: p.PropertiesPatch()})
		h.publish(channel, p.WireValue())
	case contracts.ValueChanged:
		applied, corrected := p.apply(ev, h)
		if corrected {
			h.publish(channel, applied)
		}
	case contracts.GestureStarted:
		h.setGesture(id, true)
	case contracts.GestureEnded:
		h.setGesture(id, false)
	default:
		h.logger.Debug("engine ignored event",
			h.logger.Field().String("channel", channel),
			h.logger.Field().String("eventType", string(e.Type())))
	}
}

func (h *Host) setGesture(id contracts.Identity, active bool) {
	h.mu.Lock()
	if h.gestures[id.ChannelName()] == active {
		h.mu.Unlock()
		return
	}
	h.gestures[id.ChannelName()] = active
	listeners := append([]GestureListener(nil), h.listeners...)
	h.mu.Unlock()

	for _, fn := range listeners {
		fn(id, active)
	}
}

func (h *Host) publish(channel string, e contracts.Event) {
	h.mu.Lock()
	closed := h.closed
	h.mu.Unlock()
	if closed {
		return
	}

	if err := h.transport.Publish(channel, e); err != nil {
		h.logger.Warn("engine publish failed",
			h.logger.Field().String("channel", channel),
			h.logger.Field().String("eventType", string(e.Type())),
			h.logger.Field().Error("error", err))
	}
}
