package midi

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/leandrodaf/paramrelay/internal/setup"
	"github.com/leandrodaf/paramrelay/sdk/contracts"
	"github.com/leandrodaf/paramrelay/sdk/relay"
)

// DefaultGestureTimeout is how long a continuous control stays in a drag
// gesture after its last controller message.
const DefaultGestureTimeout = 250 * time.Millisecond

const maxControllerValue = 127

var (
	// ErrInvalidControl is returned for a channel above 15 or a controller above 127.
	ErrInvalidControl = errors.New("midi: invalid control")
	// ErrDuplicateControl is returned when a control is mapped twice.
	ErrDuplicateControl = errors.New("midi: control already mapped")
	// ErrNilRelay is returned when a mapping has no relay.
	ErrNilRelay = errors.New("midi: nil relay")
	// ErrNilPoster is returned when a bridge is created without a Poster.
	ErrNilPoster = errors.New("midi: nil poster")
)

// Poster runs fn on the thread that owns the relays.
type Poster func(fn func()) error

// Control addresses one controller on one MIDI channel.
type Control struct {
	Channel    byte // zero-based, 0-15
	Controller byte // 0-127
}

func (c Control) valid() bool {
	return c.Channel <= 15 && c.Controller <= 127
}

type target interface {
	apply(b *Bridge, value byte)
	release()
}

// BridgeOption configures a Bridge.
type BridgeOption func(*bridgeOptions)

type bridgeOptions struct {
	gestureTimeout time.Duration
	clientOpts     []contracts.Option
}

// WithGestureTimeout sets how long a continuous control stays in a gesture
// after its last message.
func WithGestureTimeout(d time.Duration) BridgeOption {
	return func(o *bridgeOptions) { o.gestureTimeout = d }
}

// WithBridgeClientOptions passes logger options through.
func WithBridgeClientOptions(opts ...contracts.Option) BridgeOption {
	return func(o *bridgeOptions) { o.clientOpts = append(o.clientOpts, opts...) }
}

// Bridge drives relays from Control Change messages.
//
// Mapping must be complete before Handle or Run is called. Relay calls are
// always made from functions handed to the Poster.
type Bridge struct {
	post           Poster
	gestureTimeout time.Duration
	logger         contracts.Logger
	targets        map[Control]target
}

// NewBridge returns a bridge posting relay calls through post.
func NewBridge(post Poster, opts ...BridgeOption) (*Bridge, error) {
	if post == nil {
		return nil, ErrNilPoster
	}

	o := bridgeOptions{gestureTimeout: DefaultGestureTimeout}
	for _, opt := range opts {
		opt(&o)
	}
	if o.gestureTimeout <= 0 {
		o.gestureTimeout = DefaultGestureTimeout
	}

	client, err := setup.ApplyDefaultOptions(o.clientOpts...)
	if err != nil {
		return nil, err
	}

	return &Bridge{
		post:           post,
		gestureTimeout: o.gestureTimeout,
		logger:         client.Logger,
		targets:        make(map[Control]target),
	}, nil
}

// MapContinuous maps ctl to c. Values are sent as normalized positions
// v/127, inside a gesture that ends after the gesture timeout.
func (b *Bridge) MapContinuous(ctl Control, c *relay.Continuous) error {
	if c == nil {
		return ErrNilRelay
	}
	return b.add(ctl, &continuousTarget{relay: c})
}

// MapToggle maps ctl to t. Values of 64 and above switch it on.
func (b *Bridge) MapToggle(ctl Control, t *relay.Toggle) error {
	if t == nil {
		return ErrNilRelay
	}
	return b.add(ctl, toggleTarget{relay: t})
}

// MapChoice maps ctl to c. The controller range is spread over the choices.
func (b *Bridge) MapChoice(ctl Control, c *relay.Choice) error {
	if c == nil {
		return ErrNilRelay
	}
	return b.add(ctl, choiceTarget{relay: c})
}

func (b *Bridge) add(ctl Control, t target) error {
	if !ctl.valid() {
		return fmt.Errorf("%w: channel %d controller %d", ErrInvalidControl, ctl.Channel, ctl.Controller)
	}
	if _, dup := b.targets[ctl]; dup {
		return fmt.Errorf("%w: channel %d controller %d", ErrDuplicateControl, ctl.Channel, ctl.Controller)
	}
	b.targets[ctl] = t
	return nil
}

// Handle routes one message. Messages other than mapped Control Changes are ignored.
func (b *Bridge) Handle(m contracts.MIDI) {
	if !m.IsControlChange() {
		return
	}
	t, ok := b.targets[Control{Channel: m.Channel, Controller: m.Data1}]
	if !ok {
		return
	}

	value := min(m.Data2, maxControllerValue)
	if err := b.post(func() { t.apply(b, value) }); err != nil {
		b.logger.Warn("dropping MIDI control change",
			b.logger.Field().Uint8("channel", m.Channel),
			b.logger.Field().Uint8("controller", m.Data1),
			b.logger.Field().Error("error", err))
	}
}

// Run handles messages from events until ctx is done or events is closed,
// then ends every open gesture.
func (b *Bridge) Run(ctx context.Context, events <-chan contracts.MIDI) error {
	defer b.release()
	for {
		select {
		case <-ctx.Done():
			return nil
		case m, ok := <-events:
			if !ok {
				return nil
			}
			b.Handle(m)
		}
	}
}

func (b *Bridge) release() {
	err := b.post(func() {
		for _, t := range b.targets {
			t.release()
		}
	})
	if err != nil {
		b.logger.Debug("gestures left open", b.logger.Field().Error("error", err))
	}
}

// continuousTarget state is only touched on the relay thread.
type continuousTarget struct {
	relay  *relay.Continuous
	active bool
	gen    uint64
	timer  *time.Timer
}

func (t *continuousTarget) apply(b *Bridge, value byte) {
	if !t.active {
		t.active = true
		t.relay.GestureStart()
	}
	t.relay.SetNormalizedValue(float64(value) / maxControllerValue)

	t.gen++
	gen := t.gen
	if t.timer != nil {
		t.timer.Stop()
	}
	t.timer = time.AfterFunc(b.gestureTimeout, func() {
		_ = b.post(func() {
			if t.gen == gen {
				t.release()
			}
		})
	})
}

func (t *continuousTarget) release() {
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	if t.active {
		t.active = false
		t.relay.GestureEnd()
	}
}

type toggleTarget struct {
	relay *relay.Toggle
}

func (t toggleTarget) apply(_ *Bridge, value byte) {
	t.relay.SetValue(value >= 64)
}

func (toggleTarget) release() {}

type choiceTarget struct {
	relay *relay.Choice
}

func (t choiceTarget) apply(_ *Bridge, value byte) {
	count := len(t.relay.Properties().Choices)
	if count <= 1 {
		t.relay.SetChoiceIndex(0)
		return
	}
	t.relay.SetChoiceIndex(int(math.Round(float64(value) / maxControllerValue * float64(count-1))))
}

func (choiceTarget) release() {}
