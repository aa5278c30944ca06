// Package meter broadcasts level meters from the engine to the surface on the
// meterUpdate channel. Meters are fire-and-forget: there is no handshake and
// no acknowledgment, and a surface that is not listening simply misses ticks.
package meter

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/leandrodaf/paramrelay/internal/setup"
	"github.com/leandrodaf/paramrelay/sdk/contracts"
	"github.com/leandrodaf/paramrelay/sdk/curve"
)

const (
	// DefaultRate is the broadcast rate in ticks per second.
	DefaultRate = 60.0
	// DefaultDecay is the per-tick peak-hold release factor.
	DefaultDecay = 0.85
)

var (
	// ErrNilTransport is returned when a broadcaster is created without a transport.
	ErrNilTransport = errors.New("meter: nil transport")
	// ErrNilSource is returned when a broadcaster is created without a source.
	ErrNilSource = errors.New("meter: nil source")
	// ErrInvalidOption is returned for a non-positive rate or a decay outside [0,1).
	ErrInvalidOption = errors.New("meter: invalid option")
)

// Source reports the current raw levels.
type Source interface {
	Levels() contracts.MeterLevels
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc func() contracts.MeterLevels

// Levels calls f.
func (f SourceFunc) Levels() contracts.MeterLevels { return f() }

type options struct {
	rate       float64
	decay      float64
	clientOpts []contracts.Option
}

// Option configures a Broadcaster.
type Option func(*options)

// WithRate sets the number of ticks per second.
func WithRate(hz float64) Option {
	return func(o *options) { o.rate = hz }
}

// WithDecay sets the release factor applied to the displayed level on every tick.
func WithDecay(decay float64) Option {
	return func(o *options) { o.decay = decay }
}

// WithClientOptions passes logger options through.
func WithClientOptions(opts ...contracts.Option) Option {
	return func(o *options) { o.clientOpts = append(o.clientOpts, opts...) }
}

// Broadcaster samples a Source at a fixed rate and publishes peak-held levels.
type Broadcaster struct {
	transport contracts.Transport
	source    Source
	interval  time.Duration
	decay     float64
	logger    contracts.Logger

	mu      sync.Mutex
	display contracts.MeterLevels
}

// NewBroadcaster returns a broadcaster publishing src on t.
func NewBroadcaster(t contracts.Transport, src Source, opts ...Option) (*Broadcaster, error) {
	if t == nil {
		return nil, ErrNilTransport
	}
	if src == nil {
		return nil, ErrNilSource
	}

	o := options{rate: DefaultRate, decay: DefaultDecay}
	for _, opt := range opts {
		opt(&o)
	}
	if o.rate <= 0 || math.IsNaN(o.rate) || math.IsInf(o.rate, 0) {
		return nil, fmt.Errorf("%w: rate %v", ErrInvalidOption, o.rate)
	}
	if o.decay < 0 || o.decay >= 1 || math.IsNaN(o.decay) {
		return nil, fmt.Errorf("%w: decay %v", ErrInvalidOption, o.decay)
	}

	client, err := setup.ApplyDefaultOptions(o.clientOpts...)
	if err != nil {
		return nil, err
	}

	return &Broadcaster{
		transport: t,
		source:    src,
		interval:  time.Duration(float64(time.Second) / o.rate),
		decay:     o.decay,
		logger:    client.Logger.With(client.Logger.Field().String("channel", contracts.MeterChannel)),
	}, nil
}

// Interval returns the time between ticks.
func (b *Broadcaster) Interval() time.Duration {
	return b.interval
}

// Display returns the levels published by the last tick.
func (b *Broadcaster) Display() contracts.MeterLevels {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.display
}

// Tick samples the source once, updates the held levels and publishes them.
// Publish failures are logged and the held levels are kept.
func (b *Broadcaster) Tick() contracts.MeterLevels {
	raw := b.source.Levels()

	b.mu.Lock()
	b.display = contracts.MeterLevels{
		InL:  b.hold(raw.InL, b.display.InL),
		InR:  b.hold(raw.InR, b.display.InR),
		OutL: b.hold(raw.OutL, b.display.OutL),
		OutR: b.hold(raw.OutR, b.display.OutR),
	}
	levels := b.display
	b.mu.Unlock()

	if err := b.transport.Publish(contracts.MeterChannel, contracts.MeterUpdate{Levels: levels}); err != nil {
		b.logger.Warn("meter publish failed", b.logger.Field().Error("error", err))
	}
	return levels
}

func (b *Broadcaster) hold(level, display float64) float64 {
	return curve.Clamp(math.Max(curve.Clamp(level, 0, 1), display*b.decay), 0, 1)
}

// Run ticks until ctx is done.
func (b *Broadcaster) Run(ctx context.Context) error {
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	b.logger.Debug("meter broadcaster started", b.logger.Field().Int64("intervalMicros", b.interval.Microseconds()))
	for {
		select {
		case <-ctx.Done():
			b.logger.Debug("meter broadcaster stopped")
			return nil
		case <-ticker.C:
			b.Tick()
		}
	}
}

// Watch calls fn with every meter snapshot received on t.
func Watch(t contracts.Transport, fn func(contracts.MeterLevels)) contracts.Subscription {
	return t.Subscribe(contracts.MeterChannel, func(e contracts.Event) {
		if m, ok := e.(contracts.MeterUpdate); ok {
			fn(m.Levels)
		}
	})
}
