package meter

import (
	"context"
	"testing"
	"time"

	"github.com/leandrodaf/paramrelay/internal/logger"
	"github.com/leandrodaf/paramrelay/internal/transport/memory"
	"github.com/leandrodaf/paramrelay/sdk/contracts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nop() contracts.Option {
	return contracts.WithLogger(logger.NewNopLogger())
}

type scripted struct {
	levels []contracts.MeterLevels
	next   int
}

func (s *scripted) Levels() contracts.MeterLevels {
	if s.next >= len(s.levels) {
		return contracts.MeterLevels{}
	}
	l := s.levels[s.next]
	s.next++
	return l
}

func TestNewBroadcaster_Validation(t *testing.T) {
	pair, err := memory.NewPair(nop())
	require.NoError(t, err)
	src := SourceFunc(func() contracts.MeterLevels { return contracts.MeterLevels{} })

	_, err = NewBroadcaster(nil, src)
	assert.ErrorIs(t, err, ErrNilTransport)
	_, err = NewBroadcaster(pair.Engine(), nil)
	assert.ErrorIs(t, err, ErrNilSource)
	_, err = NewBroadcaster(pair.Engine(), src, WithRate(0), WithClientOptions(nop()))
	assert.ErrorIs(t, err, ErrInvalidOption)
	_, err = NewBroadcaster(pair.Engine(), src, WithDecay(1), WithClientOptions(nop()))
	assert.ErrorIs(t, err, ErrInvalidOption)

	b, err := NewBroadcaster(pair.Engine(), src, WithClientOptions(nop()))
	require.NoError(t, err)
	assert.Equal(t, time.Second/60, b.Interval())
}

func TestTick_PeakHoldDecay(t *testing.T) {
	pair, err := memory.NewPair(nop())
	require.NoError(t, err)

	src := &scripted{levels: []contracts.MeterLevels{
		{InL: 0.8, InR: 0.4, OutL: 1, OutR: 0.2},
		{},
		{InL: 0.9},
	}}
	b, err := NewBroadcaster(pair.Engine(), src, WithClientOptions(nop()))
	require.NoError(t, err)

	var got []contracts.MeterLevels
	Watch(pair.Surface(), func(l contracts.MeterLevels) { got = append(got, l) })

	b.Tick()
	b.Tick()
	b.Tick()
	require.NoError(t, pair.Flush())

	require.Len(t, got, 3)
	assert.Equal(t, contracts.MeterLevels{InL: 0.8, InR: 0.4, OutL: 1, OutR: 0.2}, got[0])
	assert.InDelta(t, 0.8*0.85, got[1].InL, 1e-12)
	assert.InDelta(t, 0.4*0.85, got[1].InR, 1e-12)
	assert.InDelta(t, 0.85, got[1].OutL, 1e-12)
	assert.InDelta(t, 0.9, got[2].InL, 1e-12, "a new peak replaces the held level")
	assert.InDelta(t, 0.2*0.85*0.85, got[2].OutR, 1e-12)
	assert.Equal(t, got[2], b.Display())
}

func TestTick_ClampsLevels(t *testing.T) {
	pair, err := memory.NewPair(nop())
	require.NoError(t, err)
	b, err := NewBroadcaster(pair.Engine(), SourceFunc(func() contracts.MeterLevels {
		return contracts.MeterLevels{InL: 3, InR: -1, OutL: 0.5, OutR: 1}
	}), WithDecay(0), WithClientOptions(nop()))
	require.NoError(t, err)

	assert.Equal(t, contracts.MeterLevels{InL: 1, InR: 0, OutL: 0.5, OutR: 1}, b.Tick())
}

func TestTick_PublishFailureIsLogged(t *testing.T) {
	pair, err := memory.NewPair(nop())
	require.NoError(t, err)
	pair.Close()

	b, err := NewBroadcaster(pair.Engine(), SourceFunc(func() contracts.MeterLevels {
		return contracts.MeterLevels{InL: 0.5}
	}), WithClientOptions(nop()))
	require.NoError(t, err)

	assert.Equal(t, 0.5, b.Tick().InL)
}

func TestRun_StopsOnCancel(t *testing.T) {
	pair, err := memory.NewPair(nop())
	require.NoError(t, err)

	ticks := make(chan struct{}, 16)
	b, err := NewBroadcaster(pair.Engine(), SourceFunc(func() contracts.MeterLevels {
		select {
		case ticks <- struct{}{}:
		default:
		}
		return contracts.MeterLevels{}
	}), WithRate(1000), WithClientOptions(nop()))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Run(ctx) }()

	select {
	case <-ticks:
	case <-time.After(2 * time.Second):
		t.Fatal("broadcaster never ticked")
	}
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestWatch_IgnoresOtherEvents(t *testing.T) {
	pair, err := memory.NewPair(nop())
	require.NoError(t, err)

	calls := 0
	sub := Watch(pair.Surface(), func(contracts.MeterLevels) { calls++ })

	require.NoError(t, pair.Engine().Publish(contracts.MeterChannel, contracts.MeterUpdate{}))
	require.NoError(t, pair.Flush())
	sub.Unsubscribe()
	require.NoError(t, pair.Engine().Publish(contracts.MeterChannel, contracts.MeterUpdate{}))
	require.NoError(t, pair.Flush())

	assert.Equal(t, 1, calls)
}
