package relay

import (
	"errors"
	"testing"

	"github.com/leandrodaf/paramrelay/internal/logger"
	"github.com/leandrodaf/paramrelay/internal/transport/memory"
	"github.com/leandrodaf/paramrelay/sdk/contracts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// engineSide records what the surface publishes on one channel.
type engineSide struct {
	t      *testing.T
	pair   *memory.Pair
	ch     string
	events []contracts.Event
}

func newEngineSide(t *testing.T, pair *memory.Pair, id contracts.Identity) *engineSide {
	e := &engineSide{t: t, pair: pair, ch: id.ChannelName()}
	pair.Engine().Subscribe(e.ch, func(ev contracts.Event) { e.events = append(e.events, ev) })
	return e
}

func (e *engineSide) send(ev contracts.Event) {
	e.t.Helper()
	require.NoError(e.t, e.pair.Engine().Publish(e.ch, ev))
	require.NoError(e.t, e.pair.Flush())
}

// inject delivers a raw frame to the surface endpoint.
func (e *engineSide) inject(frame string) {
	e.t.Helper()
	require.NoError(e.t, e.pair.Surface().Inject([]byte(frame)))
	require.NoError(e.t, e.pair.Flush())
}

func (e *engineSide) flush() []contracts.Event {
	e.t.Helper()
	require.NoError(e.t, e.pair.Flush())
	got := e.events
	e.events = nil
	return got
}

func newPair(t *testing.T) *memory.Pair {
	t.Helper()
	p, err := memory.NewPair(contracts.WithLogger(logger.NewNopLogger()))
	require.NoError(t, err)
	return p
}

func nop() contracts.Option {
	return contracts.WithLogger(logger.NewNopLogger())
}

func TestNew_Preconditions(t *testing.T) {
	_, err := NewContinuous(nil, "drive", nop())
	assert.ErrorIs(t, err, ErrNilTransport)

	p := newPair(t)
	_, err = NewToggle(p.Surface(), "", nop())
	assert.ErrorIs(t, err, ErrEmptyName)

	_, err = NewChoice(nil, "focus", nop())
	assert.ErrorIs(t, err, ErrNilTransport)
}

func TestRequestInitialUpdate_EmitsOnce(t *testing.T) {
	p := newPair(t)
	c, err := NewContinuous(p.Surface(), "drive", nop())
	require.NoError(t, err)
	engine := newEngineSide(t, p, c.Identity())

	c.RequestInitialUpdate()
	c.RequestInitialUpdate()

	assert.Equal(t, []contracts.Event{contracts.RequestInitialUpdate{}}, engine.flush())
}

func TestHandshake_ReadyAfterFirstUpdate(t *testing.T) {
	p := newPair(t)
	c, err := NewContinuous(p.Surface(), "drive", nop())
	require.NoError(t, err)
	engine := newEngineSide(t, p, c.Identity())

	readyCalls := 0
	c.AddReadyListener(func() {
		readyCalls++
		assert.True(t, c.Ready())
	})

	// Updates before the request are applied but do not complete the handshake.
	engine.send(contracts.NumberValue(0.3))
	assert.Equal(t, Uninitialized, c.State())
	assert.Equal(t, 0.3, c.ScaledValue())

	c.RequestInitialUpdate()
	engine.flush()
	assert.False(t, c.Ready())

	engine.send(contracts.PropertiesChanged{Patch: contracts.PropertiesPatch{End: contracts.Float64(2)}})
	assert.True(t, c.Ready())
	assert.Equal(t, "ready", c.State().String())

	engine.send(contracts.NumberValue(0.4))
	assert.Equal(t, 1, readyCalls)

	// Late registrations run immediately.
	late := false
	c.AddReadyListener(func() { late = true })
	assert.True(t, late)
}

func TestHandshake_NoAnswerKeepsDefaults(t *testing.T) {
	p := newPair(t)
	c, err := NewContinuous(p.Surface(), "drive", nop())
	require.NoError(t, err)
	tg, err := NewToggle(p.Surface(), "bypass", nop())
	require.NoError(t, err)
	ch, err := NewChoice(p.Surface(), "focus", nop())
	require.NoError(t, err)

	c.RequestInitialUpdate()
	tg.RequestInitialUpdate()
	ch.RequestInitialUpdate()
	require.NoError(t, p.Flush())

	assert.Equal(t, Uninitialized, c.State())
	assert.Equal(t, 0.0, c.ScaledValue())
	assert.Equal(t, 0.0, c.NormalizedValue())
	assert.False(t, tg.Value())
	assert.Equal(t, 0, ch.ChoiceIndex())
}

func TestRemoveReadyListener(t *testing.T) {
	p := newPair(t)
	c, err := NewContinuous(p.Surface(), "drive", nop())
	require.NoError(t, err)
	engine := newEngineSide(t, p, c.Identity())

	called := false
	id := c.AddReadyListener(func() { called = true })
	assert.True(t, c.RemoveReadyListener(id))

	c.RequestInitialUpdate()
	engine.send(contracts.NumberValue(1))
	assert.False(t, called)
}

func TestClose_StopsDeliveryAndEmits(t *testing.T) {
	p := newPair(t)
	c, err := NewContinuous(p.Surface(), "drive", nop())
	require.NoError(t, err)
	engine := newEngineSide(t, p, c.Identity())

	calls := 0
	c.AddValueListener(func() { calls++ })
	c.Close()
	c.Close()

	engine.send(contracts.NumberValue(0.9))
	assert.Zero(t, calls)
	assert.Equal(t, 0.0, c.ScaledValue())

	c.SetNormalizedValue(0.5)
	assert.Empty(t, engine.flush())
}

type failingTransport struct {
	published int
}

func (f *failingTransport) Subscribe(string, contracts.Handler) contracts.Subscription {
	return contracts.SubscriptionFunc(func() {})
}

func (f *failingTransport) Publish(string, contracts.Event) error {
	f.published++
	return errors.New("host gone")
}

func TestPublishFailureKeepsLocalState(t *testing.T) {
	ft := &failingTransport{}
	c, err := NewContinuous(ft, "drive", nop())
	require.NoError(t, err)

	c.SetNormalizedValue(0.25)
	assert.Equal(t, 1, ft.published)
	assert.Equal(t, 0.25, c.ScaledValue())
}

func TestListeners_OrderAndRemoval(t *testing.T) {
	var l Listeners
	var order []string

	a := l.Add(func() { order = append(order, "A") })
	l.Add(func() { order = append(order, "B") })
	fn := func() { order = append(order, "C") }
	c1 := l.Add(fn)
	c2 := l.Add(fn)
	assert.NotEqual(t, c1, c2)
	assert.Equal(t, ListenerID(0), l.Add(nil))

	l.Notify()
	assert.Equal(t, []string{"A", "B", "C", "C"}, order)

	order = nil
	assert.True(t, l.Remove(a))
	assert.False(t, l.Remove(a))
	assert.True(t, l.Remove(c2))
	l.Notify()
	assert.Equal(t, []string{"B", "C"}, order)
	assert.Equal(t, 2, l.Len())
}

func TestListeners_ChangesDuringNotify(t *testing.T) {
	var l Listeners
	calls := 0

	var self ListenerID
	self = l.Add(func() {
		calls++
		l.Remove(self)
		l.Add(func() { calls += 10 })
	})

	l.Notify()
	assert.Equal(t, 1, calls)

	l.Notify()
	assert.Equal(t, 11, calls)
}
