package relay

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/leandrodaf/paramrelay/sdk/contracts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newContinuous(t *testing.T) (*Continuous, *engineSide) {
	t.Helper()
	p := newPair(t)
	c, err := NewContinuous(p.Surface(), "gain", nop())
	require.NoError(t, err)
	return c, newEngineSide(t, p, c.Identity())
}

func TestContinuous_ChannelName(t *testing.T) {
	c, _ := newContinuous(t)
	assert.Equal(t, "relayContinuousgain", c.Identity().ChannelName())
}

func TestContinuous_OptimisticUpdate(t *testing.T) {
	c, engine := newContinuous(t)
	engine.send(contracts.PropertiesChanged{Patch: contracts.PropertiesPatch{
		Start: contracts.Float64(0),
		End:   contracts.Float64(100),
		Skew:  contracts.Float64(1),
	}})

	c.SetNormalizedValue(0.5)
	assert.Equal(t, 50.0, c.ScaledValue(), "value must be visible before any echo")

	assert.Equal(t, []contracts.Event{contracts.NumberValue(50)}, engine.flush())
}

func TestContinuous_SetNormalizedValueClampsAndQuantizes(t *testing.T) {
	c, engine := newContinuous(t)
	engine.send(contracts.PropertiesChanged{Patch: contracts.PropertiesPatch{
		Start:    contracts.Float64(0),
		End:      contracts.Float64(10),
		Interval: contracts.Float64(2),
	}})

	c.SetNormalizedValue(0.47)
	assert.Equal(t, 4.0, c.ScaledValue())

	c.SetNormalizedValue(7)
	assert.Equal(t, 10.0, c.ScaledValue())

	assert.Equal(t, []contracts.Event{contracts.NumberValue(4), contracts.NumberValue(10)}, engine.flush())
}

func TestContinuous_SetScaledValue(t *testing.T) {
	c, engine := newContinuous(t)
	engine.send(contracts.PropertiesChanged{Patch: contracts.PropertiesPatch{
		Start:    contracts.Float64(-12),
		End:      contracts.Float64(12),
		Interval: contracts.Float64(0.5),
	}})

	c.SetScaledValue(3.3)
	assert.Equal(t, 3.5, c.ScaledValue())
	c.SetScaledValue(40)
	assert.Equal(t, 12.0, c.ScaledValue())

	assert.Len(t, engine.flush(), 2)
}

func TestContinuous_SkipsUnchangedValue(t *testing.T) {
	c, engine := newContinuous(t)

	c.SetNormalizedValue(0.2)
	c.SetNormalizedValue(0.2)
	assert.Len(t, engine.flush(), 1)
}

func TestContinuous_NormalizedFollowsCurve(t *testing.T) {
	c, engine := newContinuous(t)
	engine.send(contracts.PropertiesChanged{Patch: contracts.PropertiesPatch{
		Start: contracts.Float64(0),
		End:   contracts.Float64(100),
		Skew:  contracts.Float64(0.5),
	}})
	engine.send(contracts.NumberValue(25))

	assert.InDelta(t, 0.5, c.NormalizedValue(), 1e-12)
}

func TestContinuous_DegenerateRange(t *testing.T) {
	c, engine := newContinuous(t)
	engine.send(contracts.PropertiesChanged{Patch: contracts.PropertiesPatch{
		Start: contracts.Float64(5),
		End:   contracts.Float64(5),
	}})
	engine.send(contracts.NumberValue(5))

	assert.Equal(t, 0.0, c.NormalizedValue())
}

func TestContinuous_PartialPropertiesMerge(t *testing.T) {
	c, engine := newContinuous(t)
	engine.send(contracts.PropertiesChanged{Patch: contracts.PropertiesPatch{
		Start: contracts.Float64(0),
		End:   contracts.Float64(1),
		Skew:  contracts.Float64(1),
		Label: contracts.String("X"),
	}})

	engine.send(contracts.PropertiesChanged{Patch: contracts.PropertiesPatch{Skew: contracts.Float64(2)}})

	want := contracts.CurveProperties{Start: 0, End: 1, Skew: 2, Label: "X", ParameterIndex: -1}
	if diff := cmp.Diff(want, c.Properties()); diff != "" {
		t.Errorf("properties mismatch (-want +got):\n%s", diff)
	}
}

func TestContinuous_InboundValueIsNotClamped(t *testing.T) {
	c, engine := newContinuous(t)

	// The value may arrive before the properties that make it valid.
	engine.send(contracts.NumberValue(-6))
	engine.send(contracts.PropertiesChanged{Patch: contracts.PropertiesPatch{
		Start: contracts.Float64(-12),
		End:   contracts.Float64(12),
	}})

	assert.Equal(t, -6.0, c.ScaledValue())
	assert.InDelta(t, 0.25, c.NormalizedValue(), 1e-12)
}

func TestContinuous_ListenerFanOutOrder(t *testing.T) {
	c, engine := newContinuous(t)

	var order []string
	c.AddValueListener(func() { order = append(order, "A") })
	c.AddValueListener(func() { order = append(order, "B") })
	props := 0
	c.AddPropertiesListener(func() { props++ })

	engine.send(contracts.NumberValue(0.7))

	assert.Equal(t, []string{"A", "B"}, order)
	assert.Zero(t, props)
	assert.Equal(t, 0.7, c.ScaledValue())
}

func TestContinuous_PropertiesListener(t *testing.T) {
	c, engine := newContinuous(t)

	var seen []float64
	id := c.AddPropertiesListener(func() { seen = append(seen, c.Properties().End) })
	engine.send(contracts.PropertiesChanged{Patch: contracts.PropertiesPatch{End: contracts.Float64(4)}})

	assert.True(t, c.RemovePropertiesListener(id))
	engine.send(contracts.PropertiesChanged{Patch: contracts.PropertiesPatch{End: contracts.Float64(8)}})

	assert.Equal(t, []float64{4}, seen)
}

func TestContinuous_EchoGuard(t *testing.T) {
	c, engine := newContinuous(t)

	// A presentation listener that writes back what it just received must
	// not produce an outgoing event.
	c.AddValueListener(func() { c.SetNormalizedValue(c.NormalizedValue()) })
	engine.send(contracts.NumberValue(0.6))

	assert.Empty(t, engine.flush())
}

func TestContinuous_Gestures(t *testing.T) {
	c, engine := newContinuous(t)

	c.GestureStart()
	c.SetNormalizedValue(0.1)
	c.GestureEnd()

	assert.Equal(t, []contracts.Event{
		contracts.GestureStarted{},
		contracts.NumberValue(0.1),
		contracts.GestureEnded{},
	}, engine.flush())
	assert.Equal(t, 0.1, c.ScaledValue())
}

func TestContinuous_IgnoresUnknownEvents(t *testing.T) {
	c, engine := newContinuous(t)

	calls := 0
	c.AddValueListener(func() { calls++ })
	c.RequestInitialUpdate()
	engine.send(contracts.GestureStarted{})
	engine.inject(`{"channel":"relayContinuousgain","payload":{"eventType":"future","value":1}}`)

	assert.Zero(t, calls)
	assert.False(t, c.Ready())
}
