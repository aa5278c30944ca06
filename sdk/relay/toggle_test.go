package relay

import (
	"testing"

	"github.com/leandrodaf/paramrelay/sdk/contracts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newToggle(t *testing.T) (*Toggle, *engineSide) {
	t.Helper()
	p := newPair(t)
	tg, err := NewToggle(p.Surface(), "bypass", nop())
	require.NoError(t, err)
	return tg, newEngineSide(t, p, tg.Identity())
}

func TestToggle_SetValue(t *testing.T) {
	tg, engine := newToggle(t)
	assert.Equal(t, "relayBooleanbypass", tg.Identity().ChannelName())

	tg.SetValue(true)
	assert.True(t, tg.Value())
	tg.SetValue(true)
	tg.SetValue(false)

	assert.Equal(t, []contracts.Event{contracts.FlagValue(true), contracts.FlagValue(false)}, engine.flush())
}

func TestToggle_InboundCoercesNumbers(t *testing.T) {
	tg, engine := newToggle(t)

	engine.send(contracts.NumberValue(1))
	assert.True(t, tg.Value())
	engine.send(contracts.NumberValue(0))
	assert.False(t, tg.Value())
	engine.send(contracts.FlagValue(true))
	assert.True(t, tg.Value())
}

func TestToggle_Properties(t *testing.T) {
	tg, engine := newToggle(t)
	assert.Equal(t, contracts.DefaultToggleProperties(), tg.Properties())

	calls := 0
	tg.AddPropertiesListener(func() { calls++ })
	engine.send(contracts.PropertiesChanged{Patch: contracts.PropertiesPatch{
		Name:           contracts.String("Bypass"),
		ParameterIndex: contracts.Int(3),
		Start:          contracts.Float64(9), // not a toggle field
	}})
	engine.send(contracts.PropertiesChanged{Patch: contracts.PropertiesPatch{Label: contracts.String("on/off")}})

	assert.Equal(t, contracts.ToggleProperties{Name: "Bypass", Label: "on/off", ParameterIndex: 3}, tg.Properties())
	assert.Equal(t, 2, calls)
}

func TestToggle_ValueListeners(t *testing.T) {
	tg, engine := newToggle(t)

	var order []int
	first := tg.AddValueListener(func() { order = append(order, 1) })
	tg.AddValueListener(func() { order = append(order, 2) })

	tg.RequestInitialUpdate()
	engine.send(contracts.FlagValue(true))
	assert.True(t, tg.Ready())

	tg.RemoveValueListener(first)
	engine.send(contracts.FlagValue(false))

	assert.Equal(t, []int{1, 2, 2}, order)
}

func TestToggle_EchoGuard(t *testing.T) {
	tg, engine := newToggle(t)
	tg.AddValueListener(func() { tg.SetValue(tg.Value()) })

	engine.send(contracts.FlagValue(true))
	assert.Empty(t, engine.flush())
}
