package relay

import (
	"github.com/leandrodaf/paramrelay/sdk/contracts"
	"github.com/leandrodaf/paramrelay/sdk/curve"
)

// Continuous mirrors a ranged float control such as a knob or a fader. It
// caches the scaled engine value; the normalized position is derived from it
// through the cached curve properties.
type Continuous struct {
	*binding
	scaled     float64
	props      contracts.CurveProperties
	values     Listeners
	properties Listeners
}

// NewContinuous binds a continuous relay named name to t. Call
// RequestInitialUpdate once the listeners are in place.
func NewContinuous(t contracts.Transport, name string, opts ...contracts.Option) (*Continuous, error) {
	b, err := newBinding(t, contracts.Identity{Kind: contracts.Continuous, Name: name}, opts...)
	if err != nil {
		return nil, err
	}

	c := &Continuous{binding: b, props: contracts.DefaultCurveProperties()}
	b.listen(c.handle)
	return c, nil
}

// ScaledValue returns the cached engine value.
func (c *Continuous) ScaledValue() float64 {
	return c.scaled
}

// NormalizedValue returns the cached value mapped to [0,1] by the curve.
func (c *Continuous) NormalizedValue() float64 {
	return curve.ToNormalized(c.scaled, c.props.Start, c.props.End, c.props.Skew)
}

// Properties returns the cached curve properties.
func (c *Continuous) Properties() contracts.CurveProperties {
	return c.props
}

// SetNormalizedValue moves the control to the normalized position n. The
// scaled value is cached before the event is emitted, so ScaledValue reflects
// it immediately. Nothing is emitted when the value does not change.
func (c *Continuous) SetNormalizedValue(n float64) {
	p := c.props
	c.update(curve.ToScaled(curve.Clamp(n, 0, 1), p.Start, p.End, p.Skew, p.Interval))
}

// SetScaledValue moves the control to the scaled value v, clamped to the
// declared range and snapped to the step interval.
func (c *Continuous) SetScaledValue(v float64) {
	p := c.props
	v = curve.ClampRange(v, p.Start, p.End)
	if p.Interval > 0 {
		v = curve.ClampRange(curve.Quantize(v, p.Interval), p.Start, p.End)
	}
	c.update(v)
}

func (c *Continuous) update(scaled float64) {
	if sameBits(scaled, c.scaled) {
		return
	}
	c.scaled = scaled
	c.emit(contracts.NumberValue(scaled))
}

// GestureStart tells the engine a drag begins. It does not change the value.
func (c *Continuous) GestureStart() {
	c.emit(contracts.GestureStarted{})
}

// GestureEnd tells the engine a drag ended. It does not change the value.
func (c *Continuous) GestureEnd() {
	c.emit(contracts.GestureEnded{})
}

// AddValueListener registers fn to run after every inbound value update.
func (c *Continuous) AddValueListener(fn func()) ListenerID {
	return c.values.Add(fn)
}

// RemoveValueListener drops a value listener.
func (c *Continuous) RemoveValueListener(id ListenerID) bool {
	return c.values.Remove(id)
}

// AddPropertiesListener registers fn to run after every inbound properties update.
func (c *Continuous) AddPropertiesListener(fn func()) ListenerID {
	return c.properties.Add(fn)
}

// RemovePropertiesListener drops a properties listener.
func (c *Continuous) RemovePropertiesListener(id ListenerID) bool {
	return c.properties.Remove(id)
}

func (c *Continuous) handle(e contracts.Event) {
	if c.closed {
		return
	}

	switch ev := e.(type) {
	case contracts.ValueChanged:
		c.scaled = ev.Float()
		ready := c.received()
		c.values.Notify()
		if ready {
			c.completeHandshake()
		}
	case contracts.PropertiesChanged:
		c.props = ev.Patch.ApplyCurve(c.props)
		ready := c.received()
		c.properties.Notify()
		if ready {
			c.completeHandshake()
		}
	default:
		c.ignored(e)
	}
}
