package relay

import (
	"math"

	"github.com/leandrodaf/paramrelay/sdk/contracts"
)

// Choice mirrors an enumerated control. The engine represents the choice as
// a normalized float, so that is what the relay stores and transmits; the
// index is derived on read.
type Choice struct {
	*binding
	normalized float64
	props      contracts.ChoiceProperties
	values     Listeners
	properties Listeners
}

// NewChoice binds an enumerated relay named name to t.
func NewChoice(t contracts.Transport, name string, opts ...contracts.Option) (*Choice, error) {
	b, err := newBinding(t, contracts.Identity{Kind: contracts.Enumerated, Name: name}, opts...)
	if err != nil {
		return nil, err
	}

	c := &Choice{binding: b, props: contracts.DefaultChoiceProperties()}
	b.listen(c.handle)
	return c, nil
}

// NormalizedValue returns the cached normalized value.
func (c *Choice) NormalizedValue() float64 {
	return c.normalized
}

// Properties returns the cached properties.
func (c *Choice) Properties() contracts.ChoiceProperties {
	return c.props
}

// ChoiceIndex returns the index of the current choice, always a valid index
// into Properties().Choices when the list is not empty. With one choice or
// none it is always 0.
func (c *Choice) ChoiceIndex() int {
	count := len(c.props.Choices)
	if count <= 1 {
		return 0
	}
	index := int(math.Round(c.normalized * float64(count-1)))
	return min(max(index, 0), count-1)
}

// Choice returns the label of the current choice, if the list is known.
func (c *Choice) Choice() (string, bool) {
	i := c.ChoiceIndex()
	if i < 0 || i >= len(c.props.Choices) {
		return "", false
	}
	return c.props.Choices[i], true
}

// SetChoiceIndex selects choice index, clamped to the known choices, and
// emits the matching normalized value.
func (c *Choice) SetChoiceIndex(index int) {
	count := len(c.props.Choices)

	normalized := 0.0
	if count > 1 {
		index = min(max(index, 0), count-1)
		normalized = float64(index) / float64(count-1)
	}

	if sameBits(normalized, c.normalized) {
		return
	}
	c.normalized = normalized
	c.emit(contracts.NumberValue(normalized))
}

// AddValueListener registers fn to run after every inbound value update.
func (c *Choice) AddValueListener(fn func()) ListenerID {
	return c.values.Add(fn)
}

// RemoveValueListener drops a value listener.
func (c *Choice) RemoveValueListener(id ListenerID) bool {
	return c.values.Remove(id)
}

// AddPropertiesListener registers fn to run after every inbound properties update.
func (c *Choice) AddPropertiesListener(fn func()) ListenerID {
	return c.properties.Add(fn)
}

// RemovePropertiesListener drops a properties listener.
func (c *Choice) RemovePropertiesListener(id ListenerID) bool {
	return c.properties.Remove(id)
}

func (c *Choice) handle(e contracts.Event) {
	if c.closed {
		return
	}

	switch ev := e.(type) {
	case contracts.ValueChanged:
		c.normalized = ev.Float()
		ready := c.received()
		c.values.Notify()
		if ready {
			c.completeHandshake()
		}
	case contracts.PropertiesChanged:
		c.props = ev.Patch.ApplyChoice(c.props)
		ready := c.received()
		c.properties.Notify()
		if ready {
			c.completeHandshake()
		}
	default:
		c.ignored(e)
	}
}
