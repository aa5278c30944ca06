package relay

import "github.com/leandrodaf/paramrelay/sdk/contracts"

// Toggle mirrors a boolean control such as a bypass switch.
type Toggle struct {
	*binding
	value      bool
	props      contracts.ToggleProperties
	values     Listeners
	properties Listeners
}

// NewToggle binds a boolean relay named name to t.
func NewToggle(t contracts.Transport, name string, opts ...contracts.Option) (*Toggle, error) {
	b, err := newBinding(t, contracts.Identity{Kind: contracts.Boolean, Name: name}, opts...)
	if err != nil {
		return nil, err
	}

	tg := &Toggle{binding: b, props: contracts.DefaultToggleProperties()}
	b.listen(tg.handle)
	return tg, nil
}

// Value returns the cached state.
func (t *Toggle) Value() bool {
	return t.value
}

// Properties returns the cached properties.
func (t *Toggle) Properties() contracts.ToggleProperties {
	return t.props
}

// SetValue caches v and emits it. Nothing is emitted when v equals the cached state.
func (t *Toggle) SetValue(v bool) {
	if v == t.value {
		return
	}
	t.value = v
	t.emit(contracts.FlagValue(v))
}

// AddValueListener registers fn to run after every inbound value update.
func (t *Toggle) AddValueListener(fn func()) ListenerID {
	return t.values.Add(fn)
}

// RemoveValueListener drops a value listener.
func (t *Toggle) RemoveValueListener(id ListenerID) bool {
	return t.values.Remove(id)
}

// AddPropertiesListener registers fn to run after every inbound properties update.
func (t *Toggle) AddPropertiesListener(fn func()) ListenerID {
	return t.properties.Add(fn)
}

// RemovePropertiesListener drops a properties listener.
func (t *Toggle) RemovePropertiesListener(id ListenerID) bool {
	return t.properties.Remove(id)
}

func (t *Toggle) handle(e contracts.Event) {
	if t.closed {
		return
	}

	switch ev := e.(type) {
	case contracts.ValueChanged:
		t.value = ev.Bool()
		ready := t.received()
		t.values.Notify()
		if ready {
			t.completeHandshake()
		}
	case contracts.PropertiesChanged:
		t.props = ev.Patch.ApplyToggle(t.props)
		ready := t.received()
		t.properties.Notify()
		if ready {
			t.completeHandshake()
		}
	default:
		t.ignored(e)
	}
}
