package engine

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/leandrodaf/paramrelay/sdk/contracts"
)

var (
	// ErrDuplicateParameter is returned when a control name is registered twice for the same kind.
	ErrDuplicateParameter = errors.New("engine: duplicate parameter")
	// ErrUnknownParameter is returned when a lookup names no registered parameter.
	ErrUnknownParameter = errors.New("engine: unknown parameter")
	// ErrInvalidParameter is returned for empty names or unusable properties.
	ErrInvalidParameter = errors.New("engine: invalid parameter")
)

// Registry holds the authoritative parameters in registration order.
// Parameters without an explicit index get their registration position.
type Registry struct {
	mu     sync.RWMutex
	byChan map[string]Parameter
	order  []Parameter
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{byChan: make(map[string]Parameter)}
}

// AddFloat registers a continuous parameter.
func (r *Registry) AddFloat(name string, props contracts.CurveProperties, def float64) (*FloatParameter, error) {
	if props.Skew <= 0 {
		return nil, fmt.Errorf("%w: %q: skew must be > 0", ErrInvalidParameter, name)
	}
	if props.Interval < 0 {
		return nil, fmt.Errorf("%w: %q: interval must be >= 0", ErrInvalidParameter, name)
	}
	p := newFloat(name, props, def)
	if err := r.add(p, props.ParameterIndex); err != nil {
		return nil, err
	}
	return p, nil
}

// AddBool registers a boolean parameter.
func (r *Registry) AddBool(name string, props contracts.ToggleProperties, def bool) (*BoolParameter, error) {
	p := newBool(name, props, def)
	if err := r.add(p, props.ParameterIndex); err != nil {
		return nil, err
	}
	return p, nil
}

// AddChoice registers an enumerated parameter with def as the initial index.
func (r *Registry) AddChoice(name string, props contracts.ChoiceProperties, def int) (*ChoiceParameter, error) {
	p := newChoice(name, props, def)
	if err := r.add(p, props.ParameterIndex); err != nil {
		return nil, err
	}
	return p, nil
}

func (r *Registry) add(p Parameter, index int) error {
	id := p.Identity()
	if id.Name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidParameter)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, dup := r.byChan[id.ChannelName()]; dup {
		return fmt.Errorf("%w: %s %q", ErrDuplicateParameter, id.Kind, id.Name)
	}
	if index < 0 {
		p.setIndex(len(r.order))
	}
	r.byChan[id.ChannelName()] = p
	r.order = append(r.order, p)
	return nil
}

// Parameters returns the parameters in registration order.
func (r *Registry) Parameters() []Parameter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Parameter(nil), r.order...)
}

// Lookup returns the parameter bound to id.
func (r *Registry) Lookup(id contracts.Identity) (Parameter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byChan[id.ChannelName()]
	if !ok {
		return nil, fmt.Errorf("%w: %s %q", ErrUnknownParameter, id.Kind, id.Name)
	}
	return p, nil
}

// Float returns the continuous parameter called name.
func (r *Registry) Float(name string) (*FloatParameter, error) {
	p, err := r.Lookup(contracts.Identity{Kind: contracts.Continuous, Name: name})
	if err != nil {
		return nil, err
	}
	return p.(*FloatParameter), nil
}

// Bool returns the boolean parameter called name.
func (r *Registry) Bool(name string) (*BoolParameter, error) {
	p, err := r.Lookup(contracts.Identity{Kind: contracts.Boolean, Name: name})
	if err != nil {
		return nil, err
	}
	return p.(*BoolParameter), nil
}

// Choice returns the enumerated parameter called name.
func (r *Registry) Choice(name string) (*ChoiceParameter, error) {
	p, err := r.Lookup(contracts.Identity{Kind: contracts.Enumerated, Name: name})
	if err != nil {
		return nil, err
	}
	return p.(*ChoiceParameter), nil
}

// DefaultLayout returns the parameter set of the GRAIN saturation processor,
// in its host parameter order.
func DefaultLayout() *Registry {
	r := NewRegistry()
	_, _ = r.AddFloat("drive", linear("Drive", "", 0, 1, 0.01), 0.5)
	_, _ = r.AddFloat("mix", linear("Mix", "", 0, 1, 0.01), 0.2)
	_, _ = r.AddFloat("output", linear("Output", "dB", -12, 12, 0.1), 0)
	_, _ = r.AddBool("bypass", contracts.ToggleProperties{Name: "Bypass", ParameterIndex: -1}, false)
	_, _ = r.AddFloat("warmth", linear("Warmth", "", 0, 1, 0.01), 0)
	_, _ = r.AddFloat("inputGain", linear("Input Gain", "dB", -12, 12, 0.1), 0)
	_, _ = r.AddChoice("focus", contracts.ChoiceProperties{
		Choices: []string{"Low", "Mid", "High"}, Name: "Focus", ParameterIndex: -1,
	}, 1)
	return r
}

// StepCount returns the number of discrete positions of a range divided by
// interval, or 0 for a continuous range.
func StepCount(start, end, interval float64) int {
	if interval <= 0 {
		return 0
	}
	return int(math.Round(math.Abs(end-start)/interval)) + 1
}

func linear(name, unit string, start, end, interval float64) contracts.CurveProperties {
	return contracts.CurveProperties{
		Start:          start,
		End:            end,
		Skew:           1,
		Interval:       interval,
		NumSteps:       StepCount(start, end, interval),
		Name:           name,
		Label:          unit,
		ParameterIndex: -1,
	}
}
