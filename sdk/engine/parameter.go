package engine

import (
	"math"
	"sync"
	"sync/atomic"

	"github.com/leandrodaf/paramrelay/sdk/contracts"
	"github.com/leandrodaf/paramrelay/sdk/curve"
)

// Parameter is an authoritative engine control. Values are stored
// atomically so the audio goroutine can read them without locking.
type Parameter interface {
	// Identity returns the control identity, which names the relay channel.
	Identity() contracts.Identity
	// PropertiesPatch returns every property as a patch, as sent during the handshake.
	PropertiesPatch() contracts.PropertiesPatch
	// WireValue returns the current value as carried by valueChanged events.
	WireValue() contracts.ValueChanged
	// UpdateProperties merges patch into the properties and pushes it to the surface.
	UpdateProperties(patch contracts.PropertiesPatch)

	// apply stores a value requested by origin. It returns the value actually
	// stored and whether it differs from the request.
	apply(v contracts.ValueChanged, origin any) (applied contracts.ValueChanged, corrected bool)
	observe(values func(origin any), props func(contracts.PropertiesPatch)) (cancel func())
	setIndex(i int)
}

type observer struct {
	values func(origin any)
	props  func(contracts.PropertiesPatch)
}

// base carries what every parameter kind shares.
type base struct {
	id        contracts.Identity
	mu        sync.RWMutex // guards observers and the kind's properties
	nextID    uint64
	observers map[uint64]observer
}

func (b *base) init(kind contracts.Kind, name string) {
	b.id = contracts.Identity{Kind: kind, Name: name}
	b.observers = make(map[uint64]observer)
}

func (b *base) Identity() contracts.Identity {
	return b.id
}

func (b *base) observe(values func(origin any), props func(contracts.PropertiesPatch)) func() {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.observers[id] = observer{values: values, props: props}
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.observers, id)
			b.mu.Unlock()
		})
	}
}

func (b *base) snapshot() []observer {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]observer, 0, len(b.observers))
	for _, o := range b.observers {
		out = append(out, o)
	}
	return out
}

func (b *base) notifyValue(origin any) {
	for _, o := range b.snapshot() {
		if o.values != nil {
			o.values(origin)
		}
	}
}

func (b *base) notifyProperties(p contracts.PropertiesPatch) {
	for _, o := range b.snapshot() {
		if o.props != nil {
			o.props(p)
		}
	}
}

// OnChange registers fn to run after every value change, with the origin of
// the change (nil for engine-side changes). It returns a cancel function.
func (b *base) OnChange(fn func(origin any)) (cancel func()) {
	return b.observe(fn, nil)
}

// FloatParameter is a ranged continuous parameter.
type FloatParameter struct {
	base
	props contracts.CurveProperties
	bits  atomic.Uint64
	def   float64
}

func newFloat(name string, props contracts.CurveProperties, def float64) *FloatParameter {
	p := &FloatParameter{props: props}
	p.init(contracts.Continuous, name)
	p.def = p.constrain(def)
	p.bits.Store(math.Float64bits(p.def))
	return p
}

// Value returns the scaled value.
func (p *FloatParameter) Value() float64 {
	return math.Float64frombits(p.bits.Load())
}

// Default returns the value the parameter started with.
func (p *FloatParameter) Default() float64 {
	return p.def
}

// Normalized returns the value mapped to [0,1].
func (p *FloatParameter) Normalized() float64 {
	props := p.Properties()
	return curve.ToNormalized(p.Value(), props.Start, props.End, props.Skew)
}

// Properties returns a copy of the curve properties.
func (p *FloatParameter) Properties() contracts.CurveProperties {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.props
}

// Set stores v, clamped to the range and snapped to the interval, and pushes it to the surface.
func (p *FloatParameter) Set(v float64) {
	p.store(p.constrain(v), nil)
}

// SetNormalized stores the scaled value of n.
func (p *FloatParameter) SetNormalized(n float64) {
	props := p.Properties()
	p.store(curve.ToScaled(n, props.Start, props.End, props.Skew, props.Interval), nil)
}

// UpdateProperties merges patch and pushes it to the surface. The value is
// constrained to the new range.
func (p *FloatParameter) UpdateProperties(patch contracts.PropertiesPatch) {
	p.mu.Lock()
	p.props = patch.ApplyCurve(p.props)
	p.mu.Unlock()

	p.notifyProperties(patch)
	p.store(p.constrain(p.Value()), nil)
}

func (p *FloatParameter) PropertiesPatch() contracts.PropertiesPatch {
	return contracts.CurvePatch(p.Properties())
}

func (p *FloatParameter) WireValue() contracts.ValueChanged {
	return contracts.NumberValue(p.Value())
}

func (p *FloatParameter) constrain(v float64) float64 {
	props := p.Properties()
	v = curve.ClampRange(v, props.Start, props.End)
	if props.Interval > 0 {
		v = curve.ClampRange(curve.Quantize(v, props.Interval), props.Start, props.End)
	}
	return v
}

func (p *FloatParameter) store(v float64, origin any) {
	if p.bits.Swap(math.Float64bits(v)) == math.Float64bits(v) {
		return
	}
	p.notifyValue(origin)
}

func (p *FloatParameter) apply(v contracts.ValueChanged, origin any) (contracts.ValueChanged, bool) {
	want := v.Float()
	got := p.constrain(want)
	p.store(got, origin)
	return contracts.NumberValue(got), math.Float64bits(got) != math.Float64bits(want)
}

func (p *FloatParameter) setIndex(i int) {
	p.mu.Lock()
	p.props.ParameterIndex = i
	p.mu.Unlock()
}

// BoolParameter is an on/off parameter.
type BoolParameter struct {
	base
	props contracts.ToggleProperties
	value atomic.Bool
	def   bool
}

func newBool(name string, props contracts.ToggleProperties, def bool) *BoolParameter {
	p := &BoolParameter{props: props, def: def}
	p.init(contracts.Boolean, name)
	p.value.Store(def)
	return p
}

// Value returns the state.
func (p *BoolParameter) Value() bool {
	return p.value.Load()
}

// Default returns the state the parameter started with.
func (p *BoolParameter) Default() bool {
	return p.def
}

// Properties returns a copy of the properties.
func (p *BoolParameter) Properties() contracts.ToggleProperties {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.props
}

// Set stores v and pushes it to the surface.
func (p *BoolParameter) Set(v bool) {
	p.store(v, nil)
}

// UpdateProperties merges patch and pushes it to the surface.
func (p *BoolParameter) UpdateProperties(patch contracts.PropertiesPatch) {
	p.mu.Lock()
	p.props = patch.ApplyToggle(p.props)
	p.mu.Unlock()
	p.notifyProperties(patch)
}

func (p *BoolParameter) PropertiesPatch() contracts.PropertiesPatch {
	return contracts.TogglePatch(p.Properties())
}

func (p *BoolParameter) WireValue() contracts.ValueChanged {
	return contracts.FlagValue(p.Value())
}

func (p *BoolParameter) store(v bool, origin any) {
	if p.value.Swap(v) == v {
		return
	}
	p.notifyValue(origin)
}

func (p *BoolParameter) apply(v contracts.ValueChanged, origin any) (contracts.ValueChanged, bool) {
	got := v.Bool()
	p.store(got, origin)
	// Numeric requests are answered with the canonical flag.
	return contracts.FlagValue(got), !v.IsFlag
}

func (p *BoolParameter) setIndex(i int) {
	p.mu.Lock()
	p.props.ParameterIndex = i
	p.mu.Unlock()
}

// ChoiceParameter is an enumerated parameter stored as a normalized value.
// Stored values always sit exactly on a choice.
type ChoiceParameter struct {
	base
	props contracts.ChoiceProperties
	bits  atomic.Uint64
	def   int
}

func newChoice(name string, props contracts.ChoiceProperties, def int) *ChoiceParameter {
	p := &ChoiceParameter{props: props}
	p.init(contracts.Enumerated, name)
	p.def = p.clampIndex(def)
	p.bits.Store(math.Float64bits(p.normalizedOf(p.def)))
	return p
}

// Normalized returns the normalized value.
func (p *ChoiceParameter) Normalized() float64 {
	return math.Float64frombits(p.bits.Load())
}

// Index returns the selected choice index.
func (p *ChoiceParameter) Index() int {
	count := len(p.Properties().Choices)
	if count <= 1 {
		return 0
	}
	return int(math.Round(p.Normalized() * float64(count-1)))
}

// Default returns the index the parameter started with.
func (p *ChoiceParameter) Default() int {
	return p.def
}

// Properties returns a copy of the properties.
func (p *ChoiceParameter) Properties() contracts.ChoiceProperties {
	p.mu.RLock()
	defer p.mu.RUnlock()
	props := p.props
	props.Choices = append([]string(nil), p.props.Choices...)
	return props
}

// SetIndex selects choice i, clamped to the list, and pushes it to the surface.
func (p *ChoiceParameter) SetIndex(i int) {
	p.store(p.normalizedOf(p.clampIndex(i)), nil)
}

// UpdateProperties merges patch and pushes it to the surface. The value is
// snapped onto the new choice list.
func (p *ChoiceParameter) UpdateProperties(patch contracts.PropertiesPatch) {
	p.mu.Lock()
	p.props = patch.ApplyChoice(p.props)
	p.mu.Unlock()

	p.notifyProperties(patch)
	p.store(p.snap(p.Normalized()), nil)
}

func (p *ChoiceParameter) PropertiesPatch() contracts.PropertiesPatch {
	return contracts.ChoicePatch(p.Properties())
}

func (p *ChoiceParameter) WireValue() contracts.ValueChanged {
	return contracts.NumberValue(p.Normalized())
}

func (p *ChoiceParameter) clampIndex(i int) int {
	count := len(p.Properties().Choices)
	if count <= 1 {
		return 0
	}
	return min(max(i, 0), count-1)
}

func (p *ChoiceParameter) normalizedOf(i int) float64 {
	count := len(p.Properties().Choices)
	if count <= 1 {
		return 0
	}
	return float64(i) / float64(count-1)
}

func (p *ChoiceParameter) snap(n float64) float64 {
	count := len(p.Properties().Choices)
	if count <= 1 {
		return 0
	}
	i := int(math.Round(curve.Clamp(n, 0, 1) * float64(count-1)))
	return p.normalizedOf(i)
}

func (p *ChoiceParameter) store(n float64, origin any) {
	if p.bits.Swap(math.Float64bits(n)) == math.Float64bits(n) {
		return
	}
	p.notifyValue(origin)
}

func (p *ChoiceParameter) apply(v contracts.ValueChanged, origin any) (contracts.ValueChanged, bool) {
	want := v.Float()
	got := p.snap(want)
	p.store(got, origin)
	return contracts.NumberValue(got), math.Float64bits(got) != math.Float64bits(want)
}

func (p *ChoiceParameter) setIndex(i int) {
	p.mu.Lock()
	p.props.ParameterIndex = i
	p.mu.Unlock()
}
