package contracts

// CurveProperties describes a continuous control. The engine owns the
// authoritative copy; relays keep a replica.
type CurveProperties struct {
	Start          float64 // Value at normalized 0. May be greater than End.
	End            float64 // Value at normalized 1.
	Skew           float64 // Curve exponent, > 0. 1 is linear.
	Interval       float64 // Step size in scaled space, 0 for continuous.
	NumSteps       int     // Number of discrete steps reported by the engine, 0 if continuous.
	Name           string  // Parameter name.
	Label          string  // Unit label (e.g. "dB").
	ParameterIndex int     // Engine parameter index, -1 if unknown.
}

// ToggleProperties describes a boolean control.
type ToggleProperties struct {
	Name           string
	Label          string
	ParameterIndex int
}

// ChoiceProperties describes an enumerated control.
type ChoiceProperties struct {
	Choices        []string // Ordered choice labels.
	Name           string
	Label          string
	ParameterIndex int
}

// DefaultCurveProperties returns the properties a continuous relay holds before the handshake.
func DefaultCurveProperties() CurveProperties {
	return CurveProperties{Start: 0, End: 1, Skew: 1, ParameterIndex: -1}
}

// DefaultToggleProperties returns the properties a boolean relay holds before the handshake.
func DefaultToggleProperties() ToggleProperties {
	return ToggleProperties{ParameterIndex: -1}
}

// DefaultChoiceProperties returns the properties an enumerated relay holds before the handshake.
func DefaultChoiceProperties() ChoiceProperties {
	return ChoiceProperties{ParameterIndex: -1}
}

// PropertiesPatch is a partial properties update. A nil field means "keep
// the cached value". The same patch type serves every kind; fields that do
// not apply to a kind are ignored by its Apply method.
type PropertiesPatch struct {
	Start          *float64  `json:"start,omitempty"`
	End            *float64  `json:"end,omitempty"`
	Skew           *float64  `json:"skew,omitempty"`
	Interval       *float64  `json:"interval,omitempty"`
	NumSteps       *int      `json:"numSteps,omitempty"`
	Name           *string   `json:"name,omitempty"`
	Label          *string   `json:"label,omitempty"`
	ParameterIndex *int      `json:"parameterIndex,omitempty"`
	Choices        *[]string `json:"choices,omitempty"`
}

// Empty reports whether the patch carries no field at all.
func (p PropertiesPatch) Empty() bool {
	return p.Start == nil && p.End == nil && p.Skew == nil && p.Interval == nil &&
		p.NumSteps == nil && p.Name == nil && p.Label == nil && p.ParameterIndex == nil &&
		p.Choices == nil
}

// ApplyCurve merges the present fields into c and returns the result.
func (p PropertiesPatch) ApplyCurve(c CurveProperties) CurveProperties {
	if p.Start != nil {
		c.Start = *p.Start
	}
	if p.End != nil {
		c.End = *p.End
	}
	if p.Skew != nil {
		c.Skew = *p.Skew
	}
	if p.Interval != nil {
		c.Interval = *p.Interval
	}
	if p.NumSteps != nil {
		c.NumSteps = *p.NumSteps
	}
	if p.Name != nil {
		c.Name = *p.Name
	}
	if p.Label != nil {
		c.Label = *p.Label
	}
	if p.ParameterIndex != nil {
		c.ParameterIndex = *p.ParameterIndex
	}
	return c
}

// ApplyToggle merges the present fields into t and returns the result.
func (p PropertiesPatch) ApplyToggle(t ToggleProperties) ToggleProperties {
	if p.Name != nil {
		t.Name = *p.Name
	}
	if p.Label != nil {
		t.Label = *p.Label
	}
	if p.ParameterIndex != nil {
		t.ParameterIndex = *p.ParameterIndex
	}
	return t
}

// ApplyChoice merges the present fields into c and returns the result. The
// choice list is copied so the patch and the cache never share storage.
func (p PropertiesPatch) ApplyChoice(c ChoiceProperties) ChoiceProperties {
	if p.Choices != nil {
		c.Choices = append([]string(nil), (*p.Choices)...)
	}
	if p.Name != nil {
		c.Name = *p.Name
	}
	if p.Label != nil {
		c.Label = *p.Label
	}
	if p.ParameterIndex != nil {
		c.ParameterIndex = *p.ParameterIndex
	}
	return c
}

// CurvePatch returns a patch carrying every field of c.
func CurvePatch(c CurveProperties) PropertiesPatch {
	return PropertiesPatch{
		Start:          &c.Start,
		End:            &c.End,
		Skew:           &c.Skew,
		Interval:       &c.Interval,
		NumSteps:       &c.NumSteps,
		Name:           &c.Name,
		Label:          &c.Label,
		ParameterIndex: &c.ParameterIndex,
	}
}

// TogglePatch returns a patch carrying every field of t.
func TogglePatch(t ToggleProperties) PropertiesPatch {
	return PropertiesPatch{Name: &t.Name, Label: &t.Label, ParameterIndex: &t.ParameterIndex}
}

// ChoicePatch returns a patch carrying every field of c.
func ChoicePatch(c ChoiceProperties) PropertiesPatch {
	choices := append([]string{}, c.Choices...)
	return PropertiesPatch{Choices: &choices, Name: &c.Name, Label: &c.Label, ParameterIndex: &c.ParameterIndex}
}

// Float64 returns a pointer to v, for building patches.
func Float64(v float64) *float64 { return &v }

// Int returns a pointer to v, for building patches.
func Int(v int) *int { return &v }

// String returns a pointer to v, for building patches.
func String(v string) *string { return &v }

// Strings returns a pointer to a copy of v, for building patches.
func Strings(v ...string) *[]string {
	s := append([]string{}, v...)
	return &s
}
