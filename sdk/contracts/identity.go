package contracts

// Kind identifies which relay variant a control uses.
type Kind int

const (
	// Continuous controls carry a scaled float under a response curve (knobs, faders).
	Continuous Kind = iota
	// Boolean controls carry an on/off state (bypass, mute).
	Boolean
	// Enumerated controls carry a choice out of a list of labels, transmitted as a normalized float.
	Enumerated
)

// Channel name prefixes, one per control kind.
const (
	ContinuousPrefix = "relayContinuous"
	BooleanPrefix    = "relayBoolean"
	EnumeratedPrefix = "relayEnumerated"
)

// MeterChannel is the broadcast channel carrying metering levels. It is not a relay channel.
const MeterChannel = "meterUpdate"

// String returns the lower-case name used in configuration files and logs.
func (k Kind) String() string {
	switch k {
	case Continuous:
		return "continuous"
	case Boolean:
		return "boolean"
	case Enumerated:
		return "enumerated"
	default:
		return "unknown"
	}
}

// Prefix returns the channel prefix for the kind.
func (k Kind) Prefix() string {
	switch k {
	case Continuous:
		return ContinuousPrefix
	case Boolean:
		return BooleanPrefix
	case Enumerated:
		return EnumeratedPrefix
	default:
		return ""
	}
}

// ParseKind maps a configuration name back to a Kind. "toggle" and "choice"
// are accepted as aliases of boolean and enumerated.
func ParseKind(s string) (Kind, bool) {
	switch s {
	case "continuous", "slider":
		return Continuous, true
	case "boolean", "toggle":
		return Boolean, true
	case "enumerated", "choice":
		return Enumerated, true
	default:
		return 0, false
	}
}

// Identity is the immutable (kind, name) pair of a control.
type Identity struct {
	Kind Kind   // Relay variant.
	Name string // Control name, unique per kind.
}

// ChannelName returns the transport channel bound to the control.
func (id Identity) ChannelName() string {
	return id.Kind.Prefix() + id.Name
}

func (id Identity) String() string {
	return id.ChannelName()
}
