package contracts

// EventType is the wire tag of a relay event.
type EventType string

const (
	EventRequestInitialUpdate EventType = "requestInitialUpdate"
	EventValueChanged         EventType = "valueChanged"
	EventPropertiesChanged    EventType = "propertiesChanged"
	EventGestureStarted       EventType = "sliderDragStarted"
	EventGestureEnded         EventType = "sliderDragEnded"
)

// Event is the closed set of payloads a transport carries. Consumers switch
// over the concrete types and ignore the ones they do not handle.
type Event interface {
	Type() EventType
	isEvent()
}

// RequestInitialUpdate asks the engine to send the current properties and value.
type RequestInitialUpdate struct{}

// ValueChanged carries a new value. Continuous relays use a scaled number,
// enumerated relays a normalized number and boolean relays a flag.
type ValueChanged struct {
	Number float64
	Flag   bool
	IsFlag bool // Flag holds the value; Number is ignored.
}

// PropertiesChanged carries a partial properties update.
type PropertiesChanged struct {
	Patch PropertiesPatch
}

// GestureStarted marks the beginning of a continuous drag.
type GestureStarted struct{}

// GestureEnded marks the end of a continuous drag.
type GestureEnded struct{}

// MeterUpdate carries a metering snapshot on MeterChannel.
type MeterUpdate struct {
	Levels MeterLevels
}

// UnknownEvent is produced by decoders for tags they do not recognise.
type UnknownEvent struct {
	Tag EventType
}

func (RequestInitialUpdate) Type() EventType { return EventRequestInitialUpdate }
func (ValueChanged) Type() EventType         { return EventValueChanged }
func (PropertiesChanged) Type() EventType    { return EventPropertiesChanged }
func (GestureStarted) Type() EventType       { return EventGestureStarted }
func (GestureEnded) Type() EventType         { return EventGestureEnded }
func (MeterUpdate) Type() EventType          { return "" }
func (e UnknownEvent) Type() EventType       { return e.Tag }

func (RequestInitialUpdate) isEvent() {}
func (ValueChanged) isEvent()         {}
func (PropertiesChanged) isEvent()    {}
func (GestureStarted) isEvent()       {}
func (GestureEnded) isEvent()         {}
func (MeterUpdate) isEvent()          {}
func (UnknownEvent) isEvent()         {}

// NumberValue builds a numeric ValueChanged.
func NumberValue(v float64) ValueChanged {
	return ValueChanged{Number: v}
}

// FlagValue builds a boolean ValueChanged.
func FlagValue(b bool) ValueChanged {
	return ValueChanged{Flag: b, IsFlag: true}
}

// Float returns the value as a number; flags map to 0 and 1.
func (v ValueChanged) Float() float64 {
	if v.IsFlag {
		if v.Flag {
			return 1
		}
		return 0
	}
	return v.Number
}

// Bool returns the value as a flag; numbers are true when non-zero.
func (v ValueChanged) Bool() bool {
	if v.IsFlag {
		return v.Flag
	}
	return v.Number != 0
}
