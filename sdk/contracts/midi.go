package contracts

// MIDI represents a channel voice message captured from an input device.
type MIDI struct {
	Timestamp uint64 // Timestamp indicates the time the event occurred, in Unix nanoseconds.
	Command   byte   // Command is the status nibble (e.g. 0x90 Note On, 0xB0 Control Change).
	Channel   byte   // Channel is the zero-based MIDI channel (0-15).
	Data1     byte   // Data1 is the note or controller number (0-127).
	Data2     byte   // Data2 is the velocity or controller value (0-127).
}

// IsControlChange reports whether the message is a Control Change.
func (m MIDI) IsControlChange() bool {
	return m.Command == byte(ControlChange)
}

// DeviceInfo contains information about a MIDI device.
type DeviceInfo struct {
	Name         string // Device name.
	Manufacturer string // Device manufacturer.
	EntityName   string // Name of the entity to which the device belongs.
}

// ClientMIDI defines an interface for MIDI client operations.
type ClientMIDI interface {
	Stop() error                         // Stops the MIDI client and releases resources.
	ListDevices() ([]DeviceInfo, error)  // Lists all available MIDI devices.
	SelectDevice(deviceID int) error     // Selects a MIDI device by its ID for communication.
	StartCapture(eventChannel chan MIDI) // Starts capturing MIDI events and sends them to the specified channel.
}

// SplitStatus splits a MIDI status byte into its command and channel nibbles.
func SplitStatus(status byte) (command, channel byte) {
	return status & 0xF0, status & 0x0F
}
