// Package midipacket decodes raw MIDI bytes into channel voice messages.
package midipacket

import (
	"errors"
	"fmt"

	"github.com/leandrodaf/paramrelay/sdk/contracts"
	"go.uber.org/multierr"
)

// ErrIncompleteMessage is returned when a message is cut short by the end of
// the packet or by another status byte.
var ErrIncompleteMessage = errors.New("incomplete MIDI message")

const (
	sysExStart = 0xF0
	sysExEnd   = 0xF7
	realTime   = 0xF8
)

// Decode splits data into channel voice messages, honoring running status.
// System exclusive, system common and real-time bytes are skipped, including
// real-time bytes interleaved inside a message. Messages whose command the
// filter rejects are dropped. Decoding continues after an incomplete message;
// every such problem is reported in the returned error.
func Decode(data []byte, timestamp uint64, filter *contracts.MIDIEventFilter) ([]contracts.MIDI, error) {
	var (
		out     []contracts.MIDI
		errs    error
		running byte
		skip    int
		inSysEx bool
		pending = make([]byte, 0, 2)
	)

	for _, b := range data {
		if b >= realTime {
			continue
		}

		if b&0x80 != 0 {
			if len(pending) > 0 {
				errs = multierr.Append(errs, fmt.Errorf("%w: status 0x%X interrupted by 0x%X", ErrIncompleteMessage, running, b))
				pending = pending[:0]
			}
			inSysEx = b == sysExStart
			running, skip = 0, 0
			switch {
			case b < sysExStart:
				running = b
			case b != sysExEnd:
				skip = systemCommonLen(b)
			}
			continue
		}

		switch {
		case inSysEx:
			continue
		case skip > 0:
			skip--
			continue
		case running == 0:
			// Data byte without a status.
			continue
		}

		pending = append(pending, b)
		if len(pending) < dataLen(running) {
			continue
		}

		m := contracts.MIDI{Timestamp: timestamp, Data1: pending[0]}
		m.Command, m.Channel = contracts.SplitStatus(running)
		if len(pending) == 2 {
			m.Data2 = pending[1]
		}
		pending = pending[:0]

		if filter.Allows(m.Command) {
			out = append(out, m)
		}
	}

	if len(pending) > 0 {
		errs = multierr.Append(errs, fmt.Errorf("%w: status 0x%X at end of packet", ErrIncompleteMessage, running))
	}
	return out, errs
}

// FromShortMessage unpacks a message packed as status | data1<<8 | data2<<16.
// It reports false for system messages and bytes that are not a status.
func FromShortMessage(msg uint32, timestamp uint64) (contracts.MIDI, bool) {
	status := byte(msg)
	if status&0x80 == 0 || status >= sysExStart {
		return contracts.MIDI{}, false
	}

	m := contracts.MIDI{Timestamp: timestamp, Data1: byte(msg>>8) & 0x7F}
	m.Command, m.Channel = contracts.SplitStatus(status)
	if dataLen(status) == 2 {
		m.Data2 = byte(msg>>16) & 0x7F
	}
	return m, true
}

func dataLen(status byte) int {
	switch status & 0xF0 {
	case 0xC0, 0xD0:
		return 1
	default:
		return 2
	}
}

func systemCommonLen(status byte) int {
	switch status {
	case 0xF1, 0xF3:
		return 1
	case 0xF2:
		return 2
	default:
		return 0
	}
}
