// Package wire encodes relay events as the JSON payloads exchanged between
// the control surface and the engine.
//
// Relay payloads are objects tagged by "eventType". Properties updates are
// flat: every present property field sits next to the tag. Meter payloads on
// contracts.MeterChannel carry no tag and are recognised by channel name.
package wire

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/leandrodaf/paramrelay/sdk/contracts"
)

var (
	// ErrMalformedPayload is returned when a payload is not valid JSON or misses a required field.
	ErrMalformedPayload = errors.New("malformed payload")
	// ErrUnsupportedEvent is returned when asked to encode an event with no wire form.
	ErrUnsupportedEvent = errors.New("unsupported event")
)

type envelope struct {
	EventType contracts.EventType `json:"eventType"`
	Value     json.RawMessage     `json:"value,omitempty"`
	contracts.PropertiesPatch
}

// Frame is the unit sent over stream transports: one payload addressed to one channel.
type Frame struct {
	Channel string          `json:"channel"`
	Payload json.RawMessage `json:"payload"`
}

// Encode returns the JSON payload of e.
func Encode(e contracts.Event) ([]byte, error) {
	env := envelope{EventType: e.Type()}

	switch ev := e.(type) {
	case contracts.RequestInitialUpdate, contracts.GestureStarted, contracts.GestureEnded:
	case contracts.ValueChanged:
		var (
			raw []byte
			err error
		)
		if ev.IsFlag {
			raw, err = json.Marshal(ev.Flag)
		} else {
			raw, err = json.Marshal(ev.Number)
		}
		if err != nil {
			return nil, fmt.Errorf("wire: encode value: %w", err)
		}
		env.Value = raw
	case contracts.PropertiesChanged:
		env.PropertiesPatch = ev.Patch
	case contracts.MeterUpdate:
		data, err := json.Marshal(ev.Levels)
		if err != nil {
			return nil, fmt.Errorf("wire: encode meter: %w", err)
		}
		return data, nil
	default:
		return nil, fmt.Errorf("wire: %w: %q", ErrUnsupportedEvent, e.Type())
	}

	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("wire: encode %s: %w", e.Type(), err)
	}
	return data, nil
}

// Decode parses a payload received on channel. Unknown tags decode to
// contracts.UnknownEvent rather than failing.
func Decode(channel string, data []byte) (contracts.Event, error) {
	if channel == contracts.MeterChannel {
		var levels contracts.MeterLevels
		if err := json.Unmarshal(data, &levels); err != nil {
			return nil, fmt.Errorf("wire: %w: %v", ErrMalformedPayload, err)
		}
		return contracts.MeterUpdate{Levels: levels}, nil
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("wire: %w: %v", ErrMalformedPayload, err)
	}

	switch env.EventType {
	case contracts.EventRequestInitialUpdate:
		return contracts.RequestInitialUpdate{}, nil
	case contracts.EventValueChanged:
		return decodeValue(env.Value)
	case contracts.EventPropertiesChanged:
		return contracts.PropertiesChanged{Patch: env.PropertiesPatch}, nil
	case contracts.EventGestureStarted:
		return contracts.GestureStarted{}, nil
	case contracts.EventGestureEnded:
		return contracts.GestureEnded{}, nil
	default:
		return contracts.UnknownEvent{Tag: env.EventType}, nil
	}
}

func decodeValue(raw json.RawMessage) (contracts.Event, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, fmt.Errorf("wire: %w: valueChanged without value", ErrMalformedPayload)
	}

	switch raw[0] {
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(raw, &b); err != nil {
			return nil, fmt.Errorf("wire: %w: %v", ErrMalformedPayload, err)
		}
		return contracts.FlagValue(b), nil
	default:
		var n float64
		if err := json.Unmarshal(raw, &n); err != nil {
			return nil, fmt.Errorf("wire: %w: %v", ErrMalformedPayload, err)
		}
		return contracts.NumberValue(n), nil
	}
}

// EncodeFrame wraps the payload of e in a Frame addressed to channel.
func EncodeFrame(channel string, e contracts.Event) ([]byte, error) {
	payload, err := Encode(e)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(Frame{Channel: channel, Payload: payload})
	if err != nil {
		return nil, fmt.Errorf("wire: encode frame: %w", err)
	}
	return data, nil
}

// DecodeFrame parses a Frame and its payload.
func DecodeFrame(data []byte) (string, contracts.Event, error) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return "", nil, fmt.Errorf("wire: %w: %v", ErrMalformedPayload, err)
	}
	if f.Channel == "" {
		return "", nil, fmt.Errorf("wire: %w: frame without channel", ErrMalformedPayload)
	}
	e, err := Decode(f.Channel, f.Payload)
	if err != nil {
		return f.Channel, nil, err
	}
	return f.Channel, e, nil
}
