package main

import (
	"errors"
	"fmt"
	"math"

	"github.com/leandrodaf/paramrelay/internal/config"
	"github.com/leandrodaf/paramrelay/sdk/contracts"
	"github.com/leandrodaf/paramrelay/sdk/midi"
	"github.com/leandrodaf/paramrelay/sdk/relay"
)

var errUnknownControl = errors.New("unknown control")

// control is what every relay kind shares.
type control interface {
	Identity() contracts.Identity
	RequestInitialUpdate()
	Ready() bool
	AddReadyListener(fn func()) relay.ListenerID
}

// surface holds the relays built from the controls section. Like the relays
// themselves, it must only be used on the transport's relay thread.
type surface struct {
	controls    []control
	continuous  map[string]*relay.Continuous
	toggles     map[string]*relay.Toggle
	choices     map[string]*relay.Choice
	definitions []config.ControlConfig
}

func buildSurface(t contracts.Transport, defs []config.ControlConfig, opts ...contracts.Option) (*surface, error) {
	s := &surface{
		continuous:  make(map[string]*relay.Continuous),
		toggles:     make(map[string]*relay.Toggle),
		choices:     make(map[string]*relay.Choice),
		definitions: defs,
	}

	for _, def := range defs {
		kind, ok := contracts.ParseKind(def.Kind)
		if !ok {
			return nil, fmt.Errorf("control %q: unknown kind %q", def.Name, def.Kind)
		}

		switch kind {
		case contracts.Continuous:
			c, err := relay.NewContinuous(t, def.Name, opts...)
			if err != nil {
				return nil, err
			}
			s.continuous[def.Name] = c
			s.controls = append(s.controls, c)
		case contracts.Boolean:
			tg, err := relay.NewToggle(t, def.Name, opts...)
			if err != nil {
				return nil, err
			}
			s.toggles[def.Name] = tg
			s.controls = append(s.controls, tg)
		case contracts.Enumerated:
			ch, err := relay.NewChoice(t, def.Name, opts...)
			if err != nil {
				return nil, err
			}
			s.choices[def.Name] = ch
			s.controls = append(s.controls, ch)
		}
	}
	return s, nil
}

func (s *surface) requestAll() {
	for _, c := range s.controls {
		c.RequestInitialUpdate()
	}
}

// onAllReady runs fn once every control has completed its handshake.
func (s *surface) onAllReady(fn func()) {
	pending := len(s.controls)
	if pending == 0 {
		fn()
		return
	}
	for _, c := range s.controls {
		c.AddReadyListener(func() {
			pending--
			if pending == 0 {
				fn()
			}
		})
	}
}

// setNormalized moves the control called name to the normalized position v.
// Toggles switch on from 0.5, choices take the nearest index.
func (s *surface) setNormalized(name string, v float64) error {
	if c, ok := s.continuous[name]; ok {
		c.SetNormalizedValue(v)
		return nil
	}
	if t, ok := s.toggles[name]; ok {
		t.SetValue(v >= 0.5)
		return nil
	}
	if ch, ok := s.choices[name]; ok {
		count := len(ch.Properties().Choices)
		if count <= 1 {
			ch.SetChoiceIndex(0)
			return nil
		}
		ch.SetChoiceIndex(int(math.Round(v * float64(count-1))))
		return nil
	}
	return fmt.Errorf("%w: %q", errUnknownControl, name)
}

// logUpdates logs every value and properties update.
func (s *surface) logUpdates(log contracts.Logger) {
	for name, c := range s.continuous {
		name, c := name, c
		c.AddValueListener(func() {
			log.Info("value",
				log.Field().String("control", name),
				log.Field().Float64("scaled", c.ScaledValue()),
				log.Field().Float64("normalized", c.NormalizedValue()))
		})
		c.AddPropertiesListener(func() {
			p := c.Properties()
			log.Debug("properties",
				log.Field().String("control", name),
				log.Field().Float64("start", p.Start),
				log.Field().Float64("end", p.End),
				log.Field().String("label", p.Label))
		})
	}
	for name, t := range s.toggles {
		name, t := name, t
		t.AddValueListener(func() {
			log.Info("value", log.Field().String("control", name), log.Field().Bool("on", t.Value()))
		})
	}
	for name, ch := range s.choices {
		name, ch := name, ch
		ch.AddValueListener(func() {
			label, _ := ch.Choice()
			log.Info("value",
				log.Field().String("control", name),
				log.Field().Int("index", ch.ChoiceIndex()),
				log.Field().String("choice", label))
		})
	}
}

// bindMIDI maps every control with a midi section onto b.
func (s *surface) bindMIDI(b *midi.Bridge) error {
	for _, def := range s.definitions {
		if def.MIDI == nil {
			continue
		}
		ctl := midi.Control{Channel: byte(def.MIDI.Channel), Controller: byte(def.MIDI.CC)}

		var err error
		switch {
		case s.continuous[def.Name] != nil:
			err = b.MapContinuous(ctl, s.continuous[def.Name])
		case s.toggles[def.Name] != nil:
			err = b.MapToggle(ctl, s.toggles[def.Name])
		case s.choices[def.Name] != nil:
			err = b.MapChoice(ctl, s.choices[def.Name])
		}
		if err != nil {
			return fmt.Errorf("control %q: %w", def.Name, err)
		}
	}
	return nil
}

func findControl(defs []config.ControlConfig, name string) (config.ControlConfig, error) {
	for _, def := range defs {
		if def.Name == name {
			return def, nil
		}
	}
	return config.ControlConfig{}, fmt.Errorf("%w: %q", errUnknownControl, name)
}
