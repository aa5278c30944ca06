// Package config loads the relayctl configuration file.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"github.com/leandrodaf/paramrelay/sdk/contracts"
	"github.com/leandrodaf/paramrelay/sdk/engine"
	"github.com/leandrodaf/paramrelay/sdk/meter"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

// ErrInvalid wraps every validation problem.
var ErrInvalid = errors.New("config: invalid")

// Defaults for the transport section.
const (
	DefaultURL          = "ws://127.0.0.1:8765/relay"
	DefaultListen       = "127.0.0.1:8765"
	DefaultPath         = "/relay"
	DefaultWriteTimeout = "5s"
)

// Config is the top-level relayctl configuration.
type Config struct {
	LogLevel  string          `yaml:"log_level"`
	LogFile   string          `yaml:"log_file"`
	Transport TransportConfig `yaml:"transport"`
	Controls  []ControlConfig `yaml:"controls"`
	Meter     MeterConfig     `yaml:"meter"`
	Engine    EngineConfig    `yaml:"engine"`
}

// TransportConfig holds the websocket settings of both ends.
type TransportConfig struct {
	URL          string `yaml:"url"`           // Dialed by surface commands.
	Listen       string `yaml:"listen"`        // Address served by the engine.
	Path         string `yaml:"path"`          // HTTP path of the websocket endpoint.
	WriteTimeout string `yaml:"write_timeout"` // Duration string, e.g. "5s".
}

// ControlConfig describes one relay created by surface commands.
type ControlConfig struct {
	Kind string      `yaml:"kind"`
	Name string      `yaml:"name"`
	MIDI *MIDIConfig `yaml:"midi"`
}

// MIDIConfig binds a control to a MIDI controller.
type MIDIConfig struct {
	Channel int `yaml:"channel"` // zero-based
	CC      int `yaml:"cc"`
}

// MeterConfig tunes the meter broadcaster.
type MeterConfig struct {
	RateHz float64 `yaml:"rate_hz"`
	Decay  float64 `yaml:"decay"`
}

// EngineConfig lists the parameters served by the engine simulator.
type EngineConfig struct {
	Parameters []ParameterConfig `yaml:"parameters"`
}

// ParameterConfig describes one engine parameter. Default holds the scaled
// value of a continuous parameter, 0 or 1 for a boolean one and the
// selected index of an enumerated one.
type ParameterConfig struct {
	Name     string   `yaml:"name"`
	Kind     string   `yaml:"kind"`
	Title    string   `yaml:"title"`
	Label    string   `yaml:"label"`
	Start    float64  `yaml:"start"`
	End      float64  `yaml:"end"`
	Skew     float64  `yaml:"skew"`
	Interval float64  `yaml:"interval"`
	Default  float64  `yaml:"default"`
	Choices  []string `yaml:"choices"`
}

// Default returns the configuration of the GRAIN saturation processor with
// every control exposed and no MIDI bindings.
func Default() Config {
	params := parametersOf(engine.DefaultLayout())
	controls := make([]ControlConfig, 0, len(params))
	for _, p := range params {
		controls = append(controls, ControlConfig{Kind: p.Kind, Name: p.Name})
	}

	return Config{
		LogLevel: "info",
		Transport: TransportConfig{
			URL:          DefaultURL,
			Listen:       DefaultListen,
			Path:         DefaultPath,
			WriteTimeout: DefaultWriteTimeout,
		},
		Controls: controls,
		Meter:    MeterConfig{RateHz: meter.DefaultRate, Decay: meter.DefaultDecay},
		Engine:   EngineConfig{Parameters: params},
	}
}

func parametersOf(r *engine.Registry) []ParameterConfig {
	var out []ParameterConfig
	for _, p := range r.Parameters() {
		id := p.Identity()
		pc := ParameterConfig{Name: id.Name, Kind: id.Kind.String()}
		switch param := p.(type) {
		case *engine.FloatParameter:
			props := param.Properties()
			pc.Title, pc.Label = props.Name, props.Label
			pc.Start, pc.End, pc.Skew, pc.Interval = props.Start, props.End, props.Skew, props.Interval
			pc.Default = param.Default()
		case *engine.BoolParameter:
			props := param.Properties()
			pc.Title, pc.Label = props.Name, props.Label
			if param.Default() {
				pc.Default = 1
			}
		case *engine.ChoiceParameter:
			props := param.Properties()
			pc.Title, pc.Label = props.Name, props.Label
			pc.Choices = props.Choices
			pc.Default = float64(param.Default())
		}
		out = append(out, pc)
	}
	return out
}

// Load reads a YAML file over Default. Environment variables referenced as
// ${VAR} or $VAR are expanded before parsing.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is caller-provided configuration
	if err != nil {
		return Config{}, fmt.Errorf("config: load: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML data over Default after environment expansion.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse: %w", err)
	}
	return cfg, nil
}

// Level returns the configured log level.
func (c Config) Level() contracts.LogLevel {
	level, _ := contracts.ParseLogLevel(strings.ToLower(c.LogLevel))
	return level
}

// WriteTimeout returns the parsed transport write timeout, or 0 when unset.
func (c Config) WriteTimeout() time.Duration {
	d, err := time.ParseDuration(c.Transport.WriteTimeout)
	if err != nil {
		return 0
	}
	return d
}

// Validate reports every inconsistency of the configuration at once.
func (c Config) Validate() error {
	var errs error
	add := func(format string, args ...any) {
		errs = multierr.Append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
	}

	if _, ok := contracts.ParseLogLevel(strings.ToLower(c.LogLevel)); !ok {
		add("log_level %q", c.LogLevel)
	}

	if c.Transport.WriteTimeout != "" {
		if d, err := time.ParseDuration(c.Transport.WriteTimeout); err != nil || d <= 0 {
			add("transport.write_timeout %q", c.Transport.WriteTimeout)
		}
	}
	if c.Transport.Path != "" && !strings.HasPrefix(c.Transport.Path, "/") {
		add("transport.path %q must start with /", c.Transport.Path)
	}

	controls := make(map[string]struct{}, len(c.Controls))
	bindings := make(map[MIDIConfig]string)
	for i, ctl := range c.Controls {
		kind, ok := contracts.ParseKind(ctl.Kind)
		if !ok {
			add("controls[%d]: kind %q", i, ctl.Kind)
		}
		if ctl.Name == "" {
			add("controls[%d]: name is required", i)
			continue
		}
		id := contracts.Identity{Kind: kind, Name: ctl.Name}.ChannelName()
		if _, dup := controls[id]; ok && dup {
			add("controls[%d]: duplicate control %s %q", i, kind, ctl.Name)
		}
		controls[id] = struct{}{}

		if ctl.MIDI == nil {
			continue
		}
		if ctl.MIDI.Channel < 0 || ctl.MIDI.Channel > 15 {
			add("controls[%d]: midi.channel %d out of 0-15", i, ctl.MIDI.Channel)
		}
		if ctl.MIDI.CC < 0 || ctl.MIDI.CC > 127 {
			add("controls[%d]: midi.cc %d out of 0-127", i, ctl.MIDI.CC)
		}
		if other, dup := bindings[*ctl.MIDI]; dup {
			add("controls[%d]: midi channel %d cc %d already bound to %q", i, ctl.MIDI.Channel, ctl.MIDI.CC, other)
		}
		bindings[*ctl.MIDI] = ctl.Name
	}

	if c.Meter.RateHz <= 0 || math.IsInf(c.Meter.RateHz, 0) {
		add("meter.rate_hz %v must be > 0", c.Meter.RateHz)
	}
	if c.Meter.Decay < 0 || c.Meter.Decay >= 1 {
		add("meter.decay %v out of [0,1)", c.Meter.Decay)
	}

	if _, err := c.Registry(); err != nil {
		errs = multierr.Append(errs, err)
	}

	return errs
}

// Registry builds the engine parameters. Every invalid parameter is reported.
func (c Config) Registry() (*engine.Registry, error) {
	r := engine.NewRegistry()
	var errs error
	for i, p := range c.Engine.Parameters {
		if err := addParameter(r, p); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%w: engine.parameters[%d]: %w", ErrInvalid, i, err))
		}
	}
	if errs != nil {
		return nil, errs
	}
	return r, nil
}

func addParameter(r *engine.Registry, p ParameterConfig) error {
	kind, ok := contracts.ParseKind(p.Kind)
	if !ok {
		return fmt.Errorf("kind %q", p.Kind)
	}

	var err error
	switch kind {
	case contracts.Continuous:
		// An unset skew is linear; a negative one is rejected by AddFloat.
		skew := p.Skew
		if skew == 0 {
			skew = 1
		}
		_, err = r.AddFloat(p.Name, contracts.CurveProperties{
			Start:          p.Start,
			End:            p.End,
			Skew:           skew,
			Interval:       p.Interval,
			NumSteps:       engine.StepCount(p.Start, p.End, p.Interval),
			Name:           p.Title,
			Label:          p.Label,
			ParameterIndex: -1,
		}, p.Default)
	case contracts.Boolean:
		_, err = r.AddBool(p.Name, contracts.ToggleProperties{
			Name:           p.Title,
			Label:          p.Label,
			ParameterIndex: -1,
		}, p.Default != 0)
	case contracts.Enumerated:
		if len(p.Choices) == 0 {
			return fmt.Errorf("%q: choices are required", p.Name)
		}
		_, err = r.AddChoice(p.Name, contracts.ChoiceProperties{
			Choices:        append([]string(nil), p.Choices...),
			Name:           p.Title,
			Label:          p.Label,
			ParameterIndex: -1,
		}, int(math.Round(p.Default)))
	}
	return err
}
