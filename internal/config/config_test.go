package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/leandrodaf/paramrelay/sdk/contracts"
	"github.com/leandrodaf/paramrelay/sdk/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, contracts.InfoLevel, cfg.Level())
	assert.Equal(t, 5*time.Second, cfg.WriteTimeout())
	assert.Len(t, cfg.Controls, 7)
	assert.Equal(t, ControlConfig{Kind: "enumerated", Name: "focus"}, cfg.Controls[6])

	r, err := cfg.Registry()
	require.NoError(t, err)
	drive, err := r.Float("drive")
	require.NoError(t, err)
	assert.Equal(t, 0.5, drive.Value())
	assert.Equal(t, "Drive", drive.Properties().Name)
	focus, err := r.Choice("focus")
	require.NoError(t, err)
	assert.Equal(t, 1, focus.Index())
}

func TestLoad_ExpandsEnvironment(t *testing.T) {
	t.Setenv("RELAY_HOST", "studio.local")

	cfg, err := Load(filepath.Join("testdata", "relayctl.yaml"))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "ws://studio.local:9000/relay", cfg.Transport.URL)
	assert.Equal(t, DefaultPath, cfg.Transport.Path, "unset fields keep their default")
	assert.Equal(t, 2*time.Second, cfg.WriteTimeout())
	assert.Equal(t, contracts.DebugLevel, cfg.Level())
	assert.Equal(t, 30.0, cfg.Meter.RateHz)
	assert.Equal(t, 0.85, cfg.Meter.Decay)
	assert.Equal(t, &MIDIConfig{Channel: 0, CC: 64}, cfg.Controls[1].MIDI)

	r, err := cfg.Registry()
	require.NoError(t, err)
	gain, err := r.Float("gain")
	require.NoError(t, err)
	assert.Equal(t, -6.0, gain.Value())
	assert.Equal(t, 133, gain.Properties().NumSteps)
	assert.Equal(t, 2.0, gain.Properties().Skew)

	mode, err := r.Choice("mode")
	require.NoError(t, err)
	assert.Equal(t, 2, mode.Index())
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join("testdata", "missing.yaml"))
	assert.Error(t, err)

	_, err = Parse([]byte("controls: {not: a list}"))
	assert.Error(t, err)
}

func TestValidate_ReportsEveryProblem(t *testing.T) {
	cfg, err := Parse([]byte(`
log_level: loud
transport:
  path: relay
  write_timeout: soon
controls:
  - {kind: knob, name: a}
  - {kind: continuous, name: ""}
  - {kind: continuous, name: b, midi: {channel: 16, cc: 1}}
  - {kind: continuous, name: b}
  - {kind: toggle, name: c, midi: {channel: 16, cc: 1}}
meter:
  rate_hz: 0
  decay: 1
engine:
  parameters:
    - {name: x, kind: continuous, skew: -1}
    - {name: y, kind: enumerated}
`))
	require.NoError(t, err)

	err = cfg.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalid)
	// log level, timeout, path, kind, name, channel, duplicate, channel, binding,
	// rate, decay and both parameters.
	assert.Len(t, multierr.Errors(err), 13)
}

func TestRegistry_SkewDefaultsToLinear(t *testing.T) {
	cfg := Default()
	cfg.Engine.Parameters = []ParameterConfig{{Name: "p", Kind: "continuous", End: 1}}

	r, err := cfg.Registry()
	require.NoError(t, err)
	p, err := r.Float("p")
	require.NoError(t, err)
	assert.Equal(t, 1.0, p.Properties().Skew)
	assert.Zero(t, p.Properties().NumSteps)
}

func TestRegistry_RejectsNegativeSkew(t *testing.T) {
	cfg := Default()
	cfg.Engine.Parameters = []ParameterConfig{{Name: "p", Kind: "continuous", End: 1, Skew: -2}}

	_, err := cfg.Registry()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalid)
	assert.ErrorIs(t, err, engine.ErrInvalidParameter)
}
