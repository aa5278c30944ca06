// Package setup resolves the functional options shared by relays, the engine
// host, the meter broadcaster and the MIDI client.
package setup

import (
	"sync"

	"github.com/leandrodaf/paramrelay/internal/logger"
	"github.com/leandrodaf/paramrelay/sdk/contracts"
)

// DefaultCoreMIDIClientName is the CoreMIDI client name used when none is configured.
const DefaultCoreMIDIClientName = "Param Relay MIDI Client"

type loggerKey struct {
	level contracts.LogLevel
	path  string
}

var (
	sharedMu      sync.Mutex
	sharedLoggers = make(map[loggerKey]contracts.Logger)
)

// sharedLogger returns the logger for a level and destination, building it
// on first use. Every relay of a surface resolving its options without an
// explicit logger ends up on the same encoder and sink.
func sharedLogger(level contracts.LogLevel, path string) (contracts.Logger, error) {
	key := loggerKey{level: level, path: path}

	sharedMu.Lock()
	defer sharedMu.Unlock()

	if l, ok := sharedLoggers[key]; ok {
		return l, nil
	}

	l := logger.NewZapLogger()
	l.SetLevel(level)
	if path != "" {
		if err := l.SetDestination(contracts.FileLog, path); err != nil {
			return nil, err
		}
	}
	sharedLoggers[key] = l
	return l, nil
}

// ApplyDefaultOptions sets default values for ClientOptions if not explicitly provided.
//
// Without WithLogger, the logger is shared by every caller asking for the same
// level and log file. Changing its level or destination affects all of them;
// pass a dedicated logger with WithLogger when that matters.
//
// opts ...contracts.Option: A variadic list of option functions that can modify ClientOptions.
//
// Returns:
//   - contracts.ClientOptions: A structure containing the finalized client options with defaults applied.
//   - error: An error if the log destination could not be opened.
func ApplyDefaultOptions(opts ...contracts.Option) (contracts.ClientOptions, error) {
	options := &contracts.ClientOptions{}
	for _, opt := range opts {
		opt(options)
	}

	// A caller-supplied logger keeps its own level and destination.
	if options.Logger == nil {
		l, err := sharedLogger(options.LogLevel, options.LogFilePath)
		if err != nil {
			return contracts.ClientOptions{}, err
		}
		options.Logger = l
	}

	if options.CoreMIDIConfig == nil {
		options.CoreMIDIConfig = &contracts.CoreMIDIConfig{ClientName: DefaultCoreMIDIClientName}
	}

	return *options, nil
}
