package logger

import (
	"fmt"
	"sync"
	"time"

	"github.com/leandrodaf/paramrelay/sdk/contracts"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// callerSkip hides Info/Debug/... and log from the reported caller.
const callerSkip = 2

// sink is shared by a logger and every child created with With, so level and
// destination changes apply to all of them.
type sink struct {
	mu    sync.RWMutex
	base  *zap.Logger
	level zap.AtomicLevel
}

func (s *sink) current() *zap.Logger {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.base
}

func (s *sink) swap(l *zap.Logger) {
	s.mu.Lock()
	old := s.base
	s.base = l
	s.mu.Unlock()
	_ = old.Sync()
}

// ZapLogger implements contracts.Logger on top of the Uber zap logger.
type ZapLogger struct {
	sink   *sink
	fields []zap.Field
}

// NewZapLogger creates a production JSON logger writing to stderr at InfoLevel.
func NewZapLogger() contracts.Logger {
	level := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	base, err := build(level, "stderr")
	if err != nil {
		base = zap.NewNop()
	}
	return &ZapLogger{sink: &sink{base: base, level: level}}
}

// NewZapLoggerFrom wraps an existing zap logger, for example one from zaptest.
// Level filtering is still applied by the wrapper.
func NewZapLoggerFrom(l *zap.Logger) contracts.Logger {
	return &ZapLogger{sink: &sink{
		base:  l.WithOptions(zap.AddCaller(), zap.AddCallerSkip(callerSkip)),
		level: zap.NewAtomicLevelAt(zapcore.DebugLevel),
	}}
}

// NewNopLogger returns a logger that discards everything.
func NewNopLogger() contracts.Logger {
	return &ZapLogger{sink: &sink{base: zap.NewNop(), level: zap.NewAtomicLevelAt(zapcore.FatalLevel)}}
}

func build(level zap.AtomicLevel, output string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = level
	cfg.OutputPaths = []string{output}
	cfg.ErrorOutputPaths = []string{"stderr"}
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg.Build(zap.AddCallerSkip(callerSkip))
}

// Info logs a message at the INFO level
func (z *ZapLogger) Info(msg string, fields ...contracts.Field) {
	z.log(zapcore.InfoLevel, msg, fields...)
}

// Error logs a message at the ERROR level
func (z *ZapLogger) Error(msg string, fields ...contracts.Field) {
	z.log(zapcore.ErrorLevel, msg, fields...)
}

// Debug logs a message at the DEBUG level
func (z *ZapLogger) Debug(msg string, fields ...contracts.Field) {
	z.log(zapcore.DebugLevel, msg, fields...)
}

// Warn logs a message at the WARN level
func (z *ZapLogger) Warn(msg string, fields ...contracts.Field) {
	z.log(zapcore.WarnLevel, msg, fields...)
}

// Fatal logs a message at the FATAL level and terminates the application
func (z *ZapLogger) Fatal(msg string, fields ...contracts.Field) {
	z.log(zapcore.FatalLevel, msg, fields...)
}

// Field returns a new field builder.
func (z *ZapLogger) Field() contracts.Field {
	return &zapField{}
}

// With returns a child logger sharing level and destination.
func (z *ZapLogger) With(fields ...contracts.Field) contracts.Logger {
	child := make([]zap.Field, 0, len(z.fields)+len(fields))
	child = append(child, z.fields...)
	child = append(child, toZap(fields)...)
	return &ZapLogger{sink: z.sink, fields: child}
}

// SetLevel sets the logging level
func (z *ZapLogger) SetLevel(level contracts.LogLevel) {
	z.sink.level.SetLevel(zapLevel(level))
}

// SetDestination rebuilds the underlying logger to write to stderr or to a file.
func (z *ZapLogger) SetDestination(dest contracts.LogDestination, filePath ...string) error {
	output := "stderr"
	if dest == contracts.FileLog {
		if len(filePath) == 0 || filePath[0] == "" {
			return fmt.Errorf("logger: file destination requires a path")
		}
		output = filePath[0]
	}

	l, err := build(z.sink.level, output)
	if err != nil {
		return fmt.Errorf("logger: set destination %q: %w", output, err)
	}
	z.sink.swap(l)
	return nil
}

func (z *ZapLogger) log(level zapcore.Level, msg string, fields ...contracts.Field) {
	if !z.sink.level.Enabled(level) {
		return
	}

	ce := z.sink.current().Check(level, msg)
	if ce == nil {
		return
	}

	all := make([]zap.Field, 0, len(z.fields)+len(fields))
	all = append(all, z.fields...)
	all = append(all, toZap(fields)...)
	ce.Write(all...)
}

func zapLevel(level contracts.LogLevel) zapcore.Level {
	switch level {
	case contracts.DebugLevel:
		return zapcore.DebugLevel
	case contracts.WarnLevel:
		return zapcore.WarnLevel
	case contracts.ErrorLevel:
		return zapcore.ErrorLevel
	case contracts.FatalLevel:
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

// toZap keeps only fields built by this package.
func toZap(fields []contracts.Field) []zap.Field {
	out := make([]zap.Field, 0, len(fields))
	for _, field := range fields {
		if f, ok := field.(*zapField); ok && f.set {
			out = append(out, f.field)
		}
	}
	return out
}

// zapField implements contracts.Field
type zapField struct {
	field zap.Field
	set   bool
}

func wrap(f zap.Field) contracts.Field {
	return &zapField{field: f, set: true}
}

func (f *zapField) Bool(key string, val bool) contracts.Field {
	return wrap(zap.Bool(key, val))
}

func (f *zapField) Int(key string, val int) contracts.Field {
	return wrap(zap.Int(key, val))
}

func (f *zapField) Float64(key string, val float64) contracts.Field {
	return wrap(zap.Float64(key, val))
}

func (f *zapField) String(key string, val string) contracts.Field {
	return wrap(zap.String(key, val))
}

func (f *zapField) Time(key string, val time.Time) contracts.Field {
	return wrap(zap.Time(key, val))
}

func (f *zapField) Int64(key string, val int64) contracts.Field {
	return wrap(zap.Int64(key, val))
}

func (f *zapField) Error(key string, val error) contracts.Field {
	return wrap(zap.NamedError(key, val))
}

func (f *zapField) Uint64(key string, val uint64) contracts.Field {
	return wrap(zap.Uint64(key, val))
}

func (f *zapField) Uint8(key string, val uint8) contracts.Field {
	return wrap(zap.Uint8(key, val))
}
