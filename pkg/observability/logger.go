package observability

import (
	"context"
	"io"
	"os"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the structured logging capability shared by every backend. Two
// implementations ship with the SDK: the discarding logger (guaranteed no-op)
// and the stdout JSON logger. Additional backends implement the same four
// methods without changing callers.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
}

// Field is a typed key/value pair attached to a log record. The constructors
// below cover a closed set of value kinds, which keeps serialization total:
// no field can fail to encode, so log calls have no error path.
type Field = zap.Field

// Field constructors.
func String(key, val string) Field { return zap.String(key, val) }

func Int(key string, val int) Field { return zap.Int(key, val) }

func Int64(key string, val int64) Field { return zap.Int64(key, val) }

func Float64(key string, val float64) Field { return zap.Float64(key, val) }

func Bool(key string, val bool) Field { return zap.Bool(key, val) }

func Duration(key string, val time.Duration) Field { return zap.Duration(key, val) }

func Time(key string, val time.Time) Field { return zap.Time(key, val) }

func Err(err error) Field { return zap.Error(err) }

// nopLogger discards every record. All methods are guaranteed no-ops with no
// observable side effect, for all inputs.
type nopLogger struct{}

func (nopLogger) Debug(string, ...Field) {}
func (nopLogger) Info(string, ...Field)  {}
func (nopLogger) Warn(string, ...Field)  {}
func (nopLogger) Error(string, ...Field) {}

// NewNopLogger returns the discarding logger.
func NewNopLogger() Logger { return nopLogger{} }

// zapLogger adapts a *zap.Logger to the Logger interface.
type zapLogger struct {
	l *zap.Logger
}

func (z *zapLogger) Debug(msg string, fields ...Field) { z.l.Debug(msg, fields...) }
func (z *zapLogger) Info(msg string, fields ...Field)  { z.l.Info(msg, fields...) }
func (z *zapLogger) Warn(msg string, fields ...Field)  { z.l.Warn(msg, fields...) }
func (z *zapLogger) Error(msg string, fields ...Field) { z.l.Error(msg, fields...) }

// wireEncoderConfig is the encoder for the platform log wire format: one
// compact JSON object per line with "ts" (UTC, second precision), "level"
// (lowercase), and "message", followed by caller-supplied fields. Caller
// fields are appended as-is; there is no collision protection for the three
// reserved keys.
func wireEncoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		MessageKey:     "message",
		NameKey:        zapcore.OmitKey,
		CallerKey:      zapcore.OmitKey,
		FunctionKey:    zapcore.OmitKey,
		StacktraceKey:  zapcore.OmitKey,
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime: func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
			enc.AppendString(t.UTC().Format("2006-01-02T15:04:05Z"))
		},
		EncodeDuration: zapcore.MillisDurationEncoder,
	}
}

// NewJSONLogger returns a Logger that writes one JSON line per call to w,
// in the platform wire format, at or above the given level. Writes go
// straight to w with no intermediate buffering.
func NewJSONLogger(w io.Writer, level string) Logger {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.DebugLevel
	}
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(wireEncoderConfig()),
		zapcore.AddSync(w),
		lvl,
	)
	return &zapLogger{l: zap.New(core)}
}

// stdoutLevel gates the Init-installed stdout logger and allows live level
// changes (see SetLogLevel and the config watcher).
var stdoutLevel = zap.NewAtomicLevelAt(zapcore.DebugLevel)

// newStdoutLogger builds the stdout JSON logger selected by Init when
// EnableLogs is set.
func newStdoutLogger(cfg Config) Logger {
	lvl, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		lvl = zapcore.DebugLevel
	}
	stdoutLevel.SetLevel(lvl)
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(wireEncoderConfig()),
		zapcore.Lock(os.Stdout),
		stdoutLevel,
	)
	return &zapLogger{l: zap.New(core)}
}

// SetLogLevel changes the minimum severity of the stdout logger at runtime.
// Unknown level names are ignored.
func SetLogLevel(level string) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return
	}
	stdoutLevel.SetLevel(lvl)
}

// L returns the active logger. Before Init, and after Init with EnableLogs
// unset, this is the discarding logger.
func L() Logger {
	if l := activeLogger(); l != nil {
		return l
	}
	return nopLogger{}
}

// C returns the active logger enriched with the service identity and, when
// ctx carries a valid span, the trace and span IDs. The discarding logger is
// returned unchanged.
func C(ctx context.Context) Logger {
	base := L()
	zl, ok := base.(*zapLogger)
	if !ok {
		return base
	}
	cfg := CurrentConfig()
	l := zl.l.With(
		String("service", cfg.ServiceName),
		String("env", cfg.Environment),
	)
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		l = l.With(
			String("trace_id", sc.TraceID().String()),
			String("span_id", sc.SpanID().String()),
		)
	}
	return &zapLogger{l: l}
}
