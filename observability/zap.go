package observability

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ZapLogger adapts a zap.Logger to the Logger interface.
type ZapLogger struct {
	l *zap.Logger
}

var encoderConfig = zapcore.EncoderConfig{
	TimeKey:        "ts",
	LevelKey:       "lvl",
	MessageKey:     "message",
	LineEnding:     zapcore.DefaultLineEnding,
	EncodeLevel:    zapcore.CapitalLevelEncoder,
	EncodeTime:     zapcore.RFC3339TimeEncoder,
	EncodeDuration: zapcore.SecondsDurationEncoder,
}

// NewZapLogger builds a console logger writing to stderr at the given level.
// Unrecognized levels default to info.
func NewZapLogger(level string) *ZapLogger {
	zl := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	switch level {
	case "debug":
		zl.SetLevel(zapcore.DebugLevel)
	case "warn":
		zl.SetLevel(zapcore.WarnLevel)
	case "error":
		zl.SetLevel(zapcore.ErrorLevel)
	}
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderConfig),
		zapcore.AddSync(os.Stderr),
		zl,
	)
	return &ZapLogger{l: zap.New(core)}
}

// WrapZap adapts an existing zap logger.
func WrapZap(l *zap.Logger) *ZapLogger { return &ZapLogger{l: l} }

func (z *ZapLogger) Debug(msg string, fields ...Field) { z.l.Debug(msg, zapFields(fields)...) }
func (z *ZapLogger) Info(msg string, fields ...Field)  { z.l.Info(msg, zapFields(fields)...) }
func (z *ZapLogger) Warn(msg string, fields ...Field)  { z.l.Warn(msg, zapFields(fields)...) }
func (z *ZapLogger) Error(msg string, fields ...Field) { z.l.Error(msg, zapFields(fields)...) }

func (z *ZapLogger) With(fields ...Field) Logger {
	return &ZapLogger{l: z.l.With(zapFields(fields)...)}
}

func zapFields(fields []Field) []zap.Field {
	out := make([]zap.Field, 0, len(fields))
	for _, f := range fields {
		switch v := f.Value().(type) {
		case string:
			out = append(out, zap.String(f.Key(), v))
		case int:
			out = append(out, zap.Int(f.Key(), v))
		case int64:
			out = append(out, zap.Int64(f.Key(), v))
		case float64:
			out = append(out, zap.Float64(f.Key(), v))
		case error:
			out = append(out, zap.NamedError(f.Key(), v))
		default:
			out = append(out, zap.Any(f.Key(), v))
		}
	}
	return out
}
