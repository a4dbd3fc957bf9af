package zaplogger

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/Zhima-Mochi/kitchenledger/internal/observability"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	// SystemTraceID tags log lines emitted outside any request or span.
	SystemTraceID = "system"
	SystemSpanID  = "system"
)

type Options struct {
	Level string // debug, info, warn, error; defaults to info
	// Output is a zap sink path; defaults to stdout. The MCP mode uses
	// stderr because stdout carries the protocol.
	Output string
	// File duplicates output to a local file when set.
	File  string
	Fixed []observability.Field
}

type Logger struct{ l *zap.Logger }

var _ observability.Logger = (*Logger)(nil)

// New builds a JSON production logger writing to stdout unless Output says otherwise.
func New(opts Options) (*Logger, error) {
	out := opts.Output
	if out == "" {
		out = "stdout"
	}
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{out}
	cfg.ErrorOutputPaths = []string{out}

	if opts.Level != "" {
		lvl, err := zapcore.ParseLevel(opts.Level)
		if err != nil {
			return nil, fmt.Errorf("parse log level: %w", err)
		}
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}

	if opts.File != "" {
		if err := ensureLogFile(opts.File); err != nil {
			return nil, fmt.Errorf("prepare log file: %w", err)
		}
		cfg.OutputPaths = append(cfg.OutputPaths, opts.File)
		cfg.ErrorOutputPaths = append(cfg.ErrorOutputPaths, opts.File)
	}

	// Ensure encoder keys align with structured logging requirements.
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.MessageKey = "msg"
	cfg.EncoderConfig.EncodeTime = zapcore.RFC3339NanoTimeEncoder
	cfg.EncoderConfig.EncodeLevel = zapcore.LowercaseLevelEncoder

	cfg.InitialFields = map[string]any{}
	for _, f := range opts.Fixed {
		cfg.InitialFields[f.Key] = f.Value
	}

	l, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return &Logger{l: l}, nil
}

// Wrap adapts an existing zap logger, e.g. zaptest or zap.NewNop in tests.
func Wrap(l *zap.Logger) *Logger {
	if l == nil {
		l = zap.NewNop()
	}
	return &Logger{l: l}
}

func (z *Logger) With(fields ...observability.Field) observability.Logger {
	if len(fields) == 0 {
		return &Logger{l: z.l}
	}
	return &Logger{l: z.l.With(toZapFields(fields)...)}
}

// System returns a logger tagged with the placeholder trace ids used for
// lifecycle logs (startup, shutdown, background loops).
func (z *Logger) System() observability.Logger {
	return z.With(
		observability.F("trace_id", SystemTraceID),
		observability.F("span_id", SystemSpanID),
	)
}

func (z *Logger) Debug(msg string, fields ...observability.Field) {
	z.l.Debug(msg, toZapFields(fields)...)
}
func (z *Logger) Info(msg string, fields ...observability.Field) {
	z.l.Info(msg, toZapFields(fields)...)
}
func (z *Logger) Warn(msg string, fields ...observability.Field) {
	z.l.Warn(msg, toZapFields(fields)...)
}
func (z *Logger) Error(msg string, fields ...observability.Field) {
	z.l.Error(msg, toZapFields(fields)...)
}

// Zap exposes the underlying logger for libraries that want one directly.
func (z *Logger) Zap() *zap.Logger { return z.l }

// Sync flushes any buffered log entries. Safe to call on shutdown.
func (z *Logger) Sync() error {
	return z.l.Sync()
}

func toZapFields(fs []observability.Field) []zap.Field {
	out := make([]zap.Field, 0, len(fs))
	for _, f := range fs {
		if err, ok := f.Value.(error); ok {
			out = append(out, zap.NamedError(f.Key, err))
			continue
		}
		out = append(out, zap.Any(f.Key, f.Value))
	}
	return out
}

func ensureLogFile(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	if _, err := os.Stat(path); err != nil {
		f, createErr := os.OpenFile(path, os.O_CREATE, 0o644)
		if createErr != nil {
			return createErr
		}
		_ = f.Close()
	}
	return nil
}
