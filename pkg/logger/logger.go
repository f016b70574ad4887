// Package logger wraps log/slog with leveled structured logging,
// dynamic level changes, and trace correlation fields.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"go.opentelemetry.io/otel/trace"
)

// Level is the severity threshold of a logger.
type Level int

const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

var levelNames = map[Level]string{
	DebugLevel: "debug",
	InfoLevel:  "info",
	WarnLevel:  "warn",
	ErrorLevel: "error",
}

func (l Level) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return "unknown"
}

var parseNames = map[string]Level{
	"debug":   DebugLevel,
	"info":    InfoLevel,
	"warn":    WarnLevel,
	"warning": WarnLevel,
	"error":   ErrorLevel,
}

// ParseLevel maps a level name to a Level, ignoring case. Unknown
// names fall back to InfoLevel so a typo in configuration never
// silences the log.
func ParseLevel(s string) Level {
	if lvl, ok := parseNames[strings.ToLower(s)]; ok {
		return lvl
	}
	return InfoLevel
}

// Config selects the level, encoding and destination of a logger.
type Config struct {
	Level  Level
	Format string // "json" or "text"
	Output string // "stdout", "stderr", or a file path
}

// Logger is the logging interface used throughout sigmux.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)

	DebugContext(ctx context.Context, msg string, args ...any)
	InfoContext(ctx context.Context, msg string, args ...any)
	WarnContext(ctx context.Context, msg string, args ...any)
	ErrorContext(ctx context.Context, msg string, args ...any)

	With(args ...any) Logger
	WithContext(ctx context.Context) context.Context

	SetLevel(level Level)
	GetLevel() Level

	// Close releases the output sink when the logger owns one, such as
	// a log file. Loggers on stdout/stderr close as a no-op.
	Close() error
}

// slogLogger adapts *slog.Logger to the Logger interface. The level
// var is shared with derived loggers so SetLevel affects all of them.
type slogLogger struct {
	sl    *slog.Logger
	level *slog.LevelVar
	sink  io.Closer
}

// New builds a Logger from cfg. A nil cfg yields an info-level JSON
// logger on stdout.
func New(cfg *Config) Logger {
	if cfg == nil {
		cfg = &Config{Level: InfoLevel, Format: "json", Output: "stdout"}
	}

	level := new(slog.LevelVar)
	level.Set(toSlogLevel(cfg.Level))

	w, sink := openSink(cfg.Output)
	opts := &slog.HandlerOptions{
		Level:       level,
		AddSource:   true,
		ReplaceAttr: renameMessageKey,
	}

	var h slog.Handler
	switch cfg.Format {
	case "text":
		h = slog.NewTextHandler(w, opts)
	default:
		h = slog.NewJSONHandler(w, opts)
	}

	return &slogLogger{sl: slog.New(h), level: level, sink: sink}
}

// Discard returns a logger that drops everything. Handy for tests and
// for components that accept a Logger but run without one.
func Discard() Logger {
	level := new(slog.LevelVar)
	level.Set(slog.LevelError + 1)
	return &slogLogger{
		sl:    slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: level})),
		level: level,
	}
}

// openSink resolves an output name to a writer. File outputs are
// opened in append mode; on open failure the logger falls back to
// stdout rather than failing startup.
func openSink(output string) (io.Writer, io.Closer) {
	switch output {
	case "", "stdout":
		return os.Stdout, nil
	case "stderr":
		return os.Stderr, nil
	}
	f, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return os.Stdout, nil
	}
	return f, f
}

func toSlogLevel(l Level) slog.Level {
	switch l {
	case DebugLevel:
		return slog.LevelDebug
	case WarnLevel:
		return slog.LevelWarn
	case ErrorLevel:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func fromSlogLevel(l slog.Level) Level {
	switch {
	case l <= slog.LevelDebug:
		return DebugLevel
	case l <= slog.LevelInfo:
		return InfoLevel
	case l <= slog.LevelWarn:
		return WarnLevel
	default:
		return ErrorLevel
	}
}

// renameMessageKey emits the log message under "message" instead of
// slog's default "msg", matching the field name our log pipeline
// indexes on.
func renameMessageKey(groups []string, a slog.Attr) slog.Attr {
	if a.Key == slog.MessageKey && len(groups) == 0 {
		a.Key = "message"
	}
	return a
}

func (l *slogLogger) Debug(msg string, args ...any) { l.sl.Debug(msg, args...) }
func (l *slogLogger) Info(msg string, args ...any)  { l.sl.Info(msg, args...) }
func (l *slogLogger) Warn(msg string, args ...any)  { l.sl.Warn(msg, args...) }
func (l *slogLogger) Error(msg string, args ...any) { l.sl.Error(msg, args...) }

func (l *slogLogger) DebugContext(ctx context.Context, msg string, args ...any) {
	l.sl.DebugContext(ctx, msg, append(args, traceFields(ctx)...)...)
}

func (l *slogLogger) InfoContext(ctx context.Context, msg string, args ...any) {
	l.sl.InfoContext(ctx, msg, append(args, traceFields(ctx)...)...)
}

func (l *slogLogger) WarnContext(ctx context.Context, msg string, args ...any) {
	l.sl.WarnContext(ctx, msg, append(args, traceFields(ctx)...)...)
}

func (l *slogLogger) ErrorContext(ctx context.Context, msg string, args ...any) {
	l.sl.ErrorContext(ctx, msg, append(args, traceFields(ctx)...)...)
}

// traceFields returns trace_id and span_id attrs when ctx carries a
// valid span, so records can be joined with traces.
func traceFields(ctx context.Context) []any {
	if ctx == nil {
		return nil
	}
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return nil
	}
	return []any{
		"trace_id", sc.TraceID().String(),
		"span_id", sc.SpanID().String(),
	}
}

// With returns a logger that adds args to every record. The derived
// logger shares the level var but does not own the sink.
func (l *slogLogger) With(args ...any) Logger {
	return &slogLogger{sl: l.sl.With(args...), level: l.level}
}

// WithContext stores the logger in ctx for FromContext.
func (l *slogLogger) WithContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

func (l *slogLogger) SetLevel(level Level) {
	l.level.Set(toSlogLevel(level))
}

func (l *slogLogger) GetLevel() Level {
	return fromSlogLevel(l.level.Level())
}

func (l *slogLogger) Close() error {
	if l.sink != nil {
		return l.sink.Close()
	}
	return nil
}

type ctxKey struct{}

// FromContext returns the logger stored by WithContext, or the global
// logger when the context carries none.
func FromContext(ctx context.Context) Logger {
	if l, ok := ctx.Value(ctxKey{}).(Logger); ok {
		return l
	}
	return Global()
}

var (
	globalMu sync.RWMutex
	global   Logger
)

func init() {
	global = New(&Config{Level: InfoLevel, Format: "text", Output: "stdout"})
}

// Global returns the process-wide logger.
func Global() Logger {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return global
}

// SetGlobal replaces the process-wide logger. Nil is ignored so a
// failed construction cannot knock out logging entirely.
func SetGlobal(l Logger) {
	if l == nil {
		return
	}
	globalMu.Lock()
	global = l
	globalMu.Unlock()
}

// SetLevel adjusts the level of the process-wide logger.
func SetLevel(level Level) {
	Global().SetLevel(level)
}

// Package-level helpers that log through the global logger.

func Debug(msg string, args ...any) { Global().Debug(msg, args...) }
func Info(msg string, args ...any)  { Global().Info(msg, args...) }
func Warn(msg string, args ...any)  { Global().Warn(msg, args...) }
func Error(msg string, args ...any) { Global().Error(msg, args...) }

func DebugContext(ctx context.Context, msg string, args ...any) {
	Global().DebugContext(ctx, msg, args...)
}

func InfoContext(ctx context.Context, msg string, args ...any) {
	Global().InfoContext(ctx, msg, args...)
}

func WarnContext(ctx context.Context, msg string, args ...any) {
	Global().WarnContext(ctx, msg, args...)
}

func ErrorContext(ctx context.Context, msg string, args ...any) {
	Global().ErrorContext(ctx, msg, args...)
}
