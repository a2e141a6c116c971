// Package logging provides the Logger interface used across iso-updater and
// an slog-backed implementation for the CLI.
package logging

import "log/slog"

// Logger provides structured logging for update operations.
// *slog.Logger satisfies this interface.
type Logger interface {
	// Debug logs debug-level messages with optional key-value pairs.
	Debug(msg string, keysAndValues ...any)

	// Info logs info-level messages with optional key-value pairs.
	Info(msg string, keysAndValues ...any)

	// Warn logs warning-level messages with optional key-value pairs.
	Warn(msg string, keysAndValues ...any)

	// Error logs error-level messages with optional key-value pairs.
	Error(msg string, keysAndValues ...any)
}

// noopLogger is a Logger implementation that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(msg string, keysAndValues ...any) {}
func (noopLogger) Info(msg string, keysAndValues ...any)  {}
func (noopLogger) Warn(msg string, keysAndValues ...any)  {}
func (noopLogger) Error(msg string, keysAndValues ...any) {}

// Nop returns a Logger that discards everything.
func Nop() Logger {
	return noopLogger{}
}

// OrNop returns l, or a no-op logger when l is nil.
func OrNop(l Logger) Logger {
	if l == nil {
		return Nop()
	}
	return l
}

// With returns a logger that adds keysAndValues to every record.
// *slog.Logger keeps its own With; other loggers are wrapped.
func With(l Logger, keysAndValues ...any) Logger {
	l = OrNop(l)
	switch v := l.(type) {
	case noopLogger:
		return v
	case *slog.Logger:
		return v.With(keysAndValues...)
	}
	return &withLogger{next: l, attrs: keysAndValues}
}

type withLogger struct {
	next  Logger
	attrs []any
}

func (w *withLogger) Debug(msg string, kv ...any) { w.next.Debug(msg, w.merge(kv)...) }
func (w *withLogger) Info(msg string, kv ...any)  { w.next.Info(msg, w.merge(kv)...) }
func (w *withLogger) Warn(msg string, kv ...any)  { w.next.Warn(msg, w.merge(kv)...) }
func (w *withLogger) Error(msg string, kv ...any) { w.next.Error(msg, w.merge(kv)...) }

func (w *withLogger) merge(kv []any) []any {
	out := make([]any, 0, len(w.attrs)+len(kv))
	out = append(out, w.attrs...)
	return append(out, kv...)
}
