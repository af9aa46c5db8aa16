// Package diag provides a minimal diagnostic-logging interface for
// conditions that are reported but not treated as operation failures:
// a degraded HNSW graph after an insert or delete, or a hash-chain that
// looks corrupted during lookup.
package diag

import (
	"context"
	"log/slog"
)

// Logger receives diagnostics that do not fail the calling operation.
type Logger interface {
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// slogLogger adapts an [slog.Logger] to [Logger], prefixing every message
// with the reporting package so logs stay identifiable once merged into
// an application's own log stream.
type slogLogger struct {
	l    *slog.Logger
	name string
}

// New wraps l as a [Logger] for component name (e.g. "cvec/hnsw"). If l is
// nil, slog's default logger is used.
func New(name string, l *slog.Logger) Logger {
	if l == nil {
		l = slog.Default()
	}
	return &slogLogger{l: l, name: name}
}

func (s *slogLogger) Warn(msg string, args ...any) {
	s.l.WarnContext(context.Background(), s.name+": "+msg, args...)
}

func (s *slogLogger) Error(msg string, args ...any) {
	s.l.ErrorContext(context.Background(), s.name+": "+msg, args...)
}

// Discard is a [Logger] that drops everything. Used as the default when a
// caller does not supply one, so the store never forces logging on a
// consumer that doesn't want it.
var Discard Logger = discard{}

type discard struct{}

func (discard) Warn(string, ...any)  {}
func (discard) Error(string, ...any) {}
