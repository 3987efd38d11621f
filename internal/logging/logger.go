// Package logging defines the structured logger used by the aggregation
// pipeline.
//
// Logger follows the log/slog convention of alternating key/value attrs:
//
//	log.Debug("parsed fragment", "id", frag.ID, "path", frag.Path)
//
// Use New for CLI output and Nop in tests.
package logging

import (
	"context"
	"io"
	"log/slog"
)

// Logger is the minimal structured logging surface used across packages.
type Logger interface {
	Debug(msg string, attrs ...any)
	Info(msg string, attrs ...any)
	Warn(msg string, attrs ...any)
	Error(msg string, attrs ...any)
	// With returns a Logger that prepends attrs to every record.
	With(attrs ...any) Logger
}

// SlogAdapter adapts a *slog.Logger to Logger.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter wraps l. A nil l uses slog.Default().
func NewSlogAdapter(l *slog.Logger) *SlogAdapter {
	if l == nil {
		l = slog.Default()
	}
	return &SlogAdapter{logger: l}
}

func (a *SlogAdapter) Debug(msg string, attrs ...any) { a.logger.Debug(msg, attrs...) }
func (a *SlogAdapter) Info(msg string, attrs ...any)  { a.logger.Info(msg, attrs...) }
func (a *SlogAdapter) Warn(msg string, attrs ...any)  { a.logger.Warn(msg, attrs...) }
func (a *SlogAdapter) Error(msg string, attrs ...any) { a.logger.Error(msg, attrs...) }

func (a *SlogAdapter) With(attrs ...any) Logger {
	return &SlogAdapter{logger: a.logger.With(attrs...)}
}

// New returns a text logger writing to w. Verbose enables debug records;
// otherwise only warnings and errors are written so build logs stay quiet.
func New(w io.Writer, verbose bool) Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	h := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	return NewSlogAdapter(slog.New(h))
}

// Nop returns a Logger that discards everything.
func Nop() Logger {
	return NewSlogAdapter(slog.New(discardHandler{}))
}

// OrNop returns l, or a no-op logger when l is nil.
func OrNop(l Logger) Logger {
	if l == nil {
		return Nop()
	}
	return l
}

type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (d discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return d }
func (d discardHandler) WithGroup(string) slog.Handler           { return d }
