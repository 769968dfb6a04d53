package common

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// nopHandler discards every record. Enabled reports false so callers skip formatting entirely.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(slog.New(nopHandler{}))
}

// SetLogger configures the logger shared by every package of this module.
// By default nothing is logged. Passing nil restores the silent default.
//
// Log levels used:
//   - slog.LevelDebug: cache hits and misses, native object creation
//   - slog.LevelInfo: device lifecycle
//   - slog.LevelWarn: reported diagnostics
//   - slog.LevelError: device loss
//
// Parameters:
//   - l: the logger to use, or nil to disable logging
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.New(nopHandler{})
	}
	loggerPtr.Store(l)
}

// Logger returns the current shared logger.
//
// Returns:
//   - *slog.Logger: the active logger, never nil
func Logger() *slog.Logger {
	return loggerPtr.Load()
}
