package animnode

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/gogpu/gg"
)

// nopHandler is a slog.Handler that discards all records. Enabled returns
// false so callers skip attribute formatting.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

func newNopLogger() *slog.Logger { return slog.New(nopHandler{}) }

// loggerPtr stores the active logger. Accessed atomically so that
// SetLogger can race with logging from the host's render thread.
var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(newNopLogger())
}

// SetLogger configures the logger for animnode and all its sub-packages.
// By default nothing is logged. Pass nil to restore the silent default.
//
// The logger is also handed to gg so rasterizer and accelerator diagnostics
// end up in the same place.
//
// Log levels used by animnode:
//   - [slog.LevelDebug]: per-frame diagnostics (applied inputs, fence values)
//   - [slog.LevelInfo]: lifecycle events (adapter selected, asset loaded, ports reconciled)
//   - [slog.LevelWarn]: non-fatal issues (destroying a superseded resource failed)
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = newNopLogger()
	}
	loggerPtr.Store(l)
	gg.SetLogger(l)
}

// Logger returns the current logger. Sub-packages call this so they share a
// single configuration without import cycles.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}
