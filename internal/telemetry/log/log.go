// Package log is a thin facade over github.com/hashicorp/go-hclog, grounded
// on nabbar-golib/logger/hclog.go's adapter pattern: that package adapts its
// own Logger interface onto hclog.Logger so callers that speak one logging
// vocabulary can plug into any hclog-based subsystem. This package runs the
// adaptation the other way — it hands its callers (cmd/pntx-probe and
// internal/config's Watcher; engine.Context takes an hclog.Logger
// directly) a small, stable set of
// leveled calls (Debug/Info/Warn/Error) backed directly by an hclog.Logger,
// so call sites never depend on hclog's fuller surface (Named, With,
// ImpliedArgs, ...) they don't need.
package log

import "github.com/hashicorp/go-hclog"

// Logger is the facade cmd/pntx-probe and internal/config log through.
type Logger struct {
	delegate hclog.Logger
}

// New wraps an existing hclog.Logger.
func New(l hclog.Logger) Logger {
	if l == nil {
		l = hclog.NewNullLogger()
	}
	return Logger{delegate: l}
}

// Named builds a root logger at the given level and name, suitable for
// cmd/pntx-probe and other entry points; library code should prefer New
// with an injected hclog.Logger instead of constructing its own.
func Named(name string, level hclog.Level) Logger {
	return Logger{delegate: hclog.New(&hclog.LoggerOptions{
		Name:  name,
		Level: level,
	})}
}

// Discard returns a Logger whose calls are no-ops and allocate nothing on
// the hot path, for contexts that never want logging overhead.
func Discard() Logger { return Logger{delegate: hclog.NewNullLogger()} }

func (l Logger) Debug(msg string, args ...interface{}) { l.delegate.Debug(msg, args...) }
func (l Logger) Info(msg string, args ...interface{})  { l.delegate.Info(msg, args...) }
func (l Logger) Warn(msg string, args ...interface{})  { l.delegate.Warn(msg, args...) }
func (l Logger) Error(msg string, args ...interface{}) { l.delegate.Error(msg, args...) }

// With returns a Logger that always includes the given key/value pairs,
// e.g. a per-Context logger carrying "origin" and "trans".
func (l Logger) With(args ...interface{}) Logger {
	return Logger{delegate: l.delegate.With(args...)}
}

// HCLog exposes the underlying hclog.Logger for packages (like
// internal/engine.Context) that accept an hclog.Logger directly rather than
// this facade.
func (l Logger) HCLog() hclog.Logger { return l.delegate }
