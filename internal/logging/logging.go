// Package logging is the leveled logger shared by every cc3200tool
// package. It wraps log/slog behind the same Debug/Info/Warn/Error shape
// dittofs's internal/logger exposes, trimmed to a single process writing
// to one terminal: no trace context, no JSON handler.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
)

var (
	mu      sync.RWMutex
	output  io.Writer = os.Stderr
	level   atomic.Int32
	slogger atomic.Pointer[slog.Logger]
)

func init() {
	level.Store(int32(slog.LevelInfo))
	reconfigure()
}

// SetLevel sets the minimum level that will be emitted: "debug", "info",
// "warn", or "error". Unknown values are ignored, matching cc.py's
// logging.basicConfig default of INFO.
func SetLevel(name string) {
	var l slog.Level
	switch name {
	case "debug":
		l = slog.LevelDebug
	case "info":
		l = slog.LevelInfo
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		return
	}
	level.Store(int32(l))
	reconfigure()
}

// SetOutput redirects log output, primarily for tests.
func SetOutput(w io.Writer) {
	mu.Lock()
	output = w
	mu.Unlock()
	reconfigure()
}

func reconfigure() {
	mu.RLock()
	w := output
	mu.RUnlock()

	lv := new(slog.LevelVar)
	lv.Set(slog.Level(level.Load()))
	h := slog.NewTextHandler(w, &slog.HandlerOptions{Level: lv})
	slogger.Store(slog.New(h))
}

func get() *slog.Logger { return slogger.Load() }

// DebugEnabled reports whether debug-level messages are currently
// emitted, so callers can skip building expensive debug-only payloads
// (e.g. a hex dump of a wire frame) when nobody will see them.
func DebugEnabled() bool {
	return slog.Level(level.Load()) <= slog.LevelDebug
}

func Debug(msg string, args ...any) { get().Debug(msg, args...) }
func Info(msg string, args ...any)  { get().Info(msg, args...) }
func Warn(msg string, args ...any)  { get().Warn(msg, args...) }
func Error(msg string, args ...any) { get().Error(msg, args...) }

// Debugf/Infof/Warnf/Errorf are printf-style convenience wrappers, used
// where a single formatted message reads more naturally than key/value
// pairs (progress lines, status dumps) — matching cc.py's log.info("...%s...", x)
// call sites more directly than structured args would.
func Debugf(format string, v ...any) { get().Debug(fmt.Sprintf(format, v...)) }
func Infof(format string, v ...any)  { get().Info(fmt.Sprintf(format, v...)) }
func Warnf(format string, v ...any)  { get().Warn(fmt.Sprintf(format, v...)) }
func Errorf(format string, v ...any) { get().Error(fmt.Sprintf(format, v...)) }
