// Package log is the structured logging layer used by every long-lived
// smartvestor component. It wraps github.com/luxfi/log the same way the
// upstream evm client wraps it for its chain loggers, adding terminal and
// JSON handlers and file rotation via lumberjack.
package log

import (
	"context"
	"io"
	"log/slog"
	"os"

	luxlog "github.com/luxfi/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger is the interface every component depends on; never the
// concrete slog type, so call sites stay decoupled from the handler chain.
type Logger = luxlog.Logger

const (
	LevelTrace slog.Level = -8
	LevelDebug            = slog.LevelDebug
	LevelInfo             = slog.LevelInfo
	LevelWarn             = slog.LevelWarn
	LevelError            = slog.LevelError
	LevelCrit  slog.Level = 12
)

var (
	New  = luxlog.New
	Root = luxlog.Root
)

func Trace(msg string, ctx ...any) { luxlog.Root().Trace(msg, ctx...) }
func Debug(msg string, ctx ...any) { luxlog.Root().Debug(msg, ctx...) }
func Info(msg string, ctx ...any)  { luxlog.Root().Info(msg, ctx...) }
func Warn(msg string, ctx ...any)  { luxlog.Root().Warn(msg, ctx...) }
func Error(msg string, ctx ...any) { luxlog.Root().Error(msg, ctx...) }
func Crit(msg string, ctx ...any)  { luxlog.Root().Crit(msg, ctx...) }

func Enabled(ctx context.Context, level slog.Level) bool {
	return luxlog.Root().Enabled(ctx, level)
}

// SetDefault installs l as the process-wide default logger.
func SetDefault(l Logger) {
	luxlog.SetDefault(l)
}

// NewLogger wraps an slog.Handler as a Logger.
func NewLogger(h slog.Handler) Logger {
	return luxlog.NewLogger(h)
}

// LvlFromString parses a level name ("info", "debug", ...).
func LvlFromString(s string) (slog.Level, error) {
	level, err := luxlog.ToLevel(s)
	return slog.Level(level), err
}

// NewTerminalHandlerWithLevel returns a human-readable handler gated at level.
// useColor wraps it in colorHandler, which adds no ANSI color codes.
func NewTerminalHandlerWithLevel(w io.Writer, level *slog.LevelVar, useColor bool) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}
	if useColor {
		return &colorHandler{inner: slog.NewTextHandler(w, opts)}
	}
	return slog.NewTextHandler(w, opts)
}

// JSONHandlerWithLevel returns a newline-delimited JSON handler gated at level.
func JSONHandlerWithLevel(w io.Writer, level *slog.LevelVar) slog.Handler {
	return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
}

// RotatingFileHandler returns a JSON handler that rotates the underlying
// file with lumberjack once it exceeds maxSizeMB.
func RotatingFileHandler(path string, maxSizeMB, maxBackups, maxAgeDays int, level *slog.LevelVar) slog.Handler {
	lj := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
		MaxAge:     maxAgeDays,
		Compress:   true,
	}
	return JSONHandlerWithLevel(lj, level)
}

// DiscardHandler discards all records; used in tests.
func DiscardHandler() slog.Handler {
	return slog.NewTextHandler(io.Discard, nil)
}

// NewVerbosityHandler wraps inner in a GlogHandler gated at level, with an
// optional vmodule ruleset (glog's "pkg=level,pkg2=level" syntax) that is
// validated and stored. Records are filtered by level only: the stored
// ruleset does not give any package a different verbosity.
func NewVerbosityHandler(inner slog.Handler, level slog.Level, vmodule string) (*GlogHandler, error) {
	h := NewGlogHandler(inner)
	h.Verbosity(level)
	if vmodule != "" {
		if err := h.Vmodule(vmodule); err != nil {
			return nil, err
		}
	}
	return h, nil
}

// colorHandler is a pass-through wrapper around slog.TextHandler; it adds
// no ANSI color codes to the records it forwards.
type colorHandler struct {
	inner slog.Handler
}

func (h *colorHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *colorHandler) Handle(ctx context.Context, r slog.Record) error {
	return h.inner.Handle(ctx, r)
}

func (h *colorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &colorHandler{inner: h.inner.WithAttrs(attrs)}
}

func (h *colorHandler) WithGroup(name string) slog.Handler {
	return &colorHandler{inner: h.inner.WithGroup(name)}
}

// Stderr is the conventional destination for process diagnostics; kept as a
// var so tests can redirect it.
var Stderr io.Writer = os.Stderr
