// Package agentlog wraps log/slog with the per-component field
// convention the rest of this repository logs with. It intentionally
// carries no package-level logger: every component constructs its own
// from a shared handler, so the caller controls lifetime and no
// process-wide mutable state is introduced.
package agentlog

import (
	"io"
	"log/slog"
	"os"
)

// Config controls the shape of the emitted log records.
type Config struct {
	// Level is one of "debug", "info", "warn", "error". Defaults to "info".
	Level string
	// Format is either "text" or "json". Defaults to "text".
	Format string
	// Output defaults to os.Stderr.
	Output io.Writer
}

func (c Config) level() slog.Level {
	switch c.Level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (c Config) output() io.Writer {
	if c.Output != nil {
		return c.Output
	}
	return os.Stderr
}

// NewHandler builds a slog.Handler from the given configuration. Callers
// typically build one handler per process and derive a *Logger per
// component from it with New.
func NewHandler(cfg Config) slog.Handler {
	opts := &slog.HandlerOptions{Level: cfg.level()}

	if cfg.Format == "json" {
		return slog.NewJSONHandler(cfg.output(), opts)
	}

	return slog.NewTextHandler(cfg.output(), opts)
}

// Logger is a thin wrapper around *slog.Logger that pins a component
// name onto every record.
type Logger struct {
	*slog.Logger
}

// New returns a Logger that tags every record with component=name.
func New(h slog.Handler, component string) *Logger {
	return &Logger{slog.New(h).With("component", component)}
}

// WithConn returns a derived logger tagging every record with the
// owning connection id, for use inside per-connection handler code.
func (l *Logger) WithConn(cxnID uint64) *Logger {
	return &Logger{l.Logger.With("cxn_id", cxnID)}
}

// Discard returns a Logger that drops every record; useful in tests that
// do not want to assert on log output.
func Discard() *Logger {
	return New(slog.NewTextHandler(io.Discard, nil), "discard")
}
