// Package logger provides structured logging setup using slog.
package logger

import (
	"io"
	"log/slog"
	"os"
)

// New creates a structured JSON logger. It writes to stderr because the
// live display owns stdout.
func New(debug bool) *slog.Logger {
	return NewWithWriter(os.Stderr, debug)
}

// NewWithWriter creates a logger against an explicit writer.
func NewWithWriter(w io.Writer, debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}

// WithWorkflow returns a logger with the workflow's identity attached to
// every record.
func WithWorkflow(base *slog.Logger, label, uuid string) *slog.Logger {
	return base.With("workflow", label, "wf_uuid", uuid)
}
