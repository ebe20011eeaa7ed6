// Package simlog sets up the slog.Logger shared by the simulator's
// packages.
package simlog

import (
	"io"
	"log/slog"
	"os"
)

// Setup installs a slog.TextHandler as the default logger, writing to
// w (os.Stderr when nil) at debug level if debug is true, info level
// otherwise.
func Setup(w io.Writer, debug bool) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}
