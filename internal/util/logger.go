// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package util

import (
	"io"
	"log/slog"
	"os"
)

// DebugEnv enables debug logging when set to any non-empty value.
const DebugEnv = "ICXSIGN_DEBUG"

// Logger is the process-wide logger. It writes to stderr so that command
// output on stdout stays machine readable.
var Logger = newLogger(os.Stderr, slog.LevelInfo)

// InitLogger initializes the global logger with appropriate log level.
// Set ICXSIGN_DEBUG=1 to enable debug logging.
func InitLogger() {
	level := slog.LevelInfo
	if os.Getenv(DebugEnv) != "" {
		level = slog.LevelDebug
	}
	Logger = newLogger(os.Stderr, level)
}

// SetLogOutput redirects the global logger, keeping the given level.
func SetLogOutput(w io.Writer, level slog.Level) {
	Logger = newLogger(w, level)
}

func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
		// Drop time and level for cleaner CLI output
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey || a.Key == slog.LevelKey {
				return slog.Attr{}
			}
			return a
		},
	})
	return slog.New(handler)
}

// Debug logs a debug message (only shown when ICXSIGN_DEBUG is set)
func Debug(msg string, args ...any) {
	Logger.Debug(msg, args...)
}
