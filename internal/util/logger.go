// Package util provides logging setup and helpers for virtual serial links.
package util

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// SetupLogger installs a slog default logger writing to stderr and returns it.
// format is "json" or "text"; level is debug, info, warn or error.
func SetupLogger(level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}
	var h slog.Handler
	if strings.EqualFold(format, "json") {
		h = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		h = slog.NewTextHandler(os.Stderr, opts)
	}
	l := slog.New(h)
	slog.SetDefault(l)
	return l
}

// ParseLevel maps a level name to a slog.Level, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// Info logs a printf-style message at info level on the default logger.
func Info(msg string, args ...any) {
	slog.Info(fmt.Sprintf(msg, args...))
}

// Error logs a printf-style message at error level on the default logger.
func Error(msg string, args ...any) {
	slog.Error(fmt.Sprintf(msg, args...))
}
