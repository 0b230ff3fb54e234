package logging

import (
	"log/slog"
	"os"
	"strings"
)

var (
	level  slog.LevelVar
	logger *slog.Logger
)

// Init initializes the global structured logger at the given level.
// Unknown level strings fall back to info.
func Init(lvl string) {
	level.Set(parseLevel(lvl))
	if logger == nil {
		handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: &level,
		})
		logger = slog.New(handler)
		slog.SetDefault(logger)
	}
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Logger returns the global logger instance.
func Logger() *slog.Logger {
	if logger == nil {
		Init("info")
	}
	return logger
}

// Debug logs a debug message.
func Debug(msg string, args ...any) {
	Logger().Debug(msg, args...)
}

// Info logs an info message.
func Info(msg string, args ...any) {
	Logger().Info(msg, args...)
}

// Warn logs a warning message.
func Warn(msg string, args ...any) {
	Logger().Warn(msg, args...)
}

// Error logs an error message.
func Error(msg string, args ...any) {
	Logger().Error(msg, args...)
}
