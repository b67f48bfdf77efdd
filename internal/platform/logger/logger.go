package logger

import (
	"log/slog"
	"os"
)

// New returns the process logger. LOG_LEVEL=debug enables debug output;
// anything else runs at info.
func New() *slog.Logger {
	level := slog.LevelInfo
	if os.Getenv("LOG_LEVEL") == "debug" {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}
