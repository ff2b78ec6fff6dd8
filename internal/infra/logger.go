package infra

import (
	"log/slog"
	"os"
	"strings"
)

// NewLogger builds the application slog logger from the configured level.
// Callers are expected to slog.SetDefault the result once at bootstrap.
func NewLogger(cfg *Config) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Logging.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	return slog.New(handler).With(
		slog.String("app", cfg.App.Name),
		slog.String("mode", cfg.Trading.Mode),
	)
}
