package logger

import (
	"log/slog"
	"os"
)

// Setup configures the global logger for the given environment and returns
// it. Production gets JSON output for machine parsing; everything else gets
// text. Debug lowers the level regardless of environment.
func Setup(env string, debug bool) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}
	if debug {
		opts.Level = slog.LevelDebug
	}

	var handler slog.Handler
	if env == "production" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		if !debug {
			opts.Level = slog.LevelDebug
		}
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)

	return logger
}
