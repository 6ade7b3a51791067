// Package logger provides structured slog logging for the Sentinel agents.
// Every agent process logs with an "agent" attribute so interleaved output
// from independently scheduled runs stays attributable.
package logger

import (
	"log/slog"
	"os"
	"strings"
)

// New returns a logger writing to stderr. Text handler by default; JSON
// when LOG_JSON=1 (for aggregation). Level comes from the config's
// log_level string; unknown values fall back to info.
func New(level string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}
	if os.Getenv("LOG_JSON") == "1" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// ForAgent returns a child logger tagged with the agent's name.
func ForAgent(base *slog.Logger, agent string) *slog.Logger {
	if base == nil {
		base = slog.Default()
	}
	return base.With("agent", agent)
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
