// Package obs wires the ambient observability stack (structured
// logging, tracing, metrics) the way libs/go/core does for the rest of
// the swarmguard fleet, adapted here for the solver's scheduler/worker/
// server roles.
package obs

import (
	"log/slog"
	"os"
	"strings"
)

// InitLogging configures a global slog logger for the given role
// ("scheduler", "worker-2", "server-0", ...). JSON if format == "json",
// text otherwise.
func InitLogging(role, format, level string) *slog.Logger {
	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: levelFromString(level)}
	if strings.EqualFold(format, "json") {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler).With("role", role)
	slog.SetDefault(logger)
	return logger
}

func levelFromString(level string) slog.Leveler {
	switch strings.ToLower(level) {
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
