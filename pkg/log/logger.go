package log

import (
	"log/slog"
	"os"
)

// Levels maps configuration strings to slog levels
var Levels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

// New constructs a JSON slog.Logger preconfigured at info level
func New(service, env, version string) *slog.Logger {
	return NewWithLevel(service, env, version, slog.LevelInfo)
}

// NewWithLevel constructs a JSON slog.Logger at the provided level
func NewWithLevel(service, env, version string, lvl slog.Level) *slog.Logger {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: lvl,
	})

	return slog.New(handler).With(
		slog.String("service", service),
		slog.String("env", env),
		slog.String("version", version))
}

// Level resolves a configuration string to a slog level, defaulting to
// info for unrecognized values
func Level(name string) slog.Level {
	if lvl, ok := Levels[name]; ok {
		return lvl
	}
	return slog.LevelInfo
}
