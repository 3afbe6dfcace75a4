package obs

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

// NewLogger builds the process logger. Local environments get colored tint
// output, everything else JSON tagged with the service name. LOG_LEVEL
// overrides the default level.
func NewLogger(env string) *slog.Logger {
	return newLogger(os.Stdout, env, os.Getenv("LOG_LEVEL"))
}

func newLogger(w io.Writer, env, rawLevel string) *slog.Logger {
	env = strings.ToLower(strings.TrimSpace(env))
	level := ParseLevel(rawLevel, defaultLevel(env))
	switch env {
	case "dev", "local":
		return slog.New(tint.NewHandler(w, &tint.Options{
			Level:      level,
			TimeFormat: time.Kitchen,
			AddSource:  true,
		}))
	case "test":
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})).
		With("service", "staykeeper", "env", env)
}

func defaultLevel(env string) slog.Level {
	if env == "dev" || env == "local" {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

// ParseLevel accepts slog level names ("debug", "warn", "error+2") and
// falls back to def when raw is empty or unknown.
func ParseLevel(raw string, def slog.Level) slog.Level {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(raw)); err != nil {
		return def
	}
	return level
}
