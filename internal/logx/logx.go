// Package logx builds the structured zerolog logger shared by the CLI, the
// HTTP/RPC services, and the search engine. It is adapted from the
// console-writer-backed logger in internal/platform/logx, generalized here
// to read its default level from an environment variable instead of a CLI
// verbosity count, and to hand back a zerolog.Logger value rather than
// mutate package-level state, matching how engine.NewEngine takes a logger
// as a constructor argument.
package logx

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// EnvVar is the environment variable that configures the minimum log level.
const EnvVar = "CYCLEGREP_LOG"

// ParseLevel converts a level name to a zerolog.Level, accepting "warning"
// and "err" as aliases and treating an empty string as info.
func ParseLevel(s string) (zerolog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "error", "err":
		return zerolog.ErrorLevel, nil
	case "warn", "warning":
		return zerolog.WarnLevel, nil
	case "info", "":
		return zerolog.InfoLevel, nil
	case "debug":
		return zerolog.DebugLevel, nil
	case "trace":
		return zerolog.TraceLevel, nil
	default:
		return zerolog.InfoLevel, fmt.Errorf("logx: unknown level %q", s)
	}
}

// New builds a console-writer logger at the given level, writing to w
// (os.Stderr when w is nil).
func New(level zerolog.Level, w io.Writer) zerolog.Logger {
	if w == nil {
		w = os.Stderr
	}
	return zerolog.New(zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: "15:04:05",
	}).Level(level).With().Timestamp().Logger()
}

// FromEnv builds a logger using CYCLEGREP_LOG (default info) as its level,
// falling back to info with a warning line when the value is unrecognized.
func FromEnv() zerolog.Logger {
	raw := os.Getenv(EnvVar)
	level, err := ParseLevel(raw)
	logger := New(level, os.Stderr)
	if err != nil && raw != "" {
		logger.Warn().Str("value", raw).Msg("unrecognized log level, defaulting to info")
	}
	return logger
}
