// Package logging configures the process-wide zerolog logger.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Setup sets the global level and output. Development gets a console writer on stderr;
// every other environment logs JSON. An unknown level falls back to info.
func Setup(level, env string) zerolog.Logger {
	var out io.Writer = os.Stderr
	if strings.EqualFold(env, "development") {
		out = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	}
	logger := New(out, level)
	log.Logger = logger
	zerolog.SetGlobalLevel(logger.GetLevel())
	return logger
}

// New returns a timestamped logger writing to out at level.
func New(out io.Writer, level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(out).Level(lvl).With().Timestamp().Logger()
}
