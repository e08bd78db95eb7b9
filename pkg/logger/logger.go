// Package logger builds the root zerolog logger for runway processes.
// Components derive their own scope from it with .With().Str("component", ...).
package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config selects the log level and output format.
type Config struct {
	Level  string // trace, debug, info, warn, error; anything else falls back to info
	Pretty bool   // console writer for interactive runs, JSON lines otherwise
}

// New builds the root logger: leveled, RFC3339 timestamps, caller annotation
// and a service field identifying runway in shared log streams. The level is
// set on the logger itself, not globally.
func New(cfg Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.TimeFieldFormat = time.RFC3339

	var output io.Writer = os.Stderr
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: "15:04:05",
		}
	}

	return zerolog.New(output).
		Level(level).
		With().
		Timestamp().
		Caller().
		Str("service", "runway").
		Logger()
}

// SetGlobalLogger routes zerolog's package-level logger through l, so code
// logging via log.Logger shares the same sink and level.
func SetGlobalLogger(l zerolog.Logger) {
	log.Logger = l
}
