package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config controls the process-wide logger.
type Config struct {
	Level  string // debug, info, warn, error; unknown values fall back to info
	Format string // json (production default) or pretty for local development
}

// Setup configures the global zerolog logger. Every package logs through
// the zerolog global, so this runs once, before anything else in main.
func Setup(cfg Config) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	zerolog.TimeFieldFormat = time.RFC3339

	var output io.Writer = os.Stdout
	if cfg.Format == "pretty" {
		output = zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: "15:04:05",
		}
	}

	log.Logger = zerolog.New(output).With().Timestamp().Logger()
}

// NewLogger returns a logger tagged with a component name, for subsystems
// that emit outside the request path (audit writer, schedulers).
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}
