package logger

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New returns a service-tagged JSON logger writing to stdout.
func New(service string) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	return zerolog.New(os.Stdout).With().
		Timestamp().
		Str("service", service).
		Logger()
}
