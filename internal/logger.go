package internal

import (
	"io"

	"github.com/rs/zerolog"
)

// NewLogger builds the service logger: JSON output in prod, console writer
// otherwise.
func NewLogger(w io.Writer, env string, level string) zerolog.Logger {
	l, err := zerolog.ParseLevel(level)
	if err != nil || l == zerolog.NoLevel {
		l = zerolog.InfoLevel
	}

	var out io.Writer = w
	if env != "prod" {
		out = zerolog.ConsoleWriter{Out: w}
	}

	return zerolog.New(out).Level(l).With().Timestamp().Logger()
}
