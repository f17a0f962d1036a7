package logger

import (
	"os"

	"github.com/rs/zerolog"
)

// New builds the application logger. Development gets the console
// writer, everything else plain JSON to stdout.
func New(environment string) zerolog.Logger {
	if environment == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}
