package di

import (
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
)

// buildLogger creates a zerolog.Logger writing to stderr, so command output
// on stdout stays clean for piping.
func buildLogger(level, format string) (zerolog.Logger, error) {
	parsed, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.Logger{}, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	var output = zerolog.New(os.Stderr)
	if shouldUsePretty(format) {
		output = zerolog.New(zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: "15:04:05",
		})
	}

	return output.Level(parsed).With().Timestamp().Logger(), nil
}

// shouldUsePretty determines if pretty console output should be used.
func shouldUsePretty(format string) bool {
	switch format {
	case "pretty":
		return true
	case "json":
		return false
	default:
		// Auto-detect: use pretty if stderr is a terminal
		return isatty.IsTerminal(os.Stderr.Fd())
	}
}
