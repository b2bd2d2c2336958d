// Package logging configures zerolog loggers for the proxy.
package logging

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config controls logger construction.
type Config struct {
	Level  string `yaml:"level"`  // zerolog level name; default "info".
	Format string `yaml:"format"` // "json" (default) or "console".
	Output string `yaml:"output"` // "stdout", "stderr" or a file path; default "stderr".
}

// Validate checks that the level and format are recognized.
func (c Config) Validate() error {
	if c.Level != "" {
		if _, err := zerolog.ParseLevel(c.Level); err != nil {
			return fmt.Errorf("logging: invalid level %q", c.Level)
		}
	}

	switch c.Format {
	case "", "json", "console":
	default:
		return fmt.Errorf("logging: invalid format %q (want json or console)", c.Format)
	}

	return nil
}

// New builds a logger from cfg. The returned closer releases the log file
// when Output names one; it is a no-op otherwise.
func New(cfg Config) (zerolog.Logger, io.Closer, error) {
	zerolog.TimeFieldFormat = time.RFC3339

	level := zerolog.InfoLevel
	if cfg.Level != "" {
		parsed, err := zerolog.ParseLevel(cfg.Level)
		if err != nil {
			return zerolog.Nop(), nopCloser{}, fmt.Errorf("logging: invalid level %q", cfg.Level)
		}
		level = parsed
	}

	var (
		writer io.Writer
		closer io.Closer = nopCloser{}
	)

	switch cfg.Output {
	case "stderr", "":
		writer = os.Stderr
	case "stdout":
		writer = os.Stdout
	default:
		f, err := os.OpenFile(cfg.Output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600) //nolint:gosec // path comes from operator configuration
		if err != nil {
			return zerolog.Nop(), nopCloser{}, fmt.Errorf("logging: open %s: %w", cfg.Output, err)
		}
		writer = f
		closer = f
	}

	return NewWithWriter(writer, level, cfg.Format == "console"), closer, nil
}

// NewWithWriter builds a logger writing to w. Tests use it with a buffer.
func NewWithWriter(w io.Writer, level zerolog.Level, console bool) zerolog.Logger {
	if console {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05"}
	}

	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

// SetGlobal installs l as the package-level zerolog logger.
func SetGlobal(l zerolog.Logger) {
	log.Logger = l
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
