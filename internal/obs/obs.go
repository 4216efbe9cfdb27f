// Package obs builds the supervisor's root logger. Grounded on
// internal/shared/logger/logger.go's setup (level parsing, a
// zerolog.ConsoleWriter for human output, 6543/logfile-open for
// rotation-safe file output, and adding .Caller() at debug level and
// below), but returns a zerolog.Logger value instead of assigning the
// zerolog global: every component in this module takes a logger in its
// constructor and derives a child via .With().Str(...), so there is no
// process-wide logging singleton to thread state through.
package obs

import (
	"context"
	"fmt"
	"io"
	"os"

	logfile "github.com/6543/logfile-open"
	"github.com/rs/zerolog"
)

// Config controls how Setup builds the root logger.
type Config struct {
	// Level is a zerolog level name ("debug", "info", "warn", "error", ...).
	// Empty defaults to "info".
	Level string
	// File is a destination path, or "" / "stderr" / "stdout" for the
	// corresponding standard stream.
	File string
	// Pretty switches to zerolog.ConsoleWriter human-readable output. Forced
	// off when writing to a real file, since ANSI color codes in a log file
	// are just noise.
	Pretty bool
	// NoColor disables ANSI color codes in the console writer.
	NoColor bool
}

// Setup builds the root logger per cfg. The returned logger has a
// timestamp field and, at debug level or below, a caller field; it carries
// no other component-specific context — callers derive their own child
// loggers from it.
func Setup(ctx context.Context, cfg Config) (zerolog.Logger, error) {
	var out io.Writer
	noColor := cfg.NoColor

	switch cfg.File {
	case "", "stderr":
		out = os.Stderr
	case "stdout":
		out = os.Stdout
	default:
		f, err := logfile.OpenFileWithContext(ctx, cfg.File, 0o660)
		if err != nil {
			return zerolog.Logger{}, fmt.Errorf("obs: could not open log file %q: %w", cfg.File, err)
		}
		out = f
		noColor = true
	}

	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: out, NoColor: noColor}
	}

	level := cfg.Level
	if level == "" {
		level = "info"
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.Logger{}, fmt.Errorf("obs: unknown logging level %q: %w", cfg.Level, err)
	}

	logger := zerolog.New(out).Level(lvl).With().Timestamp().Logger()
	if lvl <= zerolog.DebugLevel {
		logger = logger.With().Caller().Logger()
	}
	return logger, nil
}
