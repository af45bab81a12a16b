// Package nrlog provides the verbosity-gated logging used throughout
// needrestart-go. It wraps zerolog the way a console tool wraps a
// structured logger: human-readable output on a terminal, one line per
// event, a stable "component" field so grep'ing stderr stays easy. The
// component appears as a trailing "component=<name>" field, not as a
// bracketed line prefix.
package nrlog

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Level mirrors the three-step verbosity model from the CLI surface:
// quiet (0), default (1), verbose (2).
type Level int

const (
	Quiet   Level = 0
	Default Level = 1
	Verbose Level = 2
)

var base zerolog.Logger

func init() {
	Configure(Default, os.Stderr)
}

// Configure (re)configures the package-wide base logger. Call once, early
// in main, after CLI flags are parsed.
func Configure(level Level, w io.Writer) {
	zerolog.TimeFieldFormat = time.RFC3339
	cw := zerolog.ConsoleWriter{Out: w, NoColor: true, TimeFormat: "15:04:05"}

	zl := zerolog.New(cw).With().Timestamp().Logger()

	switch level {
	case Quiet:
		zl = zl.Level(zerolog.ErrorLevel)
	case Verbose:
		zl = zl.Level(zerolog.DebugLevel)
	default:
		zl = zl.Level(zerolog.InfoLevel)
	}

	base = zl
}

// Logger is a per-component logging handle.
type Logger struct {
	zl zerolog.Logger
}

// For returns a Logger scoped to the named component, e.g. "main",
// "procfs", "service".
func For(component string) Logger {
	return Logger{zl: base.With().Str("component", component).Logger()}
}

// Debugf logs at verbose level only.
func (l Logger) Debugf(format string, args ...interface{}) {
	l.zl.Debug().Msgf(format, args...)
}

// Infof logs at default level.
func (l Logger) Infof(format string, args ...interface{}) {
	l.zl.Info().Msgf(format, args...)
}

// Warnf logs a recoverable problem (hook failure, transient per-PID error).
func (l Logger) Warnf(format string, args ...interface{}) {
	l.zl.Warn().Msgf(format, args...)
}

// Errorf logs a fatal configuration or initialization error.
func (l Logger) Errorf(format string, args ...interface{}) {
	l.zl.Error().Msgf(format, args...)
}
