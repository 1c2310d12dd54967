// Package logging builds the structured logger shared by the CLI, the engine
// and the suite runner.
package logging

import (
	"fmt"
	"io"
	"strings"

	"github.com/phuslu/log"
)

// Formats accepted by New.
const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// Options configures New.
type Options struct {
	Level  string // debug, info, warn or error; defaults to info
	Format string // console or json; defaults to console
	Color  bool   // colorize console output
}

// New returns a logger writing to w.
func New(w io.Writer, opts Options) (*log.Logger, error) {
	level := strings.ToLower(strings.TrimSpace(opts.Level))
	switch level {
	case "":
		level = "info"
	case "debug", "info", "warn", "error":
	default:
		return nil, fmt.Errorf("unknown log level %q", opts.Level)
	}

	var writer log.Writer
	switch opts.Format {
	case "", FormatConsole:
		writer = &log.ConsoleWriter{
			Writer:         w,
			ColorOutput:    opts.Color,
			QuoteString:    true,
			EndWithMessage: true,
		}
	case FormatJSON:
		writer = &log.IOWriter{Writer: w}
	default:
		return nil, fmt.Errorf("unknown log format %q", opts.Format)
	}

	return &log.Logger{
		Level:      log.ParseLevel(level),
		TimeFormat: "15:04:05",
		Writer:     writer,
	}, nil
}

// Discard returns a logger that drops everything.
func Discard() *log.Logger {
	return &log.Logger{
		Level:  log.ErrorLevel,
		Writer: &log.IOWriter{Writer: io.Discard},
	}
}

// OrDiscard returns l, or a discarding logger when l is nil.
func OrDiscard(l *log.Logger) *log.Logger {
	if l == nil {
		return Discard()
	}
	return l
}
