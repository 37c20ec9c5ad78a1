// Package logging provides zerolog construction and context plumbing for
// shardpack. Loggers are built once per CLI invocation from the logging
// section of the configuration and handed to components via
// ComponentLogger; request-scoped state (the trace ID) travels in the
// context.
package logging

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Supported log formats.
const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// Supported log outputs.
const (
	OutputStderr = "stderr"
	OutputFile   = "file"
)

// Config describes how the root logger should be constructed.
type Config struct {
	// Level is a zerolog level name (trace, debug, info, warn, error).
	Level string

	// Format selects console (human-readable) or json output.
	Format string

	// Output selects stderr or file.
	Output string

	// File is the log file path when Output is "file".
	File string

	// Caller enables caller annotation on every event.
	Caller bool
}

// LogPathResult is the outcome of building a logger, including whether a
// log file is in use so the CLI can print the path and close the handle
// when the command finishes.
type LogPathResult struct {
	Logger         zerolog.Logger
	UsingFile      bool
	FilePath       string
	FallbackUsed   bool
	FallbackReason string

	file *os.File
}

// Close releases the log file handle, if any.
func (r *LogPathResult) Close() error {
	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}

// NewLoggerWithPath builds a logger from cfg. When file output is requested
// but the file cannot be opened, it falls back to stderr and reports the
// reason instead of failing the command.
func NewLoggerWithPath(cfg Config) LogPathResult {
	lvl, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		lvl = zerolog.InfoLevel
	}

	result := LogPathResult{}

	var out io.Writer = os.Stderr
	if cfg.Output == OutputFile && cfg.File != "" {
		f, openErr := os.OpenFile(cfg.File, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
		if openErr != nil {
			result.FallbackUsed = true
			result.FallbackReason = openErr.Error()
		} else {
			result.UsingFile = true
			result.FilePath = cfg.File
			result.file = f
			out = f
		}
	}

	// Console format only makes sense on a stream a human reads.
	if cfg.Format != FormatJSON && !result.UsingFile {
		out = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.RFC3339,
		}
	}

	logCtx := zerolog.New(out).Level(lvl).With().Timestamp()
	if cfg.Caller {
		logCtx = logCtx.Caller()
	}
	result.Logger = logCtx.Logger()

	return result
}

// ComponentLogger returns a child logger tagged with a component name.
func ComponentLogger(logger zerolog.Logger, component string) zerolog.Logger {
	return logger.With().Str("component", component).Logger()
}

// PrintLogPathMessage tells the user where log output is going.
func PrintLogPathMessage(w io.Writer, path string) {
	_, _ = fmt.Fprintf(w, "Logging to %s\n", path)
}

// PrintFallbackWarning tells the user why file logging was not possible.
func PrintFallbackWarning(w io.Writer, reason string) {
	_, _ = fmt.Fprintf(w, "Warning: could not open log file (%s), logging to stderr\n", reason)
}
