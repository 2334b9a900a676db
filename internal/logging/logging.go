// Package logging builds the logrus logger handed to every modelseal component.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

// Options selects the logger level, format and destination.
type Options struct {
	// Level is one of debug, info, warn or error.
	Level string
	// Format is text or json.
	Format string
	// File redirects output to a file, appended to. Empty means stderr.
	File string
}

// New returns a configured logger and a function releasing its output.
// The close function must be called once the command finishes.
func New(opts Options) (*logrus.Logger, func() error, error) {
	logger := logrus.New()

	level, err := logrus.ParseLevel(opts.Level)
	if err != nil {
		return nil, nil, fmt.Errorf("parsing log level: %w", err)
	}

	logger.SetLevel(level)

	switch opts.Format {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	case "text", "":
		logger.SetFormatter(&logrus.TextFormatter{DisableTimestamp: opts.File == "", FullTimestamp: true})
	default:
		return nil, nil, fmt.Errorf("unknown log format %q", opts.Format)
	}

	if opts.File == "" {
		logger.SetOutput(os.Stderr)

		return logger, func() error { return nil }, nil
	}

	const ownerReadWrite = 0o600

	file, err := os.OpenFile(filepath.Clean(opts.File), os.O_CREATE|os.O_WRONLY|os.O_APPEND, ownerReadWrite)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}

	logger.SetOutput(file)

	return logger, file.Close, nil
}

// Discard returns a logger that drops every entry.
func Discard() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	return logger
}

// OrDiscard returns logger, or a discarding logger when it is nil.
func OrDiscard(logger *logrus.Logger) *logrus.Logger {
	if logger == nil {
		return Discard()
	}

	return logger
}

// Truncate shortens identifiers such as fingerprints before they are logged.
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}

	return s[:n] + "…"
}
