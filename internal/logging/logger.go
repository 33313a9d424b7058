// Package logging provides structured logging with file output support.
// It uses environment variables for configuration.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// LoggerCloser wraps a logger and provides a Close method for cleanup
type LoggerCloser struct {
	*log.Logger
	closer io.Closer
}

// Close closes the underlying writer if it's closeable
func (lc *LoggerCloser) Close() error {
	if lc.closer != nil {
		return lc.closer.Close()
	}
	return nil
}

// NewLoggerWithWriter creates a new logger with the provided writer
func NewLoggerWithWriter(w io.Writer) *LoggerCloser {
	lg := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.Kitchen,
	})

	// Set log level from environment
	if err := SetLevel(lg, os.Getenv("ARMSTACK_LOG_LEVEL")); err != nil {
		lg.SetLevel(log.InfoLevel)
	}

	// Set prefix from environment
	prefix := os.Getenv("ARMSTACK_LOG_PREFIX")
	if prefix == "" {
		prefix = "armstack "
	}

	var closer io.Closer
	if c, ok := w.(io.Closer); ok && w != os.Stderr && w != os.Stdout {
		closer = c
	}

	return &LoggerCloser{
		Logger: lg.WithPrefix(prefix),
		closer: closer,
	}
}

// NewLogger creates a new logger based on environment variables
// ARMSTACK_LOG_LEVEL: debug, info, warn, error (default: info)
// ARMSTACK_LOG_PREFIX: prefix for log messages (default: "armstack ")
// ARMSTACK_LOG_TO_FILE: when set to "1", logs to a timestamped file instead of stderr
func NewLogger() *LoggerCloser {
	output := io.Writer(os.Stderr)

	if os.Getenv("ARMSTACK_LOG_TO_FILE") == "1" {
		timestamp := time.Now().Format("20060102-150405")
		logFile := fmt.Sprintf("armstack-%s-debug.log", timestamp)

		f, err := os.OpenFile(logFile, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
		if err == nil {
			output = f
		}
		// If file creation fails, fall back to stderr
	}

	return NewLoggerWithWriter(output)
}

// SetLevel applies a level name. The empty name means info.
func SetLevel(lg *log.Logger, name string) error {
	name = strings.ToLower(strings.TrimSpace(name))
	switch name {
	case "":
		name = "info"
	case "warning":
		name = "warn"
	}
	lvl, err := log.ParseLevel(name)
	if err != nil {
		return fmt.Errorf("logging: level %q: %w", name, err)
	}
	lg.SetLevel(lvl)
	return nil
}
