// Package logging configures structured logging for the request engine
// using zerolog.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel represents the logging level.
type LogLevel string

const (
	// LevelDebug logs debug messages and above.
	LevelDebug LogLevel = "debug"

	// LevelInfo logs info messages and above.
	LevelInfo LogLevel = "info"

	// LevelWarn logs warning messages and above.
	LevelWarn LogLevel = "warn"

	// LevelError logs error messages only.
	LevelError LogLevel = "error"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level LogLevel

	// Pretty enables human-readable console output (default: false for JSON).
	Pretty bool

	// Output is the writer to output logs to (default: os.Stderr).
	Output io.Writer
}

// DefaultConfig returns a default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Pretty: false,
		Output: os.Stderr,
	}
}

// Setup configures the global zerolog logger and returns it.
func Setup(cfg Config) zerolog.Logger {
	zerolog.SetGlobalLevel(parseLevel(cfg.Level))

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: output}
	}

	logger := zerolog.New(output).With().Timestamp().Logger()
	log.Logger = logger

	return logger
}

// parseLevel converts LogLevel to zerolog.Level.
func parseLevel(level LogLevel) zerolog.Level {
	switch strings.ToLower(string(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// NewLogger creates a new logger tagged with the given component name.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// WithRequest tags a logger with the method and URL of one request so
// every event along that request's life carries both fields.
func WithRequest(logger zerolog.Logger, method, url string) zerolog.Logger {
	return logger.With().Str("method", method).Str("url", url).Logger()
}

// Log Level Guidelines:
//
// Debug: Detailed request-flow information
//   - Admission (credential checkout, spacing wait, semaphore)
//   - Dedup decisions (fingerprint recorded / duplicate dropped)
//   - Cache operations (hit/miss, key, TTL)
//   - Generation boundaries and spawned request counts
//
// Info: Normal operation events
//   - Completed requests (method, url, status, duration)
//   - Endpoint registration
//   - Run start/end with generation totals
//   - Client teardown with final statistics
//
// Warn: Conditions that don't stop the run
//   - Advisories (overwrite, unknown extension, re-registration)
//   - Retry attempts with backoff
//   - Cache errors (degraded to a miss)
//
// Error: Abandoned requests
//   - Network failures, timeouts, HTTP error statuses (after retries)
//
// Context Fields:
//   - component: package emitting the event
//   - method, url: request identity
//   - status_code: HTTP status code
//   - duration: request duration
//   - credential: rotation queue member in use (index, not secret)
//   - generation: breadth-first wave number
//   - fingerprint: dedup hash of the request
