// Package shared holds the logger, configuration, errors, retry policy and database helpers used across chartx.
package shared

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

// EnvLogLevel names the environment variable read by [LogLevelFromEnv].
const EnvLogLevel = "CHARTX_LOG_LEVEL"

// NewLogger creates a new [log.Logger] instance with the specified [io.Writer], with timestamps and caller reporting enabled.
//
// The writer defaults to [os.Stderr]
func NewLogger(w io.Writer) *log.Logger {
	if w == nil {
		w = os.Stderr
	}
	opts := log.Options{ReportTimestamp: true, ReportCaller: true, Prefix: "chartx"}
	return log.NewWithOptions(w, opts)
}

// WithLogger creates a child [log.Logger] with the specified key-value pairs added to all log entries.
func WithLogger(l *log.Logger, kv ...any) *log.Logger {
	return l.With(kv...)
}

// SetLogLevel sets the [log.Level] for the given [log.Logger].
func SetLogLevel(l *log.Logger, ll log.Level) {
	l.SetLevel(ll)
}

// LogLevelFromEnv applies CHARTX_LOG_LEVEL (debug, info, warn, error, fatal) to l. Unset leaves l unchanged.
func LogLevelFromEnv(l *log.Logger) error {
	s := os.Getenv(EnvLogLevel)
	if s == "" {
		return nil
	}
	level, err := log.ParseLevel(s)
	if err != nil {
		return fmt.Errorf("%w: %s=%q", ErrInvalidConfig, EnvLogLevel, s)
	}
	l.SetLevel(level)
	return nil
}

// GenerateID generates a new v4 [uuid.UUID] as a string
func GenerateID() string {
	return uuid.New().String()
}
