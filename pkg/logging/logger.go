// Package logging configures zerolog for pagebatch and hands out component
// loggers.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel is a configured minimum level.
type LogLevel string

// Levels accepted in configuration.
const (
	LevelDebug LogLevel = "debug"
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
)

// zerologLevel maps l to zerolog. Unknown names fall back to info.
func (l LogLevel) zerologLevel() zerolog.Level {
	switch l {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	}
	return zerolog.InfoLevel
}

// ParseLogLevel validates a level name from configuration. The empty string
// means info.
func ParseLogLevel(s string) (LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "", "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	}
	return "", fmt.Errorf("unknown log level %q", s)
}

// Config holds logger configuration.
type Config struct {
	Level LogLevel

	// Pretty switches from JSON lines to zerolog's console writer.
	Pretty bool

	// Output defaults to os.Stderr so stdout stays free for tables and results.
	Output io.Writer

	// Service is added to every line when set.
	Service string
}

// DefaultConfig returns JSON logging at info level.
func DefaultConfig() Config {
	return Config{
		Level:   LevelInfo,
		Output:  os.Stderr,
		Service: "pagebatch",
	}
}

// Setup configures the global zerolog logger and returns it. Packages that
// build their logger from the global one (NewLogger, log.With) pick up the
// configuration from then on.
func Setup(cfg Config) zerolog.Logger {
	zerolog.SetGlobalLevel(cfg.Level.zerologLevel())

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.TimeOnly}
	}

	ctx := zerolog.New(out).With().Timestamp()
	if cfg.Service != "" {
		ctx = ctx.Str("service", cfg.Service)
	}
	logger := ctx.Logger()

	log.Logger = logger
	return logger
}

// NewLogger returns a child of the global logger tagged with component.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// WithSession returns a child logger tagged with a session id.
func WithSession(logger zerolog.Logger, sessionID string) zerolog.Logger {
	return logger.With().Str("session", sessionID).Logger()
}

// Log Level Guidelines:
//
// Debug: Detailed information for debugging
//   - Admission waits (ticket id, wait duration)
//   - Extraction cache hit/miss
//   - Ticket enqueue and worker lifecycle
//
// Info: Normal operation events
//   - Session start/finish with counters
//   - Pause, resume and cancel
//   - Control server startup/shutdown
//
// Warn: Warning conditions that don't prevent operation
//   - Transient rate limits (ticket re-queued)
//   - Tolerated batch failures
//   - Cache errors (fallback to direct extraction)
//   - Unknown model (default policy in use)
//
// Error: Error conditions requiring attention
//   - Daily quota exhausted
//   - Invalid credentials
//   - Configuration errors
//
// Context Fields:
//   - component: ratelimit, orchestrator, extract, gemini, server
//   - session: session id
//   - batch / range: batch id and display range
//   - ticket: limiter ticket id
//   - wait / backoff / duration: time spent
//   - kind: generation error kind
//   - daily_count / daily_limit: daily quota state
