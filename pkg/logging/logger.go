// Package logging provides structured logging configuration using zerolog.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel represents the logging level.
type LogLevel string

const (
	// LevelTrace logs every request passing through the worker.
	LevelTrace LogLevel = "trace"

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

	// File, if set, receives a JSON copy of every log line.
	File io.Writer

	// Version is attached to every log line when set.
	Version string
}

// DefaultConfig returns a default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Pretty: false,
		Output: os.Stderr,
	}
}

// Setup configures the global zerolog logger.
func Setup(cfg Config) zerolog.Logger {
	level := parseLevel(cfg.Level)
	zerolog.SetGlobalLevel(level)

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: out}
	}
	if cfg.File != nil {
		out = zerolog.MultiLevelWriter(out, cfg.File)
	}

	ctx := zerolog.New(out).With().Timestamp()
	if cfg.Version != "" {
		ctx = ctx.Str("build", cfg.Version)
	}
	logger := ctx.Logger()

	log.Logger = logger
	return logger
}

// ParseLevel validates a level name.
func ParseLevel(s string) (LogLevel, error) {
	switch l := LogLevel(strings.ToLower(strings.TrimSpace(s))); l {
	case LevelTrace, LevelDebug, LevelInfo, LevelWarn, LevelError:
		return l, nil
	case "warning":
		return LevelWarn, nil
	default:
		return "", fmt.Errorf("unknown log level %q", s)
	}
}

func parseLevel(level LogLevel) zerolog.Level {
	switch strings.ToLower(string(level)) {
	case "trace":
		return zerolog.TraceLevel
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

// NewLogger creates a new logger with the given component name.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// Log Level Guidelines:
//
// Trace: one line per request served (method, path, status, source)
//
// Debug: Detailed information for debugging
//   - Cache hit/miss and cache keys
//   - Strategy fallbacks (network failed, serving cached copy)
//   - Responses that are not stored (non-GET, 206, Vary: *)
//
// Info: Lifecycle events
//   - Install, activate, promotion, claim
//   - Old caches deleted, cache cleared
//   - Server startup/shutdown, manifest reload
//
// Warn: Degraded operation
//   - Cache store or lookup errors (response still served)
//   - Install reported failure (agent registered anyway)
//   - Origin fetch failures
//
// Error: Conditions requiring attention
//   - Cache installation failed
//   - Activation failed (old caches kept, clients not claimed)
//   - Configuration errors
//
// Context Fields:
//   - component: agent, host, client, precache, siteworker, http
//   - version: agent version
//   - cache: cache name
//   - url: request URL
//   - strategy: cache-first, network-first, pass-through
//   - source: cache, network, root-fallback, synthetic
//   - error_class: client, server, network
