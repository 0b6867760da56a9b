// logging.go - Structured logging for the zerotrace daemon.
//
// Logger wraps zerolog with an optional file sink and a separate audit sink.
// Audit events are written only when an audit file is configured.

package logging

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Config selects sinks and level.
type Config struct {
	Level     string
	File      string
	AuditFile string
	Console   bool
}

// Logger is a leveled logger plus an audit sink.
type Logger struct {
	zerolog.Logger

	audit  *zerolog.Logger
	closer []io.Closer
}

// ParseLevel maps debug|info|warn|error|fatal to a zerolog level. Anything
// else is info.
func ParseLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	default:
		return zerolog.InfoLevel
	}
}

// New creates a logger writing to stdout and, if configured, to a log file.
func New(cfg Config) (*Logger, error) {
	return newLogger(cfg, os.Stdout)
}

func newLogger(cfg Config, stdout io.Writer) (*Logger, error) {
	l := &Logger{}

	var console io.Writer = stdout
	if cfg.Console {
		console = zerolog.ConsoleWriter{Out: stdout, TimeFormat: time.DateTime}
	}
	writers := []io.Writer{console}

	if cfg.File != "" {
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		l.closer = append(l.closer, f)
		writers = append(writers, f)
	}

	if cfg.AuditFile != "" {
		f, err := os.OpenFile(cfg.AuditFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
		if err != nil {
			l.Close()
			return nil, fmt.Errorf("failed to open audit file: %w", err)
		}
		l.closer = append(l.closer, f)
		audit := zerolog.New(f).With().Timestamp().Str("log", "audit").Logger()
		l.audit = &audit
	}

	l.Logger = zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(ParseLevel(cfg.Level)).
		With().Timestamp().Logger()
	return l, nil
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{Logger: zerolog.Nop()}
}

// Component returns a child logger tagged with a component name.
func (l *Logger) Component(name string) zerolog.Logger {
	return l.With().Str("component", name).Logger()
}

// Audit records an audit event.
func (l *Logger) Audit(event string, fields map[string]any) {
	if l.audit == nil {
		return
	}
	l.audit.Log().Str("event", event).Fields(fields).Send()
}

// AuditEnabled reports whether an audit sink is configured.
func (l *Logger) AuditEnabled() bool {
	return l.audit != nil
}

// Close closes the file sinks.
func (l *Logger) Close() error {
	var first error
	for _, c := range l.closer {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	l.closer = nil
	return first
}

// Short abbreviates an identity hash for log output.
func Short(identityHash string) string {
	if len(identityHash) > 16 {
		return identityHash[:16]
	}
	return identityHash
}
