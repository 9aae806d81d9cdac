package logger

import (
	"io"
	"os"

	log "github.com/sirupsen/logrus"
)

// LogLevel represents different log levels
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

// Logger interface for logging functionality
type Logger interface {
	Debug(format string, args ...interface{})
	Info(format string, args ...interface{})
	Warn(format string, args ...interface{})
	Error(format string, args ...interface{})
}

// StandardLogger implements Logger on top of a logrus entry
type StandardLogger struct {
	entry *log.Entry
}

// New creates a new logger instance writing to stdout
func New(verbose bool) Logger {
	level := LevelInfo
	if verbose {
		level = LevelDebug
	}
	return NewWithWriter(os.Stdout, level)
}

// NewWithWriter creates a logger writing text lines to w at the given level
func NewWithWriter(w io.Writer, level LogLevel) *StandardLogger {
	l := log.New()
	l.SetOutput(w)
	l.SetLevel(level.logrus())
	l.SetFormatter(&log.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "15:04:05",
	})
	return &StandardLogger{entry: log.NewEntry(l)}
}

// Nop returns a logger that discards everything
func Nop() Logger {
	return NewWithWriter(io.Discard, LevelError)
}

// WithField returns a logger that adds a structured field to every line
func (l *StandardLogger) WithField(key string, value interface{}) *StandardLogger {
	return &StandardLogger{entry: l.entry.WithField(key, value)}
}

// Debug logs debug messages (only in verbose mode)
func (l *StandardLogger) Debug(format string, args ...interface{}) {
	l.entry.Debugf(format, args...)
}

// Info logs informational messages
func (l *StandardLogger) Info(format string, args ...interface{}) {
	l.entry.Infof(format, args...)
}

// Warn logs warning messages
func (l *StandardLogger) Warn(format string, args ...interface{}) {
	l.entry.Warnf(format, args...)
}

// Error logs error messages
func (l *StandardLogger) Error(format string, args ...interface{}) {
	l.entry.Errorf(format, args...)
}

// ParseLevel maps a configuration name to a level, defaulting to info
func ParseLevel(name string) LogLevel {
	switch name {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

func (lvl LogLevel) logrus() log.Level {
	switch lvl {
	case LevelDebug:
		return log.DebugLevel
	case LevelWarn:
		return log.WarnLevel
	case LevelError:
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}
