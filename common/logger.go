// Package common holds shared infrastructure for the debugger core,
// currently the logging contract used by the stateful packages.
package common

import (
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
)

// Severity represents log message severity levels
type Severity int

const (
	SeverityDebug Severity = iota
	SeverityInfo
	SeverityWarning
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "DEBUG"
	case SeverityInfo:
		return "INFO"
	case SeverityWarning:
		return "WARNING"
	case SeverityError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Logger interface defines the logging contract for the debugger core
type Logger interface {
	// Log logs a message with the specified severity
	Log(severity Severity, msg string)

	// Logf logs a formatted message with the specified severity
	Logf(severity Severity, format string, args ...interface{})

	// Error logs an error
	Error(err error)

	// Debug logs a debug message
	Debug(msg string)

	// Info logs an info message
	Info(msg string)

	// Warning logs a warning message
	Warning(msg string)
}

// LogrusLogger implements the Logger interface on top of a logrus logger.
type LogrusLogger struct {
	log *logrus.Logger
}

func severityToLevel(s Severity) logrus.Level {
	switch s {
	case SeverityDebug:
		return logrus.DebugLevel
	case SeverityInfo:
		return logrus.InfoLevel
	case SeverityWarning:
		return logrus.WarnLevel
	default:
		return logrus.ErrorLevel
	}
}

// NewLogrusLogger creates a logger that discards anything below minLevel.
func NewLogrusLogger(minLevel Severity) *LogrusLogger {
	l := logrus.New()
	l.SetLevel(severityToLevel(minLevel))
	return &LogrusLogger{log: l}
}

// NewLogrusLoggerWithWriter creates a logger with a custom output writer.
func NewLogrusLoggerWithWriter(w io.Writer, minLevel Severity) *LogrusLogger {
	l := logrus.New()
	l.SetOutput(w)
	l.SetLevel(severityToLevel(minLevel))
	return &LogrusLogger{log: l}
}

// Log logs a message with the specified severity
func (l *LogrusLogger) Log(severity Severity, msg string) {
	switch severity {
	case SeverityDebug:
		l.log.Debug(msg)
	case SeverityInfo:
		l.log.Info(msg)
	case SeverityWarning:
		l.log.Warn(msg)
	case SeverityError:
		l.log.Error(msg)
	}
}

// Logf logs a formatted message with the specified severity
func (l *LogrusLogger) Logf(severity Severity, format string, args ...interface{}) {
	l.Log(severity, fmt.Sprintf(format, args...))
}

// Error logs an error
func (l *LogrusLogger) Error(err error) {
	if err != nil {
		l.Log(SeverityError, err.Error())
	}
}

// Debug logs a debug message
func (l *LogrusLogger) Debug(msg string) {
	l.Log(SeverityDebug, msg)
}

// Info logs an info message
func (l *LogrusLogger) Info(msg string) {
	l.Log(SeverityInfo, msg)
}

// Warning logs a warning message
func (l *LogrusLogger) Warning(msg string) {
	l.Log(SeverityWarning, msg)
}

// NoOpLogger is a logger that doesn't log anything
type NoOpLogger struct{}

// NewNoOpLogger creates a new no-op logger
func NewNoOpLogger() *NoOpLogger {
	return &NoOpLogger{}
}

// Log does nothing
func (l *NoOpLogger) Log(severity Severity, msg string) {}

// Logf does nothing
func (l *NoOpLogger) Logf(severity Severity, format string, args ...interface{}) {}

// Error does nothing
func (l *NoOpLogger) Error(err error) {}

// Debug does nothing
func (l *NoOpLogger) Debug(msg string) {}

// Info does nothing
func (l *NoOpLogger) Info(msg string) {}

// Warning does nothing
func (l *NoOpLogger) Warning(msg string) {}
