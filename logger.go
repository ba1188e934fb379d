package takarakuji

import (
	"log"

	"github.com/sirupsen/logrus"
)

// DefaultLogger implements Logger using standard log package
type DefaultLogger struct{}

// Info logs an info message
func (l *DefaultLogger) Info(msg string, args ...any) {
	log.Printf("[INFO] "+msg, args...)
}

// Error logs an error message
func (l *DefaultLogger) Error(msg string, args ...any) {
	log.Printf("[ERROR] "+msg, args...)
}

// Debug logs a debug message
func (l *DefaultLogger) Debug(msg string, args ...any) {
	log.Printf("[DEBUG] "+msg, args...)
}

// SilentLogger implements Logger interface but does not output any logs
// This is useful for testing environments where log output is not desired
type SilentLogger struct{}

// NewSilentLogger creates a new silent logger instance
func NewSilentLogger() *SilentLogger {
	return &SilentLogger{}
}

// Info does nothing (silent)
func (l *SilentLogger) Info(msg string, args ...any) {
	// Silent - no output
}

// Error does nothing (silent)
func (l *SilentLogger) Error(msg string, args ...any) {
	// Silent - no output
}

// Debug does nothing (silent)
func (l *SilentLogger) Debug(msg string, args ...any) {
	// Silent - no output
}

// LogrusLogger implements Logger on top of a shared logrus logger so the
// checker's logs follow the process-wide format of the server binary
type LogrusLogger struct {
	entry *logrus.Entry
}

// NewLogrusLogger wraps an existing logrus logger, tagging every entry
// with the component name
func NewLogrusLogger(base *logrus.Logger, component string) *LogrusLogger {
	return &LogrusLogger{entry: base.WithField("component", component)}
}

// Info logs an info message
func (l *LogrusLogger) Info(msg string, args ...any) {
	l.entry.Infof(msg, args...)
}

// Error logs an error message
func (l *LogrusLogger) Error(msg string, args ...any) {
	l.entry.Errorf(msg, args...)
}

// Debug logs a debug message
func (l *LogrusLogger) Debug(msg string, args ...any) {
	l.entry.Debugf(msg, args...)
}
