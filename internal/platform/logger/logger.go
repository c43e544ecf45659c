// Package logger provides structured logging for the lifecycle server.
// All custody decisions should be traceable through this.
package logger

import (
	"fmt"
	"log"
	"os"
)

// Logger provides leveled logging with an event channel for custody audit lines.
type Logger struct {
	debugLogger *log.Logger
	infoLogger  *log.Logger
	warnLogger  *log.Logger
	errorLogger *log.Logger
	debugOn     bool
}

// NewLogger creates a new logger instance. Debug lines are suppressed unless
// enabled; MissingRecord no-ops and cooldown skips land there.
func NewLogger(debug bool) *Logger {
	return &Logger{
		debugLogger: log.New(os.Stdout, "[JAIL-DEBUG] ", log.Ldate|log.Ltime|log.Lshortfile),
		infoLogger:  log.New(os.Stdout, "[JAIL-INFO] ", log.Ldate|log.Ltime|log.Lshortfile),
		warnLogger:  log.New(os.Stdout, "[JAIL-WARN] ", log.Ldate|log.Ltime|log.Lshortfile),
		errorLogger: log.New(os.Stderr, "[JAIL-ERROR] ", log.Ldate|log.Ltime|log.Lshortfile),
		debugOn:     debug,
	}
}

// Debug logs diagnostic messages (silent unless enabled).
func (l *Logger) Debug(msg string) {
	if !l.debugOn {
		return
	}
	l.debugLogger.Println(msg)
}

// Debugf logs formatted diagnostic messages.
func (l *Logger) Debugf(format string, args ...interface{}) {
	if !l.debugOn {
		return
	}
	l.debugLogger.Println(fmt.Sprintf(format, args...))
}

// Info logs informational messages.
func (l *Logger) Info(msg string) {
	l.infoLogger.Println(msg)
}

// Infof logs formatted informational messages.
func (l *Logger) Infof(format string, args ...interface{}) {
	l.infoLogger.Println(fmt.Sprintf(format, args...))
}

// Warn logs warning messages. Stuck-pipeline recoveries land here.
func (l *Logger) Warn(msg string) {
	l.warnLogger.Println(msg)
}

// Warnf logs formatted warning messages.
func (l *Logger) Warnf(format string, args ...interface{}) {
	l.warnLogger.Println(fmt.Sprintf(format, args...))
}

// Error logs error messages.
func (l *Logger) Error(msg string) {
	l.errorLogger.Println(msg)
}

// Errorf logs formatted error messages.
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.errorLogger.Println(fmt.Sprintf(format, args...))
}

// Event logs a custody transition for audit purposes.
func (l *Logger) Event(eventType string, subjectID string, details string) {
	l.infoLogger.Printf("[EVENT:%s] Subject:%s | %s", eventType, subjectID, details)
}
