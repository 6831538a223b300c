// ============================================================================
// firedoc - Authenticated document-store client
// ============================================================================
//
// Package:     logging
// Description: Key/value logger used by the transport and client packages
// Author:      Mike Stoffels
// Created:     2025-12-06
// License:     MIT
// ============================================================================

package logging

import (
	"sync"

	fdlog "github.com/msto63/firedoc/foundation/core/log"
)

// Level represents log severity (for compatibility)
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// String returns the string representation of the level
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "unknown"
	}
}

var (
	rootMu sync.RWMutex
	root   *fdlog.Logger
)

// SetRoot installs the logger every New(name) derives from. The CLI calls this
// once after loading configuration.
func SetRoot(logger *fdlog.Logger) {
	rootMu.Lock()
	defer rootMu.Unlock()
	root = logger
}

// Root returns the installed root logger, creating the default one on first use
func Root() *fdlog.Logger {
	rootMu.RLock()
	r := root
	rootMu.RUnlock()
	if r != nil {
		return r
	}

	rootMu.Lock()
	defer rootMu.Unlock()
	if root == nil {
		root = NewLogger(DefaultLoggerConfig("firedoc"))
	}
	return root
}

// Logger wraps the foundation logger with key/value call sites
type Logger struct {
	*fdlog.Logger
	name string
}

// New creates a named logger derived from the root logger
func New(name string) *Logger {
	return &Logger{
		Logger: Root().WithName(name),
		name:   name,
	}
}

// Wrap adapts an existing foundation logger
func Wrap(logger *fdlog.Logger) *Logger {
	return &Logger{Logger: logger, name: logger.Name()}
}

// WithLevel returns a new logger with the specified level
func (l *Logger) WithLevel(level Level) *Logger {
	fdLevel := fdlog.LevelInfo
	switch level {
	case LevelDebug:
		fdLevel = fdlog.LevelDebug
	case LevelWarn:
		fdLevel = fdlog.LevelWarn
	case LevelError:
		fdLevel = fdlog.LevelError
	}

	return &Logger{
		Logger: l.Logger.WithLevel(fdLevel),
		name:   l.name,
	}
}

// With returns a logger carrying the given key/value pairs on every entry
func (l *Logger) With(keysAndValues ...interface{}) *Logger {
	return &Logger{
		Logger: l.Logger.WithFields(toFields(keysAndValues...)),
		name:   l.name,
	}
}

// Debug logs a debug message with key-value pairs
func (l *Logger) Debug(msg string, keysAndValues ...interface{}) {
	l.Logger.Debug(msg, toFields(keysAndValues...))
}

// Info logs an info message with key-value pairs
func (l *Logger) Info(msg string, keysAndValues ...interface{}) {
	l.Logger.Info(msg, toFields(keysAndValues...))
}

// Warn logs a warning message with key-value pairs
func (l *Logger) Warn(msg string, keysAndValues ...interface{}) {
	l.Logger.Warn(msg, toFields(keysAndValues...))
}

// Error logs an error message with key-value pairs
func (l *Logger) Error(msg string, keysAndValues ...interface{}) {
	l.Logger.Error(msg, toFields(keysAndValues...))
}

// toFields converts key-value pairs to fdlog.Fields; a trailing odd value and
// non-string keys are dropped
func toFields(keysAndValues ...interface{}) fdlog.Fields {
	if len(keysAndValues) == 0 {
		return nil
	}

	fields := make(fdlog.Fields)
	for i := 0; i < len(keysAndValues)-1; i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			continue
		}
		fields[key] = keysAndValues[i+1]
	}
	return fields
}
