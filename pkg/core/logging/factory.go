// ============================================================================
// firedoc - Authenticated document-store client
// ============================================================================
//
// Package:     logging
// Description: Factory functions for creating configured loggers
// Author:      Mike Stoffels
// Created:     2025-12-06
// License:     MIT
// ============================================================================

package logging

import (
	"io"
	"os"

	fdlog "github.com/msto63/firedoc/foundation/core/log"
	"github.com/msto63/firedoc/pkg/core/config"
)

// LoggerConfig holds configuration for creating loggers
type LoggerConfig struct {
	// Service name
	ServiceName string

	// Log level (trace, debug, info, warn, error)
	Level string

	// Output format: "json" or "text"
	Format string

	// Output writer (default: stderr, so command output on stdout stays clean)
	Output io.Writer

	EnableCaller bool
}

// DefaultLoggerConfig returns a default configuration
func DefaultLoggerConfig(serviceName string) LoggerConfig {
	return LoggerConfig{
		ServiceName: serviceName,
		Level:       "info",
		Format:      "json",
	}
}

// FromConfig builds the logger configuration from the [general] section
func FromConfig(cfg config.GeneralConfig) LoggerConfig {
	return LoggerConfig{
		ServiceName: cfg.Name,
		Level:       cfg.LogLevel,
		Format:      cfg.LogFormat,
	}
}

// NewLogger creates a new foundation logger
func NewLogger(cfg LoggerConfig) *fdlog.Logger {
	level, err := fdlog.ParseLevel(cfg.Level)
	if err != nil {
		level = fdlog.LevelInfo
	}

	format, err := fdlog.ParseFormat(cfg.Format)
	if err != nil {
		format = fdlog.FormatJSON
	}

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}

	return fdlog.NewWithConfig(fdlog.Config{
		Level:        level,
		Format:       format,
		Output:       output,
		Name:         cfg.ServiceName,
		EnableCaller: cfg.EnableCaller,
	})
}

// NewSimpleLogger creates a logger with the default configuration
func NewSimpleLogger(serviceName string) *fdlog.Logger {
	return NewLogger(DefaultLoggerConfig(serviceName))
}
