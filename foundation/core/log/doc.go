// Package log provides structured logging for firedoc.
//
// Package: log
// Title: Structured Logger
// Description: Leveled logger with persistent context fields, JSON and text output, caller
// information and operation timers. Fields whose key names a credential (authorization,
// access_token, private_key, assertion) are redacted by every formatter.
// Author: msto63
// Version: v0.2.0
// Created: 2025-01-24
// Modified: 2026-10-18
//
// Usage:
//
//	logger := log.NewWithConfig(log.Config{Level: log.LevelDebug, Format: log.FormatText, Name: "docstore"})
//	logger.Info("listing documents", log.Fields{"collection": "tasks"})
//
//	timer := logger.StartTimer("ListDocuments")
//	defer timer.Stop()
package log
