// ============================================================================
// firedoc - Authenticated document-store client
// ============================================================================
//
// Package:     version
// Description: Central version information for the client and the emulator
// Author:      Mike Stoffels
// Created:     2025-12-06
// License:     MIT
// ============================================================================

package version

import (
	"fmt"
	"runtime"
)

// Component versions
const (
	Client   = "0.3.0"
	Emulator = "0.3.0"
)

// Set at build time via -ldflags
var (
	GitCommit = "development"
	BuildDate = "unknown"
)

// ComponentVersion returns the version for a given component name
func ComponentVersion(name string) string {
	switch name {
	case "emulator":
		return Emulator
	default:
		return Client
	}
}

// UserAgent returns the user agent sent on every RPC
func UserAgent() string {
	return fmt.Sprintf("firedoc/%s (%s; %s/%s)", Client, runtime.Version(), runtime.GOOS, runtime.GOARCH)
}
