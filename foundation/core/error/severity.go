// File: severity.go
// Title: Error Severity Levels
// Description: Severity levels used to pick the log level of a failure.
// Author: msto63
// Version: v0.2.0
// Created: 2025-01-24
// Modified: 2026-10-18

package error

// Severity represents the severity level of an error
type Severity int

const (
	// SeverityLow indicates a caller mistake or an expected miss (not found, bad input)
	SeverityLow Severity = iota

	// SeverityMedium indicates a transient failure the caller can retry
	SeverityMedium

	// SeverityHigh indicates a failure that needs operator attention (credentials, TLS)
	SeverityHigh

	// SeverityCritical indicates the client cannot work at all (bad configuration)
	SeverityCritical
)

// String returns the string representation of the severity level
func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "low"
	case SeverityMedium:
		return "medium"
	case SeverityHigh:
		return "high"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// ShouldAlert returns true if this severity level should trigger alerts
func (s Severity) ShouldAlert() bool {
	return s >= SeverityHigh
}

// GetSeverityFromCode determines appropriate severity level based on error code
func GetSeverityFromCode(code Code) Severity {
	switch code {
	case CodeConfig:
		return SeverityCritical
	case CodeCredential, CodeTransport, CodeUnauthenticated, CodeInternal:
		return SeverityHigh
	case CodeUnavailable, CodeDeadlineExceeded, CodeDecode:
		return SeverityMedium
	case CodeNotFound, CodeAlreadyExists, CodeInvalidArgument, CodeMissingField, CodeTypeMismatch:
		return SeverityLow
	default:
		return SeverityMedium
	}
}
