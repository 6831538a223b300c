// File: codes.go
// Title: Error Code Definitions
// Description: Defines the closed set of error codes returned by the document
//              client and the layers below it.
// Author: msto63
// Version: v0.2.0
// Created: 2025-01-24
// Modified: 2026-10-18
//
// Change History:
// - 2025-01-24 v0.1.0: Initial implementation with core error codes
// - 2026-10-18 v0.2.0: Replaced platform codes with the document-store taxonomy

package error

// Code represents a structured error code for categorizing errors
type Code string

const (
	CodeUnknown Code = "UNKNOWN"

	// Remote call outcomes
	CodeUnauthenticated  Code = "UNAUTHENTICATED"
	CodeNotFound         Code = "NOT_FOUND"
	CodeAlreadyExists    Code = "ALREADY_EXISTS"
	CodeInvalidArgument  Code = "INVALID_ARGUMENT"
	CodeUnavailable      Code = "UNAVAILABLE"
	CodeDeadlineExceeded Code = "DEADLINE_EXCEEDED"
	CodeInternal         Code = "INTERNAL"

	// Lower layers
	CodeCredential   Code = "CREDENTIAL_ERROR"
	CodeTransport    Code = "TRANSPORT_ERROR"
	CodeDecode       Code = "DECODE_ERROR"
	CodeMissingField Code = "MISSING_FIELD"
	CodeTypeMismatch Code = "TYPE_MISMATCH"
	CodeConfig       Code = "CONFIG_ERROR"
)

// String returns the string representation of the error code
func (c Code) String() string {
	return string(c)
}

// IsValid checks if the error code is a member of the taxonomy
func (c Code) IsValid() bool {
	switch c {
	case CodeUnknown,
		CodeUnauthenticated, CodeNotFound, CodeAlreadyExists, CodeInvalidArgument,
		CodeUnavailable, CodeDeadlineExceeded, CodeInternal,
		CodeCredential, CodeTransport, CodeDecode, CodeMissingField, CodeTypeMismatch, CodeConfig:
		return true
	default:
		return false
	}
}

// Category returns the layer the code belongs to
func (c Code) Category() string {
	switch c {
	case CodeUnauthenticated, CodeCredential:
		return "authentication"
	case CodeNotFound, CodeAlreadyExists, CodeInvalidArgument, CodeInternal:
		return "rpc"
	case CodeUnavailable, CodeDeadlineExceeded, CodeTransport:
		return "transport"
	case CodeDecode:
		return "codec"
	case CodeMissingField, CodeTypeMismatch:
		return "mapping"
	case CodeConfig:
		return "configuration"
	default:
		return "generic"
	}
}

// Retryable reports whether a caller may retry the failed call with backoff.
// Only transient transport failures qualify.
func (c Code) Retryable() bool {
	return c == CodeUnavailable || c == CodeDeadlineExceeded
}
