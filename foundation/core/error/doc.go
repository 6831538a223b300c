// Package error provides the structured error type shared by all firedoc packages.
//
// Package: error
// Title: firedoc Error Handling Framework
// Description: Every failure surfaced by the document client is an *Error carrying a code from
// a closed taxonomy, a severity, the failing operation and structured details (path, field,
// expected and actual type). Callers branch on the code, never on the message text.
// Author: msto63
// Version: v0.2.0
// Created: 2025-01-24
// Modified: 2026-10-18
//
// Change History:
// - 2025-01-24 v0.1.0: Initial implementation with contextual errors and codes
// - 2026-10-18 v0.2.0: Closed document-store taxonomy, errors.As based inspection
//
// Usage:
//
//	import fderror "github.com/msto63/firedoc/foundation/core/error"
//
//	err := fderror.New("document not found").
//		WithCode(fderror.CodeNotFound).
//		WithOperation("GetDocument").
//		WithDetail("path", "tasks/doc1")
//
//	if fderror.HasCode(err, fderror.CodeNotFound) {
//		// ...
//	}
package error
