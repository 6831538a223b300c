// File: error_test.go
// Title: Error Module Tests
// Description: Tests for error creation, wrapping, codes, severity and detail access.
// Author: msto63
// Version: v0.2.0
// Created: 2025-01-24
// Modified: 2026-10-18

package error

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	msg := "test error message"
	err := New(msg)

	if err == nil {
		t.Fatal("New() returned nil")
	}
	if err.Error() != msg {
		t.Errorf("Error() = %q, want %q", err.Error(), msg)
	}
	if err.Code() != CodeUnknown {
		t.Errorf("Code() = %v, want %v", err.Code(), CodeUnknown)
	}
	if err.Severity() != SeverityMedium {
		t.Errorf("Severity() = %v, want %v", err.Severity(), SeverityMedium)
	}
	if err.Timestamp().IsZero() {
		t.Error("Timestamp() should not be zero")
	}
	if len(err.StackTrace()) == 0 {
		t.Error("StackTrace() should not be empty")
	}
	if !strings.Contains(err.StackTrace()[0].Function, "TestNew") {
		t.Errorf("first frame = %s, want the caller of New", err.StackTrace()[0].Function)
	}
}

func TestWrap(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		message  string
		wantNil  bool
		wantMsg  string
		wantCode Code
	}{
		{
			name:    "wrap nil error",
			err:     nil,
			message: "wrapper message",
			wantNil: true,
		},
		{
			name:     "wrap standard error",
			err:      errors.New("original error"),
			message:  "wrapper message",
			wantMsg:  "wrapper message: original error",
			wantCode: CodeUnknown,
		},
		{
			name:     "wrap coded error",
			err:      New("document missing").WithCode(CodeNotFound),
			message:  "get failed",
			wantMsg:  "get failed: document missing",
			wantCode: CodeNotFound,
		},
		{
			name:     "wrap fmt-wrapped coded error",
			err:      fmt.Errorf("outer: %w", New("refused").WithCode(CodeTransport)),
			message:  "connect",
			wantMsg:  "connect: outer: refused",
			wantCode: CodeTransport,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Wrap(tt.err, tt.message)
			if tt.wantNil {
				if got != nil {
					t.Errorf("Wrap() = %v, want nil", got)
				}
				return
			}
			if got.Error() != tt.wantMsg {
				t.Errorf("Error() = %q, want %q", got.Error(), tt.wantMsg)
			}
			if got.Code() != tt.wantCode {
				t.Errorf("Code() = %v, want %v", got.Code(), tt.wantCode)
			}
			if !errors.Is(got, tt.err) {
				t.Error("wrapped error should match its cause with errors.Is")
			}
		})
	}
}

func TestWrap_CarriesDetails(t *testing.T) {
	inner := New("wrong type").
		WithCode(CodeTypeMismatch).
		WithDetail(DetailField, "done").
		WithOperation("ToRecord")

	outer := Wrap(inner, "list tasks")

	if outer.DetailString(DetailField) != "done" {
		t.Errorf("field detail = %q, want done", outer.DetailString(DetailField))
	}
	if outer.Operation() != "ToRecord" {
		t.Errorf("Operation() = %q, want ToRecord", outer.Operation())
	}
}

func TestWithCode_Severity(t *testing.T) {
	tests := []struct {
		code Code
		want Severity
	}{
		{CodeConfig, SeverityCritical},
		{CodeCredential, SeverityHigh},
		{CodeTransport, SeverityHigh},
		{CodeUnavailable, SeverityMedium},
		{CodeNotFound, SeverityLow},
		{CodeTypeMismatch, SeverityLow},
	}

	for _, tt := range tests {
		t.Run(tt.code.String(), func(t *testing.T) {
			if got := New("x").WithCode(tt.code).Severity(); got != tt.want {
				t.Errorf("Severity() = %v, want %v", got, tt.want)
			}
		})
	}

	explicit := New("x").WithSeverity(SeverityCritical).WithCode(CodeNotFound)
	if explicit.Severity() != SeverityCritical {
		t.Errorf("explicit severity overwritten: got %v", explicit.Severity())
	}
}

func TestHasCode_ThroughWrapping(t *testing.T) {
	base := New("nope").WithCode(CodeAlreadyExists)
	wrapped := fmt.Errorf("create: %w", base)

	if !HasCode(wrapped, CodeAlreadyExists) {
		t.Error("HasCode should see through fmt wrapping")
	}
	if HasCode(errors.New("plain"), CodeAlreadyExists) {
		t.Error("HasCode on a plain error should be false")
	}
	if GetCode(nil) != CodeUnknown {
		t.Errorf("GetCode(nil) = %v, want UNKNOWN", GetCode(nil))
	}
	if !errors.Is(wrapped, New("").WithCode(CodeAlreadyExists)) {
		t.Error("errors.Is should match by code")
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		code Code
		want bool
	}{
		{CodeUnavailable, true},
		{CodeDeadlineExceeded, true},
		{CodeUnauthenticated, false},
		{CodeNotFound, false},
		{CodeInternal, false},
		{CodeTypeMismatch, false},
	}

	for _, tt := range tests {
		t.Run(tt.code.String(), func(t *testing.T) {
			if got := IsRetryable(New("x").WithCode(tt.code)); got != tt.want {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCode_Category(t *testing.T) {
	if CodeMissingField.Category() != "mapping" {
		t.Errorf("Category() = %q, want mapping", CodeMissingField.Category())
	}
	if !CodeDecode.IsValid() || Code("BOGUS").IsValid() {
		t.Error("IsValid() does not reflect the closed taxonomy")
	}
}

func TestRootCause(t *testing.T) {
	root := errors.New("connection refused")
	err := Wrap(Wrap(root, "dial"), "connect")

	if err.RootCause() != root {
		t.Errorf("RootCause() = %v, want %v", err.RootCause(), root)
	}
}

func TestMarshalJSON(t *testing.T) {
	err := New("missing").WithCode(CodeMissingField).WithDetail(DetailField, "done")

	data, jerr := json.Marshal(err)
	if jerr != nil {
		t.Fatalf("Marshal() error = %v", jerr)
	}

	var decoded map[string]interface{}
	if jerr := json.Unmarshal(data, &decoded); jerr != nil {
		t.Fatalf("Unmarshal() error = %v", jerr)
	}
	if decoded["code"] != "MISSING_FIELD" {
		t.Errorf("code = %v, want MISSING_FIELD", decoded["code"])
	}
	details := decoded["details"].(map[string]interface{})
	if details["field"] != "done" {
		t.Errorf("details.field = %v, want done", details["field"])
	}
}

func TestString_SortedDetails(t *testing.T) {
	err := New("x").WithDetail("b", 2).WithDetail("a", 1)
	if !strings.Contains(err.String(), "Details: {a=1, b=2}") {
		t.Errorf("String() = %q", err.String())
	}
}
