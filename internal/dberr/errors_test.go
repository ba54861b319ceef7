package dberr

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestInference(t *testing.T) {
	tests := []struct {
		code      Code
		category  Category
		severity  Severity
		retryable bool
	}{
		{CodeConnectionFailed, CategoryConnection, SeverityCritical, true},
		{CodeConnectionTimeout, CategoryConnection, SeverityMedium, true},
		{CodeAuthFailed, CategoryAuthentication, SeverityHigh, false},
		{CodeInvalidInput, CategoryValidation, SeverityLow, false},
		{CodeRequiredField, CategoryValidation, SeverityLow, false},
		{CodeRecordNotFound, CategoryNotFound, SeverityLow, false},
		{CodeDuplicateKey, CategoryConflict, SeverityMedium, false},
		{CodeForeignKeyViolation, CategoryConflict, SeverityMedium, true},
		{CodeConcurrentModification, CategoryConflict, SeverityMedium, true},
		{CodeOperationTimeout, CategoryTimeout, SeverityMedium, true},
		{CodeNetworkError, CategoryNetwork, SeverityMedium, true},
		{CodeStorageFull, CategoryStorage, SeverityCritical, true},
		{CodeCorruption, CategoryStorage, SeverityCritical, true},
		{CodeSyncFailed, CategorySync, SeverityHigh, true},
		{CodeTransactionFailed, CategoryTransaction, SeverityMedium, true},
		{CodeRollbackFailed, CategoryTransaction, SeverityMedium, true},
		{CodeNotSupported, CategoryUnknown, SeverityMedium, false},
		{CodeInvalidConfig, CategoryConfiguration, SeverityHigh, false},
		{CodeProviderNotSupported, CategoryConfiguration, SeverityMedium, false},
		{CodeUnknown, CategoryUnknown, SeverityMedium, true},
	}
	for _, tt := range tests {
		e := New(tt.code, "sqlite", "op", "boom")
		if e.Category != tt.category {
			t.Errorf("%s: category = %q, want %q", tt.code, e.Category, tt.category)
		}
		if e.Severity != tt.severity {
			t.Errorf("%s: severity = %q, want %q", tt.code, e.Severity, tt.severity)
		}
		if e.Retryable != tt.retryable {
			t.Errorf("%s: retryable = %v, want %v", tt.code, e.Retryable, tt.retryable)
		}
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("disk exploded")
	e := Wrap(cause, CodeStorageFull, "sqlite", "create_note", "cannot write")
	if !errors.Is(e, cause) {
		t.Error("wrapped error should match its cause via errors.Is")
	}
	wrapped := fmt.Errorf("outer: %w", e)
	var got *Error
	if !errors.As(wrapped, &got) {
		t.Fatal("errors.As should find *Error through wrapping")
	}
	if got.Code != CodeStorageFull {
		t.Errorf("code = %q, want %q", got.Code, CodeStorageFull)
	}
}

func TestNotFound(t *testing.T) {
	e := NotFound("notes", "n-1", "sqlite", "get_note")
	if e.Code != CodeRecordNotFound {
		t.Errorf("code = %q, want %q", e.Code, CodeRecordNotFound)
	}
	if e.Context.Table != "notes" || e.Context.RecordID != "n-1" {
		t.Errorf("context = %+v, want table notes record n-1", e.Context)
	}
	if !IsNotFound(e) {
		t.Error("IsNotFound should report true")
	}
	if IsRetryable(e) {
		t.Error("not-found should not be retryable")
	}
}

func TestFluentOverrides(t *testing.T) {
	e := New(CodeConcurrentModification, "factory", "switch_provider", "busy").
		WithRetry(time.Second)
	if !e.Retryable || e.RetryAfter != time.Second {
		t.Errorf("retry = (%v, %v), want (true, 1s)", e.Retryable, e.RetryAfter)
	}
	e = e.NonRetryable()
	if e.Retryable || e.RetryAfter != 0 {
		t.Error("NonRetryable should clear retry hints")
	}

	e2 := New(CodeInvalidInput, "sqlite", "update_note", "bad").In("notes").ForRecord("n-2")
	if e2.Context.Table != "notes" || e2.Context.RecordID != "n-2" {
		t.Errorf("context = %+v", e2.Context)
	}
	if !IsValidation(e2) {
		t.Error("IsValidation should report true for INVALID_INPUT")
	}
}

func TestCodeOf(t *testing.T) {
	if got := CodeOf(errors.New("plain")); got != CodeUnknown {
		t.Errorf("CodeOf(plain) = %q, want %q", got, CodeUnknown)
	}
	if got := CodeOf(New(CodeDuplicateKey, "sqlite", "op", "dup")); got != CodeDuplicateKey {
		t.Errorf("CodeOf = %q, want %q", got, CodeDuplicateKey)
	}
}
