// Package dberr defines the structured error taxonomy shared by all
// storage providers. Callers are expected to switch on Code, not on
// message text.
package dberr

import (
	"errors"
	"fmt"
	"time"
)

// Code is a machine-readable error code. The enumeration is closed:
// providers must not invent codes outside this set.
type Code string

const (
	CodeConnectionFailed       Code = "CONNECTION_FAILED"
	CodeConnectionTimeout      Code = "CONNECTION_TIMEOUT"
	CodeAuthFailed             Code = "AUTH_FAILED"
	CodeInvalidInput           Code = "INVALID_INPUT"
	CodeRequiredField          Code = "REQUIRED_FIELD"
	CodeRecordNotFound         Code = "RECORD_NOT_FOUND"
	CodeDuplicateKey           Code = "DUPLICATE_KEY"
	CodeForeignKeyViolation    Code = "FOREIGN_KEY_VIOLATION"
	CodeConcurrentModification Code = "CONCURRENT_MODIFICATION"
	CodeOperationTimeout       Code = "OPERATION_TIMEOUT"
	CodeNetworkError           Code = "NETWORK_ERROR"
	CodeStorageFull            Code = "STORAGE_FULL"
	CodeCorruption             Code = "CORRUPTION"
	CodeSyncFailed             Code = "SYNC_FAILED"
	CodeTransactionFailed      Code = "TRANSACTION_FAILED"
	CodeRollbackFailed         Code = "ROLLBACK_FAILED"
	CodeNotSupported           Code = "NOT_SUPPORTED"
	CodeInvalidConfig          Code = "INVALID_CONFIG"
	CodeProviderNotSupported   Code = "PROVIDER_NOT_SUPPORTED"
	CodeUnknown                Code = "UNKNOWN"
)

// Category is a coarser grouping used for UI messaging.
type Category string

const (
	CategoryConnection     Category = "connection"
	CategoryAuthentication Category = "authentication"
	CategoryValidation     Category = "validation"
	CategoryNotFound       Category = "not_found"
	CategoryConflict       Category = "conflict"
	CategoryTimeout        Category = "timeout"
	CategoryNetwork        Category = "network"
	CategoryStorage        Category = "storage"
	CategorySync           Category = "sync"
	CategoryTransaction    Category = "transaction"
	CategoryConfiguration  Category = "configuration"
	CategoryUnknown        Category = "unknown"
)

// Severity grades how serious an error is.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Context identifies where an error happened.
type Context struct {
	Operation string    `json:"operation"`
	Table     string    `json:"table,omitempty"`
	RecordID  string    `json:"record_id,omitempty"`
	Provider  string    `json:"provider"`
	Timestamp time.Time `json:"timestamp"`
}

// Error is the structured error returned by every provider operation.
// Category, Severity, and Retryable are inferred from Code unless
// overridden through the With* methods.
type Error struct {
	Code       Code          `json:"code"`
	Category   Category      `json:"category"`
	Severity   Severity      `json:"severity"`
	Message    string        `json:"message"`
	Field      string        `json:"field,omitempty"` // offending field for validation errors
	Context    Context       `json:"context"`
	Retryable  bool          `json:"retryable"`
	RetryAfter time.Duration `json:"retry_after,omitempty"` // suggested backoff, 0 when unset
	Cause      error         `json:"-"`
}

// New builds an error with category, severity, and retryability
// inferred from code.
func New(code Code, provider, operation, message string) *Error {
	return &Error{
		Code:      code,
		Category:  categoryOf(code),
		Severity:  severityOf(code),
		Message:   message,
		Retryable: retryableByDefault(code),
		Context: Context{
			Operation: operation,
			Provider:  provider,
			Timestamp: time.Now().UTC(),
		},
	}
}

// Wrap builds an error around an underlying cause, preserving it for
// errors.Is/As and diagnostics.
func Wrap(cause error, code Code, provider, operation, message string) *Error {
	e := New(code, provider, operation, message)
	e.Cause = cause
	return e
}

// NotFound reports an absent record.
func NotFound(table, id, provider, operation string) *Error {
	e := New(CodeRecordNotFound, provider, operation,
		fmt.Sprintf("%s with id %s not found", table, id))
	e.Context.Table = table
	e.Context.RecordID = id
	return e
}

// Invalid reports rejected input, carrying the offending field name.
func Invalid(message, field, provider, operation string) *Error {
	e := New(CodeInvalidInput, provider, operation, message)
	e.Field = field
	return e
}

// Conflict reports a structural-invariant violation on a record.
func Conflict(message, table, id, provider, operation string) *Error {
	e := New(CodeForeignKeyViolation, provider, operation, message)
	e.Context.Table = table
	e.Context.RecordID = id
	return e
}

// NotSupported reports an operation the provider does not implement.
func NotSupported(message, provider, operation string) *Error {
	return New(CodeNotSupported, provider, operation, message)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Context.Operation, e.Message, e.Cause)
	}
	if e.Context.Operation != "" {
		return fmt.Sprintf("%s: %s", e.Context.Operation, e.Message)
	}
	return e.Message
}

// Unwrap exposes the original cause.
func (e *Error) Unwrap() error { return e.Cause }

// In records the affected table on the error context.
func (e *Error) In(table string) *Error {
	e.Context.Table = table
	return e
}

// ForRecord records the affected record id on the error context.
func (e *Error) ForRecord(id string) *Error {
	e.Context.RecordID = id
	return e
}

// WithSeverity overrides the inferred severity.
func (e *Error) WithSeverity(s Severity) *Error {
	e.Severity = s
	return e
}

// WithRetry marks the error retryable with a suggested backoff.
func (e *Error) WithRetry(after time.Duration) *Error {
	e.Retryable = true
	e.RetryAfter = after
	return e
}

// NonRetryable overrides the inferred retryability.
func (e *Error) NonRetryable() *Error {
	e.Retryable = false
	e.RetryAfter = 0
	return e
}

func categoryOf(code Code) Category {
	switch code {
	case CodeConnectionFailed, CodeConnectionTimeout:
		return CategoryConnection
	case CodeAuthFailed:
		return CategoryAuthentication
	case CodeInvalidInput, CodeRequiredField:
		return CategoryValidation
	case CodeRecordNotFound:
		return CategoryNotFound
	case CodeDuplicateKey, CodeForeignKeyViolation, CodeConcurrentModification:
		return CategoryConflict
	case CodeOperationTimeout:
		return CategoryTimeout
	case CodeNetworkError:
		return CategoryNetwork
	case CodeStorageFull, CodeCorruption:
		return CategoryStorage
	case CodeSyncFailed:
		return CategorySync
	case CodeTransactionFailed, CodeRollbackFailed:
		return CategoryTransaction
	case CodeInvalidConfig, CodeProviderNotSupported:
		return CategoryConfiguration
	default:
		return CategoryUnknown
	}
}

func severityOf(code Code) Severity {
	switch code {
	case CodeCorruption, CodeStorageFull, CodeConnectionFailed:
		return SeverityCritical
	case CodeAuthFailed, CodeSyncFailed, CodeInvalidConfig:
		return SeverityHigh
	case CodeRecordNotFound, CodeInvalidInput, CodeRequiredField:
		return SeverityLow
	default:
		return SeverityMedium
	}
}

func retryableByDefault(code Code) bool {
	switch code {
	case CodeAuthFailed, CodeInvalidInput, CodeRequiredField,
		CodeDuplicateKey, CodeRecordNotFound, CodeNotSupported,
		CodeInvalidConfig, CodeProviderNotSupported:
		return false
	default:
		return true
	}
}

// CodeOf extracts the code from any error, or CodeUnknown for errors
// outside the taxonomy.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code Code) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == code
}

// IsNotFound reports whether err is a record-not-found error.
func IsNotFound(err error) bool { return IsCode(err, CodeRecordNotFound) }

// IsValidation reports whether err is a validation error.
func IsValidation(err error) bool {
	return IsCode(err, CodeInvalidInput) || IsCode(err, CodeRequiredField)
}

// IsRetryable reports whether a generic retry wrapper may retry err.
func IsRetryable(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Retryable
}
