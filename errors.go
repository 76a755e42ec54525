package rowstore

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrorType represents the category of error
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeExecution  ErrorType = "execution"
	ErrorTypeConflict   ErrorType = "conflict"
	ErrorTypeInternal   ErrorType = "internal"
	ErrorTypeQuery      ErrorType = "query"
)

// Error is the error type returned by every rowstore operation.
type Error struct {
	Type      ErrorType      `json:"type"`
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	Operation string         `json:"operation,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
	Cause     error          `json:"-"`

	messageKey string
	params     []any
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Cause != nil {
		msg = msg + ": " + e.Cause.Error()
	}
	if e.Operation != "" {
		return fmt.Sprintf("[%s:%s] %s: %s", e.Type, e.Code, e.Operation, msg)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Type, e.Code, msg)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a rowstore error carrying the same code.
// It lets the exported sentinels work with errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code != "" && t.Code == e.Code
}

// WithDetail adds a single detail to the error
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithCause adds a cause to the error
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithOperation records the operation that failed
func (e *Error) WithOperation(op string) *Error {
	e.Operation = op
	return e
}

// Localize renders the message with the given printer. Errors that were not
// built from a catalog entry return their stored message.
func (e *Error) Localize(p MessagePrinter) string {
	if e.messageKey == "" || p == nil {
		return e.Message
	}
	return p.Sprintf(e.messageKey, e.params...)
}

// Error codes
const (
	ErrCodeUnknownKey         = "UNKNOWN_KEY"
	ErrCodeEmptyDataset       = "EMPTY_DATASET"
	ErrCodeEmptyPrimaryKey    = "EMPTY_PRIMARY_KEY"
	ErrCodeUnscopedDelete     = "UNSCOPED_DELETE"
	ErrCodeInvalidCompositeID = "INVALID_COMPOSITE_ID"
	ErrCodeInvalidRecord      = "INVALID_RECORD"
	ErrCodeUniqueViolation    = "UNIQUE_VIOLATION"
	ErrCodeQueryFailed        = "QUERY_FAILED"
	ErrCodeHookFailed         = "HOOK_FAILED"
	ErrCodeCircuitOpen        = "CIRCUIT_OPEN"
)

// Sentinels for errors.Is. Only the code is compared.
var (
	ErrUnknownKey         = &Error{Type: ErrorTypeValidation, Code: ErrCodeUnknownKey}
	ErrEmptyDataset       = &Error{Type: ErrorTypeValidation, Code: ErrCodeEmptyDataset}
	ErrEmptyPrimaryKey    = &Error{Type: ErrorTypeValidation, Code: ErrCodeEmptyPrimaryKey}
	ErrUnscopedDelete     = &Error{Type: ErrorTypeValidation, Code: ErrCodeUnscopedDelete}
	ErrInvalidCompositeID = &Error{Type: ErrorTypeValidation, Code: ErrCodeInvalidCompositeID}
	ErrInvalidRecord      = &Error{Type: ErrorTypeValidation, Code: ErrCodeInvalidRecord}
	ErrUniqueViolation    = &Error{Type: ErrorTypeConflict, Code: ErrCodeUniqueViolation}
	ErrQueryFailed        = &Error{Type: ErrorTypeExecution, Code: ErrCodeQueryFailed}
	ErrHookFailed         = &Error{Type: ErrorTypeExecution, Code: ErrCodeHookFailed}
	ErrCircuitOpen        = &Error{Type: ErrorTypeExecution, Code: ErrCodeCircuitOpen}
)

func newCatalogError(errorType ErrorType, code, key string, params ...any) *Error {
	return &Error{
		Type:       errorType,
		Code:       code,
		Message:    FormatMessage(DefaultLanguage, key, params...),
		Details:    make(map[string]any),
		messageKey: key,
		params:     params,
	}
}

// NewUnknownKeyError is returned by FindAlt when the requested columns match
// neither the primary key nor a registered alternate key.
func NewUnknownKeyError(columns []string, recordType string) *Error {
	joined := strings.Join(columns, ", ")
	return newCatalogError(ErrorTypeValidation, ErrCodeUnknownKey, MsgNotUniqueKey, joined, recordType).
		WithDetail("columns", columns).
		WithDetail("record_type", recordType)
}

// NewEmptyDatasetError is returned when a write has no data after projection.
func NewEmptyDatasetError(op string) *Error {
	return newCatalogError(ErrorTypeValidation, ErrCodeEmptyDataset, MsgEmptyDataset, op).
		WithOperation(op)
}

// NewEmptyPrimaryKeyError is returned when auto increment is off and the key
// columns are not all set.
func NewEmptyPrimaryKeyError(op string) *Error {
	return newCatalogError(ErrorTypeValidation, ErrCodeEmptyPrimaryKey, MsgEmptyPrimaryKey, op).
		WithOperation(op)
}

// NewUnscopedDeleteError is returned in strict mode when a delete carries no
// predicate at all.
func NewUnscopedDeleteError() *Error {
	return newCatalogError(ErrorTypeValidation, ErrCodeUnscopedDelete, MsgDeleteAllNotAllowed).
		WithOperation("delete")
}

// NewInvalidCompositeIDError is returned when a map identifier does not name a
// leading prefix of the composite key.
func NewInvalidCompositeIDError(key Key, recordType string) *Error {
	return newCatalogError(ErrorTypeValidation, ErrCodeInvalidCompositeID, MsgInvalidCompositeID, strings.Join(key, ", "), recordType).
		WithDetail("key", []string(key))
}

// NewInvalidRecordError is returned when a value cannot be projected into a
// flat record.
func NewInvalidRecordError(reason string) *Error {
	return newCatalogError(ErrorTypeValidation, ErrCodeInvalidRecord, MsgInvalidRecord, reason)
}

// NewUniqueViolationError wraps a driver error caused by a unique constraint.
func NewUniqueViolationError(cause error) *Error {
	return &Error{
		Type:    ErrorTypeConflict,
		Code:    ErrCodeUniqueViolation,
		Message: "unique constraint violated",
		Cause:   cause,
		Details: make(map[string]any),
	}
}

// NewQueryError wraps any other engine failure.
func NewQueryError(op string, cause error) *Error {
	return &Error{
		Type:      ErrorTypeExecution,
		Code:      ErrCodeQueryFailed,
		Message:   "query failed",
		Operation: op,
		Cause:     cause,
		Details:   make(map[string]any),
	}
}

// NewHookError wraps an error returned by a lifecycle hook.
func NewHookError(event EventName, cause error) *Error {
	return &Error{
		Type:      ErrorTypeExecution,
		Code:      ErrCodeHookFailed,
		Message:   "hook " + string(event) + " failed",
		Operation: string(event),
		Cause:     cause,
		Details:   make(map[string]any),
	}
}

// NewCircuitOpenError is returned without touching the database while the
// engine's circuit breaker is open.
func NewCircuitOpenError(table string, until time.Time) *Error {
	return &Error{
		Type:    ErrorTypeExecution,
		Code:    ErrCodeCircuitOpen,
		Message: "circuit breaker open, statements are rejected",
		Details: map[string]any{"table": table, "retry_after": until},
	}
}

// ConfigError represents a configuration validation error
type ConfigError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ConfigError) Error() string {
	return "config validation error for field '" + e.Field + "': " + e.Message
}
