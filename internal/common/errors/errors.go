// Package errors provides standardized error handling for the compliance services.
package errors

import (
	"fmt"
	"time"
)

// ==========================
// 1. Error Kinds
// ==========================

// Kind is the fixed taxonomy every failure is classified into.
type Kind string

const (
	KindNetwork    Kind = "network"
	KindAuth       Kind = "auth"
	KindPermission Kind = "permission"
	KindValidation Kind = "validation"
	KindNotFound   Kind = "not_found"
	KindConflict   Kind = "conflict"
	KindRateLimit  Kind = "rate_limit"
	KindServer     Kind = "server"
	KindUnknown    Kind = "unknown"
)

// Code represents standardized internal error codes.
type Code string

const (
	CodeDocumentNotFound      Code = "DOCUMENT_NOT_FOUND"
	CodeInvalidTransition     Code = "INVALID_STATUS_TRANSITION"
	CodeUnknownStatus         Code = "UNKNOWN_STATUS"
	CodeMissingOrganization   Code = "MISSING_ORGANIZATION"
	CodeRevisionConflict      Code = "REVISION_CONFLICT"
	CodeImmutableField        Code = "IMMUTABLE_FIELD"
	CodeRiskDomain            Code = "RISK_VALUE_OUT_OF_RANGE"
	CodeInvalidInput          Code = "INVALID_INPUT"
	CodeCatalogInvalid        Code = "CATALOG_INVALID"
	CodeStoreUnavailable      Code = "STORE_UNAVAILABLE"
	CodeStoreWriteFailed      Code = "STORE_WRITE_FAILED"
	CodeSearchFailed          Code = "SEARCH_FAILED"
	CodeFunctionCallFailed    Code = "FUNCTION_CALL_FAILED"
	CodeFunctionTimeout       Code = "FUNCTION_TIMEOUT"
	CodeNotificationFailed    Code = "NOTIFICATION_SEND_FAILED"
	CodePermissionDenied      Code = "PERMISSION_DENIED"
	CodeRateLimited           Code = "RATE_LIMITED"
	CodeInternal              Code = "INTERNAL_ERROR"
)

// AppError is a structured application error.
type AppError struct {
	Kind      Kind                   `json:"kind"`
	Code      Code                   `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	cause     error
}

func (e *AppError) Error() string {
	return fmt.Sprintf("AppError[%s/%s]: %s", e.Kind, e.Code, e.Message)
}

// Unwrap exposes the underlying platform error, if any.
func (e *AppError) Unwrap() error {
	return e.cause
}

// ==========================
// 2. Constructors
// ==========================

// NewNotFoundError reports a document id that did not resolve.
func NewNotFoundError(collection, id string) *AppError {
	return &AppError{
		Kind:      KindNotFound,
		Code:      CodeDocumentNotFound,
		Message:   "Document not found",
		Details:   fmt.Sprintf("collection: %s, id: %s", collection, id),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidTransitionError reports a status change that violates the registry.
func NewInvalidTransitionError(current, requested string) *AppError {
	return &AppError{
		Kind:      KindValidation,
		Code:      CodeInvalidTransition,
		Message:   fmt.Sprintf("Transition from %q to %q is not allowed", current, requested),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewConfigurationError reports a status id missing from its registry.
func NewConfigurationError(status string) *AppError {
	return &AppError{
		Kind:      KindValidation,
		Code:      CodeUnknownStatus,
		Message:   "Status is not present in the status registry",
		Details:   fmt.Sprintf("status: %s", status),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewMissingOrganizationError reports a query or write without a tenant filter.
func NewMissingOrganizationError(operation string) *AppError {
	return &AppError{
		Kind:      KindValidation,
		Code:      CodeMissingOrganization,
		Message:   "Organization id is required on every operation",
		Details:   fmt.Sprintf("operation: %s", operation),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewRevisionConflictError reports an optimistic-transaction conflict.
func NewRevisionConflictError(collection, id string) *AppError {
	return &AppError{
		Kind:      KindConflict,
		Code:      CodeRevisionConflict,
		Message:   "Document was modified concurrently",
		Details:   fmt.Sprintf("collection: %s, id: %s", collection, id),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidInputError reports a request payload that failed validation.
func NewInvalidInputError(details string) *AppError {
	return &AppError{
		Kind:      KindValidation,
		Code:      CodeInvalidInput,
		Message:   "Invalid input",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewImmutableFieldError reports a write to an append-only or derived field.
func NewImmutableFieldError(field string) *AppError {
	return &AppError{
		Kind:      KindValidation,
		Code:      CodeImmutableField,
		Message:   fmt.Sprintf("Field %q cannot be set directly", field),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewRiskDomainError reports likelihood/severity outside 1..5.
func NewRiskDomainError(field string, value int) *AppError {
	return &AppError{
		Kind:      KindValidation,
		Code:      CodeRiskDomain,
		Message:   fmt.Sprintf("%s must be an integer between 1 and 5", field),
		Details:   fmt.Sprintf("got: %d", value),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewCatalogInvalidError reports a requirement catalog that failed schema validation.
func NewCatalogInvalidError(details string) *AppError {
	return &AppError{
		Kind:      KindValidation,
		Code:      CodeCatalogInvalid,
		Message:   "Requirement catalog failed validation",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewStoreUnavailableError reports a connection-level store failure.
func NewStoreUnavailableError(err error) *AppError {
	return &AppError{
		Kind:      KindNetwork,
		Code:      CodeStoreUnavailable,
		Message:   "Document store connection error",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewStoreWriteFailedError reports a failed store write.
func NewStoreWriteFailedError(err error) *AppError {
	return &AppError{
		Kind:      KindServer,
		Code:      CodeStoreWriteFailed,
		Message:   "Document store write failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewSearchFailedError reports a search backend failure.
func NewSearchFailedError(err error) *AppError {
	return &AppError{
		Kind:      KindServer,
		Code:      CodeSearchFailed,
		Message:   "Search query failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewFunctionCallFailedError reports a serverless function RPC failure.
func NewFunctionCallFailedError(name string, err error) *AppError {
	return &AppError{
		Kind:      KindServer,
		Code:      CodeFunctionCallFailed,
		Message:   fmt.Sprintf("Function %q call failed", name),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewFunctionTimeoutError reports a serverless function RPC timeout.
func NewFunctionTimeoutError(name string) *AppError {
	return &AppError{
		Kind:      KindNetwork,
		Code:      CodeFunctionTimeout,
		Message:   fmt.Sprintf("Function %q timed out", name),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewNotificationFailedError reports a reminder delivery failure.
func NewNotificationFailedError(channel string, err error) *AppError {
	return &AppError{
		Kind:      KindServer,
		Code:      CodeNotificationFailed,
		Message:   "Notification delivery failed",
		Details:   fmt.Sprintf("channel: %s, error: %s", channel, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewPermissionDeniedError reports an operation the actor may not perform.
func NewPermissionDeniedError(details string) *AppError {
	return &AppError{
		Kind:      KindPermission,
		Code:      CodePermissionDenied,
		Message:   "Permission denied",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewInternalError wraps an unexpected failure. A nil err is tolerated so
// guard paths can report a bare internal error.
func NewInternalError(err error) *AppError {
	details := ""
	if err != nil {
		details = err.Error()
	}
	return &AppError{
		Kind:      KindUnknown,
		Code:      CodeInternal,
		Message:   "Unexpected error",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// ==========================
// 3. Utility Functions
// ==========================

// IsRetryable reports whether err is safe to retry per the taxonomy.
func IsRetryable(err error) bool {
	appErr := AsAppError(err)
	if appErr == nil {
		return false
	}
	return appErr.Retryable
}

// KindOf returns the taxonomy kind of err (KindUnknown if unclassified).
func KindOf(err error) Kind {
	appErr := AsAppError(err)
	if appErr == nil {
		return KindUnknown
	}
	return appErr.Kind
}

// IsNotFound reports whether err is a not-found error.
func IsNotFound(err error) bool {
	return KindOf(err) == KindNotFound
}

// IsConflict reports whether err is an optimistic-concurrency conflict.
func IsConflict(err error) bool {
	return KindOf(err) == KindConflict
}

// UserMessage maps a kind into user-facing copy.
func UserMessage(kind Kind) string {
	switch kind {
	case KindNetwork:
		return "Connection problem. Check your network and try again."
	case KindAuth:
		return "Your session has expired. Please sign in again."
	case KindPermission:
		return "You don't have permission to perform this action."
	case KindValidation:
		return "Some of the submitted data is invalid. Review the highlighted fields."
	case KindNotFound:
		return "The requested record could not be found."
	case KindConflict:
		return "This record was changed by someone else. Reload and try again."
	case KindRateLimit:
		return "Too many requests. Wait a moment and try again."
	case KindServer:
		return "The service hit an unexpected problem. Try again shortly."
	default:
		return "Something went wrong. Try again or contact support."
	}
}
