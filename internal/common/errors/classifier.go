package errors

import (
	"context"
	"database/sql"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/redis/go-redis/v9"
)

// AsAppError unwraps err to an *AppError, or nil if it is not one.
func AsAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return nil
}

// Classify normalizes any error into the fixed taxonomy. Errors that are
// already AppErrors pass through unchanged.
func Classify(err error) *AppError {
	if err == nil {
		return nil
	}
	if appErr := AsAppError(err); appErr != nil {
		return appErr
	}

	kind, code, retryable := classifyPlatform(err)
	return &AppError{
		Kind:      kind,
		Code:      code,
		Message:   UserMessage(kind),
		Details:   err.Error(),
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

func classifyPlatform(err error) (Kind, Code, bool) {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return KindNetwork, CodeStoreUnavailable, true
	case errors.Is(err, context.Canceled):
		return KindUnknown, CodeInternal, false
	case errors.Is(err, sql.ErrNoRows), errors.Is(err, redis.Nil):
		return KindNotFound, CodeDocumentNotFound, false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return KindNetwork, CodeStoreUnavailable, true
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return classifyPostgres(pqErr)
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "permission denied"):
		return KindPermission, CodePermissionDenied, false
	case strings.Contains(msg, "unauthorized"), strings.Contains(msg, "unauthenticated"):
		return KindAuth, CodePermissionDenied, false
	case strings.Contains(msg, "too many requests"), strings.Contains(msg, "rate limit"):
		return KindRateLimit, CodeRateLimited, true
	case strings.Contains(msg, "connection refused"), strings.Contains(msg, "broken pipe"):
		return KindNetwork, CodeStoreUnavailable, true
	}

	return KindUnknown, CodeInternal, false
}

// Postgres SQLSTATE classes: 08 connection, 23 integrity, 40 rollback, 42 access.
func classifyPostgres(pqErr *pq.Error) (Kind, Code, bool) {
	class := pqErr.Code.Class()
	switch class {
	case "08":
		return KindNetwork, CodeStoreUnavailable, true
	case "23":
		return KindConflict, CodeRevisionConflict, false
	case "40":
		return KindConflict, CodeRevisionConflict, true
	case "42":
		return KindPermission, CodePermissionDenied, false
	case "53":
		return KindRateLimit, CodeRateLimited, true
	}
	return KindServer, CodeStoreWriteFailed, true
}

// FromHTTPStatus classifies a response status from an external HTTP collaborator.
func FromHTTPStatus(status int, body string) *AppError {
	var kind Kind
	var code Code
	retryable := false

	switch {
	case status == http.StatusUnauthorized:
		kind, code = KindAuth, CodePermissionDenied
	case status == http.StatusForbidden:
		kind, code = KindPermission, CodePermissionDenied
	case status == http.StatusNotFound:
		kind, code = KindNotFound, CodeDocumentNotFound
	case status == http.StatusConflict:
		kind, code = KindConflict, CodeRevisionConflict
	case status == http.StatusTooManyRequests:
		kind, code, retryable = KindRateLimit, CodeRateLimited, true
	case status >= 500:
		kind, code, retryable = KindServer, CodeFunctionCallFailed, true
	case status >= 400:
		kind, code = KindValidation, CodeFunctionCallFailed
	default:
		kind, code = KindUnknown, CodeInternal
	}

	return &AppError{
		Kind:      kind,
		Code:      code,
		Message:   UserMessage(kind),
		Details:   body,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
	}
}
