// Package errors provides standardized error handling for the marketplace core.
package errors

import (
	"fmt"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

// Business Rule / Token Economy Errors
const (
	ErrCodeInsufficientTokens ErrorCode = "INSUFFICIENT_TOKENS"
	ErrCodeUnknownTokenAction ErrorCode = "UNKNOWN_TOKEN_ACTION"
	ErrCodeDuplicateReveal    ErrorCode = "DUPLICATE_REVEAL"

	ErrCodeNotFound  ErrorCode = "NOT_FOUND"
	ErrCodeForbidden ErrorCode = "FORBIDDEN"

	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"

	ErrCodeDatabaseConnectionFailed ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeQueryExecutionFailed     ErrorCode = "QUERY_EXECUTION_FAILED"
	ErrCodeQueryTimeout             ErrorCode = "QUERY_TIMEOUT"

	ErrCodeSearchQueryFailed ErrorCode = "SEARCH_QUERY_FAILED"
	ErrCodeSearchTimeout     ErrorCode = "SEARCH_TIMEOUT"

	ErrCodeNotificationSendFailed ErrorCode = "NOTIFICATION_SEND_FAILED"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// AsStandardError returns err as a *StandardError when it is one.
func AsStandardError(err error) (*StandardError, bool) {
	se, ok := err.(*StandardError)
	return se, ok
}

// IsCode reports whether err is a StandardError with the given code.
func IsCode(err error, code ErrorCode) bool {
	se, ok := AsStandardError(err)
	return ok && se.Code == code
}

// ==========================
// 2. Error Constructors
// ==========================

// NewInsufficientTokensError creates the payment-required business error.
// required carries the amount the caller would need to complete the action.
func NewInsufficientTokensError(required, available int) *StandardError {
	return &StandardError{
		Code:      ErrCodeInsufficientTokens,
		Message:   "Insufficient token balance",
		Details:   fmt.Sprintf("required: %d, available: %d", required, available),
		Retryable: false,
		Metadata: map[string]interface{}{
			"required":  required,
			"available": available,
		},
		Timestamp: time.Now().UTC(),
	}
}

// NewUnknownTokenActionError creates a non-retryable error for an action
// missing from the configured cost table.
func NewUnknownTokenActionError(action string) *StandardError {
	return &StandardError{
		Code:      ErrCodeUnknownTokenAction,
		Message:   "No token cost configured for action",
		Details:   fmt.Sprintf("action: %s", action),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewDuplicateRevealError marks a reveal insert that hit the pair uniqueness
// constraint. Callers treat it as idempotent success, never as a failure.
func NewDuplicateRevealError(companyID, studentID int64) *StandardError {
	return &StandardError{
		Code:      ErrCodeDuplicateReveal,
		Message:   "CV already revealed for this company and student",
		Details:   fmt.Sprintf("companyId: %d, studentId: %d", companyID, studentID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewNotFoundError creates a non-retryable missing-resource error.
func NewNotFoundError(resource string, id int64) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotFound,
		Message:   fmt.Sprintf("%s not found", resource),
		Details:   fmt.Sprintf("%s id: %d", resource, id),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewForbiddenError creates a non-retryable authorization error.
func NewForbiddenError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeForbidden,
		Message:   "Acting user has no active company association",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewValidationFailedError creates a non-retryable request validation error.
func NewValidationFailedError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeValidationFailed,
		Message:   "Request validation failed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewDatabaseConnectionFailedError creates a retryable database connection error.
func NewDatabaseConnectionFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDatabaseConnectionFailed,
		Message:   "Database connection error",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewQueryExecutionFailedError creates a retryable query execution error.
func NewQueryExecutionFailedError(operation string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeQueryExecutionFailed,
		Message:   "Database query execution error",
		Details:   fmt.Sprintf("operation: %s, error: %s", operation, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewQueryTimeoutError creates a retryable query timeout error.
func NewQueryTimeoutError(operation string) *StandardError {
	return &StandardError{
		Code:      ErrCodeQueryTimeout,
		Message:   "Database query timeout",
		Details:   fmt.Sprintf("operation: %s", operation),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewSearchQueryFailedError creates a retryable candidate-pool query error.
func NewSearchQueryFailedError(searchType string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeSearchQueryFailed,
		Message:   "Candidate search query error",
		Details:   fmt.Sprintf("searchType: %s, error: %s", searchType, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewSearchTimeoutError creates a retryable candidate-pool timeout error.
func NewSearchTimeoutError(searchType string) *StandardError {
	return &StandardError{
		Code:      ErrCodeSearchTimeout,
		Message:   "Candidate search timeout",
		Details:   fmt.Sprintf("searchType: %s", searchType),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewNotificationSendFailedError creates a retryable delivery error. The
// dispatcher logs it; it is never surfaced to API callers.
func NewNotificationSendFailedError(channel string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotificationSendFailed,
		Message:   "Notification delivery failed",
		Details:   fmt.Sprintf("channel: %s, error: %s", channel, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}
