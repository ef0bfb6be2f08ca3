package types

import "fmt"

// ErrorCode is a typed string for categorizing application errors.
type ErrorCode string

// Error code constants. Adapters MUST use these constants instead of
// hardcoded strings so operators can alert on stable codes.
const (
	// Validation
	ErrCodeValidationMissingField ErrorCode = "validation_missing_required_field"
	ErrCodeValidationInvalidTime  ErrorCode = "validation_invalid_timestamp"
	ErrCodeValidationInvalidBody  ErrorCode = "validation_invalid_body"

	// Not Found
	ErrCodeNotFoundTask ErrorCode = "not_found_task"
	ErrCodeNotFoundUser ErrorCode = "not_found_user"

	// Conflict
	ErrCodeConflictIdempotency ErrorCode = "conflict_idempotency_mismatch"

	// Internal / Upstream
	ErrCodeInternalDB         ErrorCode = "internal_database_error"
	ErrCodeInternalLedger     ErrorCode = "internal_ledger_error"
	ErrCodeInternalUnexpected ErrorCode = "internal_unexpected_error"
	ErrCodeUpstreamPush       ErrorCode = "upstream_push_unavailable"
	ErrCodeUpstreamQueue      ErrorCode = "upstream_queue_unavailable"
	ErrCodeUpstreamRateLimited ErrorCode = "upstream_rate_limited"
)

// AppError is the standard application error type. All adapter errors are
// expressed as AppError to enable consistent logging and error chain support.
type AppError struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Err     error          `json:"-"`
	Details map[string]any `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// HTTPStatus maps the error code to an HTTP status for API responses.
func (e *AppError) HTTPStatus() int {
	switch e.Code {
	case ErrCodeValidationMissingField, ErrCodeValidationInvalidTime, ErrCodeValidationInvalidBody:
		return 400
	case ErrCodeNotFoundTask, ErrCodeNotFoundUser:
		return 404
	case ErrCodeConflictIdempotency:
		return 409
	case ErrCodeUpstreamRateLimited:
		return 429
	case ErrCodeUpstreamPush, ErrCodeUpstreamQueue:
		return 502
	default:
		return 500
	}
}

// NewAppError creates a new AppError with the given code, message, and
// optional underlying error. This is the standard constructor for domain
// errors.
func NewAppError(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}
