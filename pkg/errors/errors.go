package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// ErrorCode represents application error codes
type ErrorCode string

const (
	ErrCodeInvalidInput       ErrorCode = "INVALID_INPUT"
	ErrCodeInvalidLink        ErrorCode = "INVALID_LINK"
	ErrCodeInvalidStream      ErrorCode = "INVALID_STREAM"
	ErrCodeInvariant          ErrorCode = "INVARIANT_VIOLATION"
	ErrCodeStreamUnverifiable ErrorCode = "STREAM_UNVERIFIABLE"
	ErrCodeNotFound           ErrorCode = "NOT_FOUND"
	ErrCodeUnauthorized       ErrorCode = "UNAUTHORIZED"
	ErrCodeForbidden          ErrorCode = "FORBIDDEN"
	ErrCodeConflict           ErrorCode = "CONFLICT"
	ErrCodeRateLimit          ErrorCode = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternal           ErrorCode = "INTERNAL_ERROR"
	ErrCodeServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
)

// Reason refines an invariant violation.
type Reason string

const (
	ReasonSessionFull         Reason = "session_full"
	ReasonAlreadyInSession    Reason = "already_in_session"
	ReasonSelfMatch           Reason = "self_match"
	ReasonSameStream          Reason = "same_stream"
	ReasonWrongStatus         Reason = "wrong_status"
	ReasonActiveSessionExists Reason = "active_session_exists"
	ReasonInvalidMaxPartners  Reason = "invalid_max_partners"
)

// AppError represents an application error with code and context
type AppError struct {
	Code       ErrorCode
	Reason     Reason
	Message    string
	HTTPStatus int
	Cause      error
	Context    map[string]interface{}
}

// Error implements error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// NewAppError creates a new application error
func NewAppError(code ErrorCode, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Context:    make(map[string]interface{}),
	}
}

// WrapError wraps an existing error with application error
func WrapError(err error, code ErrorCode, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Cause:      err,
		Context:    make(map[string]interface{}),
	}
}

// Common error constructors
func NewInvalidInputError(message string) *AppError {
	return NewAppError(ErrCodeInvalidInput, message, http.StatusBadRequest)
}

// NewInvalidLinkError is returned for stream links that do not reference a video.
func NewInvalidLinkError() *AppError {
	return NewAppError(ErrCodeInvalidLink, "invalid link", http.StatusBadRequest)
}

// NewInvalidStreamError is returned when a link resolves to something that cannot back a slot.
func NewInvalidStreamError(message string) *AppError {
	return NewAppError(ErrCodeInvalidStream, message, http.StatusUnprocessableEntity)
}

// NewInvariantError rejects an operation that would break a session invariant.
func NewInvariantError(reason Reason, message string) *AppError {
	err := NewAppError(ErrCodeInvariant, message, http.StatusConflict)
	err.Reason = reason
	return err
}

func NewStreamUnverifiableError(cause error) *AppError {
	return WrapError(cause, ErrCodeStreamUnverifiable, "cannot validate stream right now", http.StatusServiceUnavailable)
}

func NewNotFoundError(resource string) *AppError {
	return NewAppError(ErrCodeNotFound, fmt.Sprintf("%s not found", resource), http.StatusNotFound)
}

func NewUnauthorizedError(message string) *AppError {
	return NewAppError(ErrCodeUnauthorized, message, http.StatusUnauthorized)
}

func NewForbiddenError(message string) *AppError {
	return NewAppError(ErrCodeForbidden, message, http.StatusForbidden)
}

func NewConflictError(message string) *AppError {
	return NewAppError(ErrCodeConflict, message, http.StatusConflict)
}

func NewRateLimitError() *AppError {
	return NewAppError(ErrCodeRateLimit, "rate limit exceeded", http.StatusTooManyRequests)
}

func NewInternalError(message string) *AppError {
	return NewAppError(ErrCodeInternal, message, http.StatusInternalServerError)
}

func NewServiceUnavailableError(message string) *AppError {
	return NewAppError(ErrCodeServiceUnavailable, message, http.StatusServiceUnavailable)
}

// IsAppError checks if error is an AppError
func IsAppError(err error) bool {
	_, ok := err.(*AppError)
	return ok
}

// GetAppError extracts AppError from error chain
func GetAppError(err error) *AppError {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	return nil
}

// HasCode reports whether err carries an AppError with the given code.
func HasCode(err error, code ErrorCode) bool {
	appErr := GetAppError(err)
	return appErr != nil && appErr.Code == code
}

// HasReason reports whether err is an invariant violation with the given reason.
func HasReason(err error, reason Reason) bool {
	appErr := GetAppError(err)
	return appErr != nil && appErr.Code == ErrCodeInvariant && appErr.Reason == reason
}
