package types

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unified error code across the service.
type ErrorCode string

// Asset resolution error codes
const (
	ErrInvalidRequest      ErrorCode = "INVALID_REQUEST"
	ErrUnauthorized        ErrorCode = "UNAUTHORIZED"
	ErrThrottled           ErrorCode = "THROTTLED"
	ErrArchiveCorrupt      ErrorCode = "ARCHIVE_CORRUPT"
	ErrArchiveTooLarge     ErrorCode = "ARCHIVE_TOO_LARGE"
	ErrHostNotAllowed      ErrorCode = "HOST_NOT_ALLOWED"
	ErrAssetNotFound       ErrorCode = "ASSET_NOT_FOUND"
	ErrUnresolvedReference ErrorCode = "UNRESOLVED_REFERENCE"
	ErrPackingFailed       ErrorCode = "PACKING_FAILED"
	ErrUpstreamError       ErrorCode = "UPSTREAM_ERROR"
	ErrUpstreamTimeout     ErrorCode = "UPSTREAM_TIMEOUT"
	ErrTimeout             ErrorCode = "TIMEOUT"
	ErrInternalError       ErrorCode = "INTERNAL_ERROR"
	ErrServiceUnavailable  ErrorCode = "SERVICE_UNAVAILABLE"
)

// Wardrobe error codes
const (
	ErrRecordNotFound ErrorCode = "RECORD_NOT_FOUND"
	ErrDuplicateKey   ErrorCode = "DUPLICATE_KEY"
)

// Error represents a structured error with code, message, and metadata.
type Error struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	HTTPStatus int       `json:"http_status,omitempty"`
	Retryable  bool      `json:"retryable"`
	Origin     string    `json:"origin,omitempty"`
	Cause      error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithHTTPStatus sets the HTTP status code.
func (e *Error) WithHTTPStatus(status int) *Error {
	e.HTTPStatus = status
	return e
}

// WithRetryable marks the error as retryable.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// WithOrigin sets the asset origin key the error relates to.
func (e *Error) WithOrigin(origin string) *Error {
	e.Origin = origin
	return e
}

// IsRetryable reports whether err (or any error it wraps) is a
// retryable *Error.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	return false
}

// GetErrorCode extracts the error code from err or any error it wraps.
// Returns the empty code for plain errors.
func GetErrorCode(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
