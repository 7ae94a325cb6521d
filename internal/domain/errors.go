// Package domain provides canonical error types for the explainer.
package domain

import (
	"fmt"
	"net/http"
	"time"
)

// ErrorType represents the category of an explain error.
type ErrorType string

const (
	// ErrorTypeInvalidPayload indicates the incoming explain request failed validation.
	ErrorTypeInvalidPayload ErrorType = "invalid_payload"

	// ErrorTypeUnauthorized indicates the shared-secret gate rejected the caller.
	ErrorTypeUnauthorized ErrorType = "unauthorized"

	// ErrorTypeRateLimited indicates the caller exceeded its request window.
	ErrorTypeRateLimited ErrorType = "rate_limited"

	// ErrorTypeProvider indicates the generative-text provider failed terminally.
	ErrorTypeProvider ErrorType = "provider_error"

	// ErrorTypeInternal indicates an unexpected server failure.
	ErrorTypeInternal ErrorType = "internal"
)

// Issue codes reported by input validation.
const (
	IssueInvalidType  = "invalid_type"
	IssueInvalidValue = "invalid_value"
	IssueInvalidJSON  = "invalid_json"
)

// Issue describes a single field that failed validation.
type Issue struct {
	// Path is the dotted location of the field, "" for the document itself.
	Path    string `json:"path"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error is the canonical error returned by the explain pipeline. The
// frontdoor translates it to an HTTP response.
type Error struct {
	// Type is the category of error
	Type ErrorType `json:"type"`

	// Message is the human-readable error message
	Message string `json:"message"`

	// Issues lists every field that failed validation (invalid_payload only).
	Issues []Issue `json:"issues,omitempty"`

	// Detail carries diagnostic text, e.g. the raw provider error body.
	// It must never contain credentials.
	Detail string `json:"detail,omitempty"`

	// RetryAfter is how long the caller should wait (rate_limited only).
	RetryAfter time.Duration `json:"-"`

	// StatusCode overrides the default HTTP status code when non-zero.
	StatusCode int `json:"-"`

	cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if len(e.Issues) > 0 {
		return fmt.Sprintf("%s: %s (%d issues)", e.Type, e.Message, len(e.Issues))
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error {
	return e.cause
}

// HTTPStatusCode returns the appropriate HTTP status code for this error.
func (e *Error) HTTPStatusCode() int {
	if e.StatusCode != 0 {
		return e.StatusCode
	}

	switch e.Type {
	case ErrorTypeInvalidPayload:
		return http.StatusBadRequest
	case ErrorTypeUnauthorized:
		return http.StatusUnauthorized
	case ErrorTypeRateLimited:
		return http.StatusTooManyRequests
	case ErrorTypeProvider, ErrorTypeInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// NewError creates a new explain error.
func NewError(errType ErrorType, message string) *Error {
	return &Error{
		Type:    errType,
		Message: message,
	}
}

// WithDetail attaches diagnostic detail to the error.
func (e *Error) WithDetail(detail string) *Error {
	e.Detail = detail
	return e
}

// WithCause records the underlying error for errors.Is / errors.As.
func (e *Error) WithCause(err error) *Error {
	e.cause = err
	return e
}

// Convenience constructors for the taxonomy

// ErrInvalidPayload creates a validation error carrying every failing field.
func ErrInvalidPayload(issues []Issue) *Error {
	e := NewError(ErrorTypeInvalidPayload, "Bad payload")
	e.Issues = issues
	return e
}

// ErrUnauthorized creates a shared-secret rejection.
func ErrUnauthorized(message string) *Error {
	return NewError(ErrorTypeUnauthorized, message)
}

// ErrRateLimited creates a rate limit error.
func ErrRateLimited(retryAfter time.Duration) *Error {
	e := NewError(ErrorTypeRateLimited, "Too many requests. Please try again later.")
	e.RetryAfter = retryAfter
	return e
}

// ErrProvider creates a terminal provider failure carrying the raw provider body.
func ErrProvider(message, detail string) *Error {
	return NewError(ErrorTypeProvider, message).WithDetail(detail)
}

// ErrInternal creates an unexpected server failure.
func ErrInternal(message string) *Error {
	return NewError(ErrorTypeInternal, message)
}
