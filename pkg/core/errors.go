// Package core provides shared utilities for decoding OpenStreetMap data.
package core

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorCode defines standard error codes for osmread
type ErrorCode string

// Standard error codes
const (
	// Structural decode errors
	ErrUnknownElementType ErrorCode = "UNKNOWN_ELEMENT_TYPE"
	ErrMalformedRecord    ErrorCode = "MALFORMED_RECORD"
	ErrUnknownMemberType  ErrorCode = "UNKNOWN_MEMBER_TYPE"
	ErrInvalidDocument    ErrorCode = "INVALID_DOCUMENT"

	// Recoverable decode errors, never surfaced by the element decoder
	ErrMalformedTimestamp ErrorCode = "MALFORMED_TIMESTAMP"

	// Input validation errors
	ErrInvalidInput ErrorCode = "INVALID_INPUT"

	// Service errors
	ErrServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
	ErrServiceTimeout     ErrorCode = "SERVICE_TIMEOUT"
	ErrRateLimit          ErrorCode = "RATE_LIMIT"
	ErrNetworkError       ErrorCode = "NETWORK_ERROR"
	ErrInternalError      ErrorCode = "INTERNAL_ERROR"
)

// NoIndex marks an Error that is not tied to a record position.
const NoIndex = -1

// Error represents a detailed error with a stable code
type Error struct {
	Code     ErrorCode `json:"code"`
	Message  string    `json:"message"`
	Index    int       `json:"index"`
	Field    string    `json:"field,omitempty"`
	Query    string    `json:"query,omitempty"`
	Guidance string    `json:"guidance,omitempty"`
	Cause    error     `json:"-"`
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Code))
	if e.Index != NoIndex {
		fmt.Fprintf(&b, " (record %d", e.Index)
		if e.Field != "" {
			fmt.Fprintf(&b, ", field %q", e.Field)
		}
		b.WriteString(")")
	} else if e.Field != "" {
		fmt.Fprintf(&b, " (field %q)", e.Field)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	if e.Guidance != "" {
		b.WriteString(". ")
		b.WriteString(e.Guidance)
	}
	return b.String()
}

// Unwrap returns the underlying cause, if any
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error with the same code. This lets
// callers compare against code-only sentinels with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// NewError creates a new Error with the given code and message
func NewError(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Index:   NoIndex,
	}
}

// Sentinel returns a code-only error suitable for errors.Is comparisons.
func Sentinel(code ErrorCode) error {
	return &Error{Code: code, Index: NoIndex}
}

// WithIndex records the zero-based position of the offending record
func (e *Error) WithIndex(index int) *Error {
	e.Index = index
	return e
}

// WithField records the name of the offending field
func (e *Error) WithField(field string) *Error {
	e.Field = field
	return e
}

// WithCause attaches the underlying error
func (e *Error) WithCause(err error) *Error {
	e.Cause = err
	return e
}

// WithQuery adds query information to the error
func (e *Error) WithQuery(query string) *Error {
	e.Query = query
	return e
}

// WithGuidance adds guidance information to the error
func (e *Error) WithGuidance(guidance string) *Error {
	e.Guidance = guidance
	return e
}

// CodeOf extracts the ErrorCode from err, or "" when err carries none.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// ServiceError creates an error for external service failures
func ServiceError(service string, statusCode int, message string) *Error {
	var code ErrorCode
	var guidance string

	switch statusCode {
	case http.StatusTooManyRequests:
		code = ErrRateLimit
		guidance = "The service is rate-limited. Please try again in a few moments."
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		code = ErrServiceTimeout
		guidance = "The request timed out. Try reducing the search area or simplifying the query."
	case http.StatusBadRequest:
		code = ErrInvalidInput
		guidance = "The query was rejected. Check the Overpass QL syntax."
	case http.StatusInternalServerError:
		code = ErrInternalError
		guidance = "The server encountered an error. This is likely temporary, please try again later."
	default:
		code = ErrServiceUnavailable
		guidance = "Please try again later or modify your request parameters."
	}

	return NewError(code, fmt.Sprintf("%s service error: %s", service, message)).
		WithGuidance(guidance)
}

// NewValidationError creates an error for validation failures
func NewValidationError(code ErrorCode, message string) *Error {
	return NewError(code, message).
		WithGuidance("Please correct the parameters and try again.")
}
