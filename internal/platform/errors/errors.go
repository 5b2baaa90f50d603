// Package errors provides the structured error taxonomy shared by tasks, clients and the HTTP adapter.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorType is the category of a failure. Tasks abort on every type; the HTTP adapter maps it to a status code.
type ErrorType string

const (
	// TypeTransport is a connection, DNS or timeout failure talking to an upstream.
	TypeTransport ErrorType = "transport"
	// TypeAuth is a non-2xx answer from a token or provider endpoint.
	TypeAuth ErrorType = "auth"
	// TypeExtraction means no structured payload could be located in free text.
	TypeExtraction ErrorType = "extraction"
	// TypeParse is malformed JSON or an invalid enum value.
	TypeParse ErrorType = "parse"
	// TypeValidation is invalid task input (HTTP 400).
	TypeValidation ErrorType = "validation"
	// TypeNotFound is an unknown task type, key or blob (HTTP 404).
	TypeNotFound ErrorType = "not_found"
	// TypeInternal is everything else (HTTP 500).
	TypeInternal ErrorType = "internal"
)

// Error is a typed error with an optional upstream status code and cause.
type Error struct {
	Type       ErrorType
	Message    string
	StatusCode int
	Cause      error
	Context    map[string]any
}

func (e *Error) Error() string {
	msg := e.Message
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, msg, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, msg)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// HTTPStatus returns the status code the HTTP adapter answers with.
// Upstream failures of any kind surface as 502.
func (e *Error) HTTPStatus() int {
	switch e.Type {
	case TypeValidation:
		return http.StatusBadRequest
	case TypeNotFound:
		return http.StatusNotFound
	case TypeTransport, TypeAuth, TypeExtraction, TypeParse:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// TransportError wraps a network-level failure.
func TransportError(message string, cause error) *Error {
	return newError(TypeTransport, message, cause)
}

// AuthError reports a non-2xx upstream response with the provider's message.
func AuthError(statusCode int, message string) *Error {
	e := newError(TypeAuth, message, nil)
	e.StatusCode = statusCode
	return e
}

// ExtractionError reports that no structured payload was found.
func ExtractionError(message string) *Error {
	return newError(TypeExtraction, message, nil)
}

// ParseError reports malformed or invalid structured data.
func ParseError(message string, cause error) *Error {
	return newError(TypeParse, message, cause)
}

// ValidationError reports invalid input (HTTP 400).
func ValidationError(message string) *Error {
	return newError(TypeValidation, message, nil)
}

// NotFoundError reports a missing resource (HTTP 404).
func NotFoundError(message string) *Error {
	return newError(TypeNotFound, message, nil)
}

// InternalError wraps an unexpected failure (HTTP 500).
func InternalError(message string, cause error) *Error {
	return newError(TypeInternal, message, cause)
}

func newError(t ErrorType, message string, cause error) *Error {
	return &Error{
		Type:    t,
		Message: message,
		Cause:   cause,
		Context: make(map[string]any),
	}
}

// WithContext adds a context field (chainable).
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// ErrorResponse is the JSON body written by the HTTP adapter.
type ErrorResponse struct {
	Error      string         `json:"error"`
	Type       ErrorType      `json:"type"`
	StatusCode int            `json:"upstream_status,omitempty"`
	Context    map[string]any `json:"context,omitempty"`
}

func (e *Error) ToResponse() ErrorResponse {
	return ErrorResponse{
		Error:      e.Message,
		Type:       e.Type,
		StatusCode: e.StatusCode,
		Context:    e.Context,
	}
}

// AsStructuredError returns err as an *Error, wrapping unknown errors as internal.
func AsStructuredError(err error) *Error {
	if err == nil {
		return nil
	}

	var structuredErr *Error
	if errors.As(err, &structuredErr) {
		return structuredErr
	}

	return InternalError("internal error", err)
}

// IsType reports whether any error in err's chain is an *Error of type t.
func IsType(err error, t ErrorType) bool {
	var structuredErr *Error
	if errors.As(err, &structuredErr) {
		return structuredErr.Type == t
	}
	return false
}

// StatusCode returns the upstream status carried by err, or 0.
func StatusCode(err error) int {
	var structuredErr *Error
	if errors.As(err, &structuredErr) {
		return structuredErr.StatusCode
	}
	return 0
}
