// Package llmerrors classifies chat-completion failures so the retry layer and
// the negotiation can tell a transient outage from a bad key or a bad request.
package llmerrors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorType is the failure class of a completion call.
type ErrorType int8

// Rate-limit, transient and empty-response failures are retried; the rest are not.
const (
	ErrorTypeRateLimit ErrorType = iota
	ErrorTypeTransient
	ErrorTypeEmptyResponse
	ErrorTypeAuth
	ErrorTypeBadPrompt
	ErrorTypeUnknown
	// ErrorTypeServiceUnavailable marks a transient failure that outlived its retries.
	ErrorTypeServiceUnavailable
)

//nolint:gochecknoglobals // static label table
var typeNames = [...]string{
	ErrorTypeRateLimit:          "rate_limit",
	ErrorTypeTransient:          "transient",
	ErrorTypeEmptyResponse:      "empty_response",
	ErrorTypeAuth:               "auth",
	ErrorTypeBadPrompt:          "bad_prompt",
	ErrorTypeUnknown:            "unknown",
	ErrorTypeServiceUnavailable: "service_unavailable",
}

// String returns the metrics label for the type.
func (t ErrorType) String() string {
	if t < 0 || int(t) >= len(typeNames) {
		return "invalid"
	}
	return typeNames[t]
}

// Error is a classified completion failure.
type Error struct {
	Err        error
	Message    string
	Type       ErrorType
	StatusCode int // zero when no HTTP exchange happened
}

func (e *Error) Error() string {
	switch {
	case e.Message != "":
		return fmt.Sprintf("LLM error (%s): %s", e.Type, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("LLM error (%s): %v", e.Type, e.Err)
	default:
		return fmt.Sprintf("LLM error (%s): status %d", e.Type, e.StatusCode)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether another attempt could succeed.
func (e *Error) IsRetryable() bool {
	return e.Type != ErrorTypeAuth && e.Type != ErrorTypeBadPrompt && e.Type != ErrorTypeServiceUnavailable
}

// Is reports whether err carries a classified error of type t.
func Is(err error, t ErrorType) bool {
	var llmErr *Error
	return errors.As(err, &llmErr) && llmErr.Type == t
}

// TypeOf returns the class of err, ErrorTypeUnknown when unclassified.
func TypeOf(err error) ErrorType {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr.Type
	}
	return ErrorTypeUnknown
}

// NewError creates a classified error.
func NewError(t ErrorType, message string) *Error {
	return &Error{Type: t, Message: message}
}

// NewErrorWithCause creates a classified error wrapping cause.
func NewErrorWithCause(t ErrorType, cause error, message string) *Error {
	return &Error{Type: t, Err: cause, Message: message}
}

// IsServiceUnavailable reports whether retries were exhausted on err.
func IsServiceUnavailable(err error) bool {
	return Is(err, ErrorTypeServiceUnavailable)
}

// NewServiceUnavailableError wraps the last failure once attempts ran out.
func NewServiceUnavailableError(cause error, attempts int) *Error {
	return NewErrorWithCause(ErrorTypeServiceUnavailable, cause,
		fmt.Sprintf("service unavailable after %d retry attempts", attempts))
}

// TypeForStatus classifies an HTTP status code.
func TypeForStatus(status int) ErrorType {
	switch {
	case status == http.StatusTooManyRequests:
		return ErrorTypeRateLimit
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return ErrorTypeAuth
	case status >= http.StatusInternalServerError:
		return ErrorTypeTransient
	case status >= http.StatusBadRequest:
		return ErrorTypeBadPrompt
	default:
		return ErrorTypeUnknown
	}
}

// FromStatus classifies a failed HTTP exchange.
func FromStatus(status int, cause error, message string) *Error {
	return &Error{Type: TypeForStatus(status), StatusCode: status, Err: cause, Message: message}
}
