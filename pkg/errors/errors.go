package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrorType classifies failures so callers can decide between retry, skip and abort
type ErrorType string

const (
	ErrorTypeAuth        ErrorType = "auth"
	ErrorTypeNetwork     ErrorType = "network"
	ErrorTypeRateLimit   ErrorType = "rate_limit"
	ErrorTypeServerError ErrorType = "server_error"
	ErrorTypeNotFound    ErrorType = "not_found"
	ErrorTypeParsing     ErrorType = "parsing"
	ErrorTypeIntegrity   ErrorType = "integrity"
	ErrorTypeUnsupported ErrorType = "unsupported"
	ErrorTypeRestricted  ErrorType = "restricted"
	ErrorTypeUnknown     ErrorType = "unknown"
)

// Error carries a type, a human readable message, the HTTP status (0 when
// not applicable) and an optional cause.
type Error struct {
	Type    ErrorType
	Message string
	Code    int
	Err     error

	// RetryAfter is the pause the server asked for, if any
	RetryAfter time.Duration
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s error", e.Type)
	if e.Code != 0 {
		msg = fmt.Sprintf("%s (code %d)", msg, e.Code)
	}
	msg += ": " + e.Message
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an Error without a cause
func New(t ErrorType, code int, format string, args ...interface{}) *Error {
	return &Error{Type: t, Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a type and message to an underlying error
func Wrap(err error, t ErrorType, format string, args ...interface{}) *Error {
	return &Error{Type: t, Message: fmt.Sprintf(format, args...), Err: err}
}

// TypeOf returns the type of the outermost *Error in the chain, or
// ErrorTypeUnknown.
func TypeOf(err error) ErrorType {
	var e *Error
	if errors.As(err, &e) {
		return e.Type
	}
	return ErrorTypeUnknown
}

// IsType reports whether err carries the given type
func IsType(err error, t ErrorType) bool {
	return err != nil && TypeOf(err) == t
}

// IsInterrupt reports whether err comes from a cancelled context
func IsInterrupt(err error) bool {
	return errors.Is(err, context.Canceled)
}

// IsFatal reports whether err must abort the run even when error tolerance
// is enabled.
func IsFatal(err error) bool {
	return IsInterrupt(err) || IsType(err, ErrorTypeAuth)
}

// IsRetryable checks if an error type should be retried
func IsRetryable(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeNetwork, ErrorTypeRateLimit, ErrorTypeServerError:
		return true
	default:
		return false
	}
}

// IsRetryableStatusCode reports whether the transport retries a response with this status
func IsRetryableStatusCode(statusCode int) bool {
	switch statusCode {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout,
		http.StatusInsufficientStorage,
		http.StatusLoopDetected:
		return true
	default:
		return false
	}
}

// FromStatus maps a non-success HTTP status to a typed error
func FromStatus(statusCode int, url string) *Error {
	var t ErrorType
	switch {
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		t = ErrorTypeAuth
	case statusCode == http.StatusNotFound || statusCode == http.StatusGone:
		t = ErrorTypeNotFound
	case statusCode == http.StatusTooManyRequests:
		t = ErrorTypeRateLimit
	case statusCode >= 500:
		t = ErrorTypeServerError
	default:
		t = ErrorTypeUnknown
	}
	return &Error{Type: t, Code: statusCode, Message: fmt.Sprintf("unexpected status for %s", url)}
}
