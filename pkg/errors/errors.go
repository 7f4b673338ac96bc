// Package errors defines the error taxonomy shared by the transport,
// signing, retry and harvest layers.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// ErrorType classifies a failure by which layer produced it.
type ErrorType string

const (
	// ErrorTypeValidation marks missing or malformed identifiers. Fatal,
	// never retried.
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeTransport marks a non-2xx HTTP response. Code carries the
	// HTTP status.
	ErrorTypeTransport ErrorType = "transport"
	// ErrorTypeApplication marks a 2xx response whose JSON body embeds a
	// non-zero platform code. Code carries that platform code.
	ErrorTypeApplication ErrorType = "application"
	// ErrorTypeRateLimit marks the platform's "session abandoned" status.
	// Never retried inline; the harvester converts it into a resumable
	// failure.
	ErrorTypeRateLimit ErrorType = "rate_limit"
	// ErrorTypeSigning marks a failed mixin key derivation.
	ErrorTypeSigning ErrorType = "signing"
	// ErrorTypeParse marks an undecodable legacy payload.
	ErrorTypeParse ErrorType = "parse"
)

// RateLimitStatus is the HTTP status bilibili uses to terminate a crawl
// session that issued too many requests.
const RateLimitStatus = http.StatusPreconditionFailed

// Error is a typed API error. Code holds the HTTP status for transport and
// rate-limit errors, and the embedded platform code for application errors.
type Error struct {
	Type    ErrorType
	Code    int
	Message string
}

func (e *Error) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("%s error (code %d): %s", e.Type, e.Code, e.Message)
	}
	return fmt.Sprintf("%s error: %s", e.Type, e.Message)
}

// Validation builds a fatal validation error.
func Validation(message string) *Error {
	return &Error{Type: ErrorTypeValidation, Message: message}
}

// Transport builds an error for a non-2xx HTTP status. The rate-limit
// status yields a rate-limit error instead of a plain transport error.
func Transport(status int, message string) *Error {
	t := ErrorTypeTransport
	if status == RateLimitStatus {
		t = ErrorTypeRateLimit
	}
	return &Error{Type: t, Code: status, Message: message}
}

// Application builds an error for a non-zero platform code embedded in a
// 2xx response body.
func Application(code int, message string) *Error {
	return &Error{Type: ErrorTypeApplication, Code: code, Message: message}
}

// Signing builds an error for a failed mixin key derivation.
func Signing(message string) *Error {
	return &Error{Type: ErrorTypeSigning, Message: message}
}

// Parse builds an error for an undecodable payload.
func Parse(message string) *Error {
	return &Error{Type: ErrorTypeParse, Message: message}
}

// IsRateLimit reports whether err is (or wraps) a rate-limit error.
func IsRateLimit(err error) bool {
	var apiErr *Error
	return stderrors.As(err, &apiErr) && apiErr.Type == ErrorTypeRateLimit
}

// IsValidation reports whether err is (or wraps) a validation error.
func IsValidation(err error) bool {
	var apiErr *Error
	return stderrors.As(err, &apiErr) && apiErr.Type == ErrorTypeValidation
}

// Retryable reports whether the retry policy may re-attempt after err.
// Rate-limit errors are resumable boundaries; validation and signing
// failures will not change on a second attempt.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *Error
	if !stderrors.As(err, &apiErr) {
		// Unclassified errors (network failures, decode errors) are
		// assumed transient.
		return true
	}
	switch apiErr.Type {
	case ErrorTypeRateLimit, ErrorTypeValidation, ErrorTypeSigning:
		return false
	default:
		return true
	}
}
