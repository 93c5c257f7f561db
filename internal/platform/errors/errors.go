// Package errors provides a structured error type with wrapping and metadata
package errors

// Always import the project errors package as perr (platform/errors)

import (
	stderrs "errors"
	"fmt"
	"net/http"
	"time"
)

// ErrorCode defines supported error codes used across the gateway
// Values are stable for wire compatibility; add sparingly
type ErrorCode uint16

const (
	// ErrorCodeUnknown is for unclassified errors
	ErrorCodeUnknown ErrorCode = iota

	// ErrorCodeInvalidInput is for input validation failures
	ErrorCodeInvalidInput

	// ErrorCodeSchemeRejected is for non-https outbound URLs
	ErrorCodeSchemeRejected

	// ErrorCodeSsrfBlocked is for outbound hosts resolving to internal ranges
	ErrorCodeSsrfBlocked

	// ErrorCodeInstanceBlocked is for hosts matched by the instance blocklist
	ErrorCodeInstanceBlocked

	// ErrorCodeLocalRateLimit is for the local caller window being exhausted
	ErrorCodeLocalRateLimit

	// ErrorCodeInstanceRateLimited is for remote-advertised rate limiting
	ErrorCodeInstanceRateLimited

	// ErrorCodeTimeout is for deadline expiry on outbound calls
	ErrorCodeTimeout

	// ErrorCodeNetwork is for transport-level failures
	ErrorCodeNetwork

	// ErrorCodeClient is for upstream 4xx responses
	ErrorCodeClient

	// ErrorCodeServer is for upstream 5xx responses
	ErrorCodeServer

	// ErrorCodeActorNotFound is for WebFinger 404s
	ErrorCodeActorNotFound

	// ErrorCodeActorNotDiscoverable is for JRDs without a self/activity+json link
	ErrorCodeActorNotDiscoverable

	// ErrorCodeActorUnavailable is for actor document 4xx fetches
	ErrorCodeActorUnavailable

	// ErrorCodeActorMalformed is for structurally invalid JRD or actor documents
	ErrorCodeActorMalformed

	// ErrorCodeActorUnreachable is for network/timeout during resolution
	ErrorCodeActorUnreachable

	// ErrorCodeWriteNotEnabled is for write operations without a configured account
	ErrorCodeWriteNotEnabled

	// ErrorCodeInvalidCredentials is for 401 on credential verification
	ErrorCodeInvalidCredentials

	// ErrorCodeVerifyFailed is for non-401 credential verification failures
	ErrorCodeVerifyFailed

	// ErrorCodeCancelled is for caller-initiated cancellation
	ErrorCodeCancelled
)

// CodeName returns the stable wire name of a code; used by the registry
// error-kind catalog and audit outcomes
func CodeName(c ErrorCode) string {
	switch c {
	case ErrorCodeInvalidInput:
		return "InvalidInput"
	case ErrorCodeSchemeRejected:
		return "SchemeRejected"
	case ErrorCodeSsrfBlocked:
		return "SsrfBlocked"
	case ErrorCodeInstanceBlocked:
		return "InstanceBlocked"
	case ErrorCodeLocalRateLimit:
		return "LocalRateLimitExceeded"
	case ErrorCodeInstanceRateLimited:
		return "InstanceRateLimited"
	case ErrorCodeTimeout:
		return "Timeout"
	case ErrorCodeNetwork:
		return "NetworkError"
	case ErrorCodeClient:
		return "ClientError"
	case ErrorCodeServer:
		return "ServerError"
	case ErrorCodeActorNotFound:
		return "ActorNotFound"
	case ErrorCodeActorNotDiscoverable:
		return "ActorNotDiscoverable"
	case ErrorCodeActorUnavailable:
		return "ActorUnavailable"
	case ErrorCodeActorMalformed:
		return "ActorMalformed"
	case ErrorCodeActorUnreachable:
		return "ActorUnreachable"
	case ErrorCodeWriteNotEnabled:
		return "WriteNotEnabled"
	case ErrorCodeInvalidCredentials:
		return "InvalidCredentials"
	case ErrorCodeVerifyFailed:
		return "VerifyFailed"
	case ErrorCodeCancelled:
		return "Cancelled"
	default:
		return "Unknown"
	}
}

// HTTPStatusCode turns an ErrorCode into an http status code
func HTTPStatusCode(c ErrorCode) int {
	switch c {
	case ErrorCodeInvalidInput:
		return http.StatusUnprocessableEntity
	case ErrorCodeSchemeRejected, ErrorCodeSsrfBlocked, ErrorCodeInstanceBlocked:
		return http.StatusForbidden
	case ErrorCodeLocalRateLimit, ErrorCodeInstanceRateLimited:
		return http.StatusTooManyRequests
	case ErrorCodeTimeout:
		return http.StatusGatewayTimeout
	case ErrorCodeNetwork, ErrorCodeServer, ErrorCodeActorUnreachable:
		return http.StatusBadGateway
	case ErrorCodeClient:
		return http.StatusBadRequest
	case ErrorCodeActorNotFound, ErrorCodeActorNotDiscoverable:
		return http.StatusNotFound
	case ErrorCodeActorUnavailable, ErrorCodeActorMalformed:
		return http.StatusBadGateway
	case ErrorCodeWriteNotEnabled:
		return http.StatusPreconditionFailed
	case ErrorCodeInvalidCredentials, ErrorCodeVerifyFailed:
		return http.StatusUnauthorized
	case ErrorCodeCancelled:
		return 499 // client closed request
	default:
		return http.StatusInternalServerError
	}
}

// Error is the structured error type with wrapping and metadata
// msg is human/developer facing; code is machine facing
// field is optional (for validation); op is optional operation tag
// status carries the upstream HTTP status for Client/Server errors
// retryAfter carries the advisory delay for rate-limit errors
// orig is the wrapped cause
type Error struct {
	orig       error
	msg        string
	code       ErrorCode
	field      string
	op         string
	status     int
	retryAfter time.Duration
}

// Wire is the JSON-serializable form surfaced through the registry
type Wire struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	Field      string    `json:"field,omitempty"`
	Status     int       `json:"status,omitempty"`
	RetryAfter float64   `json:"retry_after_s,omitempty"`
}

// Error implements the error interface
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.orig != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.orig)
	}
	return e.msg
}

// Unwrap returns the wrapped error, if any
func (e *Error) Unwrap() error { return e.orig }

// Code returns the error code
func (e *Error) Code() ErrorCode { return e.code }

// Field returns the offending field, if any
func (e *Error) Field() string { return e.field }

// Op returns the operation label, if set
func (e *Error) Op() string { return e.op }

// Status returns the upstream HTTP status, if set
func (e *Error) Status() int { return e.status }

// RetryAfter returns the advisory retry delay, if set
func (e *Error) RetryAfter() time.Duration { return e.retryAfter }

// ToWire converts an *Error to a Wire payload
func (e *Error) ToWire() Wire {
	return Wire{
		Code:       e.code,
		Message:    e.msg,
		Field:      e.field,
		Status:     e.status,
		RetryAfter: e.retryAfter.Seconds(),
	}
}

// WireFrom converts any error into a Wire payload with best-effort mapping
// If err is nil, returns the zero-value Wire (no error)
func WireFrom(err error) Wire {
	if err == nil {
		return Wire{}
	}
	if e, ok := As(err); ok {
		return e.ToWire()
	}
	return Wire{Code: ErrorCodeUnknown, Message: err.Error()}
}

// Root returns the deepest wrapped cause
func Root(err error) error {
	for err != nil {
		u := stderrs.Unwrap(err)
		if u == nil {
			return err
		}
		err = u
	}
	return nil
}

// CodeOf extracts an ErrorCode from any error, defaulting to Unknown
func CodeOf(err error) ErrorCode {
	if e, ok := As(err); ok {
		return e.code
	}
	return ErrorCodeUnknown
}

// IsCode reports whether err has the given code
func IsCode(err error, code ErrorCode) bool { return CodeOf(err) == code }

// StatusOf extracts the upstream HTTP status from any error, 0 if absent
func StatusOf(err error) int {
	if e, ok := As(err); ok {
		return e.status
	}
	return 0
}

// RetryAfterOf extracts the advisory retry delay from any error, 0 if absent
func RetryAfterOf(err error) time.Duration {
	if e, ok := As(err); ok {
		return e.retryAfter
	}
	return 0
}

// HTTPStatus returns the mapped HTTP status for any error
func HTTPStatus(err error) int { return HTTPStatusCode(CodeOf(err)) }

// As unwraps and returns (*Error, true) if err is one of ours
func As(err error) (*Error, bool) {
	var e *Error
	if stderrs.As(err, &e) {
		return e, true
	}
	return nil, false
}

// Mutators (copy-on-write)

// WithField attaches a field to an *Error (copy-on-write). If err isn't *Error, returns err unchanged
func WithField(err error, field string) error {
	if e, ok := As(err); ok {
		c := *e
		c.field = field
		return &c
	}
	return err
}

// WithOp attaches an operation label to an *Error (copy-on-write). If err isn't *Error, returns err unchanged
func WithOp(err error, op string) error {
	if e, ok := As(err); ok {
		c := *e
		c.op = op
		return &c
	}
	return err
}

// WithStatus attaches an upstream HTTP status (copy-on-write)
func WithStatus(err error, status int) error {
	if e, ok := As(err); ok {
		c := *e
		c.status = status
		return &c
	}
	return err
}

// WithRetryAfter attaches an advisory retry delay (copy-on-write)
func WithRetryAfter(err error, d time.Duration) error {
	if e, ok := As(err); ok {
		c := *e
		c.retryAfter = d
		return &c
	}
	return err
}

// Constructors

// New returns a new *Error with the given code and message
func New(code ErrorCode, msg string) error { return &Error{code: code, msg: msg} }

// Newf returns a new *Error with code and formatted message
func Newf(code ErrorCode, format string, a ...any) error {
	return &Error{code: code, msg: fmt.Sprintf(format, a...)}
}

// Wrap returns a new *Error that wraps orig with code and message
func Wrap(orig error, code ErrorCode, msg string) error {
	return &Error{code: code, msg: msg, orig: orig}
}

// Wrapf returns a new *Error that wraps orig with code and formatted message
func Wrapf(orig error, code ErrorCode, format string, a ...any) error {
	return &Error{code: code, msg: fmt.Sprintf(format, a...), orig: orig}
}

// WrapIf wraps orig only when non-nil
func WrapIf(orig error, code ErrorCode, msg string) error {
	if orig == nil {
		return nil
	}
	return Wrap(orig, code, msg)
}
