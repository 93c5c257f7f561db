package errors

import "time"

// Sugar constructors for the codes that appear at call sites often enough
// that the long form reads badly

// InvalidInputf returns an InvalidInput error
func InvalidInputf(format string, a ...any) error { return Newf(ErrorCodeInvalidInput, format, a...) }

// SchemeRejectedf returns a SchemeRejected error
func SchemeRejectedf(format string, a ...any) error {
	return Newf(ErrorCodeSchemeRejected, format, a...)
}

// SsrfBlockedf returns an SsrfBlocked error
func SsrfBlockedf(format string, a ...any) error { return Newf(ErrorCodeSsrfBlocked, format, a...) }

// InstanceBlockedf returns an InstanceBlocked error
func InstanceBlockedf(format string, a ...any) error {
	return Newf(ErrorCodeInstanceBlocked, format, a...)
}

// LocalRateLimitf returns a LocalRateLimitExceeded error
func LocalRateLimitf(format string, a ...any) error {
	return Newf(ErrorCodeLocalRateLimit, format, a...)
}

// InstanceRateLimited returns an InstanceRateLimited error carrying retryAfter
func InstanceRateLimited(host string, retryAfter time.Duration) error {
	return &Error{
		code:       ErrorCodeInstanceRateLimited,
		msg:        "instance rate limited: " + host,
		retryAfter: retryAfter,
	}
}

// Timeoutf returns a Timeout error
func Timeoutf(format string, a ...any) error { return Newf(ErrorCodeTimeout, format, a...) }

// Networkf returns a NetworkError
func Networkf(format string, a ...any) error { return Newf(ErrorCodeNetwork, format, a...) }

// ClientErr returns a ClientError carrying the upstream status
func ClientErr(status int, msg string) error {
	return &Error{code: ErrorCodeClient, msg: msg, status: status}
}

// ServerErr returns a ServerError carrying the upstream status
func ServerErr(status int, msg string) error {
	return &Error{code: ErrorCodeServer, msg: msg, status: status}
}

// ActorUnavailable returns an ActorUnavailable error carrying the upstream status
func ActorUnavailable(status int, msg string) error {
	return &Error{code: ErrorCodeActorUnavailable, msg: msg, status: status}
}

// Cancelledf returns a Cancelled error
func Cancelledf(format string, a ...any) error { return Newf(ErrorCodeCancelled, format, a...) }
