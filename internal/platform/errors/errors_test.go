package errors

import (
	stderrs "errors"
	"fmt"
	"net/http"
	"testing"
	"time"
)

func TestHTTPStatusCodeMapping(t *testing.T) {
	cases := []struct {
		code ErrorCode
		want int
	}{
		{ErrorCodeInvalidInput, http.StatusUnprocessableEntity},
		{ErrorCodeSchemeRejected, http.StatusForbidden},
		{ErrorCodeSsrfBlocked, http.StatusForbidden},
		{ErrorCodeInstanceBlocked, http.StatusForbidden},
		{ErrorCodeLocalRateLimit, http.StatusTooManyRequests},
		{ErrorCodeInstanceRateLimited, http.StatusTooManyRequests},
		{ErrorCodeTimeout, http.StatusGatewayTimeout},
		{ErrorCodeNetwork, http.StatusBadGateway},
		{ErrorCodeClient, http.StatusBadRequest},
		{ErrorCodeServer, http.StatusBadGateway},
		{ErrorCodeActorNotFound, http.StatusNotFound},
		{ErrorCodeActorNotDiscoverable, http.StatusNotFound},
		{ErrorCodeActorUnavailable, http.StatusBadGateway},
		{ErrorCodeActorMalformed, http.StatusBadGateway},
		{ErrorCodeActorUnreachable, http.StatusBadGateway},
		{ErrorCodeWriteNotEnabled, http.StatusPreconditionFailed},
		{ErrorCodeInvalidCredentials, http.StatusUnauthorized},
		{ErrorCodeVerifyFailed, http.StatusUnauthorized},
		{ErrorCodeCancelled, 499},
		{ErrorCodeUnknown, http.StatusInternalServerError},
		{9999, http.StatusInternalServerError}, // default branch
	}
	for _, c := range cases {
		if got := HTTPStatusCode(c.code); got != c.want {
			t.Fatalf("HTTPStatusCode(%v) = %d, want %d", c.code, got, c.want)
		}
	}
}

func TestErrorTypeAndMethods(t *testing.T) {
	// nil *Error should render "<nil>"
	var e *Error
	if e.Error() != "<nil>" {
		t.Fatalf("nil *Error render = %q, want <nil>", e.Error())
	}

	// New / Newf
	e1 := New(ErrorCodeInvalidInput, "bad stuff")
	if CodeOf(e1) != ErrorCodeInvalidInput {
		t.Fatalf("CodeOf(New) = %v", CodeOf(e1))
	}
	e2 := Newf(ErrorCodeTimeout, "deadline after %ds", 10)
	if got := e2.Error(); got != "deadline after 10s" {
		t.Fatalf("Newf().Error = %q", got)
	}

	// Wrap / Wrapf / Unwrap
	src := stderrs.New("root")
	e3 := Wrap(src, ErrorCodeNetwork, "dial failed")
	if u := stderrs.Unwrap(e3); u == nil || u.Error() != "root" {
		t.Fatalf("Wrap did not keep orig")
	}
	e4 := Wrapf(src, ErrorCodeServer, "upstream %s", "boom")
	if want := "upstream boom: root"; e4.Error() != want {
		t.Fatalf("Wrapf().Error = %q, want %q", e4.Error(), want)
	}

	// As
	if got, ok := As(e4); !ok || got.Code() != ErrorCodeServer {
		t.Fatalf("As() failed for our error")
	}
	if _, ok := As(src); ok {
		t.Fatalf("As() true for foreign error")
	}

	// WithField / WithOp / WithStatus / WithRetryAfter are copy-on-write
	e5 := Wrap(src, ErrorCodeInvalidInput, "oops")
	e6 := WithField(e5, "content")
	e7 := WithOp(e6, "post-status")
	e8 := WithStatus(e7, 422)
	e9 := WithRetryAfter(e8, 7*time.Second)
	if fe, ok := As(e6); !ok || fe.Field() != "content" {
		t.Fatalf("WithField failed")
	}
	if oe, ok := As(e7); !ok || oe.Op() != "post-status" {
		t.Fatalf("WithOp failed")
	}
	if se, ok := As(e8); !ok || se.Status() != 422 {
		t.Fatalf("WithStatus failed")
	}
	if re, ok := As(e9); !ok || re.RetryAfter() != 7*time.Second {
		t.Fatalf("WithRetryAfter failed")
	}
	// original unchanged
	if fe0, _ := As(e5); fe0.Field() != "" || fe0.Op() != "" || fe0.Status() != 0 {
		t.Fatalf("copy-on-write mutated original")
	}

	// Wire / WireFrom
	w := (&Error{code: ErrorCodeInvalidCredentials, msg: "nope", field: "token"}).ToWire()
	if w.Code != ErrorCodeInvalidCredentials || w.Message != "nope" || w.Field != "token" {
		t.Fatalf("ToWire mismatch: %+v", w)
	}
	if wf := WireFrom(nil); wf != (Wire{}) {
		t.Fatalf("WireFrom(nil) expected zero, got %+v", wf)
	}
	if wf := WireFrom(src); wf.Code != ErrorCodeUnknown || wf.Message != "root" {
		t.Fatalf("WireFrom(foreign) mismatch: %+v", wf)
	}
	// WireFrom for our error uses only e.msg (not "msg: orig")
	if wf := WireFrom(e4); wf.Code != ErrorCodeServer || wf.Message != "upstream boom" {
		t.Fatalf("WireFrom(ours) mismatch: %+v", wf)
	}

	// Root traversal
	deep := fmt.Errorf("level2: %w", fmt.Errorf("level1: %w", src))
	if got := Root(deep); got == nil || got.Error() != "root" {
		t.Fatalf("Root() failed, got %v", got)
	}

	// WrapIf
	if WrapIf(nil, ErrorCodeNetwork, "ignored") != nil {
		t.Fatalf("WrapIf(nil) should return nil")
	}
	if WrapIf(src, ErrorCodeNetwork, "net") == nil {
		t.Fatalf("WrapIf(non-nil) should wrap")
	}
}

func TestSugarConstructors(t *testing.T) {
	if !IsCode(InvalidInputf("x"), ErrorCodeInvalidInput) ||
		!IsCode(SchemeRejectedf("x"), ErrorCodeSchemeRejected) ||
		!IsCode(SsrfBlockedf("x"), ErrorCodeSsrfBlocked) ||
		!IsCode(InstanceBlockedf("x"), ErrorCodeInstanceBlocked) ||
		!IsCode(LocalRateLimitf("x"), ErrorCodeLocalRateLimit) ||
		!IsCode(Timeoutf("x"), ErrorCodeTimeout) ||
		!IsCode(Networkf("x"), ErrorCodeNetwork) ||
		!IsCode(Cancelledf("x"), ErrorCodeCancelled) {
		t.Fatalf("sugar helpers code mismatch")
	}

	ce := ClientErr(410, "gone")
	if CodeOf(ce) != ErrorCodeClient || StatusOf(ce) != 410 {
		t.Fatalf("ClientErr mismatch: %v status=%d", CodeOf(ce), StatusOf(ce))
	}
	se := ServerErr(503, "down")
	if CodeOf(se) != ErrorCodeServer || StatusOf(se) != 503 {
		t.Fatalf("ServerErr mismatch")
	}
	ae := ActorUnavailable(403, "forbidden")
	if CodeOf(ae) != ErrorCodeActorUnavailable || StatusOf(ae) != 403 {
		t.Fatalf("ActorUnavailable mismatch")
	}
	re := InstanceRateLimited("x.test", 7*time.Second)
	if CodeOf(re) != ErrorCodeInstanceRateLimited || RetryAfterOf(re) != 7*time.Second {
		t.Fatalf("InstanceRateLimited mismatch")
	}
}
