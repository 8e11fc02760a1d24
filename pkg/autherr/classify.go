package autherr

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
)

// Classify maps an opaque failure from the identity provider or transport to
// a classified error. statusCode is the HTTP status when one is available,
// zero otherwise. Provider errors are opaque, so message-content heuristics
// are the only classification signal besides the status code.
func Classify(err error, statusCode int) *Error {
	if err == nil {
		return nil
	}

	// Already classified errors pass through untouched.
	if e := As(err); e != nil {
		return e
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return New(NetworkError, "request cancelled or timed out", WithCause(err))
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return New(NetworkError, "network failure: "+err.Error(), WithCause(err))
	}

	switch {
	case statusCode == http.StatusUnauthorized:
		return New(TokenInvalid, "provider rejected credentials", WithCause(err), WithCode("unauthorized"))
	case statusCode == http.StatusTooManyRequests:
		return New(ServerError, "provider rate limited the request", WithCause(err), WithCode("rate_limited"))
	case statusCode >= 500:
		return New(ServerError, "provider returned a server error", WithCause(err))
	}

	msg := strings.ToLower(err.Error())
	switch {
	case containsAny(msg, "refresh token", "invalid_grant", "grant"):
		return New(SessionExpired, "refresh credential rejected", WithCause(err))
	case containsAny(msg, "expired", "expiry"):
		return New(TokenExpired, "credential expired", WithCause(err))
	case containsAny(msg, "network", "connection", "timeout", "unreachable", "refused", "dns"):
		return New(NetworkError, "network failure: "+err.Error(), WithCause(err))
	case containsAny(msg, "invalid token", "malformed", "unauthorized"):
		return New(TokenInvalid, "credential rejected", WithCause(err))
	}

	return New(RefreshFailed, err.Error(), WithCause(err))
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
