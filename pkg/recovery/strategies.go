package recovery

import (
	"context"
	"time"

	"github.com/dmitrymomot/sessionkit/pkg/autherr"
	"github.com/dmitrymomot/sessionkit/pkg/refresh"
	"github.com/dmitrymomot/sessionkit/pkg/session"
)

// DefaultStrategies returns the built-in strategy set wired to the given
// manager and refresh service, in their canonical priorities:
//
//	10  token refresh      — expired token, refreshable
//	 9  session refresh    — expired session rebuilt from the refresh token
//	 8  network backoff    — transient network failure, wait then retry
//	 1  fingerprint reset  — terminal: clear session, redirect "device_changed"
func DefaultStrategies(mgr *session.Manager, svc *refresh.Service, redirect RedirectFunc) []Strategy {
	if redirect == nil {
		redirect = func(string) {}
	}
	return []Strategy{
		&TokenRefreshStrategy{Service: svc},
		&SessionRefreshStrategy{Service: svc},
		&NetworkBackoffStrategy{Delay: time.Second},
		&FingerprintResetStrategy{Manager: mgr, Redirect: redirect},
	}
}

// TokenRefreshStrategy recovers an expired access token by forcing a
// refresh cycle.
type TokenRefreshStrategy struct {
	Service *refresh.Service
}

func (s *TokenRefreshStrategy) Name() string  { return "token_refresh" }
func (s *TokenRefreshStrategy) Priority() int { return 10 }

func (s *TokenRefreshStrategy) CanHandle(e *autherr.Error) bool {
	return e.Type == autherr.TokenExpired
}

func (s *TokenRefreshStrategy) Execute(ctx context.Context, _ *autherr.Error) error {
	_, err := s.Service.RefreshWithRetry(ctx)
	return err
}

// SessionRefreshStrategy rebuilds an expired session from its refresh
// token; the refresh cycle issues a whole new session on success.
type SessionRefreshStrategy struct {
	Service *refresh.Service
}

func (s *SessionRefreshStrategy) Name() string  { return "session_refresh" }
func (s *SessionRefreshStrategy) Priority() int { return 9 }

func (s *SessionRefreshStrategy) CanHandle(e *autherr.Error) bool {
	return e.Type == autherr.SessionExpired || e.Type == autherr.TokenInvalid
}

func (s *SessionRefreshStrategy) Execute(ctx context.Context, _ *autherr.Error) error {
	_, err := s.Service.RefreshWithRetry(ctx)
	return err
}

// NetworkBackoffStrategy waits out a transient network failure and lets
// the caller retry.
type NetworkBackoffStrategy struct {
	Delay time.Duration
}

func (s *NetworkBackoffStrategy) Name() string  { return "network_backoff" }
func (s *NetworkBackoffStrategy) Priority() int { return 8 }

func (s *NetworkBackoffStrategy) CanHandle(e *autherr.Error) bool {
	return e.Type == autherr.NetworkError && e.Retryable
}

func (s *NetworkBackoffStrategy) Execute(ctx context.Context, _ *autherr.Error) error {
	delay := s.Delay
	if delay <= 0 {
		delay = time.Second
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// FingerprintResetStrategy is terminal: a fingerprint mismatch implies a
// different device rather than a transient fault, so it clears the session,
// redirects with "device_changed", and reports the error back unrecovered.
type FingerprintResetStrategy struct {
	Manager  *session.Manager
	Redirect RedirectFunc
}

func (s *FingerprintResetStrategy) Name() string  { return "fingerprint_reset" }
func (s *FingerprintResetStrategy) Priority() int { return 1 }

func (s *FingerprintResetStrategy) CanHandle(e *autherr.Error) bool {
	return e.Type == autherr.FingerprintMismatch || e.Type == autherr.SuspiciousActivity
}

func (s *FingerprintResetStrategy) Execute(ctx context.Context, e *autherr.Error) error {
	s.Manager.Clear(ctx)
	if s.Redirect != nil {
		s.Redirect(ReasonDeviceChanged)
	}
	// Never recovered: silent continuation would mask a compromise.
	return autherr.New(e.Type, e.Message,
		autherr.WithCode(ReasonDeviceChanged),
		autherr.WithRetryable(false),
		autherr.WithCause(e))
}
