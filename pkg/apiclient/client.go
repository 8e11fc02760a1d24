package apiclient

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"sync/atomic"

	"golang.org/x/sync/semaphore"

	"github.com/dmitrymomot/sessionkit/pkg/autherr"
	"github.com/dmitrymomot/sessionkit/pkg/backoff"
	"github.com/dmitrymomot/sessionkit/pkg/logger"
	"github.com/dmitrymomot/sessionkit/pkg/recovery"
	"github.com/dmitrymomot/sessionkit/pkg/refresh"
	"github.com/dmitrymomot/sessionkit/pkg/session"
)

// Client wraps outbound HTTP calls with bearer injection, bounded
// concurrency, bounded per-request retries, and the 401 recovery protocol:
// re-validate, force one refresh, retry exactly once. A second consecutive
// 401 is a persistent authentication failure and tears the session down.
type Client struct {
	http     *http.Client
	cfg      Config
	tokens   *refresh.Service
	sessions *session.Manager
	chain    *recovery.Chain
	sem      *semaphore.Weighted
	strategy backoff.Strategy
	redirect recovery.RedirectFunc
	log      *slog.Logger

	authFailed atomic.Bool
}

// NewClient builds a client over the refresh service and session manager.
func NewClient(tokens *refresh.Service, sessions *session.Manager, opts ...Option) (*Client, error) {
	if tokens == nil {
		return nil, ErrNoRefreshService
	}
	if sessions == nil {
		return nil, ErrNoSessionManager
	}

	c := &Client{
		http:     http.DefaultClient,
		cfg:      DefaultConfig(),
		tokens:   tokens,
		sessions: sessions,
		strategy: backoff.Default(),
		redirect: func(string) {},
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.cfg.MaxConcurrency <= 0 {
		c.cfg.MaxConcurrency = 10
	}
	c.sem = semaphore.NewWeighted(c.cfg.MaxConcurrency)
	return c, nil
}

// Do executes the request with a fresh bearer token, retrying network
// errors and 5xx responses up to Config.MaxRetries times with backoff.
// 4xx responses other than 401 are returned to the caller untouched; an
// exhausted 5xx is surfaced as the final response. The caller owns the
// returned body.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return nil, autherr.Classify(err, 0)
	}
	defer c.sem.Release(1)

	if err := ensureRewindable(req); err != nil {
		return nil, err
	}

	var (
		retries     int
		authRetried bool
	)
	for {
		resp, err := c.attempt(ctx, req)
		if err != nil {
			if e := autherr.As(err); e != nil && !e.Retryable {
				return nil, err
			}
			retries++
			if retries > c.cfg.MaxRetries {
				return nil, autherr.Classify(err, 0)
			}
			if werr := backoff.Wait(ctx, c.strategy, retries); werr != nil {
				return nil, autherr.Classify(werr, 0)
			}
			continue
		}

		switch {
		case resp.StatusCode == http.StatusUnauthorized:
			drain(resp)
			if authRetried {
				// Second consecutive 401 after a successful refresh: the
				// server rejects even fresh credentials.
				c.failAuth(ctx, recovery.ReasonSessionExpired)
				return nil, autherr.New(autherr.SessionExpired,
					"request rejected after token refresh",
					autherr.WithCode("persistent_unauthorized"),
					autherr.WithRetryable(false))
			}
			if !c.sessions.Validate(ctx) {
				c.failAuth(ctx, recovery.ReasonSessionExpired)
				return nil, autherr.New(autherr.SessionExpired, "session no longer valid",
					autherr.WithRetryable(false))
			}
			if _, err := c.tokens.RefreshWithRetry(ctx); err != nil {
				c.failAuth(ctx, recovery.ReasonSessionExpired)
				return nil, err
			}
			authRetried = true
			continue

		case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
			retries++
			if retries > c.cfg.MaxRetries {
				return resp, nil // surfaced after the retry budget
			}
			drain(resp)
			if werr := backoff.Wait(ctx, c.strategy, retries); werr != nil {
				return nil, autherr.Classify(werr, 0)
			}
			continue

		default:
			return resp, nil
		}
	}
}

// attempt clones the request with its own timeout and a freshly validated
// bearer token.
func (c *Client) attempt(ctx context.Context, req *http.Request) (*http.Response, error) {
	token, err := c.tokens.FreshToken(ctx)
	if err != nil {
		if e := autherr.As(err); e != nil && terminalAuth(e) {
			c.failAuth(ctx, recovery.ReasonSessionExpired)
		}
		return nil, err
	}

	attemptCtx := ctx
	var cancel context.CancelFunc
	if c.cfg.AttemptTimeout > 0 {
		attemptCtx, cancel = context.WithTimeout(ctx, c.cfg.AttemptTimeout)
		defer cancel()
	}

	clone := req.Clone(attemptCtx)
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		clone.Body = body
	}
	clone.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(clone)
	if err != nil {
		return nil, autherr.Classify(err, 0)
	}
	return resp, nil
}

// HandleAuthError runs op, and on failure consults the recovery chain.
// When the chain recovers the error, op is retried exactly once; the retry's
// result is returned as-is. Without a configured chain the original error
// passes through.
func (c *Client) HandleAuthError(ctx context.Context, op func(ctx context.Context) error) error {
	err := op(ctx)
	if err == nil {
		return nil
	}
	if c.chain == nil {
		return err
	}
	if recErr := c.chain.Handle(ctx, err); recErr != nil {
		return recErr
	}
	return op(ctx)
}

// failAuth clears the session and fires the redirect callback exactly once
// per failure episode; concurrent requests hitting the same dead session
// must not stack redirects.
func (c *Client) failAuth(ctx context.Context, reason string) {
	if !c.authFailed.CompareAndSwap(false, true) {
		return
	}
	c.log.Warn("apiclient: authentication failure", logger.Reason(reason))
	c.sessions.Clear(ctx)
	c.redirect(reason)
}

// ResetAuthFailure re-arms the failure guard after the application has
// re-established a session.
func (c *Client) ResetAuthFailure() {
	c.authFailed.Store(false)
}

func terminalAuth(e *autherr.Error) bool {
	switch e.Type {
	case autherr.SessionExpired, autherr.SessionInvalid, autherr.TokenInvalid,
		autherr.FingerprintMismatch, autherr.SuspiciousActivity:
		return !e.Retryable
	case autherr.RefreshFailed:
		return true
	}
	return false
}

// ensureRewindable buffers the body so retries can replay it.
func ensureRewindable(req *http.Request) error {
	if req.Body == nil || req.GetBody != nil {
		return nil
	}
	buf, err := io.ReadAll(req.Body)
	_ = req.Body.Close()
	if err != nil {
		return err
	}
	req.Body = io.NopCloser(bytes.NewReader(buf))
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(buf)), nil
	}
	return nil
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
	_ = resp.Body.Close()
}
