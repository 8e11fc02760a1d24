package recovery

import (
	"context"
	"log/slog"
	"time"
)

// ChainOption is a functional option for configuring the Chain.
type ChainOption func(*Chain)

// WithStrategies appends strategies; they are priority-sorted afterwards.
func WithStrategies(strategies ...Strategy) ChainOption {
	return func(c *Chain) {
		c.strategies = append(c.strategies, strategies...)
	}
}

// WithMaxAttempts sets the per-error-type attempt cap (default 5).
func WithMaxAttempts(n int) ChainOption {
	return func(c *Chain) {
		if n > 0 {
			c.maxAttempts = n
		}
	}
}

// WithRedirect sets the terminal redirect callback.
func WithRedirect(fn RedirectFunc) ChainOption {
	return func(c *Chain) {
		if fn != nil {
			c.redirect = fn
		}
	}
}

// WithLogout sets the callback that clears session state on forced logout.
func WithLogout(fn func(ctx context.Context)) ChainOption {
	return func(c *Chain) {
		if fn != nil {
			c.logout = fn
		}
	}
}

// WithReporter sets the diagnostics sink for handled errors.
func WithReporter(r Reporter) ChainOption {
	return func(c *Chain) {
		if r != nil {
			c.reporter = r
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(log *slog.Logger) ChainOption {
	return func(c *Chain) {
		if log != nil {
			c.log = log
		}
	}
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) ChainOption {
	return func(c *Chain) {
		if now != nil {
			c.now = now
		}
	}
}
