package apiclient

import (
	"log/slog"
	"net/http"

	"github.com/dmitrymomot/sessionkit/pkg/backoff"
	"github.com/dmitrymomot/sessionkit/pkg/recovery"
)

// Option is a functional option for configuring the Client.
type Option func(*Client)

// WithConfig sets custom configuration.
func WithConfig(cfg Config) Option {
	return func(c *Client) {
		c.cfg = cfg
	}
}

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithBaseURL sets the base URL for the JSON helpers.
func WithBaseURL(base string) Option {
	return func(c *Client) {
		c.cfg.BaseURL = base
	}
}

// WithBackoff sets the retry delay strategy.
func WithBackoff(strategy backoff.Strategy) Option {
	return func(c *Client) {
		if strategy != nil {
			c.strategy = strategy
		}
	}
}

// WithRecovery wires the error recovery chain used by HandleAuthError.
func WithRecovery(chain *recovery.Chain) Option {
	return func(c *Client) {
		c.chain = chain
	}
}

// WithRedirect sets the callback fired on unrecoverable auth failures.
func WithRedirect(fn recovery.RedirectFunc) Option {
	return func(c *Client) {
		if fn != nil {
			c.redirect = fn
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(log *slog.Logger) Option {
	return func(c *Client) {
		if log != nil {
			c.log = log
		}
	}
}
