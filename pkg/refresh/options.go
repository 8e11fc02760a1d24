package refresh

import (
	"log/slog"
	"time"

	"github.com/dmitrymomot/sessionkit/pkg/backoff"
)

// Option is a functional option for configuring the Service.
type Option func(*Service)

// WithConfig sets custom configuration.
func WithConfig(cfg Config) Option {
	return func(s *Service) {
		s.cfg = cfg
	}
}

// WithBackoff sets the retry delay strategy. Exponential with jitter is the
// default; Linear reproduces a fixed-step retry policy.
func WithBackoff(strategy backoff.Strategy) Option {
	return func(s *Service) {
		if strategy != nil {
			s.strategy = strategy
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithMaxRetries overrides the retry budget.
func WithMaxRetries(n int) Option {
	return func(s *Service) {
		s.cfg.MaxRetries = n
	}
}
