package recovery

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/dmitrymomot/sessionkit/pkg/autherr"
	"github.com/dmitrymomot/sessionkit/pkg/logger"
)

// Redirect reasons carried to the sign-in entry point as machine-readable
// codes, so the caller can render an explanation without this package
// knowing anything about presentation.
const (
	ReasonSessionExpired      = "session_expired"
	ReasonDeviceChanged       = "device_changed"
	ReasonMaxRecoveryAttempts = "max_recovery_attempts"
)

// RedirectFunc receives the reason code for an unrecoverable failure.
// In a web frontend this navigates to sign-in; services typically log and
// tear down.
type RedirectFunc func(reason string)

// Strategy handles one class of authentication errors. Strategies are
// consulted in descending priority order; the first one whose CanHandle
// returns true runs, and no other strategy is tried for that error.
type Strategy interface {
	Name() string
	Priority() int
	CanHandle(e *autherr.Error) bool
	Execute(ctx context.Context, e *autherr.Error) error
}

// Record is one entry in the rolling recovery history.
type Record struct {
	Error     *autherr.Error
	Strategy  string
	Recovered bool
	Timestamp time.Time
}

// Reporter receives every handled error for external diagnostics.
// The default is a no-op; wire an implementation to ship history elsewhere.
type Reporter interface {
	Report(ctx context.Context, rec Record)
}

type nopReporter struct{}

func (nopReporter) Report(context.Context, Record) {}

const historySize = 10

// Chain routes authentication errors through prioritized recovery
// strategies, tracks per-error-type attempt counts against a global cap,
// and keeps a bounded in-memory history of outcomes.
type Chain struct {
	strategies  []Strategy
	maxAttempts int
	redirect    RedirectFunc
	logout      func(ctx context.Context)
	reporter    Reporter
	log         *slog.Logger
	now         func() time.Time

	mu       sync.Mutex
	attempts map[autherr.Type]int
	history  []Record
}

// NewChain builds a chain over the given strategies. The logout callback
// clears session state when recovery is exhausted; redirect reports the
// terminal reason. Strategies are sorted by descending priority at
// construction.
func NewChain(opts ...ChainOption) *Chain {
	c := &Chain{
		maxAttempts: 5,
		redirect:    func(string) {},
		logout:      func(context.Context) {},
		reporter:    nopReporter{},
		log:         slog.Default(),
		now:         time.Now,
		attempts:    make(map[autherr.Type]int),
	}
	for _, opt := range opts {
		opt(c)
	}
	sort.SliceStable(c.strategies, func(i, j int) bool {
		return c.strategies[i].Priority() > c.strategies[j].Priority()
	})
	return c
}

// Handle routes the error to the highest-priority strategy that claims it.
// A nil return means the error was recovered and the caller may retry the
// original operation. Exceeding the attempt cap for an error type forces
// logout and redirects with "max_recovery_attempts" regardless of which
// strategy last ran.
func (c *Chain) Handle(ctx context.Context, err error) error {
	e := autherr.Classify(err, 0)

	c.mu.Lock()
	c.attempts[e.Type]++
	exceeded := c.attempts[e.Type] > c.maxAttempts
	c.mu.Unlock()

	if exceeded {
		c.log.Warn("recovery: attempt cap exceeded, forcing logout", "type", e.Type)
		c.record(ctx, e, "attempt_cap", false)
		c.logout(ctx)
		c.redirect(ReasonMaxRecoveryAttempts)
		return autherr.New(autherr.SessionExpired, "recovery attempts exhausted",
			autherr.WithCode(ReasonMaxRecoveryAttempts),
			autherr.WithRetryable(false),
			autherr.WithCause(e))
	}

	for _, s := range c.strategies {
		if !s.CanHandle(e) {
			continue
		}

		execErr := s.Execute(ctx, e)
		recovered := execErr == nil
		c.record(ctx, e, s.Name(), recovered)
		if recovered {
			c.resetAttempts(e.Type)
			c.log.Info("recovery: recovered", "type", e.Type, logger.Strategy(s.Name()))
			return nil
		}
		c.log.Warn("recovery: strategy failed", "type", e.Type, logger.Strategy(s.Name()), logger.Error(execErr))
		return execErr
	}

	c.record(ctx, e, "", false)
	return e
}

// ResetAttempts clears the attempt counter for an error type, typically
// after the application re-establishes a session out of band.
func (c *Chain) ResetAttempts(t autherr.Type) {
	c.resetAttempts(t)
}

func (c *Chain) resetAttempts(t autherr.Type) {
	c.mu.Lock()
	delete(c.attempts, t)
	c.mu.Unlock()
}

// History returns a copy of the rolling record of handled errors, newest
// last, bounded to the most recent ten.
func (c *Chain) History() []Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Record, len(c.history))
	copy(out, c.history)
	return out
}

func (c *Chain) record(ctx context.Context, e *autherr.Error, strategy string, recovered bool) {
	rec := Record{Error: e, Strategy: strategy, Recovered: recovered, Timestamp: c.now()}

	c.mu.Lock()
	c.history = append(c.history, rec)
	if len(c.history) > historySize {
		c.history = c.history[len(c.history)-historySize:]
	}
	c.mu.Unlock()

	c.reporter.Report(ctx, rec)
}
