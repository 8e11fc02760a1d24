package refresh

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/dmitrymomot/sessionkit/pkg/autherr"
	"github.com/dmitrymomot/sessionkit/pkg/backoff"
	"github.com/dmitrymomot/sessionkit/pkg/logger"
	"github.com/dmitrymomot/sessionkit/pkg/session"
	"github.com/dmitrymomot/sessionkit/pkg/statemachine"
)

// Flight states for the refresh queue. The explicit machine replaces
// inferred boolean flags: every transition goes through one guarded table.
const (
	FlightIdle       = statemachine.State("idle")
	FlightRefreshing = statemachine.State("refreshing")
	FlightSettled    = statemachine.State("settled")

	eventBegin  = statemachine.Event("begin")
	eventSettle = statemachine.Event("settle")
	eventReset  = statemachine.Event("reset")
)

// Service guarantees at most one outstanding retry cycle against the
// identity provider per instance, with bounded retry and backoff, and runs
// an optional background loop keeping the credential comfortably fresh.
type Service struct {
	mgr      *session.Manager
	cfg      Config
	strategy backoff.Strategy
	log      *slog.Logger
	now      func() time.Time

	flight *statemachine.Machine
	sf     singleflight.Group

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewService wraps a session manager. The background proactive loop starts
// immediately when Config.BackgroundInterval is positive; Close stops it.
func NewService(mgr *session.Manager, opts ...Option) (*Service, error) {
	if mgr == nil {
		return nil, ErrNoManager
	}

	flight, err := statemachine.New(FlightIdle,
		statemachine.Transition{From: FlightIdle, To: FlightRefreshing, Event: eventBegin},
		statemachine.Transition{From: FlightRefreshing, To: FlightSettled, Event: eventSettle},
		statemachine.Transition{From: FlightSettled, To: FlightIdle, Event: eventReset},
	)
	if err != nil {
		return nil, err
	}

	s := &Service{
		mgr:      mgr,
		cfg:      DefaultConfig(),
		strategy: backoff.Default(),
		log:      slog.Default(),
		now:      time.Now,
		flight:   flight,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.cfg.BackgroundInterval > 0 {
		s.wg.Add(1)
		go s.backgroundLoop()
	}

	return s, nil
}

// FlightState reports the current refresh-queue state for diagnostics.
func (s *Service) FlightState() statemachine.State {
	return s.flight.Current()
}

// RefreshWithRetry refreshes the session, retrying up to Config.MaxRetries
// times with backoff between attempts. Concurrent callers join the in-flight
// cycle and settle together. Exhaustion yields REFRESH_FAILED with code
// "max_retries_exceeded"; non-retryable failures short-circuit immediately.
func (s *Service) RefreshWithRetry(ctx context.Context) (*session.Session, error) {
	flightCtx := context.WithoutCancel(ctx)
	v, err, _ := s.sf.Do("refresh-cycle", func() (any, error) {
		_ = s.flight.Fire(eventBegin)
		defer func() {
			_ = s.flight.Fire(eventSettle)
			_ = s.flight.Fire(eventReset)
		}()
		return s.refreshCycle(flightCtx)
	})
	if err != nil {
		return nil, err
	}
	return v.(*session.Session), nil
}

func (s *Service) refreshCycle(ctx context.Context) (*session.Session, error) {
	var lastErr error
	// Initial attempt plus MaxRetries retries.
	for attempt := 0; attempt <= s.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := backoff.Wait(ctx, s.strategy, attempt); err != nil {
				return nil, autherr.Classify(err, 0)
			}
		}

		sess, err := s.mgr.Refresh(ctx)
		if err == nil {
			return sess, nil
		}
		lastErr = err

		if e := autherr.As(err); e != nil && !e.Retryable {
			return nil, err
		}
		s.log.Debug("refresh: attempt failed", "attempt", attempt+1, logger.Error(err))
	}

	return nil, autherr.New(autherr.RefreshFailed,
		fmt.Sprintf("refresh exhausted after %d attempts", s.cfg.MaxRetries+1),
		autherr.WithCode("max_retries_exceeded"),
		autherr.WithCause(lastErr))
}

// FreshToken returns the cached access token when the session validates,
// forcing a refresh cycle otherwise. This is what the authenticated request
// layer calls before every outbound request.
func (s *Service) FreshToken(ctx context.Context) (string, error) {
	if s.mgr.Validate(ctx) {
		if cur := s.mgr.Current(); cur != nil {
			return cur.AccessToken, nil
		}
	}

	sess, err := s.RefreshWithRetry(ctx)
	if err != nil {
		return "", err
	}
	return sess.AccessToken, nil
}

// ShouldRefresh is a pure predicate: true iff the session's time-to-expiry
// is below the manager's refresh threshold. It never triggers a network call.
func (s *Service) ShouldRefresh(sess *session.Session) bool {
	if sess == nil {
		return false
	}
	return sess.ExpiresIn(s.now()) < s.mgr.Config().RefreshThreshold
}

// Close stops the background loop. In-flight cycles finish undisturbed.
func (s *Service) Close() error {
	s.closeOnce.Do(func() { close(s.done) })
	s.wg.Wait()
	return nil
}

// backgroundLoop opportunistically refreshes while the credential still has
// a comfortable margin (more than MarginMultiplier × threshold) before
// expiry, keeping it perpetually fresh without contending with the
// manager's primary near-expiry timer. Failures are logged and swallowed:
// nothing blocks on this path.
func (s *Service) backgroundLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.BackgroundInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.backgroundRefresh()
		}
	}
}

func (s *Service) backgroundRefresh() {
	cur := s.mgr.Current()
	if cur == nil {
		return
	}

	margin := time.Duration(float64(s.mgr.Config().RefreshThreshold) * s.cfg.MarginMultiplier)
	if cur.ExpiresIn(s.now()) <= margin {
		// Near expiry the primary timer owns the refresh; stay out of its way.
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.BackgroundTimeout)
	defer cancel()
	if _, err := s.mgr.Refresh(ctx); err != nil {
		s.log.Warn("refresh: background refresh failed", logger.Error(err))
	}
}
