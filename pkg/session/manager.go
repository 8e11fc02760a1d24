package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/segmentio/ksuid"
	"golang.org/x/sync/singleflight"

	"github.com/dmitrymomot/sessionkit/pkg/autherr"
	"github.com/dmitrymomot/sessionkit/pkg/broadcast"
	"github.com/dmitrymomot/sessionkit/pkg/fingerprint"
	"github.com/dmitrymomot/sessionkit/pkg/idp"
	"github.com/dmitrymomot/sessionkit/pkg/logger"
	"github.com/dmitrymomot/sessionkit/pkg/storage"
)

// Manager is the single source of truth for the current session within one
// instance. It validates the session against the device fingerprint,
// schedules proactive refresh, mirrors state into shared storage, and keeps
// sibling instances converged through the broadcast channel.
type Manager struct {
	cfg         Config
	store       storage.Store
	tabStore    storage.Store
	channel     broadcast.Channel
	ownsChannel bool
	provider    idp.Provider
	collector   fingerprint.Collector
	log         *slog.Logger
	now         func() time.Time

	tabID string

	mu           sync.Mutex
	current      *Session
	refreshTimer *time.Timer
	closed       bool

	sf          singleflight.Group
	unsubscribe func()
	done        chan struct{}
	wg          sync.WaitGroup
}

// New creates a session manager. A shared store and an identity provider are
// required; everything else has defaults.
func New(opts ...Option) (*Manager, error) {
	m := &Manager{
		cfg:  DefaultConfig(),
		log:  slog.Default(),
		now:  time.Now,
		done: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}

	if m.store == nil {
		return nil, ErrNoStore
	}
	if m.provider == nil {
		return nil, ErrNoProvider
	}
	if m.tabStore == nil {
		m.tabStore = storage.NewMemoryStore(0)
	}
	if m.channel == nil {
		m.channel = broadcast.NewEventBusChannel()
		m.ownsChannel = true
	}

	m.tabID = m.loadOrCreateTabID()

	unsub, err := m.channel.Subscribe(m.handleMessage)
	if err != nil {
		return nil, err
	}
	m.unsubscribe = unsub

	// Restore a previously persisted session so a restarted instance picks
	// up where it left off. Validity is checked lazily on first use.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	m.mu.Lock()
	if s := m.loadFromStore(ctx); s != nil {
		m.current = s
		m.scheduleRefreshLocked(s)
	}
	m.mu.Unlock()

	if m.cfg.ActivityInterval > 0 {
		m.wg.Add(1)
		go m.activityLoop()
	}

	return m, nil
}

// TabID returns this instance's unique identifier.
func (m *Manager) TabID() string {
	return m.tabID
}

// Config returns the manager configuration.
func (m *Manager) Config() Config {
	return m.cfg
}

// Current returns a copy of the current session, or nil.
func (m *Manager) Current() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current.Clone()
}

// Validate reports whether a usable session exists. An absent or expired
// session yields false (clearing the stale record as a side effect); a
// fingerprint mismatch broadcasts SUSPICIOUS_ACTIVITY and clears the session.
// Successful validation updates the activity timestamp. It never panics and
// is safe to call repeatedly after expiry.
func (m *Manager) Validate(ctx context.Context) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return false
	}

	s := m.current
	if s == nil {
		if s = m.loadFromStore(ctx); s == nil {
			return false
		}
		m.current = s
	}

	if s.IsExpired(m.now()) {
		m.clearLocked(ctx)
		return false
	}

	if m.cfg.FingerprintCheck && m.collector != nil && s.Fingerprint != nil {
		if !m.fingerprintValidLocked(ctx, s) {
			m.publish(broadcast.SuspiciousActivity, s.ID.String())
			m.clearLocked(ctx)
			return false
		}
	}

	s.Touch(m.now())
	return true
}

// fingerprintValidLocked recomputes the runtime fingerprint and compares it
// to the stored one. Collection failures are logged and treated as a pass so
// a flaky collector cannot lock users out.
func (m *Manager) fingerprintValidLocked(ctx context.Context, s *Session) bool {
	attrs, err := m.collector.Collect(ctx)
	if err != nil {
		m.log.Warn("session: fingerprint collection failed, skipping check", logger.Error(err))
		return true
	}
	current, err := fingerprint.Generate(ctx, attrs)
	if err != nil {
		m.log.Warn("session: fingerprint generation failed, skipping check", logger.Error(err))
		return true
	}
	if !s.Fingerprint.Match(current) {
		s.SuspiciousActivity = true
		m.log.Warn("session: fingerprint mismatch, clearing session",
			logger.SessionID(s.ID), logger.TabID(m.tabID))
		return false
	}
	return true
}

// Refresh obtains a fresh credential set from the identity provider and
// rebuilds the session around it. Concurrent callers share one in-flight
// provider call and all observe its result.
func (m *Manager) Refresh(ctx context.Context) (*Session, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrManagerClosed
	}
	m.mu.Unlock()

	// Waiters share the flight, so the first caller's cancellation must not
	// fail everyone else's result.
	flightCtx := context.WithoutCancel(ctx)
	v, err, _ := m.sf.Do("refresh", func() (any, error) {
		return m.doRefresh(flightCtx)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Session).Clone(), nil
}

func (m *Manager) doRefresh(ctx context.Context) (*Session, error) {
	m.mu.Lock()
	s := m.current
	if s == nil {
		s = m.loadFromStore(ctx)
		m.current = s
	}
	if s == nil {
		m.mu.Unlock()
		// Nothing to retry against: there is no refresh token at all.
		return nil, autherr.New(autherr.SessionExpired, "no session to refresh",
			autherr.WithRetryable(false), autherr.WithCause(ErrNoSession))
	}
	refreshToken := s.RefreshToken
	m.mu.Unlock()

	creds, err := m.provider.Refresh(ctx, refreshToken)
	if err != nil {
		return nil, autherr.Classify(err, 0)
	}
	if creds == nil || creds.AccessToken == "" {
		return nil, autherr.New(autherr.RefreshFailed, "provider returned no access token",
			autherr.WithCode("missing_token"))
	}

	fp := m.collectFingerprint(ctx)
	next := newSession(creds, fp, m.now())
	if next.UserID == "" {
		next.UserID = s.UserID
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrManagerClosed
	}
	m.current = next
	m.persistLocked(ctx, next)
	m.scheduleRefreshLocked(next)
	m.mu.Unlock()

	m.publish(broadcast.TokenRefreshed, next.ID.String())
	m.log.Debug("session: refreshed", logger.SessionID(next.ID), "expires_at", next.ExpiresAt)
	return next, nil
}

// InitFromCredentials constructs the first session after sign-in, persists
// it, and starts the proactive refresh schedule.
func (m *Manager) InitFromCredentials(ctx context.Context, creds *idp.Credentials) (*Session, error) {
	if creds == nil || creds.AccessToken == "" {
		return nil, autherr.New(autherr.SessionInvalid, "credentials carry no access token")
	}

	fp := m.collectFingerprint(ctx)
	s := newSession(creds, fp, m.now())

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrManagerClosed
	}
	m.current = s
	m.persistLocked(ctx, s)
	m.scheduleRefreshLocked(s)
	m.mu.Unlock()

	m.log.Info("session: initialized", logger.SessionID(s.ID), logger.UserID(s.UserID))
	return s.Clone(), nil
}

// Clear wipes the session from memory and storage, cancels timers, and
// broadcasts LOGOUT to sibling instances.
func (m *Manager) Clear(ctx context.Context) {
	m.mu.Lock()
	m.clearLocked(ctx)
	m.mu.Unlock()
	m.publish(broadcast.Logout, "")
}

// Revoke behaves like Clear but broadcasts SESSION_REVOKED, so siblings can
// distinguish an administrative revocation from a user logout.
func (m *Manager) Revoke(ctx context.Context) {
	m.mu.Lock()
	id := ""
	if m.current != nil {
		id = m.current.ID.String()
	}
	m.clearLocked(ctx)
	m.mu.Unlock()
	m.publish(broadcast.SessionRevoked, id)
}

// Close tears the manager down: timers stop, the activity loop exits, and
// nothing fires afterwards. It does not clear the persisted session.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	if m.refreshTimer != nil {
		m.refreshTimer.Stop()
		m.refreshTimer = nil
	}
	m.mu.Unlock()

	close(m.done)
	m.wg.Wait()
	if m.unsubscribe != nil {
		m.unsubscribe()
	}
	if m.ownsChannel {
		return m.channel.Close()
	}
	return nil
}

// clearLocked removes the in-memory and persisted session and stops the
// refresh timer. Callers hold m.mu.
func (m *Manager) clearLocked(ctx context.Context) {
	m.current = nil
	if m.refreshTimer != nil {
		m.refreshTimer.Stop()
		m.refreshTimer = nil
	}
	if err := m.store.Remove(ctx, m.cfg.StorageKey); err != nil {
		m.log.Warn("session: failed to remove persisted session", logger.Error(err))
	}
}

// loadFromStore reads the persisted session, tolerating absence and
// corruption. Callers hold m.mu.
func (m *Manager) loadFromStore(ctx context.Context) *Session {
	raw, err := m.store.Get(ctx, m.cfg.StorageKey)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			m.log.Warn("session: failed to read persisted session", logger.Error(err))
		}
		return nil
	}
	s, err := unmarshalSession(raw)
	if err != nil {
		m.log.Warn("session: discarding corrupt persisted session", logger.Error(err))
		return nil
	}
	return s
}

// persistLocked mirrors the full session into shared storage. Write failures
// (including the size ceiling) degrade to a warning: the in-memory session
// stays authoritative for this instance.
func (m *Manager) persistLocked(ctx context.Context, s *Session) {
	raw, err := s.marshal()
	if err != nil {
		m.log.Error("session: failed to serialize session", logger.Error(err))
		return
	}
	if err := m.store.Set(ctx, m.cfg.StorageKey, raw); err != nil {
		if errors.Is(err, storage.ErrQuotaExceeded) {
			m.log.Warn("session: storage quota exceeded, session not mirrored", logger.Error(err))
			return
		}
		m.log.Warn("session: failed to persist session", logger.Error(err))
	}
}

// scheduleRefreshLocked arms the proactive refresh timer at
// expiresAt − refreshThreshold. A non-positive delta refreshes immediately.
// Callers hold m.mu.
func (m *Manager) scheduleRefreshLocked(s *Session) {
	if m.closed {
		return
	}
	if m.refreshTimer != nil {
		m.refreshTimer.Stop()
	}

	delay := s.ExpiresIn(m.now()) - m.cfg.RefreshThreshold
	if delay <= 0 {
		m.refreshTimer = nil
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			m.backgroundRefresh()
		}()
		return
	}
	m.refreshTimer = time.AfterFunc(delay, m.backgroundRefresh)
}

func (m *Manager) backgroundRefresh() {
	select {
	case <-m.done:
		return
	default:
	}
	if _, err := m.Refresh(context.Background()); err != nil {
		m.log.Warn("session: scheduled refresh failed", logger.Error(err))
	}
}

// collectFingerprint builds the runtime fingerprint, or nil when no
// collector is configured or collection fails.
func (m *Manager) collectFingerprint(ctx context.Context) *fingerprint.Fingerprint {
	if m.collector == nil {
		return nil
	}
	attrs, err := m.collector.Collect(ctx)
	if err != nil {
		m.log.Warn("session: fingerprint collection failed", logger.Error(err))
		return nil
	}
	fp, err := fingerprint.Generate(ctx, attrs)
	if err != nil {
		m.log.Warn("session: fingerprint generation failed", logger.Error(err))
		return nil
	}
	return fp
}

// publish sends a lifecycle event to sibling instances. Failures are logged;
// broadcast is best-effort by contract.
func (m *Manager) publish(typ broadcast.MessageType, sessionID string) {
	msg := broadcast.Message{
		Type:      typ,
		Timestamp: m.now(),
		SessionID: sessionID,
		TabID:     m.tabID,
	}
	if err := m.channel.Publish(msg); err != nil && !errors.Is(err, broadcast.ErrChannelClosed) {
		m.log.Warn("session: broadcast failed", "type", typ, logger.Error(err))
	}
}

// handleMessage applies sibling lifecycle events to the local view.
func (m *Manager) handleMessage(msg broadcast.Message) {
	if msg.TabID == m.tabID {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	switch msg.Type {
	case broadcast.TokenRefreshed:
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.closed {
			return
		}
		s := m.loadFromStore(ctx)
		if s == nil {
			return
		}
		if m.current != nil && m.current.ID == s.ID {
			return
		}
		m.current = s
		m.scheduleRefreshLocked(s)
		m.log.Debug("session: adopted sibling refresh", logger.SessionID(s.ID), "from_tab", msg.TabID)

	case broadcast.Logout, broadcast.SessionExpired, broadcast.SessionRevoked:
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.closed {
			return
		}
		m.current = nil
		if m.refreshTimer != nil {
			m.refreshTimer.Stop()
			m.refreshTimer = nil
		}
		m.log.Info("session: cleared by sibling", "type", msg.Type, "from_tab", msg.TabID)

	case broadcast.SuspiciousActivity:
		// Log only: forcing receivers out on a sibling's mismatch would
		// cascade false positives across instances sharing one fingerprint
		// basis.
		m.log.Warn("session: sibling reported suspicious activity",
			logger.SessionID(msg.SessionID), "from_tab", msg.TabID)
	}
}

func (m *Manager) activityLoop() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.cfg.ActivityInterval)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			m.touchActivity()
		}
	}
}

func (m *Manager) touchActivity() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed || m.current == nil || m.current.IsExpired(m.now()) {
		return
	}
	m.current.Touch(m.now())
	m.persistLocked(ctx, m.current)
}

func (m *Manager) loadOrCreateTabID() string {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if id, err := m.tabStore.Get(ctx, m.cfg.TabIDKey); err == nil && id != "" {
		return id
	}
	id := ksuid.New().String()
	if err := m.tabStore.Set(ctx, m.cfg.TabIDKey, id); err != nil {
		m.log.Warn("session: failed to cache tab id", logger.Error(err))
	}
	return id
}
