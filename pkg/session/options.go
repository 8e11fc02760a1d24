package session

import (
	"log/slog"
	"time"

	"github.com/dmitrymomot/sessionkit/pkg/broadcast"
	"github.com/dmitrymomot/sessionkit/pkg/fingerprint"
	"github.com/dmitrymomot/sessionkit/pkg/idp"
	"github.com/dmitrymomot/sessionkit/pkg/storage"
)

// Option is a functional option for configuring the Manager.
type Option func(*Manager)

// WithConfig sets custom configuration.
func WithConfig(cfg Config) Option {
	return func(m *Manager) {
		m.cfg = cfg
	}
}

// WithStore sets the shared store the session is mirrored into.
func WithStore(store storage.Store) Option {
	return func(m *Manager) {
		m.store = store
	}
}

// WithTabStore sets the instance-private store caching tab-scoped values
// (the tab identifier). Defaults to an in-memory store.
func WithTabStore(store storage.Store) Option {
	return func(m *Manager) {
		m.tabStore = store
	}
}

// WithChannel sets the cross-instance broadcast channel. When omitted the
// manager creates a private in-process channel and closes it on Close.
func WithChannel(ch broadcast.Channel) Option {
	return func(m *Manager) {
		m.channel = ch
		m.ownsChannel = false
	}
}

// WithProvider sets the identity provider used for refresh.
func WithProvider(p idp.Provider) Option {
	return func(m *Manager) {
		m.provider = p
	}
}

// WithCollector sets the fingerprint collector. Without one, fingerprint
// validation is skipped regardless of Config.FingerprintCheck.
func WithCollector(c fingerprint.Collector) Option {
	return func(m *Manager) {
		m.collector = c
	}
}

// WithLogger sets the structured logger.
func WithLogger(log *slog.Logger) Option {
	return func(m *Manager) {
		if log != nil {
			m.log = log
		}
	}
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithRefreshThreshold overrides the proactive refresh threshold.
func WithRefreshThreshold(d time.Duration) Option {
	return func(m *Manager) {
		m.cfg.RefreshThreshold = d
	}
}
