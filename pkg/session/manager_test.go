package session_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/sessionkit/pkg/autherr"
	"github.com/dmitrymomot/sessionkit/pkg/broadcast"
	"github.com/dmitrymomot/sessionkit/pkg/fingerprint"
	"github.com/dmitrymomot/sessionkit/pkg/idp"
	"github.com/dmitrymomot/sessionkit/pkg/session"
	"github.com/dmitrymomot/sessionkit/pkg/storage"
)

// fakeProvider is a scriptable identity provider.
type fakeProvider struct {
	mu    sync.Mutex
	calls int
	delay time.Duration
	err   error
	ttl   time.Duration
}

func (p *fakeProvider) Refresh(ctx context.Context, refreshToken string) (*idp.Credentials, error) {
	p.mu.Lock()
	p.calls++
	call := p.calls
	delay, err, ttl := p.delay, p.err, p.ttl
	p.mu.Unlock()

	if delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
	if err != nil {
		return nil, err
	}
	if ttl == 0 {
		ttl = time.Hour
	}
	return &idp.Credentials{
		UserID:       "user-1",
		AccessToken:  "access-" + string(rune('0'+call)),
		RefreshToken: "refresh-" + string(rune('0'+call)),
		ExpiresAt:    time.Now().Add(ttl),
	}, nil
}

func (p *fakeProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func testCreds(ttl time.Duration) *idp.Credentials {
	return &idp.Credentials{
		UserID:       "user-1",
		AccessToken:  "access-0",
		RefreshToken: "refresh-0",
		ExpiresAt:    time.Now().Add(ttl),
	}
}

func quietConfig() session.Config {
	cfg := session.DefaultConfig()
	cfg.ActivityInterval = 0 // no background writes during tests
	cfg.RefreshThreshold = time.Minute
	return cfg
}

func newManager(t *testing.T, opts ...session.Option) *session.Manager {
	t.Helper()

	base := []session.Option{
		session.WithStore(storage.NewMemoryStore(0)),
		session.WithProvider(&fakeProvider{}),
		session.WithConfig(quietConfig()),
	}
	m, err := session.New(append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	_, err := session.New(session.WithProvider(&fakeProvider{}))
	assert.ErrorIs(t, err, session.ErrNoStore)

	_, err = session.New(session.WithStore(storage.NewMemoryStore(0)))
	assert.ErrorIs(t, err, session.ErrNoProvider)
}

func TestManager_InitFromCredentials(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := storage.NewMemoryStore(0)
	m := newManager(t, session.WithStore(store))

	s, err := m.InitFromCredentials(ctx, testCreds(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, "user-1", s.UserID)
	assert.Equal(t, "access-0", s.AccessToken)
	assert.True(t, s.IsActive)

	// Serialized copy mirrored into the shared store.
	raw, err := store.Get(ctx, m.Config().StorageKey)
	require.NoError(t, err)
	assert.Contains(t, raw, s.ID.String())

	// Nil and token-less credentials are rejected.
	_, err = m.InitFromCredentials(ctx, nil)
	assert.True(t, autherr.IsType(err, autherr.SessionInvalid))
	_, err = m.InitFromCredentials(ctx, &idp.Credentials{})
	assert.True(t, autherr.IsType(err, autherr.SessionInvalid))
}

func TestManager_QuotaExceededDegradesGracefully(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	// 8 bytes cannot fit any serialized session, so every mirror write hits
	// the quota ceiling.
	store := storage.NewMemoryStore(8)
	m := newManager(t, session.WithStore(store))

	// Init succeeds in memory even though the store rejects the mirror.
	s, err := m.InitFromCredentials(ctx, testCreds(time.Hour))
	require.NoError(t, err)
	require.NotNil(t, m.Current())
	assert.True(t, m.Validate(ctx))

	_, err = store.Get(ctx, m.Config().StorageKey)
	assert.ErrorIs(t, err, storage.ErrNotFound, "rejected write must not leave a partial record")

	// Refresh keeps working against the in-memory session.
	next, err := m.Refresh(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, s.AccessToken, next.AccessToken)
	assert.True(t, m.Validate(ctx))
}

func TestManager_Validate(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("no session", func(t *testing.T) {
		t.Parallel()
		m := newManager(t)
		assert.False(t, m.Validate(ctx))
	})

	t.Run("valid session touches activity", func(t *testing.T) {
		t.Parallel()
		m := newManager(t)
		s, err := m.InitFromCredentials(ctx, testCreds(time.Hour))
		require.NoError(t, err)

		time.Sleep(5 * time.Millisecond)
		assert.True(t, m.Validate(ctx))
		assert.GreaterOrEqual(t, m.Current().LastActivityAt, s.LastActivityAt)
	})

	t.Run("expiry is idempotent", func(t *testing.T) {
		t.Parallel()
		store := storage.NewMemoryStore(0)
		// Provider failure keeps the near-expiry timer from resurrecting the
		// session behind the test's back.
		m := newManager(t, session.WithStore(store),
			session.WithProvider(&fakeProvider{err: errors.New("provider down")}))

		_, err := m.InitFromCredentials(ctx, testCreds(20*time.Millisecond))
		require.NoError(t, err)
		time.Sleep(30 * time.Millisecond)

		// Repeated validation after expiry always returns false, never panics.
		for range 5 {
			assert.False(t, m.Validate(ctx))
		}
		assert.Nil(t, m.Current())
		_, err = store.Get(ctx, m.Config().StorageKey)
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("restores persisted session", func(t *testing.T) {
		t.Parallel()
		store := storage.NewMemoryStore(0)

		m1 := newManager(t, session.WithStore(store))
		s1, err := m1.InitFromCredentials(ctx, testCreds(time.Hour))
		require.NoError(t, err)
		require.NoError(t, m1.Close())

		// A fresh manager over the same store picks the session up.
		m2 := newManager(t, session.WithStore(store))
		assert.True(t, m2.Validate(ctx))
		assert.Equal(t, s1.ID, m2.Current().ID)
	})
}

// switchableCollector lets a test change the device identity underneath a
// running manager.
type switchableCollector struct {
	mu    sync.Mutex
	attrs fingerprint.Attributes
}

func (c *switchableCollector) Collect(ctx context.Context) (fingerprint.Attributes, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attrs, ctx.Err()
}

func (c *switchableCollector) set(attrs fingerprint.Attributes) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.attrs = attrs
}

func TestManager_FingerprintRejection(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := storage.NewMemoryStore(0)
	channel := broadcast.NewEventBusChannel()
	t.Cleanup(func() { _ = channel.Close() })

	collector := &switchableCollector{attrs: fingerprint.Attributes{
		UserAgent: "agent-a", Platform: "linux/amd64", Timezone: "UTC",
	}}

	m := newManager(t,
		session.WithStore(store),
		session.WithChannel(channel),
		session.WithCollector(collector),
	)

	var published []broadcast.Message
	var mu sync.Mutex
	_, err := channel.Subscribe(func(msg broadcast.Message) {
		mu.Lock()
		defer mu.Unlock()
		published = append(published, msg)
	})
	require.NoError(t, err)

	_, err = m.InitFromCredentials(ctx, testCreds(time.Hour))
	require.NoError(t, err)
	require.True(t, m.Validate(ctx))

	// The device identity changes: validation must reject and clear once.
	collector.set(fingerprint.Attributes{
		UserAgent: "agent-b", Platform: "windows/amd64", Timezone: "UTC",
	})
	assert.False(t, m.Validate(ctx))
	assert.Nil(t, m.Current())
	_, err = store.Get(ctx, m.Config().StorageKey)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		for _, msg := range published {
			if msg.Type == broadcast.SuspiciousActivity {
				return true
			}
		}
		return false
	}, time.Second, 10*time.Millisecond)

	// Further validations stay false without publishing again.
	assert.False(t, m.Validate(ctx))
	mu.Lock()
	count := 0
	for _, msg := range published {
		if msg.Type == broadcast.SuspiciousActivity {
			count++
		}
	}
	mu.Unlock()
	assert.Equal(t, 1, count)
}

func TestManager_Refresh(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("rebuilds session with new identity", func(t *testing.T) {
		t.Parallel()
		m := newManager(t)
		first, err := m.InitFromCredentials(ctx, testCreds(time.Hour))
		require.NoError(t, err)

		next, err := m.Refresh(ctx)
		require.NoError(t, err)
		assert.NotEqual(t, first.ID, next.ID)
		assert.NotEqual(t, first.AccessToken, next.AccessToken)
		assert.Equal(t, "user-1", next.UserID)
	})

	t.Run("single flight", func(t *testing.T) {
		t.Parallel()
		provider := &fakeProvider{delay: 100 * time.Millisecond}
		m := newManager(t, session.WithProvider(provider))
		_, err := m.InitFromCredentials(ctx, testCreds(time.Hour))
		require.NoError(t, err)

		const callers = 10
		tokens := make([]string, callers)
		errs := make([]error, callers)
		var wg sync.WaitGroup
		for i := range callers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				s, err := m.Refresh(ctx)
				errs[i] = err
				if s != nil {
					tokens[i] = s.AccessToken
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, 1, provider.callCount())
		for i := range callers {
			require.NoError(t, errs[i])
			assert.Equal(t, tokens[0], tokens[i])
		}
	})

	t.Run("no session", func(t *testing.T) {
		t.Parallel()
		m := newManager(t)
		_, err := m.Refresh(ctx)
		assert.True(t, autherr.IsType(err, autherr.SessionExpired))
		assert.ErrorIs(t, err, session.ErrNoSession)
		if e := autherr.As(err); assert.NotNil(t, e) {
			assert.False(t, e.Retryable)
		}
	})

	t.Run("provider error classified", func(t *testing.T) {
		t.Parallel()
		provider := &fakeProvider{err: errors.New("connection refused")}
		m := newManager(t, session.WithProvider(provider))
		_, err := m.InitFromCredentials(ctx, testCreds(time.Hour))
		require.NoError(t, err)

		_, err = m.Refresh(ctx)
		require.Error(t, err)
		assert.True(t, autherr.IsType(err, autherr.NetworkError))
	})

	t.Run("closed manager", func(t *testing.T) {
		t.Parallel()
		m := newManager(t)
		require.NoError(t, m.Close())
		_, err := m.Refresh(ctx)
		assert.ErrorIs(t, err, session.ErrManagerClosed)
	})
}

func TestManager_ProactiveRefreshSchedule(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("fires at expiry minus threshold", func(t *testing.T) {
		t.Parallel()

		provider := &fakeProvider{ttl: time.Hour}
		cfg := quietConfig()
		cfg.RefreshThreshold = 100 * time.Millisecond

		m := newManager(t, session.WithProvider(provider), session.WithConfig(cfg))
		// Expires in 250ms, threshold 100ms: refresh due at ~150ms.
		_, err := m.InitFromCredentials(ctx, testCreds(250*time.Millisecond))
		require.NoError(t, err)

		time.Sleep(75 * time.Millisecond)
		assert.Equal(t, 0, provider.callCount(), "refresh fired too early")

		require.Eventually(t, func() bool {
			return provider.callCount() == 1
		}, time.Second, 10*time.Millisecond)
	})

	t.Run("near-expired token refreshes immediately", func(t *testing.T) {
		t.Parallel()

		provider := &fakeProvider{ttl: time.Hour}
		cfg := quietConfig()
		cfg.RefreshThreshold = time.Minute

		m := newManager(t, session.WithProvider(provider), session.WithConfig(cfg))
		_, err := m.InitFromCredentials(ctx, testCreds(time.Second))
		require.NoError(t, err)

		require.Eventually(t, func() bool {
			return provider.callCount() >= 1
		}, time.Second, 5*time.Millisecond)
	})
}

func TestManager_CrossTabConvergence(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := storage.NewMemoryStore(0)
	channel := broadcast.NewEventBusChannel()
	t.Cleanup(func() { _ = channel.Close() })

	tabA := newManager(t, session.WithStore(store), session.WithChannel(channel))
	tabB := newManager(t, session.WithStore(store), session.WithChannel(channel))
	require.NotEqual(t, tabA.TabID(), tabB.TabID())

	_, err := tabA.InitFromCredentials(ctx, testCreds(time.Hour))
	require.NoError(t, err)

	// Tab A refreshes; tab B adopts the persisted session on TOKEN_REFRESHED.
	refreshed, err := tabA.Refresh(ctx)
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		cur := tabB.Current()
		return cur != nil && cur.ID == refreshed.ID
	}, time.Second, 10*time.Millisecond)

	// Tab A logs out; tab B converges to nil without any direct call.
	tabA.Clear(ctx)
	require.Eventually(t, func() bool {
		return tabB.Current() == nil
	}, time.Second, 10*time.Millisecond)
}

func TestManager_Revoke(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := storage.NewMemoryStore(0)
	channel := broadcast.NewEventBusChannel()
	t.Cleanup(func() { _ = channel.Close() })

	var got []broadcast.Message
	var mu sync.Mutex
	_, err := channel.Subscribe(func(msg broadcast.Message) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, msg)
	})
	require.NoError(t, err)

	m := newManager(t, session.WithStore(store), session.WithChannel(channel))
	s, err := m.InitFromCredentials(ctx, testCreds(time.Hour))
	require.NoError(t, err)

	m.Revoke(ctx)
	assert.Nil(t, m.Current())

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		for _, msg := range got {
			if msg.Type == broadcast.SessionRevoked && msg.SessionID == s.ID.String() {
				return true
			}
		}
		return false
	}, time.Second, 10*time.Millisecond)
}
