package apiclient_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/sessionkit/pkg/apiclient"
	"github.com/dmitrymomot/sessionkit/pkg/autherr"
	"github.com/dmitrymomot/sessionkit/pkg/backoff"
	"github.com/dmitrymomot/sessionkit/pkg/idp"
	"github.com/dmitrymomot/sessionkit/pkg/recovery"
	"github.com/dmitrymomot/sessionkit/pkg/refresh"
	"github.com/dmitrymomot/sessionkit/pkg/session"
	"github.com/dmitrymomot/sessionkit/pkg/storage"
)

type stack struct {
	mgr           *session.Manager
	svc           *refresh.Service
	providerCalls atomic.Int64
}

// newStack builds a manager + refresh service with a session whose access
// token is "access-0"; every provider refresh hands out "access-new".
func newStack(t *testing.T) *stack {
	t.Helper()
	st := &stack{}

	cfg := session.DefaultConfig()
	cfg.ActivityInterval = 0
	cfg.RefreshThreshold = time.Minute

	provider := idp.ProviderFunc(func(ctx context.Context, refreshToken string) (*idp.Credentials, error) {
		st.providerCalls.Add(1)
		return &idp.Credentials{
			UserID:       "user-1",
			AccessToken:  "access-new",
			RefreshToken: "refresh-new",
			ExpiresAt:    time.Now().Add(time.Hour),
		}, nil
	})

	mgr, err := session.New(
		session.WithStore(storage.NewMemoryStore(0)),
		session.WithProvider(provider),
		session.WithConfig(cfg),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = mgr.Close() })

	svc, err := refresh.NewService(mgr,
		refresh.WithConfig(refresh.Config{MaxRetries: 1}),
		refresh.WithBackoff(backoff.Fixed{Interval: time.Millisecond}),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })

	_, err = mgr.InitFromCredentials(context.Background(), &idp.Credentials{
		UserID:       "user-1",
		AccessToken:  "access-0",
		RefreshToken: "refresh-0",
		ExpiresAt:    time.Now().Add(time.Hour),
	})
	require.NoError(t, err)

	st.mgr, st.svc = mgr, svc
	return st
}

func newClient(t *testing.T, st *stack, baseURL string, opts ...apiclient.Option) *apiclient.Client {
	t.Helper()

	base := []apiclient.Option{
		apiclient.WithBaseURL(baseURL),
		apiclient.WithBackoff(backoff.Fixed{Interval: time.Millisecond}),
	}
	c, err := apiclient.NewClient(st.svc, st.mgr, append(base, opts...)...)
	require.NoError(t, err)
	return c
}

func TestNewClient_Validation(t *testing.T) {
	t.Parallel()

	st := newStack(t)
	_, err := apiclient.NewClient(nil, st.mgr)
	assert.ErrorIs(t, err, apiclient.ErrNoRefreshService)

	_, err = apiclient.NewClient(st.svc, nil)
	assert.ErrorIs(t, err, apiclient.ErrNoSessionManager)
}

func TestClient_BearerInjection(t *testing.T) {
	t.Parallel()

	st := newStack(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer access-0", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"name":"alice"}`))
	}))
	t.Cleanup(srv.Close)

	c := newClient(t, st, srv.URL)

	var out struct {
		Name string `json:"name"`
	}
	require.NoError(t, c.Get(context.Background(), "/profile", &out))
	assert.Equal(t, "alice", out.Name)
	assert.EqualValues(t, 0, st.providerCalls.Load())
}

func TestClient_UnauthorizedRetriesOnce(t *testing.T) {
	t.Parallel()

	t.Run("refresh then success returns the retried response", func(t *testing.T) {
		t.Parallel()

		st := newStack(t)
		var hits atomic.Int64
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hits.Add(1)
			if r.Header.Get("Authorization") != "Bearer access-new" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			_, _ = w.Write([]byte(`{"ok":true}`))
		}))
		t.Cleanup(srv.Close)

		c := newClient(t, st, srv.URL)

		var out struct {
			OK bool `json:"ok"`
		}
		require.NoError(t, c.Get(context.Background(), "/data", &out))
		assert.True(t, out.OK)
		assert.EqualValues(t, 2, hits.Load())
		assert.EqualValues(t, 1, st.providerCalls.Load())
	})

	t.Run("second consecutive 401 is terminal", func(t *testing.T) {
		t.Parallel()

		st := newStack(t)
		var hits atomic.Int64
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hits.Add(1)
			w.WriteHeader(http.StatusUnauthorized)
		}))
		t.Cleanup(srv.Close)

		var (
			mu      sync.Mutex
			reasons []string
		)
		c := newClient(t, st, srv.URL, apiclient.WithRedirect(func(reason string) {
			mu.Lock()
			reasons = append(reasons, reason)
			mu.Unlock()
		}))

		err := c.Get(context.Background(), "/data", nil)
		require.Error(t, err)
		assert.True(t, autherr.IsType(err, autherr.SessionExpired))
		assert.EqualValues(t, 2, hits.Load(), "no third attempt")

		assert.Nil(t, st.mgr.Current(), "session cleared on persistent 401")
		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, []string{recovery.ReasonSessionExpired}, reasons)
	})
}

func TestClient_ServerErrorRetries(t *testing.T) {
	t.Parallel()

	t.Run("recovers within the budget", func(t *testing.T) {
		t.Parallel()

		st := newStack(t)
		var hits atomic.Int64
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if hits.Add(1) <= 2 {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			_, _ = w.Write([]byte(`{}`))
		}))
		t.Cleanup(srv.Close)

		c := newClient(t, st, srv.URL)
		require.NoError(t, c.Get(context.Background(), "/flaky", nil))
		assert.EqualValues(t, 3, hits.Load())
	})

	t.Run("surfaced after exhausting the budget", func(t *testing.T) {
		t.Parallel()

		st := newStack(t)
		var hits atomic.Int64
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hits.Add(1)
			w.WriteHeader(http.StatusInternalServerError)
		}))
		t.Cleanup(srv.Close)

		c := newClient(t, st, srv.URL)
		err := c.Get(context.Background(), "/down", nil)
		require.Error(t, err)
		assert.True(t, autherr.IsType(err, autherr.ServerError))
		assert.EqualValues(t, 4, hits.Load()) // initial + 3 retries
	})
}

func TestClient_ClientErrorNotRetried(t *testing.T) {
	t.Parallel()

	st := newStack(t)
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, "no such thing", http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)

	c := newClient(t, st, srv.URL)
	err := c.Get(context.Background(), "/missing", nil)
	require.Error(t, err)
	assert.EqualValues(t, 1, hits.Load())
}

func TestClient_PostReplaysBodyAcrossRetries(t *testing.T) {
	t.Parallel()

	st := newStack(t)
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var in struct {
			Name string `json:"name"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		assert.Equal(t, "bob", in.Name)

		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"42"}`))
	}))
	t.Cleanup(srv.Close)

	c := newClient(t, st, srv.URL)

	var out struct {
		ID string `json:"id"`
	}
	in := map[string]string{"name": "bob"}
	require.NoError(t, c.Post(context.Background(), "/things", in, &out))
	assert.Equal(t, "42", out.ID)
	assert.EqualValues(t, 2, hits.Load())
}

func TestClient_ConcurrencyBound(t *testing.T) {
	t.Parallel()

	st := newStack(t)

	var inFlight, peak atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cur := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			p := peak.Load()
			if cur <= p || peak.CompareAndSwap(p, cur) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		_, _ = w.Write([]byte(`{}`))
	}))
	t.Cleanup(srv.Close)

	cfg := apiclient.DefaultConfig()
	cfg.BaseURL = srv.URL
	cfg.MaxConcurrency = 2
	c := newClient(t, st, srv.URL, apiclient.WithConfig(cfg))

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = c.Get(context.Background(), "/slow", nil)
		}()
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	assert.LessOrEqual(t, peak.Load(), int64(2))
}

func TestClient_HandleAuthError(t *testing.T) {
	t.Parallel()

	st := newStack(t)
	chain := recovery.NewChain(
		recovery.WithStrategies(recovery.DefaultStrategies(st.mgr, st.svc, nil)...),
	)
	c := newClient(t, st, "", apiclient.WithRecovery(chain))

	var calls int
	op := func(ctx context.Context) error {
		calls++
		if calls == 1 {
			return autherr.New(autherr.TokenExpired, "access token expired")
		}
		return nil
	}

	require.NoError(t, c.HandleAuthError(context.Background(), op))
	assert.Equal(t, 2, calls, "op retried exactly once after recovery")
	assert.EqualValues(t, 1, st.providerCalls.Load())
}
