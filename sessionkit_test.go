package sessionkit_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/sessionkit"
	"github.com/dmitrymomot/sessionkit/pkg/config"
	"github.com/dmitrymomot/sessionkit/pkg/idp"
	"github.com/dmitrymomot/sessionkit/pkg/session"
	"github.com/dmitrymomot/sessionkit/pkg/storage"
)

func staticProvider() idp.Provider {
	return idp.ProviderFunc(func(ctx context.Context, refreshToken string) (*idp.Credentials, error) {
		return &idp.Credentials{
			UserID:       "user-1",
			AccessToken:  "access-new",
			RefreshToken: "refresh-new",
			ExpiresAt:    time.Now().Add(time.Hour),
		}, nil
	})
}

func newKit(t *testing.T, opts ...sessionkit.KitOption) *sessionkit.Kit {
	t.Helper()

	cfg := session.DefaultConfig()
	cfg.ActivityInterval = 0

	base := []sessionkit.KitOption{
		sessionkit.WithStore(storage.NewMemoryStore(0)),
		sessionkit.WithProvider(staticProvider()),
		sessionkit.WithSessionConfig(cfg),
	}
	kit, err := sessionkit.New(append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = kit.Close() })
	return kit
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	_, err := sessionkit.New(sessionkit.WithProvider(staticProvider()))
	assert.ErrorIs(t, err, session.ErrNoStore)

	_, err = sessionkit.New(sessionkit.WithStore(storage.NewMemoryStore(0)))
	assert.ErrorIs(t, err, session.ErrNoProvider)
}

func TestNew_ConfigFromEnv(t *testing.T) {
	// Not parallel: mutates the process environment and the config cache.
	t.Cleanup(config.Reset)
	config.Reset()
	t.Setenv("SESSIONKIT_STORAGE_KEY", "acme.session")
	t.Setenv("SESSIONKIT_REFRESH_THRESHOLD", "2m")
	t.Setenv("SESSIONKIT_ACTIVITY_INTERVAL", "0")

	kit, err := sessionkit.New(
		sessionkit.WithStore(storage.NewMemoryStore(0)),
		sessionkit.WithProvider(staticProvider()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = kit.Close() })

	cfg := kit.Sessions.Config()
	assert.Equal(t, "acme.session", cfg.StorageKey)
	assert.Equal(t, 2*time.Minute, cfg.RefreshThreshold)

	// Explicit options win over the environment.
	override := session.DefaultConfig()
	override.StorageKey = "override.session"
	override.ActivityInterval = 0
	kit2, err := sessionkit.New(
		sessionkit.WithStore(storage.NewMemoryStore(0)),
		sessionkit.WithProvider(staticProvider()),
		sessionkit.WithSessionConfig(override),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = kit2.Close() })
	assert.Equal(t, "override.session", kit2.Sessions.Config().StorageKey)
}

func TestKit_EndToEnd(t *testing.T) {
	t.Parallel()

	kit := newKit(t)
	require.NotNil(t, kit.Sessions)
	require.NotNil(t, kit.Tokens)
	require.NotNil(t, kit.API)
	require.NotNil(t, kit.Recovery)

	ctx := context.Background()
	_, err := kit.Sessions.InitFromCredentials(ctx, &idp.Credentials{
		UserID:       "user-1",
		AccessToken:  "access-0",
		RefreshToken: "refresh-0",
		ExpiresAt:    time.Now().Add(time.Hour),
	})
	require.NoError(t, err)

	token, err := kit.Tokens.FreshToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, "access-0", token)

	s, err := kit.Tokens.RefreshWithRetry(ctx)
	require.NoError(t, err)
	assert.Equal(t, "access-new", s.AccessToken)
}

func TestKit_IsolatedInstances(t *testing.T) {
	t.Parallel()

	a := newKit(t)
	b := newKit(t)

	_, err := a.Sessions.InitFromCredentials(context.Background(), &idp.Credentials{
		UserID:       "user-1",
		AccessToken:  "access-0",
		RefreshToken: "refresh-0",
		ExpiresAt:    time.Now().Add(time.Hour),
	})
	require.NoError(t, err)

	assert.NotNil(t, a.Sessions.Current())
	assert.Nil(t, b.Sessions.Current(), "kits share no hidden global state")
}

func TestKit_Context(t *testing.T) {
	t.Parallel()

	kit := newKit(t)

	ctx := sessionkit.WithContext(context.Background(), kit)
	assert.Same(t, kit, sessionkit.FromContext(ctx))
	assert.Nil(t, sessionkit.FromContext(context.Background()))
}

func TestContextValue_TypeMismatch(t *testing.T) {
	t.Parallel()

	key := sessionkit.NewContextKey("thing")
	ctx := context.WithValue(context.Background(), key, 42)

	assert.Equal(t, 42, sessionkit.ContextValue[int](ctx, key))
	assert.Empty(t, sessionkit.ContextValue[string](ctx, key))
}
