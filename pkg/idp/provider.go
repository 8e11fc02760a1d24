package idp

import (
	"context"
	"time"
)

// Credentials is the credential set issued by the identity provider on
// sign-in or refresh.
type Credentials struct {
	UserID       string
	AccessToken  string
	RefreshToken string // optional; providers may rotate or omit it
	ExpiresAt    time.Time
}

// Provider exchanges a refresh credential for a fresh credential set.
// Implementations classify their failures through pkg/autherr.
type Provider interface {
	Refresh(ctx context.Context, refreshToken string) (*Credentials, error)
}

// ProviderFunc adapts a function to the Provider interface.
type ProviderFunc func(ctx context.Context, refreshToken string) (*Credentials, error)

func (f ProviderFunc) Refresh(ctx context.Context, refreshToken string) (*Credentials, error) {
	return f(ctx, refreshToken)
}
