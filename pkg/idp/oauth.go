package idp

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"

	"github.com/dmitrymomot/sessionkit/pkg/autherr"
)

// OAuthProvider performs the refresh-token grant against an OAuth2 token
// endpoint. Expiry resolution order: provider-reported expiry, the access
// token's JWT exp claim, then FallbackTTL.
type OAuthProvider struct {
	config      oauth2.Config
	fallbackTTL time.Duration
}

// NewOAuthProvider creates a provider for the given OAuth2 client
// configuration. fallbackTTL bounds the credential lifetime when neither the
// token response nor the JWT carries an expiry; it defaults to 15 minutes.
func NewOAuthProvider(cfg oauth2.Config, fallbackTTL time.Duration) *OAuthProvider {
	if fallbackTTL <= 0 {
		fallbackTTL = 15 * time.Minute
	}
	return &OAuthProvider{config: cfg, fallbackTTL: fallbackTTL}
}

// Refresh exchanges refreshToken for a new credential set.
func (p *OAuthProvider) Refresh(ctx context.Context, refreshToken string) (*Credentials, error) {
	if refreshToken == "" {
		return nil, autherr.New(autherr.SessionExpired, "no refresh credential available",
			autherr.WithCode("missing_refresh_token"))
	}

	src := p.config.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		status := 0
		var rerr *oauth2.RetrieveError
		if errors.As(err, &rerr) && rerr.Response != nil {
			status = rerr.Response.StatusCode
		}
		return nil, autherr.Classify(err, status)
	}
	if tok.AccessToken == "" {
		return nil, autherr.New(autherr.RefreshFailed, "provider response carries no access token",
			autherr.WithCode("missing_token"))
	}

	creds := &Credentials{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    tok.Expiry,
	}
	if creds.RefreshToken == "" {
		// Provider did not rotate the refresh credential; keep the old one.
		creds.RefreshToken = refreshToken
	}

	subject, exp := inspectJWT(tok.AccessToken)
	creds.UserID = subject
	if creds.ExpiresAt.IsZero() {
		if !exp.IsZero() {
			creds.ExpiresAt = exp
		} else {
			creds.ExpiresAt = time.Now().Add(p.fallbackTTL)
		}
	}

	return creds, nil
}

// inspectJWT extracts the subject and expiry claims without verifying the
// signature. The token is only inspected for scheduling, never trusted for
// authorization decisions; the provider remains the authority.
func inspectJWT(accessToken string) (subject string, expiresAt time.Time) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, claims); err != nil {
		return "", time.Time{}
	}
	subject, _ = claims.GetSubject()
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		expiresAt = exp.Time
	}
	return subject, expiresAt
}
