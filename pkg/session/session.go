package session

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/sessionkit/pkg/fingerprint"
	"github.com/dmitrymomot/sessionkit/pkg/idp"
)

// Session is the canonical session record for one instance. The in-memory
// copy is owned exclusively by its Manager; a serialized copy is mirrored
// into shared storage so sibling instances can observe it.
type Session struct {
	ID                 uuid.UUID                `json:"id"`
	UserID             string                   `json:"user_id"`
	AccessToken        string                   `json:"access_token"`
	RefreshToken       string                   `json:"refresh_token,omitempty"`
	ExpiresAt          int64                    `json:"expires_at"` // epoch milliseconds
	Fingerprint        *fingerprint.Fingerprint `json:"fingerprint,omitempty"`
	DeviceInfo         fingerprint.DeviceInfo   `json:"device_info"`
	CreatedAt          int64                    `json:"created_at"`       // epoch milliseconds
	LastActivityAt     int64                    `json:"last_activity_at"` // epoch milliseconds
	IsActive           bool                     `json:"is_active"`
	SuspiciousActivity bool                     `json:"suspicious_activity"`
}

func newSession(creds *idp.Credentials, fp *fingerprint.Fingerprint, now time.Time) *Session {
	nowMs := now.UnixMilli()
	s := &Session{
		ID:             uuid.New(),
		UserID:         creds.UserID,
		AccessToken:    creds.AccessToken,
		RefreshToken:   creds.RefreshToken,
		ExpiresAt:      creds.ExpiresAt.UnixMilli(),
		Fingerprint:    fp,
		CreatedAt:      nowMs,
		LastActivityAt: nowMs,
		IsActive:       true,
	}
	if fp != nil {
		s.DeviceInfo = fingerprint.DeriveDeviceInfo(fp.UserAgent, fp.Platform)
	}
	return s
}

// IsExpired reports whether the session's absolute expiry has passed.
func (s *Session) IsExpired(now time.Time) bool {
	return s == nil || now.UnixMilli() >= s.ExpiresAt
}

// ExpiresIn returns the remaining lifetime, negative when already expired.
func (s *Session) ExpiresIn(now time.Time) time.Duration {
	if s == nil {
		return 0
	}
	return time.Duration(s.ExpiresAt-now.UnixMilli()) * time.Millisecond
}

// Touch updates the activity timestamp.
func (s *Session) Touch(now time.Time) {
	if s != nil {
		s.LastActivityAt = now.UnixMilli()
	}
}

// Clone returns a copy callers can inspect freely without racing the owning
// manager's mutations.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	cp := *s
	if s.Fingerprint != nil {
		fp := *s.Fingerprint
		cp.Fingerprint = &fp
	}
	return &cp
}

func (s *Session) marshal() (string, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func unmarshalSession(raw string) (*Session, error) {
	var s Session
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return nil, err
	}
	return &s, nil
}
