package broadcast

import "time"

// MessageType identifies a session lifecycle event on the wire.
type MessageType string

const (
	TokenRefreshed     MessageType = "TOKEN_REFRESHED"
	Logout             MessageType = "LOGOUT"
	SessionExpired     MessageType = "SESSION_EXPIRED"
	SessionRevoked     MessageType = "SESSION_REVOKED"
	SuspiciousActivity MessageType = "SUSPICIOUS_ACTIVITY"
)

// Message is an ephemeral cross-instance session event. It exists only on the
// wire and is never persisted. Receivers ignore messages whose TabID equals
// their own.
type Message struct {
	Type      MessageType    `json:"type"`
	Payload   map[string]any `json:"payload,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	SessionID string         `json:"session_id,omitempty"`
	TabID     string         `json:"tab_id"`
}
