package autherr

import (
	"errors"
	"fmt"
	"time"
)

// Type classifies an authentication failure. The set is closed: recovery
// strategies and cross-instance handlers switch on it exhaustively.
type Type string

const (
	TokenExpired           Type = "TOKEN_EXPIRED"
	TokenInvalid           Type = "TOKEN_INVALID"
	SessionExpired         Type = "SESSION_EXPIRED"
	SessionInvalid         Type = "SESSION_INVALID"
	SuspiciousActivity     Type = "SUSPICIOUS_ACTIVITY"
	NetworkError           Type = "NETWORK_ERROR"
	ServerError            Type = "SERVER_ERROR"
	RefreshFailed          Type = "REFRESH_FAILED"
	FingerprintMismatch    Type = "FINGERPRINT_MISMATCH"
	ConcurrentSessionLimit Type = "CONCURRENT_SESSION_LIMIT"
)

// Error is a classified authentication failure. It is created at the point a
// failure is detected and consumed by the recovery chain; it is never persisted.
type Error struct {
	Type      Type
	Message   string
	Code      string
	Retryable bool
	Timestamp time.Time
	Context   map[string]any
	cause     error
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("autherr: %s (%s): %s", e.Type, e.Code, e.Message)
	}
	return fmt.Sprintf("autherr: %s: %s", e.Type, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Is matches two classified errors by type, so callers can use
// errors.Is(err, &Error{Type: TokenExpired}).
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Type == t.Type
}

// New creates a classified error. Retryability follows the type's default and
// can be overridden with WithRetryable.
func New(t Type, message string, opts ...Option) *Error {
	e := &Error{
		Type:      t,
		Message:   message,
		Retryable: defaultRetryable(t),
		Timestamp: time.Now(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Option customises a classified error at creation time.
type Option func(*Error)

// WithCode attaches a machine-readable sub-code (e.g. "max_retries_exceeded").
func WithCode(code string) Option {
	return func(e *Error) { e.Code = code }
}

// WithRetryable overrides the type's default retryability.
func WithRetryable(retryable bool) Option {
	return func(e *Error) { e.Retryable = retryable }
}

// WithCause records the underlying error for errors.Unwrap chains.
func WithCause(cause error) Option {
	return func(e *Error) { e.cause = cause }
}

// WithContext attaches a diagnostic key/value pair.
func WithContext(key string, value any) Option {
	return func(e *Error) {
		if e.Context == nil {
			e.Context = make(map[string]any)
		}
		e.Context[key] = value
	}
}

func defaultRetryable(t Type) bool {
	switch t {
	case TokenExpired, SessionExpired, NetworkError, ServerError, RefreshFailed:
		return true
	default:
		return false
	}
}

// As extracts a classified error from an arbitrary error chain.
// Returns nil when the chain carries no *Error.
func As(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return nil
}

// IsType reports whether err carries a classified error of the given type.
func IsType(err error, t Type) bool {
	e := As(err)
	return e != nil && e.Type == t
}
