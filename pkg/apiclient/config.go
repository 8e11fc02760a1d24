package apiclient

import "time"

// Config holds API client configuration.
type Config struct {
	// BaseURL prefixes paths passed to the JSON helpers.
	BaseURL string `env:"SESSIONKIT_API_BASE_URL"`

	// MaxConcurrency bounds in-flight requests through this client.
	MaxConcurrency int64 `env:"SESSIONKIT_API_MAX_CONCURRENCY" envDefault:"10"`

	// MaxRetries is the per-request retry budget for network errors and
	// 5xx responses, independent of the token-refresh retry budget.
	MaxRetries int `env:"SESSIONKIT_API_MAX_RETRIES" envDefault:"3"`

	// AttemptTimeout bounds each individual attempt (0 disables).
	AttemptTimeout time.Duration `env:"SESSIONKIT_API_ATTEMPT_TIMEOUT" envDefault:"30s"`
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		MaxConcurrency: 10,
		MaxRetries:     3,
		AttemptTimeout: 30 * time.Second,
	}
}
