package refresh

import "time"

// Config holds refresh service configuration.
type Config struct {
	// MaxRetries is the number of retries after the initial attempt.
	MaxRetries int `env:"SESSIONKIT_REFRESH_MAX_RETRIES" envDefault:"3"`

	// BackgroundInterval is the cadence of the proactive background loop
	// (0 disables it).
	BackgroundInterval time.Duration `env:"SESSIONKIT_REFRESH_BACKGROUND_INTERVAL" envDefault:"5m"`

	// BackgroundTimeout bounds each background refresh attempt.
	BackgroundTimeout time.Duration `env:"SESSIONKIT_REFRESH_BACKGROUND_TIMEOUT" envDefault:"30s"`

	// MarginMultiplier: background refresh only runs while time-to-expiry
	// exceeds MarginMultiplier × the manager's refresh threshold.
	MarginMultiplier float64 `env:"SESSIONKIT_REFRESH_MARGIN_MULTIPLIER" envDefault:"2"`
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		MaxRetries:         3,
		BackgroundInterval: 5 * time.Minute,
		BackgroundTimeout:  30 * time.Second,
		MarginMultiplier:   2,
	}
}
