package session

import "time"

// Config holds session manager configuration.
type Config struct {
	// StorageKey is the shared-store key the serialized session lives under.
	StorageKey string `env:"SESSIONKIT_STORAGE_KEY" envDefault:"sessionkit.session"`

	// TabIDKey is the instance-private store key caching the tab identifier.
	TabIDKey string `env:"SESSIONKIT_TAB_ID_KEY" envDefault:"sessionkit.tab_id"`

	// RefreshThreshold is how long before expiry the proactive refresh fires.
	RefreshThreshold time.Duration `env:"SESSIONKIT_REFRESH_THRESHOLD" envDefault:"1m"`

	// ActivityInterval is the cadence of activity-timestamp updates
	// (0 disables the ticker).
	ActivityInterval time.Duration `env:"SESSIONKIT_ACTIVITY_INTERVAL" envDefault:"30s"`

	// FingerprintCheck enables fingerprint validation. It only takes effect
	// when a collector is configured.
	FingerprintCheck bool `env:"SESSIONKIT_FINGERPRINT_CHECK" envDefault:"true"`
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		StorageKey:       "sessionkit.session",
		TabIDKey:         "sessionkit.tab_id",
		RefreshThreshold: time.Minute,
		ActivityInterval: 30 * time.Second,
		FingerprintCheck: true,
	}
}
