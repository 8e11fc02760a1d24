package fingerprint

import (
	"context"
	"os"
	"runtime"
	"time"
)

// Collector supplies the raw attributes a fingerprint is derived from.
// The embedding application decides where they come from; the session
// manager only requires that the same collector yields stable attributes
// for the lifetime of a device.
type Collector interface {
	Collect(ctx context.Context) (Attributes, error)
}

// CollectorFunc adapts a function to the Collector interface.
type CollectorFunc func(ctx context.Context) (Attributes, error)

func (f CollectorFunc) Collect(ctx context.Context) (Attributes, error) {
	return f(ctx)
}

// Static returns a collector that always yields the same attributes.
// Useful when the embedding application gathers client characteristics once
// at startup, and in tests.
func Static(attrs Attributes) Collector {
	return CollectorFunc(func(ctx context.Context) (Attributes, error) {
		return attrs, ctx.Err()
	})
}

// Host returns a collector that derives attributes from the running host:
// OS/architecture as the platform, the local timezone, and the LANG
// environment variable. The user agent identifies the embedding client.
func Host(userAgent string) Collector {
	return CollectorFunc(func(ctx context.Context) (Attributes, error) {
		if err := ctx.Err(); err != nil {
			return Attributes{}, err
		}
		zone, _ := time.Now().Zone()
		return Attributes{
			UserAgent:      userAgent,
			Platform:       runtime.GOOS + "/" + runtime.GOARCH,
			Timezone:       zone,
			Language:       os.Getenv("LANG"),
			CookiesEnabled: false,
		}, nil
	})
}
