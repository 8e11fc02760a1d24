package storage

import "context"

// Store is a flat string key-value store scoped to one application origin.
// It mirrors the constraints of browser-style origin storage: synchronous
// semantics, whole-value writes, and a byte-size ceiling the caller must
// tolerate. Implementations are safe for concurrent use.
type Store interface {
	// Get returns the value for key, or ErrNotFound.
	Get(ctx context.Context, key string) (string, error)

	// Set writes the full value for key atomically. Returns ErrQuotaExceeded
	// when the value exceeds the store's size ceiling.
	Set(ctx context.Context, key, value string) error

	// Remove deletes key. Removing an absent key is not an error.
	Remove(ctx context.Context, key string) error
}
