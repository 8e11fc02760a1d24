package storage

import "errors"

var (
	// ErrNotFound indicates the key does not exist.
	ErrNotFound = errors.New("storage.not_found")

	// ErrQuotaExceeded indicates a write exceeded the store's size ceiling.
	// Callers are expected to log and continue rather than fail hard.
	ErrQuotaExceeded = errors.New("storage.quota_exceeded")

	// ErrStoreClosed indicates the store has been closed.
	ErrStoreClosed = errors.New("storage.closed")
)
