package storage

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStore is an in-memory Store. Zero MaxValueBytes means no ceiling.
type MemoryStore struct {
	maxValueBytes int
	values        map[string]string
	mu            sync.RWMutex
}

// NewMemoryStore creates an in-memory store with an optional value size
// ceiling (0 disables the ceiling).
func NewMemoryStore(maxValueBytes int) *MemoryStore {
	return &MemoryStore{
		maxValueBytes: maxValueBytes,
		values:        make(map[string]string),
	}
}

func (s *MemoryStore) Get(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.values[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (s *MemoryStore) Set(ctx context.Context, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.maxValueBytes > 0 && len(value) > s.maxValueBytes {
		return fmt.Errorf("%w: %d bytes over %d limit", ErrQuotaExceeded, len(value), s.maxValueBytes)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.values[key] = value
	return nil
}

func (s *MemoryStore) Remove(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.values, key)
	return nil
}
