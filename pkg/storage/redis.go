package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/sessionkit/pkg/redisconn"
)

// RedisStore is a Redis-backed Store, for deployments where "tabs" are
// separate processes or hosts sharing one origin. Keys are namespaced with a
// prefix so multiple applications can share a Redis instance.
type RedisStore struct {
	client        *redis.Client
	prefix        string
	maxValueBytes int
}

// NewRedisStore wraps an existing go-redis client.
func NewRedisStore(client *redis.Client, prefix string, maxValueBytes int) *RedisStore {
	if prefix == "" {
		prefix = "sessionkit"
	}
	return &RedisStore{client: client, prefix: prefix, maxValueBytes: maxValueBytes}
}

// ConnectRedisStore dials Redis with bounded retry and wraps the resulting
// client. The caller owns the client through Close.
func ConnectRedisStore(ctx context.Context, cfg redisconn.Config, prefix string, maxValueBytes int) (*RedisStore, error) {
	client, err := redisconn.Connect(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return NewRedisStore(client, prefix, maxValueBytes), nil
}

// Close releases the underlying client connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, error) {
	v, err := s.client.Get(ctx, s.prefix+":"+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("storage: redis get: %w", err)
	}
	return v, nil
}

func (s *RedisStore) Set(ctx context.Context, key, value string) error {
	if s.maxValueBytes > 0 && len(value) > s.maxValueBytes {
		return fmt.Errorf("%w: %d bytes over %d limit", ErrQuotaExceeded, len(value), s.maxValueBytes)
	}
	if err := s.client.Set(ctx, s.prefix+":"+key, value, 0).Err(); err != nil {
		return fmt.Errorf("storage: redis set: %w", err)
	}
	return nil
}

func (s *RedisStore) Remove(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.prefix+":"+key).Err(); err != nil {
		return fmt.Errorf("storage: redis del: %w", err)
	}
	return nil
}
