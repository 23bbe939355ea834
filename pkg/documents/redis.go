package documents

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/mediagateway/pkg/redis"
)

type keyValue interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Ping(ctx context.Context) error
	DocumentKey(name string) string
}

var _ keyValue = (*redis.Client)(nil)

// RedisStore keeps each document as a single string value. SET replaces the
// value in one command so readers never observe a partial document.
type RedisStore struct {
	kv keyValue
}

func NewRedisStore(kv keyValue) *RedisStore {
	return &RedisStore{kv: kv}
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, error) {
	body, err := s.kv.Get(ctx, s.kv.DocumentKey(key))
	if errors.Is(err, redis.ErrNil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("redis get document %s: %w", key, err)
	}
	return body, nil
}

func (s *RedisStore) Set(ctx context.Context, key, body string) error {
	if err := s.kv.Set(ctx, s.kv.DocumentKey(key), body, 0); err != nil {
		return fmt.Errorf("redis set document %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.kv.Ping(ctx)
}
