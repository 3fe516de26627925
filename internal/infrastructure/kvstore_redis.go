package infrastructure

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"perfhub/pkg/logger"
)

// RedisStore keeps values in Redis under a common key prefix, letting
// several server processes share one consolidated cache
type RedisStore struct {
	client *redis.Client
	prefix string
	logger *logger.Logger
}

func NewRedisStore(client *redis.Client, prefix string, logger *logger.Logger) *RedisStore {
	return &RedisStore{client: client, prefix: prefix, logger: logger}
}

// Ping checks the connection at startup
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get %s: %w", key, err)
	}
	return value, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, value []byte) error {
	if err := s.client.Set(ctx, s.prefix+key, value, 0).Err(); err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}

	s.logger.WithContext(ctx).WithFields(map[string]any{
		"key":   s.prefix + key,
		"bytes": len(value),
	}).Debug("Stored value in redis")
	return nil
}
