package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
)

const defaultKeyPrefix = "flowbase:ratelimit:"

// RedisStore shares run markers between workers. A run sets a key that expires
// after the interval; while it exists further runs are denied.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client, prefix: defaultKeyPrefix}
}

// NewRedisStoreFromURL connects using a redis:// URL.
func NewRedisStoreFromURL(ctx context.Context, url string) (*RedisStore, error) {
	options, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(options)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = client.Ping(ctx).Err()
	if err != nil {
		_ = client.Close()

		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisStore(client), nil
}

func (s *RedisStore) Allow(ctx context.Context, key string, interval time.Duration, now time.Time) (Decision, error) {
	redisKey := s.prefix + key

	ok, err := s.client.SetNX(ctx, redisKey, now.UnixMilli(), interval).Result()
	if err != nil {
		return Decision{}, fmt.Errorf("failed to record run: %w", err)
	}

	if ok {
		return Decision{Allowed: true}, nil
	}

	ttl, err := s.client.PTTL(ctx, redisKey).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return Decision{}, fmt.Errorf("failed to read run marker ttl: %w", err)
	}

	if ttl < 0 {
		ttl = 0
	}

	return Decision{Allowed: false, RetryAfter: ttl}, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
