package redis

// Package redis provides the Redis-backed cache repository. Dashboard cache
// entries live here so they survive process restarts.

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/oakmont/insights-api/config"
)

// CacheRepo implements core.CacheRepository on top of Redis.
type CacheRepo struct {
	client redis.UniversalClient
}

// NewCacheRepo creates a CacheRepo with the given Redis client.
func NewCacheRepo(client redis.UniversalClient) *CacheRepo {
	return &CacheRepo{client: client}
}

// NewClient creates a Redis client from configuration.
func NewClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// Set stores a value under key. A ttl of 0 means no expiry.
func (r *CacheRepo) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if key == "" {
		return errors.New("key cannot be empty")
	}

	return r.client.Set(ctx, key, value, ttl).Err()
}

// Get retrieves a value by key. Returns nil without error when the key does
// not exist.
func (r *CacheRepo) Get(ctx context.Context, key string) ([]byte, error) {
	if key == "" {
		return nil, errors.New("key cannot be empty")
	}

	result, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}

	return []byte(result), nil
}

// Delete removes a key. Returns true if the key existed.
func (r *CacheRepo) Delete(ctx context.Context, key string) (bool, error) {
	if key == "" {
		return false, errors.New("key cannot be empty")
	}

	result, err := r.client.Del(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("redis del: %w", err)
	}

	return result > 0, nil
}

// Keys returns all keys matching the glob pattern. Uses SCAN rather than
// KEYS so large keyspaces don't block the server.
func (r *CacheRepo) Keys(ctx context.Context, pattern string) ([]string, error) {
	if pattern == "" {
		return nil, errors.New("pattern cannot be empty")
	}

	var keys []string
	iter := r.client.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis scan: %w", err)
	}

	return keys, nil
}

// Health checks the Redis connection.
func (r *CacheRepo) Health(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
