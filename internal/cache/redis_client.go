// Package cache provides an optional Redis-backed cache of tag results.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"tag-gateway/internal/logger"
)

// RedisClient wraps the go-redis client with the few commands the tag
// cache needs.
type RedisClient struct {
	client *redis.Client
	logger *logger.Logger
}

// RedisConfig holds configuration for the Redis connection.
type RedisConfig struct {
	URL          string
	MaxRetries   int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolSize     int
	MinIdleConns int
}

// DefaultRedisConfig returns a RedisConfig with sensible defaults.
func DefaultRedisConfig(url string) *RedisConfig {
	return &RedisConfig{
		URL:          url,
		MaxRetries:   1,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  500 * time.Millisecond,
		WriteTimeout: 500 * time.Millisecond,
		PoolSize:     10,
		MinIdleConns: 1,
	}
}

// NewRedisClient creates a new Redis client with the given configuration.
func NewRedisClient(cfg *RedisConfig, log *logger.Logger) (*RedisClient, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	opts.MaxRetries = cfg.MaxRetries
	opts.DialTimeout = cfg.DialTimeout
	opts.ReadTimeout = cfg.ReadTimeout
	opts.WriteTimeout = cfg.WriteTimeout
	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns

	return &RedisClient{
		client: redis.NewClient(opts),
		logger: log,
	}, nil
}

// Ping checks the Redis connection health.
func (r *RedisClient) Ping(ctx context.Context) error {
	if _, err := r.client.Ping(ctx).Result(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func (r *RedisClient) Close() error {
	return r.client.Close()
}

// IsHealthy performs a health check on the Redis connection.
func (r *RedisClient) IsHealthy(ctx context.Context) bool {
	return r.Ping(ctx) == nil
}

// Get returns the value at key. A missing key is (nil, nil).
func (r *RedisClient) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("GET failed: %w", err)
	}
	return data, nil
}

// SetEx stores value at key with a TTL.
func (r *RedisClient) SetEx(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("SET failed: %w", err)
	}
	return nil
}
