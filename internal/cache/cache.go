package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"tag-gateway/internal/logger"
	"tag-gateway/internal/models"
)

// KeyPrefix namespaces tag cache entries.
const KeyPrefix = "tags:"

// Entry is the stored form of a tag result.
type Entry struct {
	Q         string   `json:"q"`
	Mode      string   `json:"mode"`
	Tags      []string `json:"tags"`
	CreatedAt int64    `json:"created_at"`
}

// TagCache looks up and stores sanitized tag lists by query.
type TagCache interface {
	Lookup(ctx context.Context, query models.Query) ([]string, bool, error)
	StoreAsync(query models.Query, tags []string)
	IsHealthy(ctx context.Context) bool
	Close() error
}

// store is the subset of RedisClient the tag cache uses.
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetEx(ctx context.Context, key string, value []byte, ttl time.Duration) error
	IsHealthy(ctx context.Context) bool
	Close() error
}

// Service is the Redis-backed TagCache.
type Service struct {
	store  store
	logger *logger.Logger
	ttl    time.Duration
}

// NewService creates a tag cache on top of a Redis client.
func NewService(redis *RedisClient, log *logger.Logger, ttl time.Duration) *Service {
	return newService(redis, log, ttl)
}

// Open connects to Redis at url and returns a ready tag cache. The
// connection is verified with a ping before returning.
func Open(ctx context.Context, url string, ttl time.Duration, log *logger.Logger) (*Service, error) {
	redisClient, err := NewRedisClient(DefaultRedisConfig(url), log)
	if err != nil {
		return nil, err
	}
	if err := redisClient.Ping(ctx); err != nil {
		redisClient.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return NewService(redisClient, log, ttl), nil
}

func newService(s store, log *logger.Logger, ttl time.Duration) *Service {
	return &Service{store: s, logger: log, ttl: ttl}
}

// KeyFor derives the cache key of a query. Mode and q are separated by
// a NUL byte so ("ab", "c") and ("a", "bc") never collide.
func KeyFor(query models.Query) string {
	hash := sha256.Sum256([]byte(query.Mode + "\x00" + query.Q))
	return KeyPrefix + hex.EncodeToString(hash[:])
}

// Lookup returns the cached tags of a query, if any.
func (s *Service) Lookup(ctx context.Context, query models.Query) ([]string, bool, error) {
	data, err := s.store.Get(ctx, KeyFor(query))
	if err != nil {
		return nil, false, fmt.Errorf("failed to read cache entry: %w", err)
	}
	if data == nil {
		return nil, false, nil
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal cache entry: %w", err)
	}
	// Guard against hash collisions and foreign writers.
	if entry.Q != query.Q || entry.Mode != query.Mode || entry.Tags == nil {
		return nil, false, nil
	}
	return entry.Tags, true, nil
}

// StoreAsync saves tags for a query in the background. Failures are logged.
func (s *Service) StoreAsync(query models.Query, tags []string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		key := KeyFor(query)
		if err := s.Store(ctx, query, tags); err != nil {
			s.logger.Error("async cache write failed", "error", err.Error(), "cache_key", key)
		} else {
			s.logger.Debug("cache entry stored", "cache_key", key, "tag_count", len(tags))
		}
	}()
}

// Store saves tags for a query synchronously.
func (s *Service) Store(ctx context.Context, query models.Query, tags []string) error {
	if tags == nil {
		tags = []string{}
	}
	data, err := json.Marshal(Entry{
		Q:         query.Q,
		Mode:      query.Mode,
		Tags:      tags,
		CreatedAt: time.Now().Unix(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal cache entry: %w", err)
	}
	if err := s.store.SetEx(ctx, KeyFor(query), data, s.ttl); err != nil {
		return fmt.Errorf("failed to store cache entry: %w", err)
	}
	return nil
}

// IsHealthy reports whether the backing store answers.
func (s *Service) IsHealthy(ctx context.Context) bool {
	return s.store.IsHealthy(ctx)
}

// Close releases resources held by the cache service.
func (s *Service) Close() error {
	return s.store.Close()
}
