// Package cache provides the caching layers for Gefjon: an in-process L1
// (otter) and an optional Redis L2 that shares the raw campaign document
// between engine instances, so a fleet reads the source once per interval.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// KeyPrefix is the namespace used for all document keys in Redis.
// Example: "gefjon:doc:campaigns"
const KeyPrefix = "gefjon:doc"

// DocumentStore is the L2 contract used by the campaign store.
type DocumentStore interface {
	// GetDocument returns the cached bytes and whether the key was present.
	GetDocument(ctx context.Context, key string) ([]byte, bool, error)
	// SetDocument stores the bytes with an expiry.
	SetDocument(ctx context.Context, key string, doc []byte, ttl time.Duration) error
}

// RedisCache implements DocumentStore on top of go-redis.
// It also satisfies observability.Checker.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache wraps an initialized client (see NewRedisClient).
func NewRedisCache(client *redis.Client) *RedisCache {
	if client == nil {
		panic("cache: redis client cannot be nil")
	}
	return &RedisCache{client: client}
}

// DocumentKey builds the namespaced Redis key.
func DocumentKey(key string) string {
	return fmt.Sprintf("%s:%s", KeyPrefix, key)
}

// GetDocument reads a document (GET). A missing key is not an error.
func (c *RedisCache) GetDocument(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := c.client.Get(ctx, DocumentKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get document %q from cache: %w", key, err)
	}
	return val, true, nil
}

// SetDocument writes a document with an expiry (SET EX).
func (c *RedisCache) SetDocument(ctx context.Context, key string, doc []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, DocumentKey(key), doc, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set document %q in cache: %w", key, err)
	}
	return nil
}

// Name returns the component name for readiness probes.
func (c *RedisCache) Name() string {
	return "redis"
}

// Check pings the redis server to ensure connectivity.
func (c *RedisCache) Check(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close terminates the connection.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
