package testsupport

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/redis"

	"github.com/rafaeljc/gefjon/internal/cache"
	"github.com/rafaeljc/gefjon/internal/config"
)

const redisImage = "redis:7-alpine"

// RedisContainer is a throwaway Redis with the L2 document cache attached.
type RedisContainer struct {
	Container testcontainers.Container
	Cache     *cache.RedisCache
	// Addr is the host:port the container is published on.
	Addr string
}

// StartRedisContainer boots Redis and connects a cache.RedisCache to it.
func StartRedisContainer(ctx context.Context) (*RedisContainer, error) {
	ctr, err := redis.Run(ctx, redisImage)
	if err != nil {
		return nil, fmt.Errorf("start redis: %w", err)
	}

	addr, err := ctr.PortEndpoint(ctx, "6379/tcp", "")
	if err != nil {
		_ = ctr.Terminate(ctx)
		return nil, fmt.Errorf("redis endpoint: %w", err)
	}
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		_ = ctr.Terminate(ctx)
		return nil, fmt.Errorf("redis endpoint %q: %w", addr, err)
	}

	client, err := cache.NewRedisClient(ctx, &config.RedisConfig{
		Enabled:        true,
		Host:           host,
		Port:           port,
		DialTimeout:    2 * time.Second,
		ReadTimeout:    time.Second,
		WriteTimeout:   time.Second,
		PoolSize:       4,
		PingMaxRetries: 5,
		PingBackoff:    500 * time.Millisecond,
	})
	if err != nil {
		_ = ctr.Terminate(ctx)
		return nil, fmt.Errorf("redis client: %w", err)
	}

	return &RedisContainer{Container: ctr, Cache: cache.NewRedisCache(client), Addr: addr}, nil
}

// Terminate closes the client and removes the container.
func (c *RedisContainer) Terminate(ctx context.Context) error {
	_ = c.Cache.Close()
	return c.Container.Terminate(ctx)
}
