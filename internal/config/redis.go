package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"
)

// RedisConfig configures the shared L2 campaign document cache. With
// Enabled=false each engine instance keeps only its in-process cache.
type RedisConfig struct {
	Enabled bool `envconfig:"ENABLED" default:"false"`

	// DocumentTTL is how long a fetched campaign document is shared between instances.
	DocumentTTL time.Duration `envconfig:"DOCUMENT_TTL" default:"60s" validate:"min=1s"`

	// URL (redis:// or rediss://) wins over the individual components when set.
	URL        string `envconfig:"URL"`
	Host       string `envconfig:"HOST"`
	Port       string `envconfig:"PORT" default:"6379"`
	Password   string `envconfig:"PASSWORD"`
	DB         int    `envconfig:"DB" default:"0" validate:"min=0,max=15"`
	TLSEnabled bool   `envconfig:"TLS_ENABLED" default:"false"`

	PoolSize        int           `envconfig:"POOL_SIZE" default:"10" validate:"min=1"`
	MinIdleConns    int           `envconfig:"MIN_IDLE_CONNS" default:"2" validate:"min=0,ltefield=PoolSize"`
	DialTimeout     time.Duration `envconfig:"DIAL_TIMEOUT" default:"2s"`
	ReadTimeout     time.Duration `envconfig:"READ_TIMEOUT" default:"1s"`
	WriteTimeout    time.Duration `envconfig:"WRITE_TIMEOUT" default:"1s"`
	PoolTimeout     time.Duration `envconfig:"POOL_TIMEOUT" default:"2s"`
	MaxRetries      int           `envconfig:"MAX_RETRIES" default:"2" validate:"min=0"`
	MinRetryBackoff time.Duration `envconfig:"MIN_RETRY_BACKOFF" default:"8ms"`
	MaxRetryBackoff time.Duration `envconfig:"MAX_RETRY_BACKOFF" default:"256ms"`

	// Startup PING attempts; the backoff doubles after each failure.
	PingMaxRetries int           `envconfig:"PING_MAX_RETRIES" default:"5" validate:"min=1"`
	PingBackoff    time.Duration `envconfig:"PING_BACKOFF" default:"1s" validate:"gt=0"`
}

// Address returns host:port. NewRedisClient parses URL itself when set.
func (c *RedisConfig) Address() string {
	return net.JoinHostPort(c.Host, c.Port)
}

// IsConfigured reports whether enough is set to attempt a connection.
func (c *RedisConfig) IsConfigured() bool {
	return c.URL != "" || c.Host != ""
}

// Validate checks either the URL or the components. In production the
// components must carry a strong password and TLS.
func (c *RedisConfig) Validate(environment string) error {
	if c.URL != "" {
		u, err := parseURL(c.URL, "redis", "rediss")
		if err != nil {
			return fmt.Errorf("invalid redis URL: %w", err)
		}
		if db := strings.Trim(u.Path, "/"); db != "" {
			n, err := strconv.Atoi(db)
			if err != nil || n < 0 || n > 15 {
				return fmt.Errorf("invalid redis URL: database %q must be 0-15", db)
			}
		}
		return nil
	}

	if err := checkEndpoint("redis", c.Host, c.Port); err != nil {
		return err
	}

	if environment != EnvironmentProduction {
		return nil
	}
	if err := checkSecret("redis", c.Password); err != nil {
		return err
	}
	if !c.TLSEnabled {
		return errors.New("redis TLS must be enabled in production")
	}
	return nil
}
