package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"
)

// DatabaseConfig locates the PostgreSQL database holding the mirrored shop
// metafields. It is only read when GEFJON_CAMPAIGNS_SOURCE=postgres.
type DatabaseConfig struct {
	// URL wins over the individual components when set.
	URL      string `envconfig:"URL"`
	Host     string `envconfig:"HOST"`
	Port     string `envconfig:"PORT" default:"5432"`
	Name     string `envconfig:"NAME"`
	User     string `envconfig:"USER"`
	Password string `envconfig:"PASSWORD"`
	SSLMode  string `envconfig:"SSL_MODE" default:"prefer" validate:"oneof=disable allow prefer require verify-ca verify-full"`

	MaxConns        int           `envconfig:"MAX_CONNS" default:"4" validate:"min=1"`
	MinConns        int           `envconfig:"MIN_CONNS" default:"0" validate:"min=0,ltefield=MaxConns"`
	MaxConnLifetime time.Duration `envconfig:"MAX_CONN_LIFETIME" default:"1h"`
	MaxConnIdleTime time.Duration `envconfig:"MAX_CONN_IDLE_TIME" default:"10m"`
	ConnectTimeout  time.Duration `envconfig:"CONNECT_TIMEOUT" default:"5s" validate:"gt=0"`
}

// DSN returns the connection string handed to pgx.
func (c *DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     net.JoinHostPort(c.Host, c.Port),
		Path:     "/" + c.Name,
		RawQuery: url.Values{"sslmode": {c.SSLMode}}.Encode(),
	}
	return u.String()
}

// IsConfigured reports whether enough is set to attempt a connection.
func (c *DatabaseConfig) IsConfigured() bool {
	return c.URL != "" || (c.Host != "" && c.Name != "" && c.User != "")
}

// Validate checks either the URL or the components. In production the
// components must carry a strong password and a verifying SSL mode.
func (c *DatabaseConfig) Validate(environment string) error {
	if c.URL != "" {
		u, err := parseURL(c.URL, "postgres", "postgresql")
		if err != nil {
			return fmt.Errorf("invalid database URL: %w", err)
		}
		if u.User.Username() == "" {
			return errors.New("invalid database URL: missing user")
		}
		if strings.Trim(u.Path, "/") == "" {
			return errors.New("invalid database URL: missing database name")
		}
		return nil
	}

	if err := checkEndpoint("database", c.Host, c.Port); err != nil {
		return err
	}
	if err := checkToken("database name", c.Name); err != nil {
		return err
	}
	// PostgreSQL truncates identifiers beyond NAMEDATALEN-1.
	if len(c.Name) > 63 {
		return fmt.Errorf("database name %q exceeds 63 characters", c.Name)
	}
	if err := checkToken("database user", c.User); err != nil {
		return err
	}

	if environment != EnvironmentProduction {
		return nil
	}
	if err := checkSecret("database", c.Password); err != nil {
		return err
	}
	switch c.SSLMode {
	case "require", "verify-ca", "verify-full":
		return nil
	default:
		return fmt.Errorf("database SSL mode %q is not allowed in production", c.SSLMode)
	}
}
