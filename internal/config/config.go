// Package config loads the engine configuration from GEFJON_* environment
// variables. Field rules live in validator tags; rules spanning fields or
// depending on the environment live in the per-section Validate methods.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
)

const (
	// EnvironmentProduction is the production environment identifier
	EnvironmentProduction = "production"

	// envPrefix namespaces every variable, e.g. GEFJON_ENGINE_DEBOUNCE.
	envPrefix = "GEFJON"

	minProductionPassword = 12
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Config holds the complete application configuration.
type Config struct {
	App           AppConfig           `envconfig:"APP"`
	Server        ServerConfig        `envconfig:"SERVER"`
	Storefront    StorefrontConfig    `envconfig:"STOREFRONT"`
	Campaigns     CampaignsConfig     `envconfig:"CAMPAIGNS"`
	Engine        EngineConfig        `envconfig:"ENGINE"`
	Database      DatabaseConfig      `envconfig:"DB"`
	Redis         RedisConfig         `envconfig:"REDIS"`
	Observability ObservabilityConfig `envconfig:"OBSERVABILITY"`
}

// AppConfig contains core application settings.
type AppConfig struct {
	Name            string        `envconfig:"NAME" default:"gefjon"`
	Version         string        `envconfig:"VERSION" default:"dev"`
	Environment     string        `envconfig:"ENV" default:"development" validate:"oneof=development staging production"`
	LogLevel        string        `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`
	LogFormat       string        `envconfig:"LOG_FORMAT" default:"text" validate:"oneof=json text"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`
}

// Load reads configuration from environment variables with the GEFJON prefix.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := envconfig.Process(envPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate runs the tag rules first, then the section rules. Database and
// Redis settings are only checked when they are in use.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("validation error: %w", err)
	}

	if err := c.Storefront.Validate(); err != nil {
		return err
	}

	if err := c.Campaigns.Validate(); err != nil {
		return err
	}

	if err := c.Engine.Validate(); err != nil {
		return err
	}

	if c.Campaigns.Source == CampaignSourcePostgres {
		if err := c.Database.Validate(c.App.Environment); err != nil {
			return err
		}
	}

	if c.Redis.Enabled {
		if err := c.Redis.Validate(c.App.Environment); err != nil {
			return err
		}
	}

	if err := c.Server.Validate(c.App.Environment); err != nil {
		return err
	}

	if err := c.Observability.Validate(); err != nil {
		return err
	}

	return nil
}

// LogConfig logs the effective configuration. Secrets and URLs that may
// embed credentials are left out.
func (c *Config) LogConfig(log *slog.Logger) {
	log.Info("configuration loaded",
		slog.String("app_name", c.App.Name),
		slog.String("version", c.App.Version),
		slog.String("environment", c.App.Environment),
		slog.String("log_level", c.App.LogLevel),
		slog.String("log_format", c.App.LogFormat),
		slog.Duration("shutdown_timeout", c.App.ShutdownTimeout),
		slog.String("server_port", c.Server.Port),
		slog.String("storefront_url", c.Storefront.BaseURL),
		slog.Bool("cart_token_set", c.Storefront.CartToken != ""),
		slog.String("campaign_source", c.Campaigns.Source),
		slog.Duration("campaign_cache_interval", c.Campaigns.CacheInterval),
		slog.Duration("debounce", c.Engine.Debounce),
		slog.Duration("min_interval", c.Engine.MinInterval),
		slog.Bool("tls_enabled", c.Server.TLSEnabled),
		slog.Bool("db_configured", c.Database.IsConfigured()),
		slog.Bool("redis_enabled", c.Redis.Enabled),
	)
}

func checkPort(context, port string) error {
	n, err := strconv.Atoi(port)
	if err != nil {
		return fmt.Errorf("%s port %q is not a number", context, port)
	}
	if n < 1 || n > 65535 {
		return fmt.Errorf("%s port must be between 1 and 65535, got %d", context, n)
	}
	return nil
}

func checkEndpoint(context, host, port string) error {
	if err := checkToken(context+" host", host); err != nil {
		return err
	}
	return checkPort(context, port)
}

// checkToken rejects empty values and values with surrounding whitespace.
func checkToken(field, value string) error {
	if value == "" {
		return fmt.Errorf("%s cannot be empty", field)
	}
	if strings.TrimSpace(value) != value {
		return fmt.Errorf("%s cannot contain surrounding whitespace", field)
	}
	return nil
}

// checkSecret applies the production password policy.
func checkSecret(context, password string) error {
	if password == "" {
		return fmt.Errorf("%s password is required in production", context)
	}
	if len(password) < minProductionPassword {
		return fmt.Errorf("%s password must be at least %d characters in production", context, minProductionPassword)
	}
	return nil
}

func parseURL(raw string, schemes ...string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if !slices.Contains(schemes, u.Scheme) {
		return nil, fmt.Errorf("scheme %q must be one of %v", u.Scheme, schemes)
	}
	if u.Host == "" {
		return nil, errors.New("missing host")
	}
	return u, nil
}
