package config

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDatabaseConfig_Validate(t *testing.T) {
	t.Parallel()

	components := func(mod func(*DatabaseConfig)) DatabaseConfig {
		c := DatabaseConfig{
			Host:     "metafields.internal",
			Port:     "5432",
			Name:     "shop",
			User:     "gefjon",
			Password: "a-long-enough-secret",
			SSLMode:  "verify-full",
		}
		if mod != nil {
			mod(&c)
		}
		return c
	}

	tests := []struct {
		name    string
		cfg     DatabaseConfig
		env     string
		wantErr string
	}{
		{name: "Should accept complete components in production", cfg: components(nil), env: EnvironmentProduction},
		{
			name: "Should accept a passwordless database in development",
			cfg:  components(func(c *DatabaseConfig) { c.Password = ""; c.SSLMode = "disable" }),
			env:  "development",
		},
		{
			name:    "Should require a password in production",
			cfg:     components(func(c *DatabaseConfig) { c.Password = "" }),
			env:     EnvironmentProduction,
			wantErr: "password is required",
		},
		{
			name:    "Should reject a short password in production",
			cfg:     components(func(c *DatabaseConfig) { c.Password = "short" }),
			env:     EnvironmentProduction,
			wantErr: "at least 12 characters",
		},
		{
			name:    "Should reject a non verifying SSL mode in production",
			cfg:     components(func(c *DatabaseConfig) { c.SSLMode = "prefer" }),
			env:     EnvironmentProduction,
			wantErr: "SSL mode",
		},
		{
			name:    "Should reject a database name PostgreSQL would truncate",
			cfg:     components(func(c *DatabaseConfig) { c.Name = strings.Repeat("s", 64) }),
			env:     "development",
			wantErr: "exceeds 63 characters",
		},
		{
			name:    "Should reject an empty user",
			cfg:     components(func(c *DatabaseConfig) { c.User = "" }),
			env:     "development",
			wantErr: "database user cannot be empty",
		},
		{
			name:    "Should reject a non numeric port",
			cfg:     components(func(c *DatabaseConfig) { c.Port = "pg" }),
			env:     "development",
			wantErr: "not a number",
		},
		{
			name: "Should accept a URL without component checks",
			cfg:  DatabaseConfig{URL: "postgres://gefjon:pw@db:5432/shop?sslmode=disable"},
			env:  EnvironmentProduction,
		},
		{
			name:    "Should reject a URL with another scheme",
			cfg:     DatabaseConfig{URL: "mysql://gefjon:pw@db:3306/shop"},
			env:     "development",
			wantErr: "scheme",
		},
		{
			name:    "Should reject a URL without user",
			cfg:     DatabaseConfig{URL: "postgres://db:5432/shop"},
			env:     "development",
			wantErr: "missing user",
		},
		{
			name:    "Should reject a URL without database name",
			cfg:     DatabaseConfig{URL: "postgresql://gefjon@db:5432/"},
			env:     "development",
			wantErr: "missing database name",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.cfg.Validate(tt.env)
			switch {
			case tt.wantErr == "":
				assert.NoError(t, err)
			default:
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestDatabaseConfig_DSN(t *testing.T) {
	t.Parallel()

	t.Run("Should prefer the URL", func(t *testing.T) {
		t.Parallel()
		c := DatabaseConfig{URL: "postgres://u@h/db", Host: "ignored"}
		assert.Equal(t, "postgres://u@h/db", c.DSN())
		assert.True(t, c.IsConfigured())
	})

	t.Run("Should escape credentials built from components", func(t *testing.T) {
		t.Parallel()
		c := DatabaseConfig{Host: "db", Port: "5432", Name: "shop", User: "gefjon", Password: "p@ss/word", SSLMode: "require"}
		assert.Equal(t, "postgres://gefjon:p%40ss%2Fword@db:5432/shop?sslmode=require", c.DSN())
		assert.True(t, c.IsConfigured())
	})

	t.Run("Should not be configured without a host", func(t *testing.T) {
		t.Parallel()
		assert.False(t, (&DatabaseConfig{Name: "shop", User: "gefjon"}).IsConfigured())
	})
}

func TestDatabaseConfig_Load(t *testing.T) {
	runLoadCases(t, []loadCase{
		{
			name:    "Should verify pool defaults",
			envVars: mergeEnvVars(nil),
			want: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "prefer", cfg.Database.SSLMode)
				assert.Equal(t, 4, cfg.Database.MaxConns)
				assert.Equal(t, 0, cfg.Database.MinConns)
			},
		},
		{
			name: "Should fail when min conns exceed max conns",
			envVars: mergeEnvVars(map[string]string{
				"GEFJON_DB_MAX_CONNS": "2",
				"GEFJON_DB_MIN_CONNS": "3",
			}),
			wantErr: true,
		},
		{
			name:    "Should fail on an unknown SSL mode",
			envVars: mergeEnvVars(map[string]string{"GEFJON_DB_SSL_MODE": "sometimes"}),
			wantErr: true,
		},
	})
}
