package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestServerConfig_Validation(t *testing.T) {
	runLoadCases(t, []loadCase{
		{
			name: "Should fail validation when TLS enabled without certificates",
			envVars: mergeEnvVars(map[string]string{
				"GEFJON_SERVER_TLS_ENABLED": "true",
			}),
			wantErr: true,
		},
		{
			name: "Should pass validation when TLS properly configured with cert and key",
			envVars: mergeEnvVars(map[string]string{
				"GEFJON_SERVER_TLS_ENABLED":   "true",
				"GEFJON_SERVER_TLS_CERT_FILE": "/certs/tls.crt",
				"GEFJON_SERVER_TLS_KEY_FILE":  "/certs/tls.key",
			}),
			want: func(t *testing.T, cfg *Config) {
				assert.True(t, cfg.Server.TLSEnabled)
				assert.Equal(t, "/certs/tls.crt", cfg.Server.TLSCert)
				assert.Equal(t, "/certs/tls.key", cfg.Server.TLSKey)
			},
		},
		{
			name: "Should fail validation when server TLS disabled in production",
			envVars: func() map[string]string {
				cfg := validProductionConfig()
				cfg["GEFJON_SERVER_TLS_ENABLED"] = "false"
				return cfg
			}(),
			wantErr: true,
		},
		{
			name: "Should pass validation with exactly 12 char password in production",
			envVars: func() map[string]string {
				cfg := validProductionConfig()
				cfg["GEFJON_DB_PASSWORD"] = "exactly12chr"
				cfg["GEFJON_REDIS_PASSWORD"] = "redis_pass12"
				return cfg
			}(),
		},
		{
			name: "Should fail validation with port 0",
			envVars: mergeEnvVars(map[string]string{
				"GEFJON_SERVER_PORT": "0",
			}),
			wantErr: true,
		},
		{
			name: "Should fail validation when MaxHeaderBytes is zero",
			envVars: mergeEnvVars(map[string]string{
				"GEFJON_SERVER_MAX_HEADER_BYTES": "0",
			}),
			wantErr: true,
		},
		{
			name: "Should fail validation with host containing trailing whitespace",
			envVars: mergeEnvVars(map[string]string{
				"GEFJON_SERVER_HOST": "0.0.0.0 ",
			}),
			wantErr: true,
		},
		{
			name:    "Should verify server timeout defaults",
			envVars: mergeEnvVars(map[string]string{}),
			want: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "8080", cfg.Server.Port)
				assert.Equal(t, "0.0.0.0", cfg.Server.Host)
				assert.Equal(t, "0.0.0.0:8080", cfg.Server.Address())
				assert.Equal(t, 10*time.Second, cfg.Server.ReadTimeout)
				assert.Equal(t, 10*time.Second, cfg.Server.WriteTimeout)
				assert.Equal(t, 5*time.Second, cfg.Server.ReadHeaderTimeout)
				assert.Equal(t, 60*time.Second, cfg.Server.IdleTimeout)
				assert.Equal(t, 524288, cfg.Server.MaxHeaderBytes)
			},
		},
	})
}
