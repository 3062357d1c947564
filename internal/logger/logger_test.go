package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rafaeljc/gefjon/internal/config"
)

func TestNewWithWriter(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		cfg        config.AppConfig
		logDebug   bool
		wantJSON   bool
		wantSource bool
	}{
		{
			name:     "Should write JSON at info level in production",
			cfg:      config.AppConfig{Name: "gefjon", Version: "1.2.0", Environment: "production", LogLevel: "info", LogFormat: "json"},
			wantJSON: true,
		},
		{
			name:       "Should write text with source locations when debugging in development",
			cfg:        config.AppConfig{Name: "gefjon-cli", Version: "dev", Environment: "development", LogLevel: "debug", LogFormat: "text"},
			logDebug:   true,
			wantSource: true,
		},
		{
			name:     "Should default to JSON for an unknown format",
			cfg:      config.AppConfig{Name: "gefjon", Version: "dev", Environment: "staging", LogLevel: "warn", LogFormat: "xml"},
			wantJSON: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			log := NewWithWriter(&tt.cfg, &buf)

			log.Debug("debug line")
			log.Error("pass aborted", slog.String("pass_id", "p-1"))

			out := buf.String()
			assert.Equal(t, tt.logDebug, strings.Contains(out, "debug line"))

			lines := strings.Split(strings.TrimSpace(out), "\n")
			last := lines[len(lines)-1]

			if tt.wantJSON {
				var rec map[string]any
				require.NoError(t, json.Unmarshal([]byte(last), &rec))
				assert.Equal(t, tt.cfg.Name, rec["service"])
				assert.Equal(t, tt.cfg.Version, rec["version"])
				assert.Equal(t, tt.cfg.Environment, rec["env"])
				assert.Equal(t, "p-1", rec["pass_id"])
				_, hasSource := rec["source"]
				assert.Equal(t, tt.wantSource, hasSource)
			} else {
				assert.Contains(t, last, "service="+tt.cfg.Name)
				assert.Contains(t, last, "pass_id=p-1")
				assert.Equal(t, tt.wantSource, strings.Contains(last, "source="))
			}
		})
	}

	t.Run("Should panic without a config", func(t *testing.T) {
		t.Parallel()
		assert.Panics(t, func() { NewWithWriter(nil, &bytes.Buffer{}) })
	})
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	assert.Equal(t, slog.LevelDebug, parseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, parseLevel("warn"))
	assert.Equal(t, slog.LevelInfo, parseLevel("super-critical"))
	assert.Equal(t, slog.LevelInfo, parseLevel(""))
}
