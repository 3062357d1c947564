//go:build integration

package observability_test

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rafaeljc/gefjon/internal/config"
	"github.com/rafaeljc/gefjon/internal/logger"
	"github.com/rafaeljc/gefjon/internal/observability"
	"github.com/rafaeljc/gefjon/internal/store"
	"github.com/rafaeljc/gefjon/internal/testsupport"
)

// TestObservabilityServer_Integration probes the side server while the
// campaign source and the L2 cache run against real containers.
func TestObservabilityServer_Integration(t *testing.T) {
	ctx := context.Background()

	pg, err := testsupport.StartPostgresContainer(ctx, "../../migrations")
	require.NoError(t, err)
	defer pg.Terminate(ctx)

	rd, err := testsupport.StartRedisContainer(ctx)
	require.NoError(t, err)
	defer rd.Terminate(ctx)

	port := freePort(t)
	cfg := &config.ObservabilityConfig{
		Port:          strconv.Itoa(port),
		Timeout:       time.Second,
		LivenessPath:  "/live",
		ReadinessPath: "/ready",
		MetricsPath:   "/prom",
	}
	log := logger.NewWithWriter(&config.AppConfig{Name: "gefjon-it", Version: "test", Environment: "development", LogLevel: "warn", LogFormat: "text"}, io.Discard)

	source := store.NewMetafieldSource(pg.DB, testsupport.MetafieldNamespace, testsupport.MetafieldKey)
	srv := observability.NewServer(log, cfg, source, rd.Cache)
	srv.Start()
	defer func() { _ = srv.Shutdown(ctx) }()

	base := "http://" + net.JoinHostPort("localhost", cfg.Port)
	require.Eventually(t, func() bool {
		resp, err := http.Get(base + cfg.LivenessPath)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 50*time.Millisecond, "observability server never came up")

	t.Run("Should answer liveness on the configured path", func(t *testing.T) {
		code, body := get(t, base+cfg.LivenessPath)
		assert.Equal(t, http.StatusOK, code)
		assert.Equal(t, "ok", body)
	})

	t.Run("Should expose engine metrics on the configured path", func(t *testing.T) {
		code, body := get(t, base+cfg.MetricsPath)
		assert.Equal(t, http.StatusOK, code)
		assert.Contains(t, body, "go_goroutines")
		assert.Contains(t, body, "gefjon_")
	})

	t.Run("Should not serve the default paths", func(t *testing.T) {
		code, _ := get(t, base+"/metrics")
		assert.Equal(t, http.StatusNotFound, code)
	})

	t.Run("Should be ready while postgres and redis answer", func(t *testing.T) {
		code, status := readiness(t, base+cfg.ReadinessPath)
		assert.Equal(t, http.StatusOK, code)
		assert.Equal(t, map[string]string{"postgres": "up", "redis": "up"}, status)
	})

	t.Run("Should report only redis down once its container stops", func(t *testing.T) {
		require.NoError(t, rd.Container.Stop(ctx, nil))

		code, status := readiness(t, base+cfg.ReadinessPath)
		assert.Equal(t, http.StatusServiceUnavailable, code)
		assert.Equal(t, "up", status["postgres"])
		assert.Contains(t, status["redis"], "down")
	})
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func readiness(t *testing.T, url string) (int, map[string]string) {
	t.Helper()
	code, body := get(t, url)
	var report struct {
		Status map[string]string `json:"status"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &report))
	return code, report.Status
}

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "localhost:0")
	require.NoError(t, err)
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}
