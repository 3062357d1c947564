package cache_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rafaeljc/gefjon/internal/cache"
	"github.com/rafaeljc/gefjon/internal/testsupport"
)

func TestMemoryCache_Metrics(t *testing.T) {
	c, err := cache.NewMemoryCache[string, []byte]("test_documents", 10, time.Minute)
	require.NoError(t, err)
	defer c.Close()

	labels := map[string]string{"cache": "test_documents"}

	t.Run("Should record a miss for an absent key", func(t *testing.T) {
		testsupport.AssertMetricDelta(t, "gefjon_cache_l1_misses_total", labels, 1, func() {
			_, found := c.Get("campaigns")
			assert.False(t, found)
		})
	})

	t.Run("Should record a hit after a set", func(t *testing.T) {
		require.True(t, c.Set("campaigns", []byte(`{"campaigns":[]}`)))

		testsupport.AssertMetricDelta(t, "gefjon_cache_l1_hits_total", labels, 1, func() {
			val, found := c.Get("campaigns")
			assert.True(t, found)
			assert.JSONEq(t, `{"campaigns":[]}`, string(val))
		})
	})

	t.Run("Should forget deleted keys", func(t *testing.T) {
		c.Set("tmp", []byte("x"))
		c.Del("tmp")

		_, found := c.Get("tmp")
		assert.False(t, found)
	})
}

func TestMemoryCache_Expiry(t *testing.T) {
	c, err := cache.NewMemoryCache[string, int]("test_expiry", 10, 50*time.Millisecond)
	require.NoError(t, err)
	defer c.Close()

	c.Set("k", 1)

	require.Eventually(t, func() bool {
		_, found := c.Get("k")
		return !found
	}, 2*time.Second, 20*time.Millisecond, "entry should expire after its TTL")
}
