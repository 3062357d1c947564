package cache

import (
	"time"

	"github.com/maypok86/otter"

	"github.com/rafaeljc/gefjon/internal/observability"
)

// MemoryCache acts as the L1 caching layer using a contention-free algorithm
// (S3-FIFO) provided by the 'otter' library. The name labels its metrics, so
// several caches (campaign documents, collection catalogues) can coexist.
type MemoryCache[K comparable, V any] struct {
	name  string
	store otter.Cache[K, V]
}

// NewMemoryCache initializes an in-memory cache with strict limits.
// capacity: Max number of items (Hard Cap to prevent OOM).
// ttl: Time-To-Live for items; for campaign documents this is the freshness interval.
func NewMemoryCache[K comparable, V any](name string, capacity int, ttl time.Duration) (*MemoryCache[K, V], error) {
	store, err := otter.MustBuilder[K, V](capacity).
		WithTTL(ttl).
		Build()
	if err != nil {
		return nil, err
	}

	return &MemoryCache[K, V]{name: name, store: store}, nil
}

// Get retrieves a value and records a hit or a miss.
func (c *MemoryCache[K, V]) Get(key K) (V, bool) {
	v, ok := c.store.Get(key)
	if ok {
		observability.CacheHits.WithLabelValues(c.name).Inc()
	} else {
		observability.CacheMisses.WithLabelValues(c.name).Inc()
	}
	return v, ok
}

// Set adds or updates a value. The TTL configured in NewMemoryCache applies.
// It returns false when otter rejected the write.
func (c *MemoryCache[K, V]) Set(key K, value V) bool {
	ok := c.store.Set(key, value)
	if !ok {
		observability.CacheDropped.WithLabelValues(c.name).Inc()
	}
	return ok
}

// Del removes a value.
func (c *MemoryCache[K, V]) Del(key K) {
	c.store.Delete(key)
}

// Len returns the current number of entries.
func (c *MemoryCache[K, V]) Len() int {
	return c.store.Size()
}

// Close gracefully shuts down the cache and its background cleanup goroutines.
func (c *MemoryCache[K, V]) Close() {
	c.store.Close()
}
