// Package collection resolves storefront collection handles to the set of
// product ids they contain.
package collection

import (
	"context"
	"fmt"
	"sync"
)

// Resolver maps a collection handle to its product ids.
type Resolver interface {
	Resolve(ctx context.Context, handle string) ([]int64, error)
}

// PageFetcher returns one page (1-based) of product ids for a handle.
type PageFetcher interface {
	FetchPage(ctx context.Context, handle string, page, limit int) ([]int64, error)
}

// FetchAll pages through a collection. It keeps going while full pages come
// back and stops on a short or empty one, or after maxPages.
func FetchAll(ctx context.Context, f PageFetcher, handle string, limit, maxPages int) ([]int64, error) {
	var ids []int64
	for page := 1; page <= maxPages; page++ {
		batch, err := f.FetchPage(ctx, handle, page, limit)
		if err != nil {
			return nil, fmt.Errorf("collection %q page %d: %w", handle, page, err)
		}
		ids = append(ids, batch...)
		if len(batch) < limit {
			break
		}
	}
	return ids, nil
}

// PassCache memoizes handle lookups for the duration of one reconciliation pass.
// Failed lookups are not cached.
type PassCache struct {
	next Resolver

	mu      sync.Mutex
	entries map[string][]int64
}

// NewPassCache wraps next with a per-pass memo.
func NewPassCache(next Resolver) *PassCache {
	return &PassCache{next: next, entries: make(map[string][]int64)}
}

// Resolve returns the memoized ids for handle, fetching them on first use.
func (c *PassCache) Resolve(ctx context.Context, handle string) ([]int64, error) {
	c.mu.Lock()
	ids, ok := c.entries[handle]
	c.mu.Unlock()
	if ok {
		return ids, nil
	}

	ids, err := c.next.Resolve(ctx, handle)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.entries[handle] = ids
	c.mu.Unlock()
	return ids, nil
}

// ResolveAll flattens several handles into one product id set.
func ResolveAll(ctx context.Context, r Resolver, handles []string) (map[int64]struct{}, error) {
	set := make(map[int64]struct{})
	for _, h := range handles {
		ids, err := r.Resolve(ctx, h)
		if err != nil {
			return nil, err
		}
		for _, id := range ids {
			set[id] = struct{}{}
		}
	}
	return set, nil
}

// Static is a fixed handle → product ids table.
type Static map[string][]int64

// Resolve returns the configured ids; an unknown handle resolves to nothing.
func (s Static) Resolve(ctx context.Context, handle string) ([]int64, error) {
	return s[handle], nil
}
