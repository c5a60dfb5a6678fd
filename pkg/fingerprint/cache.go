package fingerprint

import (
	"context"
	"sync"
)

// Cache stores fingerprints by content key. Implementations must be safe for
// concurrent use; a racing miss only causes redundant recomputation.
type Cache interface {
	Get(ctx context.Context, key string) ([]float32, bool)
	Set(ctx context.Context, key string, vec []float32)
}

// MemoryCache is an unbounded in-process Cache.
type MemoryCache struct {
	mu    sync.RWMutex
	items map[string][]float32
}

// NewMemoryCache creates an empty MemoryCache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{items: make(map[string][]float32)}
}

// Get returns a copy of the cached vector.
func (c *MemoryCache) Get(_ context.Context, key string) ([]float32, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	v, ok := c.items[key]
	if !ok {
		return nil, false
	}
	return clone(v), true
}

// Set stores a copy of vec.
func (c *MemoryCache) Set(_ context.Context, key string, vec []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items[key] = clone(vec)
}

// Len returns the number of cached entries.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

func clone(v []float32) []float32 {
	out := make([]float32, len(v))
	copy(out, v)
	return out
}
