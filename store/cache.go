package store

import "sync"

// Cache memoizes the Epoched[T]/EpochedDelta wrappers built for a
// given key prefix (one per validator per field, e.g. "this
// validator's commission rate timeline"), so repeated access within
// and across a block reuses the same decode cache instead of
// rebuilding it on every call.
type Cache struct {
	mu sync.Mutex
	m  map[string]any
}

// NewCache returns an empty Cache.
func NewCache() *Cache {
	return &Cache{m: make(map[string]any)}
}

// GetOrCreateEpoched returns the memoized Epoched[T] for prefix,
// creating it with codec on first use.
func GetOrCreateEpoched[T any](c *Cache, prefix []byte, codec Codec[T]) *Epoched[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := string(prefix)
	if v, ok := c.m[key]; ok {
		return v.(*Epoched[T])
	}
	e := NewEpoched[T](prefix, codec)
	c.m[key] = e
	return e
}

// GetOrCreateEpochedDelta returns the memoized EpochedDelta for prefix.
func GetOrCreateEpochedDelta(c *Cache, prefix []byte) *EpochedDelta {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := "delta:" + string(prefix)
	if v, ok := c.m[key]; ok {
		return v.(*EpochedDelta)
	}
	e := NewEpochedDelta(prefix)
	c.m[key] = e
	return e
}
