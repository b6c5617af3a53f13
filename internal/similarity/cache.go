package similarity

import "sync"

// memoCache is a bounded memoization cache for normalization results.
// Each normalizer instance owns its own cache so lifecycle and test
// isolation stay clean; nothing here is process-global. When the cache
// fills it is cleared wholesale — normalization is cheap enough that a
// cold cache only costs a little recomputation.
type memoCache struct {
	mu      sync.Mutex
	maxSize int
	entries map[string]string
}

func newMemoCache(maxSize int) *memoCache {
	if maxSize <= 0 {
		maxSize = 4096
	}
	return &memoCache{
		maxSize: maxSize,
		entries: make(map[string]string),
	}
}

func (c *memoCache) get(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[key]
	return v, ok
}

func (c *memoCache) put(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.entries) >= c.maxSize {
		c.entries = make(map[string]string)
	}
	c.entries[key] = value
}

func (c *memoCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
