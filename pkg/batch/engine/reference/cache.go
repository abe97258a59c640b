package reference

import (
	"sync"
)

type cacheKey struct {
	model       string
	searchField string
	value       string
}

// Cache remembers resolved references keyed by (model, search field, value).
// Only successful lookups are cached, so records created later in the same
// run can still be found. Safe for concurrent use.
type Cache struct {
	mu      sync.RWMutex
	entries map[cacheKey]int64
}

// NewCache creates an empty Cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[cacheKey]int64)}
}

// Get returns the cached id.
func (c *Cache) Get(model, searchField, value string) (int64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	id, ok := c.entries[cacheKey{model, searchField, value}]
	return id, ok
}

// Put caches id.
func (c *Cache) Put(model, searchField, value string, id int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[cacheKey{model, searchField, value}] = id
}

// Clear drops the entries of model, or every entry when model is empty.
func (c *Cache) Clear(model string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if model == "" {
		c.entries = make(map[cacheKey]int64)
		return
	}
	for k := range c.entries {
		if k.model == model {
			delete(c.entries, k)
		}
	}
}

// Len returns the number of cached references.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
