package resolve

import "sync"

// PathCache memoizes the node_modules candidate directories for a starting
// directory. Entries are never evicted; the filesystem layout is assumed
// stable for the lifetime of the cache.
//
// Lookups and inserts happen under the lock, the walk itself does not. Two
// goroutines missing on the same key may both compute; the first insert wins
// and both callers observe it.
type PathCache struct {
	entries map[string][]string
	mu      sync.Mutex
}

// NewPathCache creates an empty cache.
func NewPathCache() *PathCache {
	return &PathCache{entries: make(map[string][]string)}
}

// Get returns the cached directories for start, computing them on a miss.
func (c *PathCache) Get(start string, compute func(string) []string) []string {
	c.mu.Lock()
	dirs, ok := c.entries[start]
	c.mu.Unlock()
	if ok {
		return dirs
	}

	dirs = compute(start)

	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.entries[start]; ok {
		return existing
	}
	c.entries[start] = dirs
	return dirs
}

// Lookup returns the cached directories without computing.
func (c *PathCache) Lookup(start string) ([]string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	dirs, ok := c.entries[start]
	return dirs, ok
}

// Len returns the number of cached starting directories.
func (c *PathCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
