package storage

import (
	"container/list"
	"sync"
	"time"
)

// cacheEntry is one cached lookup key with expiration
type cacheEntry struct {
	name      string
	key       int
	expiresAt time.Time
}

// LRUCache is a thread-safe LRU cache from categorical names to
// surrogate keys, with TTL support. Only table-backed keys are ever
// cached, so a hit can never diverge from the reference table short
// of out-of-band deletes, which the TTL bounds.
type LRUCache struct {
	mu           sync.Mutex
	capacity     int
	ttl          time.Duration
	items        map[string]*list.Element
	evictionList *list.List

	hits   uint64
	misses uint64
}

// CacheStats reports cache effectiveness
type CacheStats struct {
	Size   int
	Hits   uint64
	Misses uint64
}

// NewLRUCache creates a new LRU cache
func NewLRUCache(capacity int, ttl time.Duration) *LRUCache {
	return &LRUCache{
		capacity:     capacity,
		ttl:          ttl,
		items:        make(map[string]*list.Element, capacity),
		evictionList: list.New(),
	}
}

// Get retrieves a surrogate key from the cache
func (c *LRUCache) Get(name string) (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, found := c.items[name]; found {
		entry := elem.Value.(*cacheEntry)

		if time.Now().After(entry.expiresAt) {
			c.removeElement(elem)
			c.misses++
			return 0, false
		}

		c.evictionList.MoveToFront(elem)
		c.hits++
		return entry.key, true
	}

	c.misses++
	return 0, false
}

// Set adds or updates a surrogate key in the cache
func (c *LRUCache) Set(name string, key int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	expiresAt := time.Now().Add(c.ttl)

	if elem, found := c.items[name]; found {
		c.evictionList.MoveToFront(elem)
		entry := elem.Value.(*cacheEntry)
		entry.key = key
		entry.expiresAt = expiresAt
		return
	}

	elem := c.evictionList.PushFront(&cacheEntry{
		name:      name,
		key:       key,
		expiresAt: expiresAt,
	})
	c.items[name] = elem

	if c.evictionList.Len() > c.capacity {
		c.removeOldest()
	}
}

// Delete removes an entry from the cache
func (c *LRUCache) Delete(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, found := c.items[name]; found {
		c.removeElement(elem)
	}
}

// Clear removes all entries from the cache
func (c *LRUCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*list.Element, c.capacity)
	c.evictionList.Init()
}

// Len returns the current number of entries in the cache
func (c *LRUCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.evictionList.Len()
}

// GetStats returns hit/miss counters and current size
func (c *LRUCache) GetStats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return CacheStats{
		Size:   c.evictionList.Len(),
		Hits:   c.hits,
		Misses: c.misses,
	}
}

func (c *LRUCache) removeOldest() {
	elem := c.evictionList.Back()
	if elem != nil {
		c.removeElement(elem)
	}
}

func (c *LRUCache) removeElement(elem *list.Element) {
	c.evictionList.Remove(elem)
	entry := elem.Value.(*cacheEntry)
	delete(c.items, entry.name)
}
