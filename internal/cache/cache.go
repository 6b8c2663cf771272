package cache

import (
	"sync"
	"sync/atomic"
	"time"
)

// Cache is an in-memory cache with TTL support. Stored allocations never
// change, so entries only leave by expiry or explicit Delete.
type Cache struct {
	mu       sync.RWMutex
	items    map[string]*cacheItem
	ttl      time.Duration
	now      func() time.Time
	hits     atomic.Int64
	misses   atomic.Int64
	stopOnce sync.Once
	stopChan chan struct{}
}

type cacheItem struct {
	value      interface{}
	expiration time.Time
}

// Stats returns cache statistics
type Stats struct {
	ItemCount int   `json:"item_count"`
	HitCount  int64 `json:"hit_count"`
	MissCount int64 `json:"miss_count"`
}

// NewCache creates a new cache with the specified TTL
func NewCache(ttl time.Duration) *Cache {
	c := &Cache{
		items:    make(map[string]*cacheItem),
		ttl:      ttl,
		now:      time.Now,
		stopChan: make(chan struct{}),
	}

	go c.cleanup(time.Minute)

	return c
}

// Get retrieves a value from the cache
func (c *Cache) Get(key string) (interface{}, bool) {
	c.mu.RLock()
	item, exists := c.items[key]
	c.mu.RUnlock()

	if !exists || c.now().After(item.expiration) {
		c.misses.Add(1)
		return nil, false
	}

	c.hits.Add(1)
	return item.value, true
}

// Set stores a value in the cache with the default TTL
func (c *Cache) Set(key string, value interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items[key] = &cacheItem{
		value:      value,
		expiration: c.now().Add(c.ttl),
	}
}

// Delete removes a value from the cache
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.items, key)
}

// Stats returns a snapshot of the cache counters
func (c *Cache) Stats() Stats {
	return Stats{
		ItemCount: c.Size(),
		HitCount:  c.hits.Load(),
		MissCount: c.misses.Load(),
	}
}

// cleanup periodically removes expired items
func (c *Cache) cleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.removeExpired()
		case <-c.stopChan:
			return
		}
	}
}

// removeExpired removes all expired items
func (c *Cache) removeExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for key, item := range c.items {
		if now.After(item.expiration) {
			delete(c.items, key)
		}
	}
}

// Stop stops the cleanup goroutine. It is safe to call more than once.
func (c *Cache) Stop() {
	c.stopOnce.Do(func() { close(c.stopChan) })
}

// Size returns the number of items in the cache
func (c *Cache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}
