package osm

import (
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// ResponseCache is a size-bounded, thread-safe cache of raw Overpass response
// bodies keyed by query text. Entries expire after the configured TTL; the
// least recently used entry is evicted once the cache is full.
type ResponseCache struct {
	mu    sync.Mutex
	items *lru.Cache[string, cacheItem]
	ttl   time.Duration
	now   func() time.Time
}

type cacheItem struct {
	body      []byte
	expiresAt time.Time
}

// NewResponseCache creates a cache holding up to size entries for ttl each.
// A zero ttl disables expiry.
func NewResponseCache(size int, ttl time.Duration) (*ResponseCache, error) {
	items, err := lru.New[string, cacheItem](size)
	if err != nil {
		return nil, fmt.Errorf("creating response cache: %w", err)
	}
	return &ResponseCache{
		items: items,
		ttl:   ttl,
		now:   time.Now,
	}, nil
}

// Get retrieves a body if it exists and hasn't expired
func (c *ResponseCache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	item, ok := c.items.Get(key)
	if !ok {
		return nil, false
	}
	if c.ttl > 0 && c.now().After(item.expiresAt) {
		c.items.Remove(key)
		return nil, false
	}
	return item.body, true
}

// Set stores a body with the configured TTL
func (c *ResponseCache) Set(key string, body []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items.Add(key, cacheItem{
		body:      body,
		expiresAt: c.now().Add(c.ttl),
	})
}

// Size returns the number of entries, expired or not
func (c *ResponseCache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.items.Len()
}

// Cleanup removes expired entries
func (c *ResponseCache) Cleanup() {
	if c.ttl <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for _, key := range c.items.Keys() {
		if item, ok := c.items.Peek(key); ok && now.After(item.expiresAt) {
			c.items.Remove(key)
		}
	}
}
