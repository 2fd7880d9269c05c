package cache

import (
	"strings"
	"sync"
	"time"
)

type Item struct {
	Value      interface{}
	Expiration int64
}

// MemoryCache is a TTL cache safe for concurrent use. Routing snapshots and
// decisions are short-lived, so expired entries are also swept by a
// background goroutine to keep the map from growing between reads.
type MemoryCache struct {
	items  sync.Map
	stopCh chan struct{}
	once   sync.Once
}

func NewMemoryCache() *MemoryCache {
	cache := &MemoryCache{
		stopCh: make(chan struct{}),
	}
	go cache.cleanupExpired()
	return cache
}

// Set stores a value with the given TTL. A zero TTL means no expiration.
func (c *MemoryCache) Set(key string, value interface{}, ttl time.Duration) {
	expiration := time.Now().Add(ttl).UnixNano()
	if ttl == 0 {
		expiration = 0
	}

	c.items.Store(key, &Item{
		Value:      value,
		Expiration: expiration,
	})
}

func (c *MemoryCache) Get(key string) (interface{}, bool) {
	item, exists := c.items.Load(key)
	if !exists {
		return nil, false
	}

	cached := item.(*Item)
	if cached.Expiration > 0 && time.Now().UnixNano() > cached.Expiration {
		c.items.Delete(key)
		return nil, false
	}

	return cached.Value, true
}

func (c *MemoryCache) Delete(key string) {
	c.items.Delete(key)
}

// DeletePrefix removes every entry whose key starts with prefix. Used to
// invalidate all market-data or routing entries when a venue changes status.
func (c *MemoryCache) DeletePrefix(prefix string) int {
	removed := 0
	c.items.Range(func(key, value interface{}) bool {
		if strings.HasPrefix(key.(string), prefix) {
			c.items.Delete(key)
			removed++
		}
		return true
	})
	return removed
}

func (c *MemoryCache) Clear() {
	c.items.Range(func(key, value interface{}) bool {
		c.items.Delete(key)
		return true
	})
}

// Len returns the number of unexpired entries
func (c *MemoryCache) Len() int {
	count := 0
	now := time.Now().UnixNano()
	c.items.Range(func(key, value interface{}) bool {
		item := value.(*Item)
		if item.Expiration == 0 || now <= item.Expiration {
			count++
		}
		return true
	})
	return count
}

// Close stops the background cleanup goroutine
func (c *MemoryCache) Close() {
	c.once.Do(func() {
		close(c.stopCh)
	})
}

func (c *MemoryCache) cleanupExpired() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			now := time.Now().UnixNano()
			c.items.Range(func(key, value interface{}) bool {
				item := value.(*Item)
				if item.Expiration > 0 && now > item.Expiration {
					c.items.Delete(key)
				}
				return true
			})
		}
	}
}
