package cache

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Entry is a cached value plus the time it was last stored.
type Entry[V any] struct {
	Value       V
	PopulatedAt time.Time
}

// LRU is a bounded key/value store that evicts the least recently used
// entry once it holds more than its capacity. Get and Put both refresh
// recency.
type LRU[K comparable, V any] struct {
	entries *lru.Cache[K, Entry[V]]
	now     func() time.Time
}

func NewLRU[K comparable, V any](size int) *LRU[K, V] {
	if size <= 0 {
		size = 1
	}
	entries, err := lru.New[K, Entry[V]](size)
	if err != nil {
		// lru.New only fails on a non-positive size.
		panic(err)
	}
	return &LRU[K, V]{entries: entries, now: time.Now}
}

func (c *LRU[K, V]) Get(key K) (V, bool) {
	entry, ok := c.entries.Get(key)
	return entry.Value, ok
}

// Entry returns the stored entry without touching recency.
func (c *LRU[K, V]) Entry(key K) (Entry[V], bool) {
	return c.entries.Peek(key)
}

func (c *LRU[K, V]) Put(key K, value V) {
	c.entries.Add(key, Entry[V]{Value: value, PopulatedAt: c.now()})
}

func (c *LRU[K, V]) Delete(key K) {
	c.entries.Remove(key)
}

func (c *LRU[K, V]) Purge() {
	c.entries.Purge()
}

func (c *LRU[K, V]) Len() int {
	return c.entries.Len()
}

func (c *LRU[K, V]) Keys() []K {
	return c.entries.Keys()
}
