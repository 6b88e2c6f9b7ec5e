package embedding

import (
	"container/list"
	"hash/fnv"
	"strconv"
	"sync"
)

// Cache is a bounded LRU cache for embeddings, keyed by a hash of the text.
// Safe for concurrent use; provider calls for independent documents may run
// in parallel and all land here.
type Cache struct {
	capacity int
	entries  map[string]*list.Element
	lru      *list.List
	mu       sync.RWMutex
}

type cacheEntry struct {
	key string
	vec []float32
}

// NewCache creates a cache holding at most capacity vectors.
func NewCache(capacity int) *Cache {
	if capacity <= 0 {
		capacity = 1
	}
	return &Cache{
		capacity: capacity,
		entries:  make(map[string]*list.Element),
		lru:      list.New(),
	}
}

// Key returns the cache key for text: an FNV-64a hash, so long passages do
// not pin their full text in the key map.
func Key(text string) string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	return strconv.FormatUint(h.Sum64(), 16)
}

// Get returns the cached vector for key if present, refreshing its recency.
func (c *Cache) Get(key string) ([]float32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[key]; ok {
		c.lru.MoveToFront(elem)
		return elem.Value.(*cacheEntry).vec, true
	}
	return nil, false
}

// Set stores the vector for key, evicting the least recently used entry when
// at capacity.
func (c *Cache) Set(key string, vec []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[key]; ok {
		c.lru.MoveToFront(elem)
		elem.Value.(*cacheEntry).vec = vec
		return
	}

	elem := c.lru.PushFront(&cacheEntry{key: key, vec: vec})
	c.entries[key] = elem

	if c.lru.Len() > c.capacity {
		oldest := c.lru.Back()
		if oldest != nil {
			c.lru.Remove(oldest)
			delete(c.entries, oldest.Value.(*cacheEntry).key)
		}
	}
}

// Len returns the number of cached vectors.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lru.Len()
}
