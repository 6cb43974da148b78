package cache

import (
	"strings"
	"sync"
)

// HashCache remembers the content hashes of map sets already handled in this
// process so repeated paths skip the backend lookup.
type HashCache struct {
	m      sync.Mutex
	hashes map[string]struct{}
}

func NewHashCache() *HashCache {
	return &HashCache{
		hashes: make(map[string]struct{}),
	}
}

// Seen reports whether hash was added. Hashes compare case-insensitively.
func (c *HashCache) Seen(hash string) bool {
	c.m.Lock()
	defer c.m.Unlock()
	_, ok := c.hashes[strings.ToUpper(hash)]
	return ok
}

// Add records hash.
func (c *HashCache) Add(hash string) {
	c.m.Lock()
	defer c.m.Unlock()
	c.hashes[strings.ToUpper(hash)] = struct{}{}
}

// TryAdd records hash and reports whether it was new.
func (c *HashCache) TryAdd(hash string) bool {
	c.m.Lock()
	defer c.m.Unlock()
	key := strings.ToUpper(hash)
	if _, ok := c.hashes[key]; ok {
		return false
	}
	c.hashes[key] = struct{}{}
	return true
}

func (c *HashCache) Len() int {
	c.m.Lock()
	defer c.m.Unlock()
	return len(c.hashes)
}

func (c *HashCache) Reset() {
	c.m.Lock()
	defer c.m.Unlock()
	c.hashes = make(map[string]struct{})
}

// SafeCounter is a thread-safe counter
type SafeCounter struct {
	mu sync.Mutex
	v  uint
}

func (c *SafeCounter) Value() uint {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.v
}

func (c *SafeCounter) Set(v uint) {
	c.mu.Lock()
	c.v = v
	c.mu.Unlock()
}

func (c *SafeCounter) Inc() {
	c.mu.Lock()
	c.v++
	c.mu.Unlock()
}
