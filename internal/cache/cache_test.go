package cache

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashCache_NewHashCache(t *testing.T) {
	cache := NewHashCache()

	require.NotNil(t, cache)
	assert.Equal(t, 0, cache.Len())
	assert.False(t, cache.Seen("389BC"))
}

func TestHashCache_AddAndSeen(t *testing.T) {
	tests := []struct {
		name  string
		add   string
		check string
		want  bool
	}{
		{name: "same case", add: "ABC123", check: "ABC123", want: true},
		{name: "lower lookup", add: "ABC123", check: "abc123", want: true},
		{name: "lower add", add: "abc123", check: "ABC123", want: true},
		{name: "different hash", add: "ABC123", check: "ABC124", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cache := NewHashCache()
			cache.Add(tt.add)
			assert.Equal(t, tt.want, cache.Seen(tt.check))
		})
	}
}

func TestHashCache_TryAdd(t *testing.T) {
	cache := NewHashCache()

	assert.True(t, cache.TryAdd("abc"))
	assert.False(t, cache.TryAdd("ABC"))
	assert.True(t, cache.TryAdd("def"))
	assert.Equal(t, 2, cache.Len())
}

func TestHashCache_Reset(t *testing.T) {
	cache := NewHashCache()
	cache.Add("abc")
	cache.Add("def")

	cache.Reset()

	assert.Equal(t, 0, cache.Len())
	assert.False(t, cache.Seen("abc"))
}

func TestHashCache_ConcurrentTryAdd(t *testing.T) {
	cache := NewHashCache()

	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if cache.TryAdd("same") {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, winners)
	assert.Equal(t, 1, cache.Len())
}

func TestSafeCounter(t *testing.T) {
	var c SafeCounter
	assert.Equal(t, uint(0), c.Value())

	c.Inc()
	c.Inc()
	assert.Equal(t, uint(2), c.Value())

	c.Set(10)
	assert.Equal(t, uint(10), c.Value())
}

func TestSafeCounter_Concurrent(t *testing.T) {
	var c SafeCounter

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Inc()
		}()
	}
	wg.Wait()

	assert.Equal(t, uint(100), c.Value())
}
