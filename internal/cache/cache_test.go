package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCacheSetGetDelete(t *testing.T) {
	c := NewCache(time.Minute)
	defer c.Stop()

	c.Set("a", 42)
	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 42, v)

	c.Delete("a")
	_, ok = c.Get("a")
	assert.False(t, ok)

	assert.Equal(t, Stats{ItemCount: 0, HitCount: 1, MissCount: 1}, c.Stats())
}

func TestCacheExpiry(t *testing.T) {
	c := NewCache(time.Minute)
	defer c.Stop()

	current := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return current }

	c.Set("a", "value")
	current = current.Add(59 * time.Second)
	_, ok := c.Get("a")
	assert.True(t, ok)

	current = current.Add(2 * time.Second)
	_, ok = c.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 1, c.Size(), "expired items stay until cleanup")

	c.removeExpired()
	assert.Equal(t, 0, c.Size())
}

func TestCacheConcurrentAccess(t *testing.T) {
	c := NewCache(5 * time.Minute)
	defer c.Stop()

	var wg sync.WaitGroup
	for g := 0; g < 10; g++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				key := fmt.Sprintf("key_%d_%d", id, i)
				c.Set(key, i)
				c.Get(key)
				if i%10 == 0 {
					c.Delete(key)
				}
			}
		}(g)
	}
	wg.Wait()

	assert.Equal(t, 10*90, c.Size())
	assert.Equal(t, int64(1000), c.Stats().HitCount)
}

func TestCacheStopIsIdempotent(t *testing.T) {
	c := NewCache(time.Minute)
	c.Stop()
	assert.NotPanics(t, c.Stop)
}
