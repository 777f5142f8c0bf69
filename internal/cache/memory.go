package cache

import (
	"context"
	"time"

	"github.com/TwiN/gocache/v2"
)

const memoryCacheMaxSize = 10000

type memoryCache struct {
	c *gocache.Cache
}

func newMemoryCache() *memoryCache {
	return &memoryCache{
		c: gocache.NewCache().
			WithMaxSize(memoryCacheMaxSize).
			WithEvictionPolicy(gocache.LeastRecentlyUsed),
	}
}

func (m *memoryCache) get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := m.c.Get(key)
	if !ok {
		return nil, false, nil
	}
	data, ok := v.([]byte)
	return data, ok, nil
}

func (m *memoryCache) set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = gocache.NoExpiration
	}
	m.c.SetWithTTL(key, value, ttl)
	return nil
}

func (m *memoryCache) del(_ context.Context, key string) error {
	m.c.Delete(key)
	return nil
}

func (m *memoryCache) clear(_ context.Context, prefix string) error {
	if prefix == "" {
		m.c.Clear()
		return nil
	}
	m.c.DeleteAll(m.c.GetKeysByPattern(prefix+"*", 0))
	return nil
}
