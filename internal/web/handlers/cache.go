package handlers

import (
	"time"

	"github.com/dgraph-io/ristretto"
)

// rowCache is a short-TTL cache in front of sheet reads. The data only
// changes through user actions in the same process, so a few minutes of
// staleness is acceptable and every local write invalidates the key.
type rowCache struct {
	cache *ristretto.Cache
	ttl   time.Duration
}

func newRowCache(ttl time.Duration) (*rowCache, error) {
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1000,
		MaxCost:     100,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &rowCache{
		cache: cache,
		ttl:   ttl,
	}, nil
}

func (c *rowCache) Get(key string) ([][]interface{}, bool) {
	v, ok := c.cache.Get(key)
	if !ok {
		return nil, false
	}
	rows, ok := v.([][]interface{})
	return rows, ok
}

func (c *rowCache) Set(key string, rows [][]interface{}) {
	c.cache.SetWithTTL(key, rows, 1, c.ttl)
	// Sets are buffered; wait so the next read sees the value.
	c.cache.Wait()
}

func (c *rowCache) Invalidate(key string) {
	c.cache.Del(key)
}
