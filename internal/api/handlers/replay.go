package handlers

import (
	"time"

	"github.com/dgraph-io/ristretto"

	"github.com/drfirst/go-rxhl7/internal/domain/conversion"
)

// ReplayCache remembers successful conversions so a resubmitted message is
// answered without converting or persisting it again.
type ReplayCache struct {
	cache *ristretto.Cache
	ttl   time.Duration
}

// NewReplayCache creates a cache holding up to maxEntries results for ttl.
// Every entry costs 1, so MaxCost is an entry count.
func NewReplayCache(maxEntries int64, ttl time.Duration) (*ReplayCache, error) {
	if maxEntries <= 0 {
		maxEntries = 10000
	}
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters:        maxEntries * 10,
		MaxCost:            maxEntries,
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, err
	}
	return &ReplayCache{cache: cache, ttl: ttl}, nil
}

// Get returns the cached result for key.
func (c *ReplayCache) Get(key string) (*conversion.Result, bool) {
	if c == nil {
		return nil, false
	}
	v, ok := c.cache.Get(key)
	if !ok {
		return nil, false
	}
	res, ok := v.(*conversion.Result)
	return res, ok
}

// Put stores a result. Writes are visible to Get once Put returns.
func (c *ReplayCache) Put(key string, res *conversion.Result) {
	if c == nil || res == nil {
		return
	}
	c.cache.SetWithTTL(key, res, 1, c.ttl)
	c.cache.Wait()
}

// Close releases the cache.
func (c *ReplayCache) Close() {
	if c != nil {
		c.cache.Close()
	}
}
