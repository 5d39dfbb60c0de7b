package chain

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// HeadCache caches the result of GetLatestBlock to reduce redundant API calls
// when many quote requests arrive within one block time. Concurrent misses
// share a single fetch.
type HeadCache struct {
	reader BlockNumberReader
	ttl    time.Duration
	now    func() time.Time
	group  singleflight.Group

	mu       sync.RWMutex
	cached   uint64
	cachedAt time.Time
}

var _ BlockNumberReader = (*HeadCache)(nil)

// NewHeadCache creates a new head cache with the given TTL.
func NewHeadCache(reader BlockNumberReader, ttl time.Duration) *HeadCache {
	return &HeadCache{
		reader: reader,
		ttl:    ttl,
		now:    time.Now,
	}
}

// GetLatestBlock returns the cached chain head if within TTL, otherwise fetches fresh.
func (c *HeadCache) GetLatestBlock(ctx context.Context) (uint64, error) {
	if head, ok := c.fresh(); ok {
		return head, nil
	}

	v, err, _ := c.group.Do("head", func() (any, error) {
		if head, ok := c.fresh(); ok {
			return head, nil
		}
		head, err := c.reader.GetLatestBlock(ctx)
		if err != nil {
			return uint64(0), err
		}

		c.mu.Lock()
		// Never move the cached head backwards.
		if head >= c.cached {
			c.cached = head
		}
		c.cachedAt = c.now()
		head = c.cached
		c.mu.Unlock()
		return head, nil
	})
	if err != nil {
		return 0, err
	}
	return v.(uint64), nil
}

func (c *HeadCache) fresh() (uint64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.now().Sub(c.cachedAt) < c.ttl && c.cached > 0 {
		return c.cached, true
	}
	return 0, false
}

// Invalidate clears the cache, forcing the next call to fetch fresh data.
func (c *HeadCache) Invalidate() {
	c.mu.Lock()
	c.cachedAt = time.Time{}
	c.mu.Unlock()
}
