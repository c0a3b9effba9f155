package screedb

// cache.go wires a bounded, cost-aware read cache in front of Get and
// MultiGet, invalidated precisely on Put and Delete so a cached miss or
// hit is never stale relative to the façade's own most recent write.

import (
	"time"

	"github.com/dgraph-io/ristretto/v2"
)

// readCache is a thin wrapper so the façade can be built with caching
// disabled (ReadCacheSize == 0) without every call site branching on a
// nil pointer.
type readCache struct {
	cache *ristretto.Cache[string, []byte]
	ttl   time.Duration
}

func newReadCache(maxCost int64, ttl time.Duration) (*readCache, error) {
	if maxCost <= 0 {
		return &readCache{}, nil
	}
	c, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters: maxCost * 10,
		MaxCost:     maxCost,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &readCache{cache: c, ttl: ttl}, nil
}

func (c *readCache) get(key []byte) ([]byte, bool) {
	if c == nil || c.cache == nil {
		return nil, false
	}
	return c.cache.Get(string(key))
}

// set inserts key/value with the cache's configured TTL. A zero TTL
// means the entry never expires on its own, matching ristretto's
// treatment of a zero time.Duration passed to SetWithTTL.
func (c *readCache) set(key, value []byte) {
	if c == nil || c.cache == nil {
		return
	}
	c.cache.SetWithTTL(string(key), value, int64(len(key)+len(value)), c.ttl)
}

// invalidate removes key's cached entry; Put and Delete both call this
// before returning so a subsequent Get never observes a value older
// than the write that just completed.
func (c *readCache) invalidate(key []byte) {
	if c == nil || c.cache == nil {
		return
	}
	c.cache.Del(string(key))
}

func (c *readCache) close() {
	if c == nil || c.cache == nil {
		return
	}
	c.cache.Close()
}
