// Package cache holds serialized query results keyed by SQL text and format.
//
// Entries live for the process lifetime. A key maps to at most one entry and
// an entry is never overwritten in place; Reset is the only way to drop them.
package cache

import (
	"github.com/VictoriaMetrics/metrics"
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/nickyhof/DuckServe/core"
)

var (
	hitsTotal   = metrics.NewCounter("duckserve_cache_hits_total")
	missesTotal = metrics.NewCounter("duckserve_cache_misses_total")
	storedTotal = metrics.NewCounter("duckserve_cache_stored_total")
)

// ComputeFunc produces the serialized result of sql.
type ComputeFunc func(sql string) ([]byte, error)

// Cache maps cache keys to serialized results.
type Cache struct {
	entries *xsync.MapOf[core.CacheKey, []byte]
}

// New creates an empty cache.
func New() *Cache {
	return &Cache{
		entries: xsync.NewMapOf[core.CacheKey, []byte](),
	}
}

// Retrieve returns the cached result for (sql, format), or computes it. The
// computed result is stored only when persist is set. Errors are never cached.
func (c *Cache) Retrieve(sql string, format core.Format, compute ComputeFunc, persist bool) ([]byte, error) {
	key := core.KeyFor(sql, format)

	if data, ok := c.Get(key); ok {
		hitsTotal.Inc()
		return data, nil
	}
	missesTotal.Inc()

	data, err := compute(sql)
	if err != nil {
		return nil, err
	}

	if persist {
		data = c.Put(key, data)
	}
	return data, nil
}

// Get returns the entry stored under key.
func (c *Cache) Get(key core.CacheKey) ([]byte, bool) {
	return c.entries.Load(key)
}

// Put stores data under key unless an entry already exists, and returns the
// entry that is in the cache afterwards.
func (c *Cache) Put(key core.CacheKey, data []byte) []byte {
	actual, loaded := c.entries.LoadOrStore(key, data)
	if !loaded {
		storedTotal.Inc()
	}
	return actual
}

// Contains reports whether key has an entry.
func (c *Cache) Contains(key core.CacheKey) bool {
	_, ok := c.Get(key)
	return ok
}

// Len returns the number of entries.
func (c *Cache) Len() int {
	return c.entries.Size()
}

// Reset drops every entry.
func (c *Cache) Reset() {
	c.entries.Clear()
}
