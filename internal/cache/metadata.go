// Package cache implements the two caches the lakehouse engine keeps in
// front of the catalog and the query engine: a TTL-expiring metadata-
// pointer cache (table identifier -> current metadata location and column
// list) and a bounded LRU query-result cache.
package cache

import (
	"sync"
	"time"
)

// MetadataCache caches the resolved metadata-location pointer (and column
// list, so the write path doesn't need a second catalog round trip just to
// gap-fill a record) for a table identifier. Guarded by a single mutex
// with no I/O performed while held, per the engine's shared-resource rule:
// lookups and invalidation are O(1) map operations.
type MetadataCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]metadataEntry
}

type metadataEntry struct {
	location string
	columns  []string
	expires  time.Time
}

// NewMetadataCache returns a cache whose entries expire after ttl.
func NewMetadataCache(ttl time.Duration) *MetadataCache {
	return &MetadataCache{ttl: ttl, entries: make(map[string]metadataEntry)}
}

// Get returns the cached metadata location and column list for
// identifier, if present and unexpired.
func (c *MetadataCache) Get(identifier string) (location string, columns []string, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, found := c.entries[identifier]
	if !found || time.Now().After(e.expires) {
		return "", nil, false
	}
	return e.location, e.columns, true
}

// Set records the metadata location and column list for identifier,
// resetting its TTL.
func (c *MetadataCache) Set(identifier, location string, columns []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[identifier] = metadataEntry{location: location, columns: columns, expires: time.Now().Add(c.ttl)}
}

// Invalidate drops the cached entry for identifier, forcing the next Get
// to miss. Called after every write/update/delete/compact against a table.
func (c *MetadataCache) Invalidate(identifier string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, identifier)
}
