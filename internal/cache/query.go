package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// QueryCacheCapacity bounds the number of cached result sets, matching the
// fixed 100-entry ceiling the original query cache enforced.
const QueryCacheCapacity = 100

// QueryCache caches QUERY result sets keyed by a digest of the request
// parameters. Bounded by a real LRU (recency-based eviction) rather than
// the naive oldest-insertion eviction the original implementation used —
// a deliberate improvement, since nothing in the read-path contract
// depends on *which* entry gets evicted once the cache is full, only that
// it stays bounded.
type QueryCache struct {
	mu    sync.Mutex
	ttl   time.Duration
	inner *lru.Cache[string, queryEntry]
}

type queryEntry struct {
	rows    []map[string]interface{}
	expires time.Time
}

// NewQueryCache returns a bounded, TTL-expiring query-result cache.
func NewQueryCache(ttl time.Duration) *QueryCache {
	inner, err := lru.New[string, queryEntry](QueryCacheCapacity)
	if err != nil {
		// Only returns an error for a non-positive size, which
		// QueryCacheCapacity never is.
		panic(err)
	}
	return &QueryCache{ttl: ttl, inner: inner}
}

// Key derives a stable cache key from the tenant, table identifier, and
// arbitrary query-request parameters (filters, projection, sort, ...).
func Key(tenantID, tableIdentifier string, params interface{}) string {
	payload, _ := json.Marshal(struct {
		Tenant string      `json:"tenant"`
		Table  string      `json:"table"`
		Params interface{} `json:"params"`
	}{tenantID, tableIdentifier, params})
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

// Get returns the cached rows for key, if present and unexpired.
func (c *QueryCache) Get(key string) ([]map[string]interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.inner.Get(key)
	if !ok {
		return nil, false
	}
	if time.Now().After(e.expires) {
		c.inner.Remove(key)
		return nil, false
	}
	return e.rows, true
}

// Set stores rows under key with a fresh TTL.
func (c *QueryCache) Set(key string, rows []map[string]interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inner.Add(key, queryEntry{rows: rows, expires: time.Now().Add(c.ttl)})
}

// InvalidateTable drops every cached entry; called after a write/update/
// delete/compact since individual query keys don't carry enough structure
// to invalidate selectively without re-deriving every possible key.
func (c *QueryCache) InvalidateTable() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inner.Purge()
}
