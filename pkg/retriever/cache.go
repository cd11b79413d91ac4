package retriever

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// cacheEntry is a stored result list and the time it was stored.
type cacheEntry struct {
	results  []Result
	storedAt time.Time
}

// resultCache is a bounded, TTL-expiring store of post-processed result
// lists. Entries are read with Peek so eviction follows insertion order.
type resultCache struct {
	entries *lru.Cache[string, cacheEntry]
	ttl     time.Duration
	now     func() time.Time
}

func newResultCache(size int, ttl time.Duration) (*resultCache, error) {
	entries, err := lru.New[string, cacheEntry](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create result cache: %w", err)
	}
	return &resultCache{entries: entries, ttl: ttl, now: time.Now}, nil
}

// get returns a copy of a fresh entry.
func (c *resultCache) get(key string) ([]Result, bool) {
	entry, ok := c.entries.Peek(key)
	if !ok {
		return nil, false
	}
	if c.ttl > 0 && c.now().Sub(entry.storedAt) > c.ttl {
		c.entries.Remove(key)
		return nil, false
	}
	return CloneResults(entry.results), true
}

// put stores a copy of results.
func (c *resultCache) put(key string, results []Result) {
	// Remove first so a refreshed key moves to the newest position.
	c.entries.Remove(key)
	c.entries.Add(key, cacheEntry{results: CloneResults(results), storedAt: c.now()})
}

func (c *resultCache) purge() {
	c.entries.Purge()
}

func (c *resultCache) len() int {
	return c.entries.Len()
}

// cacheKey hashes the parameters that influence a result list.
func cacheKey(query string, req Request) string {
	payload := struct {
		Query     string         `json:"q"`
		Limit     int            `json:"l"`
		Threshold float64        `json:"t"`
		Extra     map[string]any `json:"e,omitempty"`
	}{query, req.Limit, req.Threshold, req.Extra}

	data, err := json.Marshal(payload)
	if err != nil {
		// Extra held something JSON cannot encode; fall back to its
		// printed form, which is stable for maps.
		data = fmt.Appendf(nil, "%q|%d|%g|%v", query, req.Limit, req.Threshold, req.Extra)
	}

	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
