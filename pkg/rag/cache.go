package rag

import (
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"github.com/papercomputeco/hrdesk/pkg/roles"
	"github.com/papercomputeco/hrdesk/pkg/vector"
)

const (
	// DefaultCacheTTL keeps retrieval results long enough to span a retry of
	// the generation step.
	DefaultCacheTTL = 30 * time.Second

	defaultCacheCapacity = 1024
)

// cacheKey scopes cached results to the asker's role so one role can never
// be served another role's retrieval.
type cacheKey struct {
	role     roles.Role
	topK     int
	question string
}

// retrievalCache stores search results between purges. A result is only
// stored if no purge happened since its search began, so a search racing a
// delete cannot put the deleted chunks back.
type retrievalCache struct {
	mu    sync.Mutex
	epoch uint64
	items *ttlcache.Cache[cacheKey, []vector.Result]
}

func newRetrievalCache(ttl time.Duration) *retrievalCache {
	if ttl <= 0 {
		return nil
	}
	return &retrievalCache{
		items: ttlcache.New(
			ttlcache.WithTTL[cacheKey, []vector.Result](ttl),
			ttlcache.WithCapacity[cacheKey, []vector.Result](defaultCacheCapacity),
			ttlcache.WithDisableTouchOnHit[cacheKey, []vector.Result](),
		),
	}
}

func (c *retrievalCache) get(k cacheKey) ([]vector.Result, bool) {
	if c == nil {
		return nil, false
	}
	item := c.items.Get(k)
	if item == nil || item.IsExpired() {
		return nil, false
	}
	return item.Value(), true
}

// current returns the epoch to pass to put. Read it before searching.
func (c *retrievalCache) current() uint64 {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.epoch
}

// put stores results found by a search that started at epoch. It reports
// whether they were stored.
func (c *retrievalCache) put(epoch uint64, k cacheKey, results []vector.Result) bool {
	if c == nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if epoch != c.epoch {
		return false
	}
	c.items.Set(k, results, ttlcache.DefaultTTL)
	return true
}

func (c *retrievalCache) purge() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.epoch++
	c.items.DeleteAll()
}
