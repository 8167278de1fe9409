package classify

import (
	"hash/fnv"
	"strconv"
	"sync"
	"time"

	"github.com/mirchapp/menu-pipeline/internal/model"
)

// fingerprintPrefix bounds how much content feeds the cache key. Pages are
// re-classified many times per scrape as they mutate; a bounded prefix keeps
// hashing cheap while still distinguishing page states.
const fingerprintPrefix = 2000

// Fingerprint derives a cache key from a bounded content prefix.
func Fingerprint(text string) string {
	if len(text) > fingerprintPrefix {
		text = text[:fingerprintPrefix]
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	return strconv.FormatUint(h.Sum64(), 16)
}

type cacheEntry struct {
	cls       model.Classification
	expiresAt time.Time
}

// resultCache is a TTL cache of classifications keyed by content fingerprint.
// Entries are immutable within their TTL window, so a plain mutex around map
// access is all the synchronization needed.
type resultCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]cacheEntry
	now     func() time.Time
}

func newResultCache(ttl time.Duration) *resultCache {
	return &resultCache{
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
		now:     time.Now,
	}
}

func (c *resultCache) get(key string) (model.Classification, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok || c.now().After(e.expiresAt) {
		delete(c.entries, key)
		return model.Classification{}, false
	}
	return e.cls, true
}

func (c *resultCache) set(key string, cls model.Classification) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{cls: cls, expiresAt: c.now().Add(c.ttl)}
}
