package metrics

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ferreiramx/smart-events/internal/logging"
)

// IDSet is the unit of query granularity: every metric is fetched for an
// explicit set of event ids, the single-event case being a one-element
// set. It is passed as a real array parameter, never spliced into SQL.
type IDSet []int64

// Single wraps one event id as a set.
func Single(id int64) IDSet {
	return IDSet{id}
}

// Key returns a canonical representation of the set, independent of
// element order, for use in cache keys.
func (s IDSet) Key() string {
	sorted := make([]int64, len(s))
	copy(sorted, s)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	parts := make([]string, len(sorted))
	for i, id := range sorted {
		parts[i] = fmt.Sprintf("%d", id)
	}
	return strings.Join(parts, ",")
}

// resultCache is a read-through cache for query results, keyed by metric
// name plus the canonical id set. Entries expire by TTL only; metric
// queries are pure functions of their parameters, so there is nothing to
// invalidate explicitly.
type resultCache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
	ttl     time.Duration
}

type cacheEntry struct {
	value     any
	fetchedAt time.Time
}

func newResultCache(ttl time.Duration) *resultCache {
	return &resultCache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
	}
}

func (c *resultCache) get(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[key]
	if !ok || time.Since(entry.fetchedAt) >= c.ttl {
		return nil, false
	}
	return entry.value, true
}

func (c *resultCache) put(key string, value any) {
	c.mu.Lock()
	c.entries[key] = cacheEntry{value: value, fetchedAt: time.Now()}
	c.mu.Unlock()

	logging.L().Debug("metric cache filled", zap.String("key", key))
}

func cacheKey(metric string, ids IDSet) string {
	return metric + ":" + ids.Key()
}

// cached runs fetch through the cache. The stored value is returned as-is
// on a hit, so fetch results must be treated as immutable by callers.
func cached[T any](c *resultCache, key string, fetch func() (T, error)) (T, error) {
	if v, ok := c.get(key); ok {
		return v.(T), nil
	}

	value, err := fetch()
	if err != nil {
		var zero T
		return zero, err
	}
	c.put(key, value)
	return value, nil
}
