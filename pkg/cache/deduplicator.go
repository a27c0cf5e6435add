package cache

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/promptops/modelrouter/pkg/router/core"
)

// Deduplicator collapses concurrent identical invocations into one
// upstream call.
type Deduplicator struct {
	group singleflight.Group

	mu           sync.Mutex
	requests     int64
	deduplicated int64
	cacheHits    int64
}

// DedupStats represents deduplication statistics
type DedupStats struct {
	Requests     int64 `json:"requests"`
	Deduplicated int64 `json:"deduplicated"`
	CacheHits    int64 `json:"cache_hits"`
}

// NewDeduplicator creates a new deduplicator
func NewDeduplicator() *Deduplicator {
	return &Deduplicator{}
}

// Execute runs fn, sharing the result with concurrent callers that
// hold the same key.
func (d *Deduplicator) Execute(ctx context.Context, key CacheKey, fn func() (core.InvocationResult, error)) (core.InvocationResult, error) {
	d.count(1, 0, 0)

	result, err, shared := d.group.Do(string(key), func() (interface{}, error) {
		return fn()
	})
	if err != nil {
		return core.InvocationResult{}, err
	}
	if shared {
		d.count(0, 1, 0)
	}

	return result.(core.InvocationResult), nil
}

// ExecuteWithCache consults the cache first, then runs fn under
// singleflight and stores the result.
func (d *Deduplicator) ExecuteWithCache(
	ctx context.Context,
	key CacheKey,
	cache *LRUCache,
	ttl time.Duration,
	fn func() (core.InvocationResult, error),
) (core.InvocationResult, bool, error) {
	if cache != nil {
		if entry, exists := cache.Get(key); exists {
			d.count(1, 0, 1)
			return entry.Result, true, nil
		}
	}

	d.count(1, 0, 0)

	result, err, shared := d.group.Do(string(key), func() (interface{}, error) {
		res, err := fn()
		if err != nil {
			return nil, err
		}
		if cache != nil {
			cache.Set(key, res, ttl)
		}
		return res, nil
	})
	if err != nil {
		return core.InvocationResult{}, false, err
	}
	if shared {
		d.count(0, 1, 0)
	}

	return result.(core.InvocationResult), false, nil
}

// Stats returns aggregate deduplication statistics.
func (d *Deduplicator) Stats() DedupStats {
	d.mu.Lock()
	defer d.mu.Unlock()

	return DedupStats{
		Requests:     d.requests,
		Deduplicated: d.deduplicated,
		CacheHits:    d.cacheHits,
	}
}

// Reset resets all statistics
func (d *Deduplicator) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.requests = 0
	d.deduplicated = 0
	d.cacheHits = 0
}

func (d *Deduplicator) count(requests, deduplicated, cacheHits int64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.requests += requests
	d.deduplicated += deduplicated
	d.cacheHits += cacheHits
}
