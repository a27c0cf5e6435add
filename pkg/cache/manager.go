package cache

import (
	"context"
	"fmt"

	"github.com/promptops/modelrouter/pkg/router/core"
)

// CacheManager combines the result cache with in-flight deduplication.
type CacheManager struct {
	cache        *LRUCache
	deduplicator *Deduplicator
	config       *CacheConfig
}

// NewCacheManager creates a new cache manager
func NewCacheManager(config *CacheConfig) (*CacheManager, error) {
	if config == nil {
		config = DefaultCacheConfig()
	}

	cache, err := NewLRUCache(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache: %w", err)
	}

	return &CacheManager{
		cache:        cache,
		deduplicator: NewDeduplicator(),
		config:       config,
	}, nil
}

// Execute serves req from the cache when possible, otherwise runs fn
// once for all concurrent identical requests and caches the result.
// The bool reports whether the result came from the cache.
func (cm *CacheManager) Execute(
	ctx context.Context,
	req core.InvocationRequest,
	fn func() (core.InvocationResult, error),
) (core.InvocationResult, bool, error) {
	key, err := GenerateKey(req)
	if err != nil {
		return core.InvocationResult{}, false, fmt.Errorf("failed to generate cache key: %w", err)
	}

	return cm.deduplicator.ExecuteWithCache(ctx, key, cm.cache, cm.config.DefaultTTL, fn)
}

// Clear drops all cached results and resets statistics.
func (cm *CacheManager) Clear() {
	cm.cache.Clear()
	cm.deduplicator.Reset()
}

// Stats returns cache and deduplication statistics.
func (cm *CacheManager) Stats() map[string]interface{} {
	cacheStats := cm.cache.Stats()
	dedupStats := cm.deduplicator.Stats()

	var dedupRate float64
	if dedupStats.Requests > 0 {
		dedupRate = float64(dedupStats.Deduplicated) / float64(dedupStats.Requests)
	}

	return map[string]interface{}{
		"cache": map[string]interface{}{
			"hits":        cacheStats.Hits,
			"misses":      cacheStats.Misses,
			"size":        cacheStats.Size,
			"max_size":    cacheStats.MaxSize,
			"hit_rate":    cacheStats.HitRate,
			"evictions":   cacheStats.Evictions,
			"expirations": cacheStats.Expirations,
		},
		"deduplication": map[string]interface{}{
			"requests":     dedupStats.Requests,
			"deduplicated": dedupStats.Deduplicated,
			"cache_hits":   dedupStats.CacheHits,
			"dedup_rate":   dedupRate,
		},
		"config": map[string]interface{}{
			"max_size":         cm.config.MaxSize,
			"default_ttl":      cm.config.DefaultTTL.String(),
			"cleanup_interval": cm.config.CleanupInterval.String(),
		},
	}
}

// Close stops the cache manager.
func (cm *CacheManager) Close() {
	cm.cache.Close()
}
