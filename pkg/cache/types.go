package cache

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/promptops/modelrouter/pkg/router/core"
)

// CacheKey represents a cache key
type CacheKey string

// CacheEntry represents a cached invocation result
type CacheEntry struct {
	Result       core.InvocationResult `json:"result"`
	CreatedAt    time.Time             `json:"created_at"`
	ExpiresAt    time.Time             `json:"expires_at"`
	AccessCount  int                   `json:"access_count"`
	LastAccessed time.Time             `json:"last_accessed"`
}

// IsExpired checks if the cache entry is expired
func (e *CacheEntry) IsExpired() bool {
	return time.Now().After(e.ExpiresAt)
}

// Touch updates the access time and count
func (e *CacheEntry) Touch() {
	e.LastAccessed = time.Now()
	e.AccessCount++
}

// CacheConfig holds cache configuration
type CacheConfig struct {
	MaxSize         int           `json:"max_size"`
	DefaultTTL      time.Duration `json:"default_ttl"`
	CleanupInterval time.Duration `json:"cleanup_interval"`
}

// DefaultCacheConfig returns a default cache configuration
func DefaultCacheConfig() *CacheConfig {
	return &CacheConfig{
		MaxSize:         1000,
		DefaultTTL:      5 * time.Minute,
		CleanupInterval: 1 * time.Minute,
	}
}

// GenerateKey derives a cache key from the routing-relevant fields of
// an invocation request. Caller identity and metadata do not change
// the completion, so they are not part of the key. MaxCost and the
// preferred model are: they can change which model serves the request.
func GenerateKey(req core.InvocationRequest) (CacheKey, error) {
	caps := append([]string(nil), req.RequiredCapabilities...)
	sort.Strings(caps)

	normalized := struct {
		Prompt               string   `json:"prompt"`
		RequiredCapabilities []string `json:"required_capabilities"`
		PreferredModelID     string   `json:"preferred_model_id"`
		MaxCost              *float64 `json:"max_cost"`
		Temperature          float32  `json:"temperature"`
		TopP                 float32  `json:"top_p"`
		MaxTokens            int      `json:"max_tokens"`
	}{
		Prompt:               req.Prompt,
		RequiredCapabilities: caps,
		PreferredModelID:     req.PreferredModelID,
		MaxCost:              req.MaxCost,
		Temperature:          req.Temperature,
		TopP:                 req.TopP,
		MaxTokens:            req.MaxTokens,
	}

	data, err := json.Marshal(normalized)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	hash := sha256.Sum256(data)
	return CacheKey(fmt.Sprintf("%x", hash)), nil
}

// CacheStats represents cache statistics
type CacheStats struct {
	Hits        int64   `json:"hits"`
	Misses      int64   `json:"misses"`
	Size        int     `json:"size"`
	MaxSize     int     `json:"max_size"`
	HitRate     float64 `json:"hit_rate"`
	Evictions   int64   `json:"evictions"`
	Expirations int64   `json:"expirations"`
}

// CalculateHitRate calculates the hit rate
func (s *CacheStats) CalculateHitRate() {
	total := s.Hits + s.Misses
	if total > 0 {
		s.HitRate = float64(s.Hits) / float64(total)
	} else {
		s.HitRate = 0.0
	}
}
