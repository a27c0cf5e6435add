package cache

import (
	"testing"
	"time"

	"github.com/promptops/modelrouter/pkg/router/core"
)

func testResult(text string) core.InvocationResult {
	return core.InvocationResult{
		ModelID:    "openai:gpt-4o-mini",
		Provider:   "openai",
		OutputText: text,
		Usage:      core.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
		Cost:       0.000123,
		Currency:   "USD",
	}
}

func TestGenerateKeyDeterministic(t *testing.T) {
	req := core.InvocationRequest{
		Prompt:               "hello",
		RequiredCapabilities: []string{"vision", "json_mode"},
		MaxTokens:            100,
	}

	key1, err := GenerateKey(req)
	if err != nil {
		t.Fatalf("GenerateKey failed: %v", err)
	}
	key2, err := GenerateKey(req)
	if err != nil {
		t.Fatalf("GenerateKey failed: %v", err)
	}

	if key1 != key2 {
		t.Errorf("Expected identical keys, got %s and %s", key1, key2)
	}
}

func TestGenerateKeyCapabilityOrderInsensitive(t *testing.T) {
	a := core.InvocationRequest{Prompt: "hello", RequiredCapabilities: []string{"vision", "json_mode"}}
	b := core.InvocationRequest{Prompt: "hello", RequiredCapabilities: []string{"json_mode", "vision"}}

	keyA, _ := GenerateKey(a)
	keyB, _ := GenerateKey(b)

	if keyA != keyB {
		t.Error("Capability order must not change the cache key")
	}
}

func TestGenerateKeyIgnoresCaller(t *testing.T) {
	a := core.InvocationRequest{Prompt: "hello", Caller: "team-a"}
	b := core.InvocationRequest{Prompt: "hello", Caller: "team-b"}

	keyA, _ := GenerateKey(a)
	keyB, _ := GenerateKey(b)

	if keyA != keyB {
		t.Error("Caller identity must not change the cache key")
	}
}

func TestGenerateKeyDistinguishesPrompts(t *testing.T) {
	a := core.InvocationRequest{Prompt: "hello"}
	b := core.InvocationRequest{Prompt: "goodbye"}

	keyA, _ := GenerateKey(a)
	keyB, _ := GenerateKey(b)

	if keyA == keyB {
		t.Error("Different prompts must produce different keys")
	}
}

func TestLRUCacheSetGet(t *testing.T) {
	c, err := NewLRUCache(DefaultCacheConfig())
	if err != nil {
		t.Fatalf("Failed to create cache: %v", err)
	}
	defer c.Close()

	key := CacheKey("k1")
	c.Set(key, testResult("cached"), time.Minute)

	entry, exists := c.Get(key)
	if !exists {
		t.Fatal("Expected cache hit")
	}
	if entry.Result.OutputText != "cached" {
		t.Errorf("Expected cached result, got %q", entry.Result.OutputText)
	}
	if entry.AccessCount != 1 {
		t.Errorf("Expected access count 1, got %d", entry.AccessCount)
	}
}

func TestLRUCacheMiss(t *testing.T) {
	c, err := NewLRUCache(DefaultCacheConfig())
	if err != nil {
		t.Fatalf("Failed to create cache: %v", err)
	}
	defer c.Close()

	if _, exists := c.Get(CacheKey("absent")); exists {
		t.Error("Expected cache miss")
	}

	stats := c.Stats()
	if stats.Misses != 1 {
		t.Errorf("Expected 1 miss, got %d", stats.Misses)
	}
}

func TestLRUCacheExpiry(t *testing.T) {
	c, err := NewLRUCache(DefaultCacheConfig())
	if err != nil {
		t.Fatalf("Failed to create cache: %v", err)
	}
	defer c.Close()

	key := CacheKey("short-lived")
	c.Set(key, testResult("will expire"), 10*time.Millisecond)

	if _, exists := c.Get(key); !exists {
		t.Fatal("Expected entry before expiry")
	}

	time.Sleep(20 * time.Millisecond)

	if _, exists := c.Get(key); exists {
		t.Error("Expected entry expired")
	}

	stats := c.Stats()
	if stats.Expirations != 1 {
		t.Errorf("Expected 1 expiration, got %d", stats.Expirations)
	}
}

func TestLRUCacheEviction(t *testing.T) {
	config := &CacheConfig{
		MaxSize:         2,
		DefaultTTL:      time.Minute,
		CleanupInterval: time.Minute,
	}

	c, err := NewLRUCache(config)
	if err != nil {
		t.Fatalf("Failed to create cache: %v", err)
	}
	defer c.Close()

	c.Set(CacheKey("a"), testResult("a"), time.Minute)
	c.Set(CacheKey("b"), testResult("b"), time.Minute)
	c.Set(CacheKey("c"), testResult("c"), time.Minute)

	if c.Len() != 2 {
		t.Errorf("Expected capacity 2, got %d", c.Len())
	}
	if _, exists := c.Get(CacheKey("a")); exists {
		t.Error("Expected the oldest entry evicted")
	}
}

func TestLRUCacheClear(t *testing.T) {
	c, err := NewLRUCache(DefaultCacheConfig())
	if err != nil {
		t.Fatalf("Failed to create cache: %v", err)
	}
	defer c.Close()

	c.Set(CacheKey("a"), testResult("a"), time.Minute)
	c.Clear()

	if c.Len() != 0 {
		t.Errorf("Expected empty cache after clear, got %d entries", c.Len())
	}
}

func TestCacheStatsHitRate(t *testing.T) {
	stats := CacheStats{Hits: 3, Misses: 1}
	stats.CalculateHitRate()
	if stats.HitRate != 0.75 {
		t.Errorf("Expected hit rate 0.75, got %f", stats.HitRate)
	}

	empty := CacheStats{}
	empty.CalculateHitRate()
	if empty.HitRate != 0.0 {
		t.Errorf("Expected zero hit rate, got %f", empty.HitRate)
	}
}
