package limiter

import (
	"context"
	"fmt"
	"math"
	"sync"

	"golang.org/x/time/rate"

	"github.com/promptops/modelrouter/pkg/registry"
)

// RateLimiter manages per-model rate limiting from registry RPM/TPM hints
type RateLimiter struct {
	limiters map[string]*rate.Limiter
	mu       sync.RWMutex
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter() *RateLimiter {
	return &RateLimiter{
		limiters: make(map[string]*rate.Limiter),
	}
}

// GetLimiter returns or creates a rate limiter for a model
func (rl *RateLimiter) GetLimiter(modelID string, config registry.ModelConfig) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if limiter, exists := rl.limiters[modelID]; exists {
		return limiter
	}

	// Use the more restrictive of RPM and TPM (TPM converted assuming
	// ~100 tokens per request)
	rpm := float64(config.MaxRPM)
	tpmAsRPM := float64(config.MaxTPM) / 100.0

	var limit float64
	switch {
	case rpm > 0 && tpmAsRPM > 0:
		limit = math.Min(rpm, tpmAsRPM)
	case rpm > 0:
		limit = rpm
	case tpmAsRPM > 0:
		limit = tpmAsRPM
	default:
		limit = 1000.0
	}

	burst := int(limit / 10.0)
	if burst < 1 {
		burst = 1
	}

	limiter := rate.NewLimiter(rate.Limit(limit/60.0), burst)
	rl.limiters[modelID] = limiter

	return limiter
}

// Wait waits for the rate limiter to allow the request
func (rl *RateLimiter) Wait(ctx context.Context, modelID string, config registry.ModelConfig) error {
	limiter := rl.GetLimiter(modelID, config)

	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter wait failed: %w", err)
	}

	return nil
}

// Allow checks if the request is allowed without waiting
func (rl *RateLimiter) Allow(modelID string, config registry.ModelConfig) bool {
	limiter := rl.GetLimiter(modelID, config)
	return limiter.Allow()
}

// GetStats returns rate limiter statistics for a model
func (rl *RateLimiter) GetStats(modelID string, config registry.ModelConfig) map[string]interface{} {
	limiter := rl.GetLimiter(modelID, config)

	return map[string]interface{}{
		"model_id": modelID,
		"limit":    limiter.Limit(),
		"burst":    limiter.Burst(),
		"tokens":   limiter.Tokens(),
		"max_rpm":  config.MaxRPM,
		"max_tpm":  config.MaxTPM,
	}
}

// Reset resets the rate limiter for a model
func (rl *RateLimiter) Reset(modelID string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	delete(rl.limiters, modelID)
}

// ResetAll resets all rate limiters
func (rl *RateLimiter) ResetAll() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.limiters = make(map[string]*rate.Limiter)
}
