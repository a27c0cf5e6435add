package limiter

import (
	"fmt"
	"sync"
	"time"

	"github.com/sony/gobreaker"
)

// CircuitBreakerConfig holds circuit breaker configuration
type CircuitBreakerConfig struct {
	Name        string                             `json:"name"`
	MaxRequests uint32                             `json:"max_requests"`
	Interval    time.Duration                      `json:"interval"`
	Timeout     time.Duration                      `json:"timeout"`
	ReadyToTrip func(counts gobreaker.Counts) bool `json:"-"`
}

// DefaultCircuitBreakerConfig returns a default circuit breaker configuration
func DefaultCircuitBreakerConfig(name string) *CircuitBreakerConfig {
	return &CircuitBreakerConfig{
		Name:        name,
		MaxRequests: 3,
		Interval:    10 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			// Open circuit if failure rate is > 50% over at least 5 requests
			return counts.Requests >= 5 && float64(counts.TotalFailures)/float64(counts.Requests) >= 0.5
		},
	}
}

// StateChangeFunc is invoked on circuit breaker state transitions
type StateChangeFunc func(modelID string, from, to gobreaker.State)

// CircuitBreakerManager manages circuit breakers per model
type CircuitBreakerManager struct {
	breakers      map[string]*gobreaker.CircuitBreaker
	onStateChange StateChangeFunc
	mu            sync.RWMutex
}

// NewCircuitBreakerManager creates a new circuit breaker manager
func NewCircuitBreakerManager(onStateChange StateChangeFunc) *CircuitBreakerManager {
	return &CircuitBreakerManager{
		breakers:      make(map[string]*gobreaker.CircuitBreaker),
		onStateChange: onStateChange,
	}
}

// GetBreaker returns or creates a circuit breaker for a model
func (cbm *CircuitBreakerManager) GetBreaker(modelID string) *gobreaker.CircuitBreaker {
	cbm.mu.Lock()
	defer cbm.mu.Unlock()

	if breaker, exists := cbm.breakers[modelID]; exists {
		return breaker
	}

	config := DefaultCircuitBreakerConfig(fmt.Sprintf("model-%s", modelID))

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        config.Name,
		MaxRequests: config.MaxRequests,
		Interval:    config.Interval,
		Timeout:     config.Timeout,
		ReadyToTrip: config.ReadyToTrip,
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			if cbm.onStateChange != nil {
				cbm.onStateChange(modelID, from, to)
			}
		},
	})

	cbm.breakers[modelID] = breaker

	return breaker
}

// Execute executes a function through the circuit breaker
func (cbm *CircuitBreakerManager) Execute(modelID string, fn func() (interface{}, error)) (interface{}, error) {
	breaker := cbm.GetBreaker(modelID)
	return breaker.Execute(fn)
}

// GetState returns the current state of a circuit breaker
func (cbm *CircuitBreakerManager) GetState(modelID string) gobreaker.State {
	return cbm.GetBreaker(modelID).State()
}

// GetStats returns circuit breaker statistics for a model
func (cbm *CircuitBreakerManager) GetStats(modelID string) map[string]interface{} {
	breaker := cbm.GetBreaker(modelID)
	counts := breaker.Counts()

	return map[string]interface{}{
		"model_id":             modelID,
		"state":                breaker.State().String(),
		"requests":             counts.Requests,
		"total_success":        counts.TotalSuccesses,
		"total_failures":       counts.TotalFailures,
		"consecutive_success":  counts.ConsecutiveSuccesses,
		"consecutive_failures": counts.ConsecutiveFailures,
	}
}

// IsOpen checks if the circuit breaker is open for a model
func (cbm *CircuitBreakerManager) IsOpen(modelID string) bool {
	return cbm.GetBreaker(modelID).State() == gobreaker.StateOpen
}

// Reset resets the circuit breaker for a model
func (cbm *CircuitBreakerManager) Reset(modelID string) {
	cbm.mu.Lock()
	defer cbm.mu.Unlock()

	delete(cbm.breakers, modelID)
}

// ResetAll resets all circuit breakers
func (cbm *CircuitBreakerManager) ResetAll() {
	cbm.mu.Lock()
	defer cbm.mu.Unlock()

	cbm.breakers = make(map[string]*gobreaker.CircuitBreaker)
}
