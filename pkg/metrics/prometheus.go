package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the router
type Metrics struct {
	// Request metrics
	RequestsTotal    *prometheus.CounterVec
	LatencyHistogram *prometheus.HistogramVec

	// Token metrics
	TokensInputTotal  *prometheus.CounterVec
	TokensOutputTotal *prometheus.CounterVec

	// Cost metrics
	CostTotal *prometheus.CounterVec

	// Cache metrics
	CacheHitsTotal   prometheus.Counter
	CacheMissesTotal prometheus.Counter

	// Retry and fallback metrics
	RetriesTotal   *prometheus.CounterVec
	FallbacksTotal *prometheus.CounterVec

	// Circuit breaker metrics
	CircuitStateTotal *prometheus.CounterVec
}

// New creates a new Metrics instance registered on the default registry
func New() *Metrics {
	return &Metrics{
		RequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "modelrouter_requests_total",
				Help: "Total number of model invocations",
			},
			[]string{"provider", "model", "status"},
		),

		LatencyHistogram: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "modelrouter_latency_seconds",
				Help:    "Model invocation latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"provider", "model"},
		),

		TokensInputTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "modelrouter_tokens_input_total",
				Help: "Total number of input tokens processed",
			},
			[]string{"provider", "model"},
		),

		TokensOutputTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "modelrouter_tokens_output_total",
				Help: "Total number of output tokens generated",
			},
			[]string{"provider", "model"},
		),

		CostTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "modelrouter_cost_total",
				Help: "Total cost of model invocations",
			},
			[]string{"provider", "model", "currency"},
		),

		CacheHitsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "modelrouter_cache_hits_total",
				Help: "Total number of cache hits",
			},
		),

		CacheMissesTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "modelrouter_cache_misses_total",
				Help: "Total number of cache misses",
			},
		),

		RetriesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "modelrouter_retries_total",
				Help: "Total number of retries",
			},
			[]string{"provider", "model", "reason"},
		),

		FallbacksTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "modelrouter_fallbacks_total",
				Help: "Total number of fallback cascades past a model",
			},
			[]string{"provider", "model"},
		),

		CircuitStateTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "modelrouter_circuit_transitions_total",
				Help: "Total number of circuit breaker state transitions",
			},
			[]string{"model", "state"},
		),
	}
}

// RecordRequest records a request metric
func (m *Metrics) RecordRequest(provider, model, status string) {
	m.RequestsTotal.WithLabelValues(provider, model, status).Inc()
}

// RecordLatency records a latency metric
func (m *Metrics) RecordLatency(provider, model string, duration time.Duration) {
	m.LatencyHistogram.WithLabelValues(provider, model).Observe(duration.Seconds())
}

// RecordTokens records token metrics
func (m *Metrics) RecordTokens(provider, model string, inputTokens, outputTokens int) {
	if inputTokens > 0 {
		m.TokensInputTotal.WithLabelValues(provider, model).Add(float64(inputTokens))
	}
	if outputTokens > 0 {
		m.TokensOutputTotal.WithLabelValues(provider, model).Add(float64(outputTokens))
	}
}

// RecordCost records a cost metric
func (m *Metrics) RecordCost(provider, model, currency string, cost float64) {
	m.CostTotal.WithLabelValues(provider, model, currency).Add(cost)
}

// RecordCacheHit records a cache hit
func (m *Metrics) RecordCacheHit() {
	m.CacheHitsTotal.Inc()
}

// RecordCacheMiss records a cache miss
func (m *Metrics) RecordCacheMiss() {
	m.CacheMissesTotal.Inc()
}

// RecordRetry records a retry
func (m *Metrics) RecordRetry(provider, model, reason string) {
	m.RetriesTotal.WithLabelValues(provider, model, reason).Inc()
}

// RecordFallback records a cascade past a failed model
func (m *Metrics) RecordFallback(provider, model string) {
	m.FallbacksTotal.WithLabelValues(provider, model).Inc()
}

// RecordCircuitState records a circuit breaker transition
func (m *Metrics) RecordCircuitState(model, state string) {
	m.CircuitStateTotal.WithLabelValues(model, state).Inc()
}
