package router

import (
	"context"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/sync/semaphore"

	"github.com/promptops/modelrouter/pkg/accounting"
	"github.com/promptops/modelrouter/pkg/capability"
	"github.com/promptops/modelrouter/pkg/cost"
	"github.com/promptops/modelrouter/pkg/limiter"
	"github.com/promptops/modelrouter/pkg/logging"
	"github.com/promptops/modelrouter/pkg/metrics"
	"github.com/promptops/modelrouter/pkg/providers"
	"github.com/promptops/modelrouter/pkg/registry"
	"github.com/promptops/modelrouter/pkg/router/core"
	"github.com/promptops/modelrouter/pkg/tokens"
	"github.com/promptops/modelrouter/pkg/tracing"
)

// Config holds router configuration
type Config struct {
	Retry                    *limiter.RetryConfig
	AttemptTimeout           time.Duration
	TypicalOutputTokens      int
	MaxConcurrentPerProvider int64
	EnableRateLimiter        bool
	EnableCircuitBreaker     bool
}

// DefaultConfig returns the default router configuration
func DefaultConfig() *Config {
	return &Config{
		Retry:                    limiter.DefaultRetryConfig(),
		AttemptTimeout:           60 * time.Second,
		TypicalOutputTokens:      500,
		MaxConcurrentPerProvider: 10,
		EnableRateLimiter:        true,
		EnableCircuitBreaker:     true,
	}
}

// Router orchestrates model selection, invocation, and cascading
// fallback. Safe for concurrent use: the registry is read-only after
// load and per-request state stays on the stack.
type Router struct {
	registry    *registry.Registry
	calculator  *cost.Calculator
	validator   *capability.Validator
	factory     providers.AdapterFactory
	retry       *limiter.RetryManager
	rateLimiter *limiter.RateLimiter
	breakers    *limiter.CircuitBreakerManager
	tokens      *tokens.EncoderRegistry
	config      *Config
	logger      *logging.Logger

	metrics    *metrics.Metrics
	tracer     *tracing.Tracer
	accounting *accounting.Manager

	semMu sync.Mutex
	sems  map[string]*semaphore.Weighted
}

// New creates a new router
func New(reg *registry.Registry, factory providers.AdapterFactory, config *Config, logger *logging.Logger) *Router {
	if config == nil {
		config = DefaultConfig()
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	r := &Router{
		registry:    reg,
		calculator:  cost.NewCalculator(reg),
		validator:   capability.NewValidator(reg),
		factory:     factory,
		retry:       limiter.NewRetryManager(config.Retry),
		rateLimiter: limiter.NewRateLimiter(),
		tokens:      tokens.GetDefaultRegistry(),
		config:      config,
		logger:      logger,
		sems:        make(map[string]*semaphore.Weighted),
	}
	r.breakers = limiter.NewCircuitBreakerManager(r.onBreakerStateChange)
	return r
}

// AttachMetrics wires prometheus metrics into the router
func (r *Router) AttachMetrics(m *metrics.Metrics) { r.metrics = m }

// AttachTracer wires tracing into the router
func (r *Router) AttachTracer(t *tracing.Tracer) { r.tracer = t }

// AttachAccounting wires the cost ledger into the router
func (r *Router) AttachAccounting(a *accounting.Manager) { r.accounting = a }

// Invoke selects a model for the request, calls its adapter, and
// cascades to the next candidate on failure. Errors:
// NoEligibleModelError before any network call when no model
// qualifies, FallbackExhaustedError when every candidate failed.
func (r *Router) Invoke(ctx context.Context, req core.InvocationRequest) (*core.InvocationResult, error) {
	required := make([]registry.Capability, len(req.RequiredCapabilities))
	for i, c := range req.RequiredCapabilities {
		required[i] = registry.Capability(c)
	}

	// An unknown preferred model is a caller mistake, surfaced before
	// chain construction. A known but ineligible one is only a hint:
	// it stays out of the chain without failing the request.
	if req.PreferredModelID != "" {
		if _, err := r.registry.Get(req.PreferredModelID); err != nil {
			return nil, err
		}
		if !r.validator.Supports(req.PreferredModelID, required) {
			r.logger.Debug("preferred model lacks required capabilities",
				"model", req.PreferredModelID)
		}
	}

	if r.tracer != nil {
		var span tracing.Span
		ctx, span = r.tracer.StartInvokeSpan(ctx, req.Caller, req.PreferredModelID)
		defer span.End()
	}

	chain := r.buildChain(req, required)
	if len(chain) == 0 {
		return nil, &NoEligibleModelError{RequiredCapabilities: required, MaxCost: req.MaxCost}
	}

	r.logger.Debug("fallback chain built", "models", chain.ModelIDs())

	var failures []ModelFailure
	for i, mc := range chain {
		if err := ctx.Err(); err != nil {
			// Caller cancelled: stop cascading, discard partial state.
			return nil, err
		}

		nextModel := ""
		if i+1 < len(chain) {
			nextModel = chain[i+1].ID
		}

		if r.config.EnableCircuitBreaker && r.breakers.IsOpen(mc.ID) {
			r.logger.LogFallback(mc.ID, nextModel, 0, "circuit breaker open")
			failures = append(failures, ModelFailure{ModelID: mc.ID, Attempts: 0, Err: gobreaker.ErrOpenState})
			continue
		}

		result, attempts, err := r.invokeModel(ctx, mc, req)
		if err == nil {
			return result, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		r.logger.LogFallback(mc.ID, nextModel, attempts, err.Error())
		if r.metrics != nil {
			r.metrics.RecordFallback(mc.Provider, mc.ID)
		}
		failures = append(failures, ModelFailure{ModelID: mc.ID, Attempts: attempts, Err: err})
	}

	return nil, &FallbackExhaustedError{Failures: failures}
}

// invokeModel runs the full attempt budget for one model and converts
// a successful completion into an InvocationResult
func (r *Router) invokeModel(ctx context.Context, mc registry.ModelConfig, req core.InvocationRequest) (*core.InvocationResult, int, error) {
	adapter, err := r.factory.CreateAdapter(mc)
	if err != nil {
		return nil, 0, err
	}

	if r.config.EnableRateLimiter {
		if err := r.rateLimiter.Wait(ctx, mc.ID, mc); err != nil {
			return nil, 0, err
		}
	}

	start := time.Now()
	attempt := 0
	resultAny, attempts, err := r.retry.Execute(ctx, func(ctx context.Context) (interface{}, error) {
		attempt++
		return r.invokeOnce(ctx, adapter, mc, req, attempt)
	})
	latency := time.Since(start)

	if err != nil {
		if r.metrics != nil {
			r.metrics.RecordRequest(mc.Provider, mc.ID, "error")
		}
		return nil, attempts, err
	}

	completion := resultAny.(core.Completion)
	_, _, totalCost := cost.CalcCost(completion.Usage, mc.Pricing)

	result := &core.InvocationResult{
		ModelID:      mc.ID,
		Provider:     mc.Provider,
		OutputText:   completion.Text,
		Usage:        completion.Usage,
		Cost:         totalCost,
		Currency:     mc.Pricing.Currency,
		LatencyMS:    latency.Milliseconds(),
		Attempt:      attempts,
		FinishReason: completion.FinishReason,
	}

	r.record(ctx, mc, req, result, latency)
	return result, attempts, nil
}

// invokeOnce performs a single adapter call with the per-attempt
// deadline, the per-provider concurrency cap, and circuit breaker
// accounting
func (r *Router) invokeOnce(ctx context.Context, adapter providers.Adapter, mc registry.ModelConfig, req core.InvocationRequest, attempt int) (core.Completion, error) {
	if err := r.acquireSlot(ctx, mc.Provider); err != nil {
		return core.Completion{}, err
	}
	defer r.releaseSlot(mc.Provider)

	if r.tracer != nil {
		var span tracing.Span
		ctx, span = r.tracer.StartAttemptSpan(ctx, mc.Provider, mc.ID, attempt)
		defer span.End()
	}

	call := func() (interface{}, error) {
		attemptCtx, cancel := context.WithTimeout(ctx, r.config.AttemptTimeout)
		defer cancel()

		completion, err := adapter.Invoke(attemptCtx, mc, req)
		if err != nil {
			// A deadline hit on the attempt context while the caller's
			// context is still alive is this call timing out, whatever
			// shape the adapter surfaced it in.
			if attemptCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil && !providers.IsTimeout(err) {
				err = &providers.TimeoutError{Provider: mc.Provider, Model: mc.ID, Err: err}
			}
			return nil, err
		}
		return completion, nil
	}

	var resultAny interface{}
	var err error
	if r.config.EnableCircuitBreaker {
		resultAny, err = r.breakers.Execute(mc.ID, call)
	} else {
		resultAny, err = call()
	}
	if err != nil {
		if providers.IsTransient(err) || providers.IsTimeout(err) {
			r.logger.LogRetry(mc.Provider, mc.ID, errorReason(err))
			if r.metrics != nil {
				r.metrics.RecordRetry(mc.Provider, mc.ID, errorReason(err))
			}
		}
		return core.Completion{}, err
	}

	return resultAny.(core.Completion), nil
}

// record emits observability and accounting for a successful invocation
func (r *Router) record(ctx context.Context, mc registry.ModelConfig, req core.InvocationRequest, result *core.InvocationResult, latency time.Duration) {
	r.logger.LogInvocation(result.Provider, result.ModelID, "success",
		latency, result.Usage.TotalTokens, result.Cost, result.Attempt)

	if r.metrics != nil {
		r.metrics.RecordRequest(mc.Provider, mc.ID, "success")
		r.metrics.RecordLatency(mc.Provider, mc.ID, latency)
		r.metrics.RecordTokens(mc.Provider, mc.ID, result.Usage.PromptTokens, result.Usage.CompletionTokens)
		r.metrics.RecordCost(mc.Provider, mc.ID, result.Currency, result.Cost)
	}

	if r.accounting != nil {
		inputCost, outputCost, totalCost := cost.CalcCost(result.Usage, mc.Pricing)
		record := accounting.CostRecord{
			Timestamp:        time.Now().UTC(),
			Caller:           req.Caller,
			Provider:         mc.Provider,
			Model:            mc.ID,
			PromptTokens:     result.Usage.PromptTokens,
			CompletionTokens: result.Usage.CompletionTokens,
			Currency:         result.Currency,
			CostInput:        inputCost,
			CostOutput:       outputCost,
			CostTotal:        totalCost,
		}
		if err := r.accounting.RecordCost(record); err != nil {
			r.logger.Warn("failed to record cost", "error", err)
		}
	}
}

// acquireSlot bounds concurrent outbound calls per provider
func (r *Router) acquireSlot(ctx context.Context, provider string) error {
	if r.config.MaxConcurrentPerProvider <= 0 {
		return nil
	}

	r.semMu.Lock()
	sem, ok := r.sems[provider]
	if !ok {
		sem = semaphore.NewWeighted(r.config.MaxConcurrentPerProvider)
		r.sems[provider] = sem
	}
	r.semMu.Unlock()

	return sem.Acquire(ctx, 1)
}

// releaseSlot releases a provider concurrency slot
func (r *Router) releaseSlot(provider string) {
	if r.config.MaxConcurrentPerProvider <= 0 {
		return
	}

	r.semMu.Lock()
	sem := r.sems[provider]
	r.semMu.Unlock()

	if sem != nil {
		sem.Release(1)
	}
}

// onBreakerStateChange records circuit breaker transitions
func (r *Router) onBreakerStateChange(modelID string, from, to gobreaker.State) {
	r.logger.LogCircuitBreaker(modelID, from.String(), to.String())
	if r.metrics != nil {
		r.metrics.RecordCircuitState(modelID, to.String())
	}
}

// errorReason labels an error for metrics
func errorReason(err error) string {
	switch {
	case providers.IsTimeout(err):
		return "timeout"
	case providers.IsTransient(err):
		return "transient"
	case providers.IsPermanent(err):
		return "permanent"
	default:
		return "other"
	}
}

// Registry exposes the read-only registry for API listings
func (r *Router) Registry() *registry.Registry {
	return r.registry
}

// Calculator exposes the cost calculator
func (r *Router) Calculator() *cost.Calculator {
	return r.calculator
}

// ProtectionStats returns rate limiter and circuit breaker statistics
// for a model
func (r *Router) ProtectionStats(modelID string) map[string]interface{} {
	model := r.registry.FindModel(modelID)
	if model == nil {
		return map[string]interface{}{"error": "model not found"}
	}
	return map[string]interface{}{
		"model_id":        modelID,
		"rate_limiter":    r.rateLimiter.GetStats(modelID, *model),
		"circuit_breaker": r.breakers.GetStats(modelID),
	}
}
