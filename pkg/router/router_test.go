package router

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/promptops/modelrouter/pkg/limiter"
	"github.com/promptops/modelrouter/pkg/logging"
	"github.com/promptops/modelrouter/pkg/providers"
	"github.com/promptops/modelrouter/pkg/registry"
	"github.com/promptops/modelrouter/pkg/router/core"
)

func testRegistry(t *testing.T) *registry.Registry {
	t.Helper()

	reg, err := registry.NewRegistry([]registry.ModelConfig{
		{
			ID:       "openai:gpt-4o-mini",
			Provider: "openai",
			Pricing: registry.Pricing{
				Currency:      "USD",
				InputPerMTok:  0.15,
				OutputPerMTok: 0.60,
			},
			Capabilities:  []registry.Capability{registry.CapabilityFunctionCalling, registry.CapabilityJSONMode},
			ContextWindow: 128000,
		},
		{
			ID:       "openai:gpt-4o",
			Provider: "openai",
			Pricing: registry.Pricing{
				Currency:      "USD",
				InputPerMTok:  2.50,
				OutputPerMTok: 10.00,
			},
			Capabilities:  []registry.Capability{registry.CapabilityVision, registry.CapabilityFunctionCalling, registry.CapabilityJSONMode},
			ContextWindow: 128000,
		},
		{
			ID:       "anthropic:claude-3-5-sonnet",
			Provider: "anthropic",
			Pricing: registry.Pricing{
				Currency:      "USD",
				InputPerMTok:  3.00,
				OutputPerMTok: 15.00,
			},
			Capabilities:  []registry.Capability{registry.CapabilityVision, registry.CapabilityFunctionCalling},
			ContextWindow: 200000,
		},
		{
			ID:       "legacy:old-model",
			Provider: "openai",
			Pricing: registry.Pricing{
				Currency:      "USD",
				InputPerMTok:  0.01,
				OutputPerMTok: 0.01,
			},
			Capabilities: []registry.Capability{registry.CapabilityFunctionCalling},
			Deprecated:   true,
		},
	})
	if err != nil {
		t.Fatalf("Failed to build registry: %v", err)
	}
	return reg
}

func testConfig() *Config {
	return &Config{
		Retry: &limiter.RetryConfig{
			MaxAttempts:   3,
			BaseDelay:     time.Millisecond,
			MaxDelay:      10 * time.Millisecond,
			BackoffFactor: 2.0,
			Jitter:        false,
		},
		AttemptTimeout:           time.Second,
		TypicalOutputTokens:      500,
		MaxConcurrentPerProvider: 10,
		EnableRateLimiter:        false,
		EnableCircuitBreaker:     false,
	}
}

func newTestRouter(t *testing.T) (*Router, *providers.MockFactory) {
	t.Helper()

	factory := providers.NewMockFactory()
	r := New(testRegistry(t), factory, testConfig(), logging.NewNop())
	return r, factory
}

func TestBuildChainOrdersByEstimatedCost(t *testing.T) {
	r, _ := newTestRouter(t)

	req := core.InvocationRequest{
		Prompt:               "hello",
		RequiredCapabilities: []string{"function_calling"},
	}
	chain := r.buildChain(req, []registry.Capability{registry.CapabilityFunctionCalling})

	ids := chain.ModelIDs()
	expected := []string{"openai:gpt-4o-mini", "openai:gpt-4o", "anthropic:claude-3-5-sonnet"}
	if len(ids) != len(expected) {
		t.Fatalf("Expected chain %v, got %v", expected, ids)
	}
	for i := range expected {
		if ids[i] != expected[i] {
			t.Errorf("Position %d: expected %s, got %s", i, expected[i], ids[i])
		}
	}
}

func TestBuildChainExcludesDeprecated(t *testing.T) {
	r, _ := newTestRouter(t)

	chain := r.buildChain(core.InvocationRequest{Prompt: "hello"}, nil)
	for _, id := range chain.ModelIDs() {
		if id == "legacy:old-model" {
			t.Error("Deprecated model must not appear in the chain")
		}
	}
}

func TestBuildChainFiltersByCapability(t *testing.T) {
	r, _ := newTestRouter(t)

	chain := r.buildChain(
		core.InvocationRequest{Prompt: "describe this image"},
		[]registry.Capability{registry.CapabilityVision},
	)

	ids := chain.ModelIDs()
	expected := []string{"openai:gpt-4o", "anthropic:claude-3-5-sonnet"}
	if len(ids) != len(expected) {
		t.Fatalf("Expected chain %v, got %v", expected, ids)
	}
}

func TestBuildChainCostCeiling(t *testing.T) {
	r, _ := newTestRouter(t)

	// Only the mini model's estimate fits under this ceiling.
	maxCost := 0.001
	chain := r.buildChain(core.InvocationRequest{Prompt: "hello", MaxCost: &maxCost}, nil)

	ids := chain.ModelIDs()
	if len(ids) != 1 || ids[0] != "openai:gpt-4o-mini" {
		t.Errorf("Expected only the mini model under the ceiling, got %v", ids)
	}
}

func TestBuildChainStableTieBreak(t *testing.T) {
	reg, err := registry.NewRegistry([]registry.ModelConfig{
		{ID: "a:first", Provider: "a", Pricing: registry.Pricing{Currency: "USD", InputPerMTok: 1.0, OutputPerMTok: 1.0}},
		{ID: "b:second", Provider: "b", Pricing: registry.Pricing{Currency: "USD", InputPerMTok: 1.0, OutputPerMTok: 1.0}},
		{ID: "c:third", Provider: "c", Pricing: registry.Pricing{Currency: "USD", InputPerMTok: 1.0, OutputPerMTok: 1.0}},
	})
	if err != nil {
		t.Fatalf("Failed to build registry: %v", err)
	}

	r := New(reg, providers.NewMockFactory(), testConfig(), logging.NewNop())

	chain := r.buildChain(core.InvocationRequest{Prompt: "hello"}, nil)
	ids := chain.ModelIDs()

	// Equal estimates keep the registry's declared order.
	expected := []string{"a:first", "b:second", "c:third"}
	for i := range expected {
		if ids[i] != expected[i] {
			t.Fatalf("Expected declared order %v, got %v", expected, ids)
		}
	}
}

func TestBuildChainPreferredPromotion(t *testing.T) {
	r, _ := newTestRouter(t)

	req := core.InvocationRequest{
		Prompt:           "hello",
		PreferredModelID: "anthropic:claude-3-5-sonnet",
	}
	chain := r.buildChain(req, nil)

	ids := chain.ModelIDs()
	if ids[0] != "anthropic:claude-3-5-sonnet" {
		t.Errorf("Expected preferred model at chain head, got %v", ids)
	}
	if len(ids) != 3 {
		t.Errorf("Promotion must not drop candidates, got %v", ids)
	}
}

func TestBuildChainIneligiblePreferredNotPromoted(t *testing.T) {
	r, _ := newTestRouter(t)

	// The preferred model lacks the vision capability, so it stays out
	// of the chain entirely.
	req := core.InvocationRequest{
		Prompt:           "hello",
		PreferredModelID: "openai:gpt-4o-mini",
	}
	chain := r.buildChain(req, []registry.Capability{registry.CapabilityVision})

	for _, id := range chain.ModelIDs() {
		if id == "openai:gpt-4o-mini" {
			t.Error("Ineligible preferred model must not enter the chain")
		}
	}
}

func TestInvokeSuccess(t *testing.T) {
	r, factory := newTestRouter(t)

	factory.Adapter.Script("openai:gpt-4o-mini", providers.MockOutcome{
		Text:  "the answer",
		Usage: core.Usage{PromptTokens: 1000, CompletionTokens: 500, TotalTokens: 1500},
	})

	result, err := r.Invoke(context.Background(), core.InvocationRequest{Prompt: "question"})
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}

	if result.ModelID != "openai:gpt-4o-mini" {
		t.Errorf("Expected cheapest model selected, got %s", result.ModelID)
	}
	if result.OutputText != "the answer" {
		t.Errorf("Expected output text carried through, got %q", result.OutputText)
	}
	if result.Attempt != 1 {
		t.Errorf("Expected 1 attempt, got %d", result.Attempt)
	}

	// 1000 * 0.15/1e6 + 500 * 0.60/1e6
	expectedCost := 0.00045
	if result.Cost != expectedCost {
		t.Errorf("Expected cost %.6f, got %.6f", expectedCost, result.Cost)
	}
	if result.Currency != "USD" {
		t.Errorf("Expected currency USD, got %s", result.Currency)
	}
}

func TestInvokeNoEligibleModel(t *testing.T) {
	r, factory := newTestRouter(t)

	maxCost := 0.0000001
	_, err := r.Invoke(context.Background(), core.InvocationRequest{
		Prompt:  "question",
		MaxCost: &maxCost,
	})

	var noEligible *NoEligibleModelError
	if !errors.As(err, &noEligible) {
		t.Fatalf("Expected NoEligibleModelError, got %v", err)
	}
	if factory.Adapter.TotalCalls() != 0 {
		t.Errorf("Expected zero network calls, got %d", factory.Adapter.TotalCalls())
	}
}

func TestInvokeUnknownCapability(t *testing.T) {
	r, factory := newTestRouter(t)

	_, err := r.Invoke(context.Background(), core.InvocationRequest{
		Prompt:               "question",
		RequiredCapabilities: []string{"teleportation"},
	})

	var noEligible *NoEligibleModelError
	if !errors.As(err, &noEligible) {
		t.Fatalf("Expected NoEligibleModelError, got %v", err)
	}
	if factory.Adapter.TotalCalls() != 0 {
		t.Errorf("Expected zero network calls, got %d", factory.Adapter.TotalCalls())
	}
}

func TestInvokeUnknownPreferredModel(t *testing.T) {
	r, _ := newTestRouter(t)

	_, err := r.Invoke(context.Background(), core.InvocationRequest{
		Prompt:           "question",
		PreferredModelID: "ghost:model",
	})

	var notFound *registry.NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("Expected NotFoundError, got %v", err)
	}
}

func TestInvokeRetriesTransientThenSucceeds(t *testing.T) {
	r, factory := newTestRouter(t)

	transient := &providers.TransientError{Provider: "openai", Model: "openai:gpt-4o-mini", StatusCode: 429, Err: errors.New("rate limited")}
	factory.Adapter.Script("openai:gpt-4o-mini",
		providers.MockOutcome{Err: transient},
		providers.MockOutcome{Err: transient},
		providers.MockOutcome{
			Text:  "eventually",
			Usage: core.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
		},
	)

	result, err := r.Invoke(context.Background(), core.InvocationRequest{Prompt: "question"})
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}

	if result.ModelID != "openai:gpt-4o-mini" {
		t.Errorf("Expected the first model to recover, got %s", result.ModelID)
	}
	if result.Attempt != 3 {
		t.Errorf("Expected attempt 3, got %d", result.Attempt)
	}
	if factory.Adapter.Calls("openai:gpt-4o-mini") != 3 {
		t.Errorf("Expected 3 adapter calls, got %d", factory.Adapter.Calls("openai:gpt-4o-mini"))
	}
}

func TestInvokeCascadesOnPermanentFailure(t *testing.T) {
	r, factory := newTestRouter(t)

	permanent := &providers.PermanentError{Provider: "openai", Model: "openai:gpt-4o-mini", StatusCode: 400, Err: errors.New("bad request")}
	factory.Adapter.Script("openai:gpt-4o-mini", providers.MockOutcome{Err: permanent})
	factory.Adapter.Script("openai:gpt-4o", providers.MockOutcome{
		Text:  "from the fallback",
		Usage: core.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
	})

	result, err := r.Invoke(context.Background(), core.InvocationRequest{Prompt: "question"})
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}

	if result.ModelID != "openai:gpt-4o" {
		t.Errorf("Expected fallback to the next model, got %s", result.ModelID)
	}
	// Permanent failures must not consume the retry budget.
	if factory.Adapter.Calls("openai:gpt-4o-mini") != 1 {
		t.Errorf("Expected 1 call to the failed model, got %d", factory.Adapter.Calls("openai:gpt-4o-mini"))
	}
}

func TestInvokeFallbackExhausted(t *testing.T) {
	r, factory := newTestRouter(t)

	for _, id := range []string{"openai:gpt-4o-mini", "openai:gpt-4o", "anthropic:claude-3-5-sonnet"} {
		factory.Adapter.Script(id, providers.MockOutcome{
			Err: &providers.PermanentError{Provider: "p", Model: id, StatusCode: 401, Err: errors.New("denied")},
		})
	}

	_, err := r.Invoke(context.Background(), core.InvocationRequest{Prompt: "question"})

	var exhausted *FallbackExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("Expected FallbackExhaustedError, got %v", err)
	}
	if len(exhausted.Failures) != 3 {
		t.Fatalf("Expected 3 recorded failures, got %d", len(exhausted.Failures))
	}

	// Every candidate tried exactly once, in cost order.
	expected := []string{"openai:gpt-4o-mini", "openai:gpt-4o", "anthropic:claude-3-5-sonnet"}
	for i, failure := range exhausted.Failures {
		if failure.ModelID != expected[i] {
			t.Errorf("Failure %d: expected %s, got %s", i, expected[i], failure.ModelID)
		}
		if failure.Attempts != 1 {
			t.Errorf("Failure %d: expected 1 attempt, got %d", i, failure.Attempts)
		}
		if factory.Adapter.Calls(failure.ModelID) != 1 {
			t.Errorf("Model %s called %d times, expected once", failure.ModelID, factory.Adapter.Calls(failure.ModelID))
		}
	}
}

func TestInvokePreferredModelTriedFirst(t *testing.T) {
	r, factory := newTestRouter(t)

	factory.Adapter.Script("anthropic:claude-3-5-sonnet", providers.MockOutcome{
		Text:  "preferred answer",
		Usage: core.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
	})

	result, err := r.Invoke(context.Background(), core.InvocationRequest{
		Prompt:           "question",
		PreferredModelID: "anthropic:claude-3-5-sonnet",
	})
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}

	if result.ModelID != "anthropic:claude-3-5-sonnet" {
		t.Errorf("Expected the preferred model, got %s", result.ModelID)
	}
	if factory.Adapter.Calls("openai:gpt-4o-mini") != 0 {
		t.Error("Cheaper models must not be tried before the preferred model")
	}
}

func TestInvokeCancelledContext(t *testing.T) {
	r, factory := newTestRouter(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Invoke(ctx, core.InvocationRequest{Prompt: "question"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
	if factory.Adapter.TotalCalls() != 0 {
		t.Errorf("Expected no adapter calls after cancellation, got %d", factory.Adapter.TotalCalls())
	}
}

func TestInvokeCircuitBreakerSkipsOpenModel(t *testing.T) {
	config := testConfig()
	config.EnableCircuitBreaker = true

	factory := providers.NewMockFactory()
	r := New(testRegistry(t), factory, config, logging.NewNop())

	permanent := &providers.PermanentError{Provider: "openai", Model: "openai:gpt-4o-mini", StatusCode: 500, Err: errors.New("boom")}
	factory.Adapter.Script("openai:gpt-4o-mini", providers.MockOutcome{Err: permanent})
	factory.Adapter.Script("openai:gpt-4o", providers.MockOutcome{
		Text:  "served elsewhere",
		Usage: core.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
	})

	// Drive the first model's breaker open.
	for i := 0; i < 6; i++ {
		r.Invoke(context.Background(), core.InvocationRequest{Prompt: "question"})
	}

	before := factory.Adapter.Calls("openai:gpt-4o-mini")
	result, err := r.Invoke(context.Background(), core.InvocationRequest{Prompt: "question"})
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	if result.ModelID != "openai:gpt-4o" {
		t.Errorf("Expected the fallback model, got %s", result.ModelID)
	}
	if factory.Adapter.Calls("openai:gpt-4o-mini") != before {
		t.Error("Open-breaker model must be skipped without an adapter call")
	}
}

func TestProtectionStats(t *testing.T) {
	r, _ := newTestRouter(t)

	stats := r.ProtectionStats("openai:gpt-4o-mini")
	if stats["model_id"] != "openai:gpt-4o-mini" {
		t.Errorf("Expected model_id in stats, got %v", stats)
	}

	missing := r.ProtectionStats("ghost:model")
	if missing["error"] == nil {
		t.Error("Expected an error entry for an unknown model")
	}
}
