package providers

import (
	"context"
	"testing"

	"github.com/promptops/modelrouter/pkg/registry"
	"github.com/promptops/modelrouter/pkg/router/core"
)

func TestAPIModelName(t *testing.T) {
	tests := []struct {
		modelID  string
		expected string
	}{
		{"openai:gpt-4o-mini", "gpt-4o-mini"},
		{"anthropic:claude-3-5-sonnet-20241022", "claude-3-5-sonnet-20241022"},
		{"openrouter:meta-llama/llama-3.1-70b-instruct", "meta-llama/llama-3.1-70b-instruct"},
		{"bare-model", "bare-model"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := apiModelName(tt.modelID); got != tt.expected {
			t.Errorf("apiModelName(%q): expected %q, got %q", tt.modelID, tt.expected, got)
		}
	}
}

func TestEstimateUsage(t *testing.T) {
	b := NewBaseAdapter()

	usage := b.EstimateUsage("unknown:model", "a prompt of some length", "a short reply")

	if usage.PromptTokens == 0 {
		t.Error("Expected nonzero prompt tokens")
	}
	if usage.CompletionTokens == 0 {
		t.Error("Expected nonzero completion tokens")
	}
	if usage.TotalTokens != usage.PromptTokens+usage.CompletionTokens {
		t.Errorf("Total %d does not match prompt %d + completion %d",
			usage.TotalTokens, usage.PromptTokens, usage.CompletionTokens)
	}
}

func TestEstimateUsageEmptyResponse(t *testing.T) {
	b := NewBaseAdapter()

	usage := b.EstimateUsage("unknown:model", "prompt", "")
	if usage.CompletionTokens != 0 {
		t.Errorf("Expected zero completion tokens for empty response, got %d", usage.CompletionTokens)
	}
}

func TestMockAdapterScriptConsumption(t *testing.T) {
	adapter := NewMockAdapter()

	mc := registry.ModelConfig{ID: "test:model", Provider: "test"}
	adapter.Script("test:model",
		MockOutcome{Text: "first"},
		MockOutcome{Text: "second"},
	)

	req := core.InvocationRequest{Prompt: "question"}

	first, err := adapter.Invoke(context.Background(), mc, req)
	if err != nil || first.Text != "first" {
		t.Errorf("Expected first outcome, got %q err=%v", first.Text, err)
	}

	second, err := adapter.Invoke(context.Background(), mc, req)
	if err != nil || second.Text != "second" {
		t.Errorf("Expected second outcome, got %q err=%v", second.Text, err)
	}

	// The last scripted outcome repeats.
	third, err := adapter.Invoke(context.Background(), mc, req)
	if err != nil || third.Text != "second" {
		t.Errorf("Expected repeated last outcome, got %q err=%v", third.Text, err)
	}

	if adapter.Calls("test:model") != 3 {
		t.Errorf("Expected 3 recorded calls, got %d", adapter.Calls("test:model"))
	}
}

func TestFactoryCachesAdapters(t *testing.T) {
	f := NewAdapterFactory()

	mc := registry.ModelConfig{
		ID:       "ollama:llama3.2",
		Provider: "ollama",
		BaseURL:  "http://localhost:11434",
	}

	first, err := f.CreateAdapter(mc)
	if err != nil {
		t.Fatalf("CreateAdapter failed: %v", err)
	}
	second, err := f.CreateAdapter(mc)
	if err != nil {
		t.Fatalf("CreateAdapter failed: %v", err)
	}

	if first != second {
		t.Error("Expected the factory to reuse the adapter per model")
	}
}

func TestFactoryUnsupportedProvider(t *testing.T) {
	f := NewAdapterFactory()

	_, err := f.CreateAdapter(registry.ModelConfig{ID: "x:y", Provider: "teleport"})
	if err == nil {
		t.Error("Expected error for unsupported provider")
	}
}

func TestFactorySupportedProviders(t *testing.T) {
	factory := NewAdapterFactory()

	supported := make(map[string]bool)
	for _, p := range factory.GetSupportedProviders() {
		supported[p] = true
	}

	for _, p := range []string{"openai", "anthropic", "ollama", "openrouter"} {
		if !supported[p] {
			t.Errorf("Expected provider %s to be supported", p)
		}
	}
}
