package providers

import (
	"context"
	"strings"

	"github.com/promptops/modelrouter/pkg/registry"
	"github.com/promptops/modelrouter/pkg/router/core"
	"github.com/promptops/modelrouter/pkg/tokens"
)

// Adapter is the uniform interface wrapping one vendor's API.
// Returned text is untrusted output: it is never executed or parsed
// for instructions by this package or its callers.
type Adapter interface {
	// Invoke sends the prompt to the vendor endpoint and normalizes
	// the response. Failures classify as TransientError,
	// PermanentError, or TimeoutError.
	Invoke(ctx context.Context, mc registry.ModelConfig, req core.InvocationRequest) (core.Completion, error)
}

// AdapterFactory creates adapter instances per model configuration
type AdapterFactory interface {
	CreateAdapter(mc registry.ModelConfig) (Adapter, error)
}

// BaseAdapter provides common functionality for all adapters
type BaseAdapter struct {
	tokenRegistry *tokens.EncoderRegistry
}

// NewBaseAdapter creates a new base adapter
func NewBaseAdapter() *BaseAdapter {
	return &BaseAdapter{
		tokenRegistry: tokens.GetDefaultRegistry(),
	}
}

// EstimateUsage estimates token usage when not provided by the vendor
func (b *BaseAdapter) EstimateUsage(modelID, prompt, responseText string) core.Usage {
	promptTokens, err := b.tokenRegistry.CountTokens(modelID, prompt)
	if err != nil {
		promptTokens = len(prompt) / 4
	}

	completionTokens, err := b.tokenRegistry.CountTokens(modelID, responseText)
	if err != nil {
		completionTokens = len(responseText) / 4
	}
	if completionTokens < 1 && responseText != "" {
		completionTokens = 1
	}

	return core.Usage{
		PromptTokens:     promptTokens,
		CompletionTokens: completionTokens,
		TotalTokens:      promptTokens + completionTokens,
	}
}

// apiModelName strips the provider prefix from a registry model ID:
// "openai:gpt-4o-mini" becomes "gpt-4o-mini"
func apiModelName(modelID string) string {
	if _, name, found := strings.Cut(modelID, ":"); found {
		return name
	}
	return modelID
}
