package providers

import (
	"fmt"
	"sync"

	"github.com/promptops/modelrouter/pkg/registry"
)

// DefaultAdapterFactory implements AdapterFactory with per-model caching
type DefaultAdapterFactory struct {
	mu       sync.Mutex
	adapters map[string]Adapter
}

// NewAdapterFactory creates a new adapter factory
func NewAdapterFactory() *DefaultAdapterFactory {
	return &DefaultAdapterFactory{
		adapters: make(map[string]Adapter),
	}
}

// CreateAdapter creates (or reuses) an adapter for a model configuration
func (f *DefaultAdapterFactory) CreateAdapter(mc registry.ModelConfig) (Adapter, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if adapter, exists := f.adapters[mc.ID]; exists {
		return adapter, nil
	}

	adapter, err := f.buildAdapter(mc)
	if err != nil {
		return nil, err
	}

	f.adapters[mc.ID] = adapter
	return adapter, nil
}

// buildAdapter constructs a fresh adapter for the model's provider
func (f *DefaultAdapterFactory) buildAdapter(mc registry.ModelConfig) (Adapter, error) {
	switch mc.Provider {
	case "openai":
		return CreateOpenAIAdapterFromConfig(mc)
	case "anthropic":
		return CreateAnthropicAdapterFromConfig(mc)
	case "ollama":
		return CreateOllamaAdapterFromConfig(mc), nil
	case "openrouter":
		return CreateOpenRouterAdapterFromConfig(mc)
	default:
		return nil, fmt.Errorf("unsupported provider: %s", mc.Provider)
	}
}

// GetSupportedProviders returns a list of supported provider types
func (f *DefaultAdapterFactory) GetSupportedProviders() []string {
	return []string{
		"openai",
		"anthropic",
		"ollama",
		"openrouter",
	}
}
