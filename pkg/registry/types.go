package registry

import (
	"fmt"
	"sort"
)

// Capability is a named feature a model may support
type Capability string

// Well-known capability flags. The set is open: registry configs may
// declare additional flags and they are matched verbatim.
const (
	CapabilityVision          Capability = "vision"
	CapabilityFunctionCalling Capability = "function_calling"
	CapabilityJSONMode        Capability = "json_mode"
	CapabilityLargeContext    Capability = "large_context"
)

// Pricing represents pricing information for a model
type Pricing struct {
	Currency      string  `json:"currency" yaml:"currency"`
	InputPerMTok  float64 `json:"input_per_mtok" yaml:"input_per_mtok"`
	OutputPerMTok float64 `json:"output_per_mtok" yaml:"output_per_mtok"`
}

// ModelConfig represents configuration for a model
type ModelConfig struct {
	ID            string       `json:"id" yaml:"id"`             // "openai:gpt-4o-mini"
	Provider      string       `json:"provider" yaml:"provider"` // openai|anthropic|ollama|openrouter
	BaseURL       string       `json:"base_url" yaml:"base_url"`
	APIKeyEnv     string       `json:"api_key_env" yaml:"api_key_env"`
	Pricing       Pricing      `json:"pricing" yaml:"pricing"`
	Capabilities  []Capability `json:"capabilities" yaml:"capabilities"`
	ContextWindow int          `json:"context_window" yaml:"context_window"`
	Deprecated    bool         `json:"deprecated,omitempty" yaml:"deprecated,omitempty"`
	MaxRPM        int          `json:"max_rpm,omitempty" yaml:"max_rpm,omitempty"` // requests per minute
	MaxTPM        int          `json:"max_tpm,omitempty" yaml:"max_tpm,omitempty"` // tokens per minute
}

// HasCapability reports whether the model declares a capability
func (mc *ModelConfig) HasCapability(cap Capability) bool {
	for _, c := range mc.Capabilities {
		if c == cap {
			return true
		}
	}
	return false
}

// HasCapabilities reports whether the model declares every capability in caps
func (mc *ModelConfig) HasCapabilities(caps []Capability) bool {
	for _, c := range caps {
		if !mc.HasCapability(c) {
			return false
		}
	}
	return true
}

// Registry represents the model registry. It is populated once at load
// time and must not be mutated afterwards; concurrent reads are safe.
type Registry struct {
	Models []ModelConfig `json:"models" yaml:"models"`

	index map[string]int
}

// Get returns a model configuration by ID
func (r *Registry) Get(id string) (*ModelConfig, error) {
	if r.index != nil {
		if i, ok := r.index[id]; ok {
			return &r.Models[i], nil
		}
		return nil, &NotFoundError{ModelID: id}
	}
	for i := range r.Models {
		if r.Models[i].ID == id {
			return &r.Models[i], nil
		}
	}
	return nil, &NotFoundError{ModelID: id}
}

// FindModel finds a model by ID, returning nil when unknown
func (r *Registry) FindModel(id string) *ModelConfig {
	mc, err := r.Get(id)
	if err != nil {
		return nil
	}
	return mc
}

// DeclaredOrder returns the position of a model in the loaded
// configuration, used as a stable tie-break for cost-equal models
func (r *Registry) DeclaredOrder(id string) int {
	for i := range r.Models {
		if r.Models[i].ID == id {
			return i
		}
	}
	return len(r.Models)
}

// ListByCapability returns all non-deprecated models supporting the
// capability, ordered by ascending input price (ties: ascending output
// price, then ID)
func (r *Registry) ListByCapability(cap Capability) []ModelConfig {
	var models []ModelConfig
	for _, model := range r.Models {
		if model.Deprecated {
			continue
		}
		if model.HasCapability(cap) {
			models = append(models, model)
		}
	}

	sort.SliceStable(models, func(i, j int) bool {
		a, b := models[i], models[j]
		if a.Pricing.InputPerMTok != b.Pricing.InputPerMTok {
			return a.Pricing.InputPerMTok < b.Pricing.InputPerMTok
		}
		if a.Pricing.OutputPerMTok != b.Pricing.OutputPerMTok {
			return a.Pricing.OutputPerMTok < b.Pricing.OutputPerMTok
		}
		return a.ID < b.ID
	})

	return models
}

// GetModelsByProvider returns all models for a specific provider
func (r *Registry) GetModelsByProvider(provider string) []ModelConfig {
	var models []ModelConfig
	for _, model := range r.Models {
		if model.Provider == provider {
			models = append(models, model)
		}
	}
	return models
}

// GetAllProviders returns a list of all unique providers
func (r *Registry) GetAllProviders() []string {
	seen := make(map[string]bool)
	var result []string
	for _, model := range r.Models {
		if !seen[model.Provider] {
			seen[model.Provider] = true
			result = append(result, model.Provider)
		}
	}
	return result
}

// GetTotalModels returns the total number of models
func (r *Registry) GetTotalModels() int {
	return len(r.Models)
}

// ConfigError indicates malformed registry configuration. It is fatal
// at load time and never produced at call time.
type ConfigError struct {
	Field  string
	Reason string
}

// Error implements the error interface
func (e *ConfigError) Error() string {
	return fmt.Sprintf("registry config error: %s: %s", e.Field, e.Reason)
}

// NotFoundError indicates an unknown model ID
type NotFoundError struct {
	ModelID string
}

// Error implements the error interface
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("model %s not found in registry", e.ModelID)
}
