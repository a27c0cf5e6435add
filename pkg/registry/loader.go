package registry

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Loader handles loading model configurations
type Loader struct {
	configPath string
}

// NewLoader creates a new configuration loader
func NewLoader(configPath string) *Loader {
	return &Loader{
		configPath: configPath,
	}
}

// LoadRegistry loads the model registry from configuration file
func (l *Loader) LoadRegistry() (*Registry, error) {
	// Check if config path is provided via environment
	if configPath := os.Getenv("CONFIG"); configPath != "" {
		l.configPath = configPath
	}

	// Use default config if none provided
	if l.configPath == "" {
		l.configPath = "router.yaml"
	}

	data, err := os.ReadFile(l.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", l.configPath, err)
	}

	return LoadRegistryFromBytes(data)
}

// LoadRegistryFromBytes loads registry from byte data, validating every
// entry. Malformed entries fail here rather than at call time.
func LoadRegistryFromBytes(data []byte) (*Registry, error) {
	var registry Registry
	if err := yaml.Unmarshal(data, &registry); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	if err := registry.validate(); err != nil {
		return nil, err
	}

	registry.buildIndex()
	return &registry, nil
}

// NewRegistry builds a registry from already-parsed model configurations
func NewRegistry(models []ModelConfig) (*Registry, error) {
	registry := &Registry{Models: models}
	if err := registry.validate(); err != nil {
		return nil, err
	}
	registry.buildIndex()
	return registry, nil
}

// validate checks every entry for required fields and sane prices
func (r *Registry) validate() error {
	seen := make(map[string]bool, len(r.Models))
	for i, model := range r.Models {
		field := fmt.Sprintf("models[%d]", i)
		if model.ID == "" {
			return &ConfigError{Field: field + ".id", Reason: "missing model id"}
		}
		if seen[model.ID] {
			return &ConfigError{Field: field + ".id", Reason: fmt.Sprintf("duplicate model id %q", model.ID)}
		}
		seen[model.ID] = true

		if model.Provider == "" {
			return &ConfigError{Field: field + ".provider", Reason: "missing provider"}
		}
		if model.Pricing.InputPerMTok < 0 {
			return &ConfigError{Field: field + ".pricing.input_per_mtok", Reason: "price must not be negative"}
		}
		if model.Pricing.OutputPerMTok < 0 {
			return &ConfigError{Field: field + ".pricing.output_per_mtok", Reason: "price must not be negative"}
		}
		if model.ContextWindow < 0 {
			return &ConfigError{Field: field + ".context_window", Reason: "context window must not be negative"}
		}
		for j, cap := range model.Capabilities {
			if cap == "" {
				return &ConfigError{
					Field:  fmt.Sprintf("%s.capabilities[%d]", field, j),
					Reason: "empty capability flag",
				}
			}
		}
	}
	return nil
}

// buildIndex builds the id lookup index. Called once at load time.
func (r *Registry) buildIndex() {
	r.index = make(map[string]int, len(r.Models))
	for i := range r.Models {
		r.index[r.Models[i].ID] = i
	}
}

// GetDefaultRegistry returns a registry with some default models
func GetDefaultRegistry() *Registry {
	registry, err := NewRegistry([]ModelConfig{
		{
			ID:        "openai:gpt-4o-mini",
			Provider:  "openai",
			BaseURL:   "https://api.openai.com/v1",
			APIKeyEnv: "OPENAI_API_KEY",
			Pricing: Pricing{
				Currency:      "USD",
				InputPerMTok:  0.15,
				OutputPerMTok: 0.60,
			},
			Capabilities:  []Capability{CapabilityFunctionCalling, CapabilityJSONMode, CapabilityVision},
			ContextWindow: 128000,
			MaxRPM:        10000,
			MaxTPM:        200000,
		},
		{
			ID:        "openai:gpt-4o",
			Provider:  "openai",
			BaseURL:   "https://api.openai.com/v1",
			APIKeyEnv: "OPENAI_API_KEY",
			Pricing: Pricing{
				Currency:      "USD",
				InputPerMTok:  5.0,
				OutputPerMTok: 15.0,
			},
			Capabilities:  []Capability{CapabilityFunctionCalling, CapabilityJSONMode, CapabilityVision, CapabilityLargeContext},
			ContextWindow: 128000,
			MaxRPM:        5000,
			MaxTPM:        100000,
		},
		{
			ID:        "anthropic:claude-3-5-sonnet-20241022",
			Provider:  "anthropic",
			BaseURL:   "https://api.anthropic.com",
			APIKeyEnv: "ANTHROPIC_API_KEY",
			Pricing: Pricing{
				Currency:      "USD",
				InputPerMTok:  3.0,
				OutputPerMTok: 15.0,
			},
			Capabilities:  []Capability{CapabilityFunctionCalling, CapabilityVision, CapabilityLargeContext},
			ContextWindow: 200000,
			MaxRPM:        5000,
			MaxTPM:        100000,
		},
		{
			ID:        "ollama:llama3.2",
			Provider:  "ollama",
			BaseURL:   "http://localhost:11434",
			APIKeyEnv: "",
			Pricing: Pricing{
				Currency:      "USD",
				InputPerMTok:  0.0,
				OutputPerMTok: 0.0,
			},
			Capabilities:  []Capability{CapabilityJSONMode},
			ContextWindow: 8192,
			MaxRPM:        1000,
			MaxTPM:        10000,
		},
	})
	if err != nil {
		// Defaults are compiled in; a validation failure here is a bug.
		panic(err)
	}
	return registry
}
