package capability

import (
	"github.com/promptops/modelrouter/pkg/registry"
)

// Validator gates model selection on declared capability flags
type Validator struct {
	registry *registry.Registry
}

// NewValidator creates a new capability validator
func NewValidator(reg *registry.Registry) *Validator {
	return &Validator{
		registry: reg,
	}
}

// Supports reports whether the model declares every required capability.
// Unknown models support nothing. No side effects.
func (v *Validator) Supports(modelID string, required []registry.Capability) bool {
	model := v.registry.FindModel(modelID)
	if model == nil {
		return false
	}
	return model.HasCapabilities(required)
}

// SupportsModel reports whether a model configuration declares every
// required capability, without a registry lookup
func SupportsModel(model registry.ModelConfig, required []registry.Capability) bool {
	return model.HasCapabilities(required)
}
