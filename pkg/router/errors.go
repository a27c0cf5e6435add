package router

import (
	"fmt"
	"strings"

	"github.com/promptops/modelrouter/pkg/registry"
)

// NoEligibleModelError indicates no registry model satisfies the
// request's capability and cost constraints. Raised before any
// network call is made.
type NoEligibleModelError struct {
	RequiredCapabilities []registry.Capability
	MaxCost              *float64
}

// Error implements the error interface
func (e *NoEligibleModelError) Error() string {
	caps := make([]string, len(e.RequiredCapabilities))
	for i, c := range e.RequiredCapabilities {
		caps[i] = string(c)
	}
	msg := fmt.Sprintf("no eligible model for capabilities [%s]", strings.Join(caps, ", "))
	if e.MaxCost != nil {
		msg += fmt.Sprintf(" within max cost %.6f", *e.MaxCost)
	}
	return msg
}

// ModelFailure records why one model in the fallback chain failed
type ModelFailure struct {
	ModelID  string `json:"model_id"`
	Attempts int    `json:"attempts"`
	Err      error  `json:"-"`
}

// FallbackExhaustedError indicates every candidate model failed. It
// carries the per-model failure causes so callers can distinguish
// "nothing worked" from "nothing was eligible".
type FallbackExhaustedError struct {
	Failures []ModelFailure
}

// Error implements the error interface
func (e *FallbackExhaustedError) Error() string {
	parts := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		parts[i] = fmt.Sprintf("%s (attempts=%d): %v", f.ModelID, f.Attempts, f.Err)
	}
	return fmt.Sprintf("fallback chain exhausted: %s", strings.Join(parts, "; "))
}
