package router

import (
	"sort"

	"github.com/promptops/modelrouter/pkg/capability"
	"github.com/promptops/modelrouter/pkg/cost"
	"github.com/promptops/modelrouter/pkg/registry"
	"github.com/promptops/modelrouter/pkg/router/core"
)

// FallbackChain is the ordered list of candidate models tried in
// sequence for one request. Computed per request, never persisted.
type FallbackChain []registry.ModelConfig

// ModelIDs returns the chain's model IDs in order
func (c FallbackChain) ModelIDs() []string {
	ids := make([]string, len(c))
	for i, mc := range c {
		ids[i] = mc.ID
	}
	return ids
}

// buildChain selects and orders the candidate models for a request.
// Candidates must be non-deprecated and support every required
// capability; when the request carries a cost ceiling, models whose
// estimated cost for this request exceeds it are excluded. Candidates
// are ordered by ascending estimated cost with the registry's declared
// order as the stable tie-break. A preferred model, when eligible, is
// promoted to the chain head.
func (r *Router) buildChain(req core.InvocationRequest, required []registry.Capability) FallbackChain {
	promptTokens := r.estimatePromptTokens(req.Prompt)

	type candidate struct {
		model    registry.ModelConfig
		estimate float64
		order    int
	}

	var candidates []candidate
	for _, model := range r.registry.Models {
		if model.Deprecated {
			continue
		}
		if !capability.SupportsModel(model, required) {
			continue
		}
		estimate := cost.EstimateRequestCost(model.Pricing, promptTokens, r.config.TypicalOutputTokens)
		if req.MaxCost != nil && estimate > *req.MaxCost {
			continue
		}
		candidates = append(candidates, candidate{
			model:    model,
			estimate: estimate,
			order:    r.registry.DeclaredOrder(model.ID),
		})
	}

	// Cost-equal models fall back to the registry's declared order, so
	// the chain is reproducible across runs.
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].estimate != candidates[j].estimate {
			return candidates[i].estimate < candidates[j].estimate
		}
		return candidates[i].order < candidates[j].order
	})

	chain := make(FallbackChain, len(candidates))
	for i, c := range candidates {
		chain[i] = c.model
	}

	if req.PreferredModelID != "" {
		chain = promoteToHead(chain, req.PreferredModelID)
	}

	return chain
}

// promoteToHead moves the named model to the front of the chain,
// keeping the rest of the order intact
func promoteToHead(chain FallbackChain, modelID string) FallbackChain {
	for i, mc := range chain {
		if mc.ID == modelID {
			promoted := make(FallbackChain, 0, len(chain))
			promoted = append(promoted, mc)
			promoted = append(promoted, chain[:i]...)
			promoted = append(promoted, chain[i+1:]...)
			return promoted
		}
	}
	return chain
}

// estimatePromptTokens counts prompt tokens with the default encoder
func (r *Router) estimatePromptTokens(prompt string) int {
	if r.tokens == nil {
		return len(prompt) / 4
	}
	count, err := r.tokens.CountTokens("", prompt)
	if err != nil {
		return len(prompt) / 4
	}
	return count
}
