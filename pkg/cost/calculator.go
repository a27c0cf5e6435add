package cost

import (
	"fmt"
	"math"

	"github.com/promptops/modelrouter/pkg/registry"
	"github.com/promptops/modelrouter/pkg/router/core"
)

// CostResult represents the calculated cost breakdown
type CostResult struct {
	InputCost    float64 `json:"input_cost"`
	OutputCost   float64 `json:"output_cost"`
	TotalCost    float64 `json:"total_cost"`
	Currency     string  `json:"currency"`
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	TotalTokens  int     `json:"total_tokens"`
}

// Calculator handles cost calculations. Pure, no I/O.
type Calculator struct {
	registry *registry.Registry
}

// NewCalculator creates a new cost calculator
func NewCalculator(reg *registry.Registry) *Calculator {
	return &Calculator{
		registry: reg,
	}
}

// round6 rounds to the smallest USD accounting unit used for sub-cent
// model pricing. Applied only to final results, never intermediates.
func round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}

// CalcCost computes raw input/output/total cost for usage and pricing.
// Prices are per million tokens. Intermediate values stay unrounded;
// each returned figure is rounded to 6 decimal places independently so
// the total reflects the exact unrounded sum.
func CalcCost(u core.Usage, p registry.Pricing) (inputCost, outputCost, total float64) {
	rawInput := float64(u.PromptTokens) * p.InputPerMTok / 1e6
	rawOutput := float64(u.CompletionTokens) * p.OutputPerMTok / 1e6

	return round6(rawInput), round6(rawOutput), round6(rawInput + rawOutput)
}

// ComputeCost calculates the total cost for a model given token counts.
// Fails with registry.NotFoundError when the model is unknown.
func (c *Calculator) ComputeCost(modelID string, inputTokens, outputTokens int) (float64, error) {
	model, err := c.registry.Get(modelID)
	if err != nil {
		return 0, err
	}

	usage := core.Usage{
		PromptTokens:     inputTokens,
		CompletionTokens: outputTokens,
		TotalTokens:      inputTokens + outputTokens,
	}
	_, _, total := CalcCost(usage, model.Pricing)
	return total, nil
}

// CalcCostForModel calculates the full cost breakdown for a model
func (c *Calculator) CalcCostForModel(modelID string, usage core.Usage) (*CostResult, error) {
	model, err := c.registry.Get(modelID)
	if err != nil {
		return nil, err
	}

	inputCost, outputCost, totalCost := CalcCost(usage, model.Pricing)

	return &CostResult{
		InputCost:    inputCost,
		OutputCost:   outputCost,
		TotalCost:    totalCost,
		Currency:     model.Pricing.Currency,
		InputTokens:  usage.PromptTokens,
		OutputTokens: usage.CompletionTokens,
		TotalTokens:  usage.TotalTokens,
	}, nil
}

// EstimateMonthlyCost projects a monthly spend for planning purposes.
// avgTokensPerCall is split by the observed 80/20 input/output ratio.
// Not used at call time.
func (c *Calculator) EstimateMonthlyCost(modelID string, avgTokensPerCall, callsPerMonth int) (float64, error) {
	model, err := c.registry.Get(modelID)
	if err != nil {
		return 0, err
	}

	inputTokens := float64(avgTokensPerCall) * 0.8
	outputTokens := float64(avgTokensPerCall) * 0.2

	perCall := (inputTokens*model.Pricing.InputPerMTok + outputTokens*model.Pricing.OutputPerMTok) / 1e6
	return round6(perCall * float64(callsPerMonth)), nil
}

// EstimateRequestCost estimates the cost of a single request from an
// expected token split, for pre-dispatch budget gating
func EstimateRequestCost(p registry.Pricing, inputTokens, outputTokens int) float64 {
	rawInput := float64(inputTokens) * p.InputPerMTok / 1e6
	rawOutput := float64(outputTokens) * p.OutputPerMTok / 1e6
	return round6(rawInput + rawOutput)
}

// FormatCostHeaders formats multiple cost headers
func FormatCostHeaders(costs []*CostResult) map[string]string {
	headers := make(map[string]string)

	if len(costs) == 0 {
		return headers
	}

	if len(costs) == 1 {
		headers["X-Cost-Total"] = fmt.Sprintf("%.6f;currency=%s", costs[0].TotalCost, costs[0].Currency)
		return headers
	}

	var totalCost float64
	var currency string

	for _, cost := range costs {
		if currency == "" {
			currency = cost.Currency
		}
		totalCost += cost.TotalCost
	}

	headers["X-Cost-Total"] = fmt.Sprintf("%.6f;currency=%s", totalCost, currency)

	for i, cost := range costs {
		headers[fmt.Sprintf("X-Cost-Model-%d", i)] = fmt.Sprintf("%.6f;currency=%s", cost.TotalCost, cost.Currency)
	}

	return headers
}
