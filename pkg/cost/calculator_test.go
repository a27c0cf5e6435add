package cost

import (
	"errors"
	"math"
	"testing"

	"github.com/promptops/modelrouter/pkg/registry"
	"github.com/promptops/modelrouter/pkg/router/core"
)

func TestCalcCost(t *testing.T) {
	tests := []struct {
		name       string
		usage      core.Usage
		pricing    registry.Pricing
		inputCost  float64
		outputCost float64
		totalCost  float64
	}{
		{
			name: "basic calculation",
			usage: core.Usage{
				PromptTokens:     1000,
				CompletionTokens: 500,
				TotalTokens:      1500,
			},
			pricing: registry.Pricing{
				Currency:      "USD",
				InputPerMTok:  1.50,
				OutputPerMTok: 6.00,
			},
			inputCost:  0.0015,
			outputCost: 0.003,
			totalCost:  0.0045,
		},
		{
			name: "zero tokens",
			usage: core.Usage{
				PromptTokens:     0,
				CompletionTokens: 0,
			},
			pricing: registry.Pricing{
				Currency:      "USD",
				InputPerMTok:  1.50,
				OutputPerMTok: 6.00,
			},
			inputCost:  0.0,
			outputCost: 0.0,
			totalCost:  0.0,
		},
		{
			name: "free model",
			usage: core.Usage{
				PromptTokens:     100000,
				CompletionTokens: 50000,
			},
			pricing: registry.Pricing{
				Currency:      "USD",
				InputPerMTok:  0.0,
				OutputPerMTok: 0.0,
			},
			inputCost:  0.0,
			outputCost: 0.0,
			totalCost:  0.0,
		},
		{
			name: "million tokens cost exactly the per-mtok price",
			usage: core.Usage{
				PromptTokens:     1000000,
				CompletionTokens: 1000000,
			},
			pricing: registry.Pricing{
				Currency:      "USD",
				InputPerMTok:  2.50,
				OutputPerMTok: 10.00,
			},
			inputCost:  2.50,
			outputCost: 10.00,
			totalCost:  12.50,
		},
		{
			name: "sub-cent amounts keep six decimal places",
			usage: core.Usage{
				PromptTokens:     7,
				CompletionTokens: 3,
			},
			pricing: registry.Pricing{
				Currency:      "USD",
				InputPerMTok:  0.15,
				OutputPerMTok: 0.60,
			},
			inputCost:  0.000001,
			outputCost: 0.000002,
			totalCost:  0.000003,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inputCost, outputCost, totalCost := CalcCost(tt.usage, tt.pricing)

			if inputCost != tt.inputCost {
				t.Errorf("Expected input cost %.6f, got %.6f", tt.inputCost, inputCost)
			}
			if outputCost != tt.outputCost {
				t.Errorf("Expected output cost %.6f, got %.6f", tt.outputCost, outputCost)
			}
			if totalCost != tt.totalCost {
				t.Errorf("Expected total cost %.6f, got %.6f", tt.totalCost, totalCost)
			}
		})
	}
}

func TestCalcCostMonotonic(t *testing.T) {
	pricing := registry.Pricing{Currency: "USD", InputPerMTok: 3.00, OutputPerMTok: 15.00}

	var prev float64
	for _, tokens := range []int{0, 1, 10, 100, 1000, 10000, 100000} {
		usage := core.Usage{PromptTokens: tokens, CompletionTokens: tokens}
		_, _, total := CalcCost(usage, pricing)
		if total < prev {
			t.Errorf("Cost decreased from %.6f to %.6f at %d tokens", prev, total, tokens)
		}
		prev = total
	}
}

func TestCalcCostDeterministic(t *testing.T) {
	usage := core.Usage{PromptTokens: 12345, CompletionTokens: 6789}
	pricing := registry.Pricing{Currency: "USD", InputPerMTok: 2.50, OutputPerMTok: 10.00}

	in1, out1, total1 := CalcCost(usage, pricing)
	in2, out2, total2 := CalcCost(usage, pricing)

	if in1 != in2 || out1 != out2 || total1 != total2 {
		t.Errorf("Repeated calculation differs: (%v,%v,%v) vs (%v,%v,%v)",
			in1, out1, total1, in2, out2, total2)
	}
}

func TestRound6(t *testing.T) {
	tests := []struct {
		in       float64
		expected float64
	}{
		{0.0000004, 0.0},
		{0.0000006, 0.000001},
		{1.2345678, 1.234568},
		{0.1, 0.1},
		{0.0, 0.0},
	}

	for _, tt := range tests {
		got := round6(tt.in)
		if math.Abs(got-tt.expected) > 1e-12 {
			t.Errorf("round6(%v): expected %v, got %v", tt.in, tt.expected, got)
		}
	}
}

func TestComputeCost(t *testing.T) {
	reg := testRegistry(t)
	calc := NewCalculator(reg)

	total, err := calc.ComputeCost("openai:gpt-4o", 1000, 500)
	if err != nil {
		t.Fatalf("ComputeCost failed: %v", err)
	}

	// 1000 * 2.50/1e6 + 500 * 10.00/1e6
	expected := 0.0075
	if math.Abs(total-expected) > 1e-9 {
		t.Errorf("Expected total %.6f, got %.6f", expected, total)
	}
}

func TestComputeCostUnknownModel(t *testing.T) {
	calc := NewCalculator(testRegistry(t))

	if _, err := calc.ComputeCost("nonexistent", 100, 100); err == nil {
		t.Error("Expected error for unknown model")
	}
}

func TestCalcCostForModel(t *testing.T) {
	calc := NewCalculator(testRegistry(t))

	usage := core.Usage{PromptTokens: 2000, CompletionTokens: 1000, TotalTokens: 3000}
	result, err := calc.CalcCostForModel("openai:gpt-4o", usage)
	if err != nil {
		t.Fatalf("CalcCostForModel failed: %v", err)
	}

	if result.Currency != "USD" {
		t.Errorf("Expected currency USD, got %s", result.Currency)
	}
	if result.InputTokens != 2000 || result.OutputTokens != 1000 {
		t.Errorf("Token counts not carried through: %+v", result)
	}
	if result.TotalCost != result.InputCost+result.OutputCost {
		t.Errorf("Total %.6f does not match input %.6f + output %.6f",
			result.TotalCost, result.InputCost, result.OutputCost)
	}
}

func TestEstimateMonthlyCost(t *testing.T) {
	calc := NewCalculator(testRegistry(t))

	tests := []struct {
		name             string
		avgTokensPerCall int
		callsPerMonth    int
		expected         float64
	}{
		// 800 input * 2.50/1e6 + 200 output * 10.00/1e6 = 0.004 per call
		{"typical workload", 1000, 10000, 40.0},
		{"single call", 1000, 1, 0.004},
		{"no calls", 1000, 0, 0.0},
		{"no tokens", 0, 10000, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := calc.EstimateMonthlyCost("openai:gpt-4o", tt.avgTokensPerCall, tt.callsPerMonth)
			if err != nil {
				t.Fatalf("EstimateMonthlyCost failed: %v", err)
			}
			if math.Abs(got-tt.expected) > 1e-9 {
				t.Errorf("Expected %.6f, got %.6f", tt.expected, got)
			}
		})
	}
}

func TestEstimateMonthlyCostUnknownModel(t *testing.T) {
	calc := NewCalculator(testRegistry(t))

	_, err := calc.EstimateMonthlyCost("nonexistent", 1000, 10000)

	var notFound *registry.NotFoundError
	if !errors.As(err, &notFound) {
		t.Errorf("Expected NotFoundError, got %v", err)
	}
}

func TestEstimateRequestCost(t *testing.T) {
	pricing := registry.Pricing{Currency: "USD", InputPerMTok: 0.15, OutputPerMTok: 0.60}

	estimate := EstimateRequestCost(pricing, 1000, 500)
	expected := round6(1000*0.15/1e6 + 500*0.60/1e6)
	if estimate != expected {
		t.Errorf("Expected estimate %.6f, got %.6f", expected, estimate)
	}

	if EstimateRequestCost(pricing, 0, 0) != 0 {
		t.Error("Expected zero estimate for zero tokens")
	}
}

func TestFormatCostHeaders(t *testing.T) {
	single := FormatCostHeaders([]*CostResult{
		{TotalCost: 0.0045, Currency: "USD"},
	})
	if single["X-Cost-Total"] != "0.004500;currency=USD" {
		t.Errorf("Unexpected header value: %q", single["X-Cost-Total"])
	}

	if len(FormatCostHeaders(nil)) != 0 {
		t.Error("Expected no headers for empty input")
	}
}

func testRegistry(t *testing.T) *registry.Registry {
	t.Helper()

	reg, err := registry.NewRegistry([]registry.ModelConfig{
		{
			ID:       "openai:gpt-4o",
			Provider: "openai",
			Pricing: registry.Pricing{
				Currency:      "USD",
				InputPerMTok:  2.50,
				OutputPerMTok: 10.00,
			},
			Capabilities:  []registry.Capability{registry.CapabilityVision},
			ContextWindow: 128000,
		},
	})
	if err != nil {
		t.Fatalf("Failed to build registry: %v", err)
	}
	return reg
}
