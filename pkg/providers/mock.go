package providers

import (
	"context"
	"sync"

	"github.com/promptops/modelrouter/pkg/registry"
	"github.com/promptops/modelrouter/pkg/router/core"
)

// MockOutcome is one scripted adapter result
type MockOutcome struct {
	Text  string
	Usage core.Usage
	Err   error
}

// MockAdapter implements Adapter with scripted per-model outcomes.
// Outcomes are consumed in order; the last one repeats. Used in tests
// to verify routing behavior without network calls.
type MockAdapter struct {
	mu       sync.Mutex
	outcomes map[string][]MockOutcome
	calls    map[string]int
	total    int
}

// NewMockAdapter creates a new mock adapter
func NewMockAdapter() *MockAdapter {
	return &MockAdapter{
		outcomes: make(map[string][]MockOutcome),
		calls:    make(map[string]int),
	}
}

// Script sets the scripted outcomes for a model
func (m *MockAdapter) Script(modelID string, outcomes ...MockOutcome) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes[modelID] = outcomes
}

// Invoke returns the next scripted outcome for the model
func (m *MockAdapter) Invoke(ctx context.Context, mc registry.ModelConfig, req core.InvocationRequest) (core.Completion, error) {
	if err := ctx.Err(); err != nil {
		return core.Completion{}, err
	}

	m.mu.Lock()
	n := m.calls[mc.ID]
	m.calls[mc.ID]++
	m.total++

	outcomes := m.outcomes[mc.ID]
	var outcome MockOutcome
	switch {
	case len(outcomes) == 0:
		outcome = MockOutcome{
			Text:  "mock response",
			Usage: core.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
		}
	case n < len(outcomes):
		outcome = outcomes[n]
	default:
		outcome = outcomes[len(outcomes)-1]
	}
	m.mu.Unlock()

	if outcome.Err != nil {
		return core.Completion{}, outcome.Err
	}

	return core.Completion{
		Text:         outcome.Text,
		Usage:        outcome.Usage,
		Model:        mc.ID,
		Provider:     mc.Provider,
		FinishReason: "stop",
	}, nil
}

// Calls returns how many times the model was invoked
func (m *MockAdapter) Calls(modelID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[modelID]
}

// TotalCalls returns the total invocation count across models
func (m *MockAdapter) TotalCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.total
}

// MockFactory implements AdapterFactory returning one shared MockAdapter
type MockFactory struct {
	Adapter *MockAdapter
}

// NewMockFactory creates a new mock factory
func NewMockFactory() *MockFactory {
	return &MockFactory{Adapter: NewMockAdapter()}
}

// CreateAdapter returns the shared mock adapter
func (f *MockFactory) CreateAdapter(mc registry.ModelConfig) (Adapter, error) {
	return f.Adapter, nil
}
