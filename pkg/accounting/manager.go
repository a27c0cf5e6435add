package accounting

import (
	"fmt"
)

// Manager fronts the ledger backend selected by Config.
type Manager struct {
	aggregator CostAggregator
}

// Config holds accounting configuration.
type Config struct {
	UseSQLite bool
	DBPath    string
}

// NewManager creates a manager backed by SQLite or process memory.
func NewManager(config Config) (*Manager, error) {
	var aggregator CostAggregator
	var err error

	if config.UseSQLite {
		aggregator, err = NewSQLiteAggregator(config.DBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create SQLite aggregator: %w", err)
		}
	} else {
		aggregator = NewMemoryAggregator()
	}

	return &Manager{aggregator: aggregator}, nil
}

// RecordCost records one settled invocation.
func (m *Manager) RecordCost(record CostRecord) error {
	return m.aggregator.RecordCost(record)
}

// GetCosts retrieves ledger records matching the filter.
func (m *Manager) GetCosts(filter CostFilter) ([]CostRecord, error) {
	return m.aggregator.GetCosts(filter)
}

// GetCostSummary aggregates ledger records matching the filter.
func (m *Manager) GetCostSummary(filter CostFilter) (CostSummary, error) {
	return m.aggregator.GetCostSummary(filter)
}

// GetGroupedCosts returns per-bucket summaries for the filter's
// GroupBy field.
func (m *Manager) GetGroupedCosts(filter CostFilter) ([]CostGroup, error) {
	return m.aggregator.GetGroupedCosts(filter)
}

// Close releases the backend.
func (m *Manager) Close() error {
	return m.aggregator.Close()
}
