package accounting

import (
	"sort"
	"sync"
	"time"
)

// MemoryAggregator keeps the ledger in process memory. Useful for
// tests and deployments that do not need the record to survive a
// restart.
type MemoryAggregator struct {
	mu      sync.RWMutex
	records []CostRecord
	nextID  int64
}

// NewMemoryAggregator creates an empty in-memory ledger.
func NewMemoryAggregator() *MemoryAggregator {
	return &MemoryAggregator{nextID: 1}
}

// RecordCost appends a record to the ledger.
func (m *MemoryAggregator) RecordCost(record CostRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now()
	}
	record.ID = m.nextID
	m.nextID++

	m.records = append(m.records, record)
	return nil
}

// GetCosts returns records matching the filter, newest first.
func (m *MemoryAggregator) GetCosts(filter CostFilter) ([]CostRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	matched := make([]CostRecord, 0)
	for _, record := range m.records {
		if matchesFilter(record, filter) {
			matched = append(matched, record)
		}
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].Timestamp.After(matched[j].Timestamp)
	})

	return paginate(matched, filter.Offset, filter.Limit), nil
}

// GetCostSummary aggregates all records matching the filter.
func (m *MemoryAggregator) GetCostSummary(filter CostFilter) (CostSummary, error) {
	// Summaries cover the whole matching set, not one page of it.
	unpaged := filter
	unpaged.Limit = 0
	unpaged.Offset = 0

	records, err := m.GetCosts(unpaged)
	if err != nil {
		return CostSummary{}, err
	}

	return summarize(records), nil
}

// GetGroupedCosts buckets matching records by the filter's GroupBy
// field and returns per-bucket summaries sorted by total cost.
func (m *MemoryAggregator) GetGroupedCosts(filter CostFilter) ([]CostGroup, error) {
	unpaged := filter
	unpaged.Limit = 0
	unpaged.Offset = 0

	records, err := m.GetCosts(unpaged)
	if err != nil {
		return nil, err
	}

	buckets := make(map[string][]CostRecord)
	for _, record := range records {
		key := groupKey(record, filter.GroupBy)
		buckets[key] = append(buckets[key], record)
	}

	groups := make([]CostGroup, 0, len(buckets))
	for key, bucket := range buckets {
		groups = append(groups, CostGroup{
			GroupBy:    filter.GroupBy,
			GroupValue: key,
			Summary:    summarize(bucket),
		})
	}

	sort.Slice(groups, func(i, j int) bool {
		return groups[i].Summary.TotalCost > groups[j].Summary.TotalCost
	})

	if filter.Limit > 0 && len(groups) > filter.Limit {
		groups = groups[:filter.Limit]
	}

	return groups, nil
}

// Close is a no-op for the in-memory ledger.
func (m *MemoryAggregator) Close() error {
	return nil
}

func matchesFilter(record CostRecord, filter CostFilter) bool {
	if filter.From != nil && record.Timestamp.Before(*filter.From) {
		return false
	}
	if filter.To != nil && record.Timestamp.After(*filter.To) {
		return false
	}
	if filter.Caller != "" && record.Caller != filter.Caller {
		return false
	}
	if filter.Provider != "" && record.Provider != filter.Provider {
		return false
	}
	if filter.Model != "" && record.Model != filter.Model {
		return false
	}
	return true
}

func groupKey(record CostRecord, groupBy string) string {
	switch groupBy {
	case "provider":
		return record.Provider
	case "model":
		return record.Model
	case "caller":
		return record.Caller
	default:
		return "all"
	}
}

func summarize(records []CostRecord) CostSummary {
	summary := CostSummary{
		TotalRecords: int64(len(records)),
		Currency:     "USD",
	}

	for _, record := range records {
		summary.TotalCost += record.CostTotal
		summary.TotalInputCost += record.CostInput
		summary.TotalOutputCost += record.CostOutput
		summary.TotalPromptTokens += int64(record.PromptTokens)
		summary.TotalCompletionTokens += int64(record.CompletionTokens)

		if record.Currency != "" {
			summary.Currency = record.Currency
		}
	}

	return summary
}

func paginate(records []CostRecord, offset, limit int) []CostRecord {
	if limit <= 0 {
		return records
	}
	if offset >= len(records) {
		return []CostRecord{}
	}
	end := offset + limit
	if end > len(records) {
		end = len(records)
	}
	return records[offset:end]
}
