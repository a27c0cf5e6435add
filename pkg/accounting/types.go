package accounting

import (
	"time"
)

// CostRecord is one settled invocation in the ledger.
type CostRecord struct {
	ID               int64     `json:"id" db:"id"`
	Timestamp        time.Time `json:"timestamp" db:"timestamp"`
	Caller           string    `json:"caller" db:"caller"`
	Provider         string    `json:"provider" db:"provider"`
	Model            string    `json:"model" db:"model"`
	PromptTokens     int       `json:"prompt_tokens" db:"prompt_tokens"`
	CompletionTokens int       `json:"completion_tokens" db:"completion_tokens"`
	Currency         string    `json:"currency" db:"currency"`
	CostInput        float64   `json:"cost_input" db:"cost_input"`
	CostOutput       float64   `json:"cost_output" db:"cost_output"`
	CostTotal        float64   `json:"cost_total" db:"cost_total"`
}

// CostSummary aggregates a set of records.
type CostSummary struct {
	TotalRecords          int64   `json:"total_records"`
	TotalCost             float64 `json:"total_cost"`
	TotalInputCost        float64 `json:"total_input_cost"`
	TotalOutputCost       float64 `json:"total_output_cost"`
	TotalPromptTokens     int64   `json:"total_prompt_tokens"`
	TotalCompletionTokens int64   `json:"total_completion_tokens"`
	Currency              string  `json:"currency"`
}

// CostGroup is a summary bucketed by one field value.
type CostGroup struct {
	GroupBy    string      `json:"group_by"`
	GroupValue string      `json:"group_value"`
	Summary    CostSummary `json:"summary"`
}

// CostFilter narrows ledger queries. GroupBy accepts
// "provider", "model" or "caller".
type CostFilter struct {
	From     *time.Time `json:"from,omitempty"`
	To       *time.Time `json:"to,omitempty"`
	Caller   string     `json:"caller,omitempty"`
	Provider string     `json:"provider,omitempty"`
	Model    string     `json:"model,omitempty"`
	GroupBy  string     `json:"group_by,omitempty"`
	Limit    int        `json:"limit,omitempty"`
	Offset   int        `json:"offset,omitempty"`
}

// CostAggregator is the ledger storage backend.
type CostAggregator interface {
	RecordCost(record CostRecord) error
	GetCosts(filter CostFilter) ([]CostRecord, error)
	GetCostSummary(filter CostFilter) (CostSummary, error)
	GetGroupedCosts(filter CostFilter) ([]CostGroup, error)
	Close() error
}
