package accounting

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteAggregator persists the ledger in a SQLite database.
type SQLiteAggregator struct {
	db *sql.DB
}

// NewSQLiteAggregator opens (or creates) the ledger database at dbPath.
func NewSQLiteAggregator(dbPath string) (*SQLiteAggregator, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	aggregator := &SQLiteAggregator{db: db}
	if err := aggregator.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return aggregator, nil
}

func (s *SQLiteAggregator) createSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS costs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp DATETIME NOT NULL,
		caller TEXT NOT NULL,
		provider TEXT NOT NULL,
		model TEXT NOT NULL,
		prompt_tokens INTEGER NOT NULL,
		completion_tokens INTEGER NOT NULL,
		currency TEXT NOT NULL,
		cost_input REAL NOT NULL,
		cost_output REAL NOT NULL,
		cost_total REAL NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_costs_timestamp ON costs(timestamp);
	CREATE INDEX IF NOT EXISTS idx_costs_caller ON costs(caller);
	CREATE INDEX IF NOT EXISTS idx_costs_provider ON costs(provider);
	CREATE INDEX IF NOT EXISTS idx_costs_model ON costs(model);
	`

	_, err := s.db.Exec(schema)
	return err
}

// RecordCost inserts a record into the ledger.
func (s *SQLiteAggregator) RecordCost(record CostRecord) error {
	query := `
	INSERT INTO costs (
		timestamp, caller, provider, model, prompt_tokens, completion_tokens,
		currency, cost_input, cost_output, cost_total
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.Exec(query,
		record.Timestamp,
		record.Caller,
		record.Provider,
		record.Model,
		record.PromptTokens,
		record.CompletionTokens,
		record.Currency,
		record.CostInput,
		record.CostOutput,
		record.CostTotal,
	)

	return err
}

// GetCosts returns records matching the filter, newest first.
func (s *SQLiteAggregator) GetCosts(filter CostFilter) ([]CostRecord, error) {
	whereClause, args := buildWhereClause(filter)

	query := fmt.Sprintf(`
		SELECT id, timestamp, caller, provider, model, prompt_tokens,
			completion_tokens, currency, cost_input, cost_output, cost_total
		FROM costs
		%s
		ORDER BY timestamp DESC
	`, whereClause)

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
		if filter.Offset > 0 {
			query += fmt.Sprintf(" OFFSET %d", filter.Offset)
		}
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []CostRecord
	for rows.Next() {
		var record CostRecord
		err := rows.Scan(
			&record.ID,
			&record.Timestamp,
			&record.Caller,
			&record.Provider,
			&record.Model,
			&record.PromptTokens,
			&record.CompletionTokens,
			&record.Currency,
			&record.CostInput,
			&record.CostOutput,
			&record.CostTotal,
		)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	return records, rows.Err()
}

// GetCostSummary aggregates all records matching the filter.
func (s *SQLiteAggregator) GetCostSummary(filter CostFilter) (CostSummary, error) {
	whereClause, args := buildWhereClause(filter)

	query := fmt.Sprintf(`
		SELECT
			COUNT(*),
			COALESCE(SUM(cost_total), 0),
			COALESCE(SUM(cost_input), 0),
			COALESCE(SUM(cost_output), 0),
			COALESCE(SUM(prompt_tokens), 0),
			COALESCE(SUM(completion_tokens), 0),
			COALESCE(MAX(currency), 'USD')
		FROM costs
		%s
	`, whereClause)

	var summary CostSummary
	err := s.db.QueryRow(query, args...).Scan(
		&summary.TotalRecords,
		&summary.TotalCost,
		&summary.TotalInputCost,
		&summary.TotalOutputCost,
		&summary.TotalPromptTokens,
		&summary.TotalCompletionTokens,
		&summary.Currency,
	)

	return summary, err
}

// GetGroupedCosts buckets matching records by the filter's GroupBy
// field and returns per-bucket summaries sorted by total cost.
func (s *SQLiteAggregator) GetGroupedCosts(filter CostFilter) ([]CostGroup, error) {
	column, ok := groupColumn(filter.GroupBy)
	if !ok {
		return nil, fmt.Errorf("unsupported group_by field: %q", filter.GroupBy)
	}

	whereClause, args := buildWhereClause(filter)

	query := fmt.Sprintf(`
		SELECT
			%s,
			COUNT(*),
			COALESCE(SUM(cost_total), 0),
			COALESCE(SUM(cost_input), 0),
			COALESCE(SUM(cost_output), 0),
			COALESCE(SUM(prompt_tokens), 0),
			COALESCE(SUM(completion_tokens), 0),
			COALESCE(MAX(currency), 'USD')
		FROM costs
		%s
		GROUP BY %s
		ORDER BY SUM(cost_total) DESC
	`, column, whereClause, column)

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var groups []CostGroup
	for rows.Next() {
		group := CostGroup{GroupBy: filter.GroupBy}
		err := rows.Scan(
			&group.GroupValue,
			&group.Summary.TotalRecords,
			&group.Summary.TotalCost,
			&group.Summary.TotalInputCost,
			&group.Summary.TotalOutputCost,
			&group.Summary.TotalPromptTokens,
			&group.Summary.TotalCompletionTokens,
			&group.Summary.Currency,
		)
		if err != nil {
			return nil, err
		}
		groups = append(groups, group)
	}

	return groups, rows.Err()
}

// Close closes the underlying database.
func (s *SQLiteAggregator) Close() error {
	return s.db.Close()
}

// groupColumn whitelists GroupBy values before they reach SQL text.
func groupColumn(groupBy string) (string, bool) {
	switch groupBy {
	case "provider", "model", "caller":
		return groupBy, true
	default:
		return "", false
	}
}

func buildWhereClause(filter CostFilter) (string, []interface{}) {
	var conditions []string
	var args []interface{}

	if filter.From != nil {
		conditions = append(conditions, "timestamp >= ?")
		args = append(args, *filter.From)
	}
	if filter.To != nil {
		conditions = append(conditions, "timestamp <= ?")
		args = append(args, *filter.To)
	}
	if filter.Caller != "" {
		conditions = append(conditions, "caller = ?")
		args = append(args, filter.Caller)
	}
	if filter.Provider != "" {
		conditions = append(conditions, "provider = ?")
		args = append(args, filter.Provider)
	}
	if filter.Model != "" {
		conditions = append(conditions, "model = ?")
		args = append(args, filter.Model)
	}

	if len(conditions) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(conditions, " AND "), args
}
