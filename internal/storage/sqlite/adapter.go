// Package sqlite is the embedded-database store, the default for single-node
// deployments and tests.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"parcel-sorter/internal/sorting"
	"parcel-sorter/internal/storage"
)

// Adapter implements storage.Store on SQLite.
type Adapter struct {
	db     *sql.DB
	config *Config
}

// NewAdapter opens the database file and applies the schema.
func NewAdapter(config *Config) (*Adapter, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid SQLite config: %w", err)
	}

	db, err := sql.Open("sqlite3", config.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	adapter := &Adapter{db: db, config: config}
	if err := adapter.migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return adapter, nil
}

func (a *Adapter) migrate() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS sorting_rules (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			condition TEXT NOT NULL,
			target_chute TEXT NOT NULL,
			priority INTEGER NOT NULL DEFAULT 100,
			method TEXT NOT NULL DEFAULT 'free_form',
			enabled BOOLEAN NOT NULL DEFAULT 1,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS sort_decisions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			parcel_id TEXT NOT NULL,
			chute TEXT NOT NULL,
			rule_id TEXT NOT NULL,
			cart_number TEXT DEFAULT '',
			cart_count INTEGER NOT NULL DEFAULT 1,
			sequence INTEGER NOT NULL DEFAULT 0,
			decided_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sorting_rules_enabled ON sorting_rules(enabled)`,
		`CREATE INDEX IF NOT EXISTS idx_sorting_rules_priority ON sorting_rules(priority)`,
		`CREATE INDEX IF NOT EXISTS idx_sort_decisions_parcel_id ON sort_decisions(parcel_id)`,
		`CREATE INDEX IF NOT EXISTS idx_sort_decisions_decided_at ON sort_decisions(decided_at)`,
	}

	for _, query := range queries {
		if _, err := a.db.Exec(query); err != nil {
			return fmt.Errorf("failed to execute migration query: %w", err)
		}
	}
	return nil
}

// GetEnabledRules returns the enabled rules ordered by priority then id,
// the order the rule engine evaluates them in.
func (a *Adapter) GetEnabledRules(ctx context.Context) ([]sorting.Rule, error) {
	query := `SELECT id, name, condition, target_chute, priority, method, enabled
			  FROM sorting_rules WHERE enabled = 1
			  ORDER BY priority ASC, id ASC`

	rows, err := a.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get enabled rules: %w", err)
	}
	defer rows.Close()

	return scanRules(rows)
}

// CreateRule inserts a rule.
func (a *Adapter) CreateRule(ctx context.Context, rule *sorting.Rule) error {
	query := `INSERT INTO sorting_rules (id, name, condition, target_chute, priority, method, enabled)
			  VALUES (?, ?, ?, ?, ?, ?, ?)`

	_, err := a.db.ExecContext(ctx, query, rule.ID, rule.Name, rule.Condition,
		rule.TargetChute, rule.Priority, string(rule.Method), rule.Enabled)
	if err != nil {
		return fmt.Errorf("failed to create rule: %w", err)
	}
	return nil
}

// GetRule fetches one rule by id. A missing rule is (nil, nil).
func (a *Adapter) GetRule(ctx context.Context, id string) (*sorting.Rule, error) {
	query := `SELECT id, name, condition, target_chute, priority, method, enabled
			  FROM sorting_rules WHERE id = ?`

	rule := &sorting.Rule{}
	var method string
	err := a.db.QueryRowContext(ctx, query, id).Scan(&rule.ID, &rule.Name, &rule.Condition,
		&rule.TargetChute, &rule.Priority, &method, &rule.Enabled)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get rule: %w", err)
	}
	rule.Method = sorting.MatchingMethod(method)
	return rule, nil
}

// ListRules returns every rule, enabled or not, in evaluation order.
func (a *Adapter) ListRules(ctx context.Context) ([]sorting.Rule, error) {
	query := `SELECT id, name, condition, target_chute, priority, method, enabled
			  FROM sorting_rules ORDER BY priority ASC, id ASC`

	rows, err := a.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list rules: %w", err)
	}
	defer rows.Close()

	return scanRules(rows)
}

// UpdateRule rewrites a rule by id.
func (a *Adapter) UpdateRule(ctx context.Context, rule *sorting.Rule) error {
	query := `UPDATE sorting_rules SET name = ?, condition = ?, target_chute = ?, priority = ?,
			  method = ?, enabled = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`

	result, err := a.db.ExecContext(ctx, query, rule.Name, rule.Condition, rule.TargetChute,
		rule.Priority, string(rule.Method), rule.Enabled, rule.ID)
	if err != nil {
		return fmt.Errorf("failed to update rule: %w", err)
	}
	return requireRowAffected(result, rule.ID)
}

// DeleteRule removes a rule by id.
func (a *Adapter) DeleteRule(ctx context.Context, id string) error {
	result, err := a.db.ExecContext(ctx, `DELETE FROM sorting_rules WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete rule: %w", err)
	}
	return requireRowAffected(result, id)
}

// RecordDecision appends one row to the chute-assignment audit log.
func (a *Adapter) RecordDecision(ctx context.Context, decision *storage.Decision) error {
	query := `INSERT INTO sort_decisions (parcel_id, chute, rule_id, cart_number, cart_count, sequence)
			  VALUES (?, ?, ?, ?, ?, ?)`

	result, err := a.db.ExecContext(ctx, query, decision.ParcelID, decision.Chute,
		decision.RuleID, decision.CartNumber, decision.CartCount, decision.Sequence)
	if err != nil {
		return fmt.Errorf("failed to record decision: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	decision.ID = id
	return nil
}

// Health pings the database.
func (a *Adapter) Health() error {
	return a.db.Ping()
}

// Close closes the database.
func (a *Adapter) Close() error {
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}

func scanRules(rows *sql.Rows) ([]sorting.Rule, error) {
	var rules []sorting.Rule
	for rows.Next() {
		var rule sorting.Rule
		var method string
		err := rows.Scan(&rule.ID, &rule.Name, &rule.Condition, &rule.TargetChute,
			&rule.Priority, &method, &rule.Enabled)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		rule.Method = sorting.MatchingMethod(method)
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

func requireRowAffected(result sql.Result, id string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("rule %s not found", id)
	}
	return nil
}
