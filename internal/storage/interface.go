// Package storage persists sorting rules and the decision audit log. The
// concrete adapters live in the sqlite and postgres subpackages and register
// themselves with the registry; callers go through the Store interface.
package storage

import (
	"context"
	"time"

	"parcel-sorter/internal/sorting"
)

// Store is the persistence contract. GetEnabledRules satisfies
// sorting.RuleRepository: enabled rules come back ordered by priority
// ascending with rule id as the tie-break, and the engine relies on that
// order.
type Store interface {
	GetEnabledRules(ctx context.Context) ([]sorting.Rule, error)

	CreateRule(ctx context.Context, rule *sorting.Rule) error
	GetRule(ctx context.Context, id string) (*sorting.Rule, error)
	ListRules(ctx context.Context) ([]sorting.Rule, error)
	UpdateRule(ctx context.Context, rule *sorting.Rule) error
	DeleteRule(ctx context.Context, id string) error

	RecordDecision(ctx context.Context, decision *Decision) error

	Health() error
	Close() error
}

// Decision is one row of the chute-assignment audit log.
type Decision struct {
	ID         int64     `json:"id"`
	ParcelID   string    `json:"parcel_id"`
	Chute      string    `json:"chute"`
	RuleID     string    `json:"rule_id"`
	CartNumber string    `json:"cart_number"`
	CartCount  int       `json:"cart_count"`
	Sequence   uint64    `json:"sequence"`
	DecidedAt  time.Time `json:"decided_at"`
}

// StoreConfig is the per-backend configuration contract.
type StoreConfig interface {
	Validate() error
	GetType() string
}

// Factory builds a Store from its backend-specific configuration.
type Factory interface {
	Create(config StoreConfig) (Store, error)
	GetType() string
}
