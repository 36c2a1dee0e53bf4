// Package domain defines the core interfaces and types for Kestrel.
package domain

import (
	"context"
	"time"
)

// HistoryField names a transaction attribute the history can be counted by.
type HistoryField string

const (
	HistoryEmail     HistoryField = "email"
	HistoryCardBIN   HistoryField = "card_bin"
	HistoryIPCountry HistoryField = "ip_country"
)

// HistoryStore is the append-only record of scored transactions.
type HistoryStore interface {
	// InsertTransaction appends tx. A transaction id already present is ignored.
	InsertTransaction(ctx context.Context, tx *Transaction) error

	// CountMatching counts transactions whose field equals value and whose
	// timestamp lies in (since, until].
	CountMatching(ctx context.Context, field HistoryField, value string, since, until time.Time) (int, error)

	// AverageAmount returns the mean amount over all history. ok is false
	// when the history is empty.
	AverageAmount(ctx context.Context) (avg float64, ok bool, err error)
}

// RuleStore persists user-authored rules.
type RuleStore interface {
	// ListActiveRules returns active rules by priority, then creation time.
	ListActiveRules(ctx context.Context) ([]*Rule, error)

	// ListRules returns every rule in the same order.
	ListRules(ctx context.Context) ([]*Rule, error)

	// CreateRule stores rule, assigning an id and creation time when unset.
	CreateRule(ctx context.Context, rule *Rule) (*Rule, error)

	// SeedRules inserts each rule whose id is not already stored.
	SeedRules(ctx context.Context, rules []*Rule) (int, error)

	// SetRuleActive toggles activation. Unknown ids return ErrNotFound.
	SetRuleActive(ctx context.Context, id string, active bool) (*Rule, error)
}

// ChargebackSource provides the historical dispute records.
type ChargebackSource interface {
	AllChargebacks(ctx context.Context) ([]*ChargebackRecord, error)

	// SaveChargebacks stores records, skipping ids already present, and
	// returns how many were added.
	SaveChargebacks(ctx context.Context, records []*ChargebackRecord) (int, error)
}

// Repository bundles the stores behind one connection.
type Repository interface {
	HistoryStore
	RuleStore
	ChargebackSource

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite", "postgres", "pgx" or "memory"
	Driver string

	// SQLite specific
	SQLitePath string

	// PostgreSQL specific. PostgresDSN wins over the discrete fields.
	PostgresDSN      string
	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}
