// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/opensource-finance/kestrel/internal/domain"
)

// SQLRepository implements domain.Repository using database/sql.
// Works with SQLite and with PostgreSQL through lib/pq or pgx.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (domain.Repository, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "memory":
		return NewMemoryRepository(), nil
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres", "pgx":
		db, err = openPostgres(cfg.Driver, cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := NewSQLRepository(db, cfg.Driver)

	// Run migrations
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

// NewSQLRepository wraps an open database. Migrations are not applied.
func NewSQLRepository(db *sql.DB, driver string) *SQLRepository {
	return &SQLRepository{db: db, driver: driver}
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// ============================================================================
// HISTORY
// ============================================================================

// InsertTransaction appends a scored transaction. Duplicate ids are ignored.
func (r *SQLRepository) InsertTransaction(ctx context.Context, tx *domain.Transaction) error {
	if tx == nil || tx.ID == "" {
		return fmt.Errorf("%w: transaction id is required", domain.ErrInvalidInput)
	}

	query := `
		INSERT INTO transactions (
			transaction_id, email, card_bin, card_last_four, amount, currency,
			billing_country, shipping_country, ip_country, product_category,
			customer_id, is_first_purchase, occurred_at, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (transaction_id) DO NOTHING
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		tx.ID, tx.Email, tx.CardBIN, tx.CardLastFour, tx.Amount, tx.Currency,
		tx.BillingCountry, tx.ShippingCountry, tx.IPCountry, string(tx.ProductCategory),
		nullString(tx.CustomerID), boolToInt(tx.IsFirstPurchase),
		tx.Timestamp.UnixMilli(), time.Now().UTC().UnixMilli(),
	)
	return err
}

// CountMatching counts transactions whose field equals value inside (since, until].
func (r *SQLRepository) CountMatching(ctx context.Context, field domain.HistoryField, value string, since, until time.Time) (int, error) {
	column, err := historyColumn(field)
	if err != nil {
		return 0, err
	}

	query := `
		SELECT COUNT(*) FROM transactions
		WHERE ` + column + ` = ?
		  AND occurred_at > ?
		  AND occurred_at <= ?
	`

	var count int
	err = r.db.QueryRowContext(ctx, r.rebind(query), value, since.UnixMilli(), until.UnixMilli()).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

// AverageAmount returns the mean amount over all stored transactions.
func (r *SQLRepository) AverageAmount(ctx context.Context) (float64, bool, error) {
	query := `SELECT COUNT(*), COALESCE(AVG(amount), 0) FROM transactions`

	var count int
	var avg float64
	if err := r.db.QueryRowContext(ctx, query).Scan(&count, &avg); err != nil {
		return 0, false, err
	}
	if count == 0 {
		return 0, false, nil
	}
	return avg, true, nil
}

func historyColumn(field domain.HistoryField) (string, error) {
	switch field {
	case domain.HistoryEmail:
		return "email", nil
	case domain.HistoryCardBIN:
		return "card_bin", nil
	case domain.HistoryIPCountry:
		return "ip_country", nil
	default:
		return "", fmt.Errorf("%w: unknown history field %q", domain.ErrInvalidInput, field)
	}
}

// ============================================================================
// RULES
// ============================================================================

const ruleColumns = `id, name, description, conditions, action, risk_score_modifier, is_active, priority, created_at`

// ListActiveRules returns active rules by priority, then creation time.
func (r *SQLRepository) ListActiveRules(ctx context.Context) ([]*domain.Rule, error) {
	query := `
		SELECT ` + ruleColumns + `
		FROM rules
		WHERE is_active = 1
		ORDER BY priority ASC, created_at ASC, id ASC
	`
	return r.queryRules(ctx, query)
}

// ListRules returns every rule, active or not, in evaluation order.
func (r *SQLRepository) ListRules(ctx context.Context) ([]*domain.Rule, error) {
	query := `
		SELECT ` + ruleColumns + `
		FROM rules
		ORDER BY priority ASC, created_at ASC, id ASC
	`
	return r.queryRules(ctx, query)
}

// CreateRule stores a new rule, generating its id and creation time when unset.
func (r *SQLRepository) CreateRule(ctx context.Context, rule *domain.Rule) (*domain.Rule, error) {
	if rule == nil {
		return nil, fmt.Errorf("%w: rule is required", domain.ErrInvalidInput)
	}

	stored := *rule
	if stored.ID == "" {
		stored.ID = NewRuleID()
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}

	conditions, err := json.Marshal(stored.Conditions)
	if err != nil {
		return nil, fmt.Errorf("failed to encode conditions: %w", err)
	}

	query := `
		INSERT INTO rules (` + ruleColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.ExecContext(ctx, r.rebind(query),
		stored.ID, stored.Name, nullString(stored.Description), string(conditions),
		string(stored.Action), stored.Modifier, boolToInt(stored.IsActive), stored.Priority,
		stored.CreatedAt.UnixNano(),
	)
	if err != nil {
		return nil, err
	}

	return &stored, nil
}

// SeedRules inserts each rule whose id is not yet stored.
func (r *SQLRepository) SeedRules(ctx context.Context, rules []*domain.Rule) (int, error) {
	query := `
		INSERT INTO rules (` + ruleColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO NOTHING
	`

	inserted := 0
	for _, rule := range rules {
		conditions, err := json.Marshal(rule.Conditions)
		if err != nil {
			return inserted, fmt.Errorf("failed to encode conditions for %s: %w", rule.ID, err)
		}

		createdAt := rule.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}

		result, err := r.db.ExecContext(ctx, r.rebind(query),
			rule.ID, rule.Name, nullString(rule.Description), string(conditions),
			string(rule.Action), rule.Modifier, boolToInt(rule.IsActive), rule.Priority,
			createdAt.UnixNano(),
		)
		if err != nil {
			return inserted, err
		}
		if n, err := result.RowsAffected(); err == nil {
			inserted += int(n)
		}
	}

	return inserted, nil
}

// SetRuleActive toggles a rule's activation flag.
func (r *SQLRepository) SetRuleActive(ctx context.Context, id string, active bool) (*domain.Rule, error) {
	query := `UPDATE rules SET is_active = ? WHERE id = ?`

	result, err := r.db.ExecContext(ctx, r.rebind(query), boolToInt(active), id)
	if err != nil {
		return nil, err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		return nil, fmt.Errorf("%w: rule %s", domain.ErrNotFound, id)
	}

	return r.getRule(ctx, id)
}

func (r *SQLRepository) getRule(ctx context.Context, id string) (*domain.Rule, error) {
	query := `SELECT ` + ruleColumns + ` FROM rules WHERE id = ?`

	rule, err := scanRule(r.db.QueryRowContext(ctx, r.rebind(query), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: rule %s", domain.ErrNotFound, id)
	}
	return rule, err
}

func (r *SQLRepository) queryRules(ctx context.Context, query string) ([]*domain.Rule, error) {
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	rules := make([]*domain.Rule, 0)
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}

	return rules, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRule(row rowScanner) (*domain.Rule, error) {
	var rule domain.Rule
	var description sql.NullString
	var conditions, action string
	var active int
	var createdAt int64

	if err := row.Scan(
		&rule.ID, &rule.Name, &description, &conditions, &action,
		&rule.Modifier, &active, &rule.Priority, &createdAt,
	); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(conditions), &rule.Conditions); err != nil {
		return nil, fmt.Errorf("failed to parse conditions for rule %s: %w", rule.ID, err)
	}

	rule.Description = description.String
	rule.Action = domain.Action(action)
	rule.IsActive = active == 1
	rule.CreatedAt = time.Unix(0, createdAt).UTC()

	return &rule, nil
}

// NewRuleID returns a fresh identifier of the form rule_<8 hex>.
func NewRuleID() string {
	return "rule_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// ============================================================================
// CHARGEBACKS
// ============================================================================

// AllChargebacks returns every stored chargeback by filing date.
func (r *SQLRepository) AllChargebacks(ctx context.Context) ([]*domain.ChargebackRecord, error) {
	query := `
		SELECT id, transaction_id, transaction_date, chargeback_date, amount,
			   country, product_category, reason_code, email, card_bin
		FROM chargebacks
		ORDER BY chargeback_date ASC, id ASC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]*domain.ChargebackRecord, 0)
	for rows.Next() {
		var rec domain.ChargebackRecord
		var txDate, cbDate, category, reason string

		if err := rows.Scan(
			&rec.ID, &rec.TransactionID, &txDate, &cbDate, &rec.Amount,
			&rec.Country, &category, &reason, &rec.Email, &rec.CardBIN,
		); err != nil {
			return nil, err
		}

		if rec.TransactionDate, err = parseDate(txDate); err != nil {
			return nil, fmt.Errorf("chargeback %s: %w", rec.ID, err)
		}
		if rec.ChargebackDate, err = parseDate(cbDate); err != nil {
			return nil, fmt.Errorf("chargeback %s: %w", rec.ID, err)
		}
		rec.ProductCategory = domain.ProductCategory(category)
		rec.ReasonCode = domain.ReasonCode(reason)

		records = append(records, &rec)
	}

	return records, rows.Err()
}

// SaveChargebacks stores records in one transaction, skipping known ids.
func (r *SQLRepository) SaveChargebacks(ctx context.Context, records []*domain.ChargebackRecord) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	query := `
		INSERT INTO chargebacks (
			id, transaction_id, transaction_date, chargeback_date, amount,
			country, product_category, reason_code, email, card_bin
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO NOTHING
	`

	stmt, err := tx.PrepareContext(ctx, r.rebind(query))
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	inserted := 0
	for _, rec := range records {
		result, err := stmt.ExecContext(ctx,
			rec.ID, rec.TransactionID,
			rec.TransactionDate.Format(domain.DateLayout), rec.ChargebackDate.Format(domain.DateLayout),
			rec.Amount.StringFixed(2),
			rec.Country, string(rec.ProductCategory), string(rec.ReasonCode), rec.Email, rec.CardBIN,
		)
		if err != nil {
			return 0, fmt.Errorf("failed to insert chargeback %s: %w", rec.ID, err)
		}
		if n, err := result.RowsAffected(); err == nil {
			inserted += int(n)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return inserted, nil
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" && r.driver != "pgx" {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 16)
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			n++
		} else {
			b.WriteByte(query[i])
		}
	}
	return b.String()
}

func parseDate(s string) (time.Time, error) {
	// Postgres may hand back a full timestamp for date-like text.
	if len(s) > len(domain.DateLayout) {
		s = s[:len(domain.DateLayout)]
	}
	return time.Parse(domain.DateLayout, s)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

var _ domain.Repository = (*SQLRepository)(nil)
