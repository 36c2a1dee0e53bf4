package repository

// Schema definitions for the Kestrel database.
// Compatible with both SQLite and PostgreSQL. Each entry is a single
// statement so that every driver can execute it without multi-statement
// support.
//
// Instants are stored as Unix milliseconds (transactions) or nanoseconds
// (rules) so that window and ordering comparisons are plain integer
// comparisons on every backend.

const schemaTransactions = `
CREATE TABLE IF NOT EXISTS transactions (
    transaction_id TEXT PRIMARY KEY,
    email TEXT NOT NULL,
    card_bin TEXT NOT NULL,
    card_last_four TEXT NOT NULL,
    amount DOUBLE PRECISION NOT NULL,
    currency TEXT NOT NULL,
    billing_country TEXT NOT NULL,
    shipping_country TEXT NOT NULL,
    ip_country TEXT NOT NULL,
    product_category TEXT NOT NULL,
    customer_id TEXT,
    is_first_purchase INTEGER NOT NULL DEFAULT 1,
    occurred_at BIGINT NOT NULL,
    created_at BIGINT NOT NULL
)`

const schemaRules = `
CREATE TABLE IF NOT EXISTS rules (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    description TEXT,
    conditions TEXT NOT NULL,
    action TEXT NOT NULL,
    risk_score_modifier INTEGER NOT NULL DEFAULT 0,
    is_active INTEGER NOT NULL DEFAULT 1,
    priority INTEGER NOT NULL DEFAULT 0,
    created_at BIGINT NOT NULL
)`

const schemaChargebacks = `
CREATE TABLE IF NOT EXISTS chargebacks (
    id TEXT PRIMARY KEY,
    transaction_id TEXT NOT NULL,
    transaction_date TEXT NOT NULL,
    chargeback_date TEXT NOT NULL,
    amount NUMERIC(14,2) NOT NULL,
    country TEXT NOT NULL,
    product_category TEXT NOT NULL,
    reason_code TEXT NOT NULL,
    email TEXT NOT NULL,
    card_bin TEXT NOT NULL
)`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaTransactions,
		`CREATE INDEX IF NOT EXISTS idx_transactions_email ON transactions(email, occurred_at)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_card_bin ON transactions(card_bin, occurred_at)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_ip_country ON transactions(ip_country, occurred_at)`,
		schemaRules,
		`CREATE INDEX IF NOT EXISTS idx_rules_active ON rules(is_active, priority, created_at)`,
		schemaChargebacks,
		`CREATE INDEX IF NOT EXISTS idx_chargebacks_date ON chargebacks(chargeback_date)`,
	}
}
