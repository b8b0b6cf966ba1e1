// Package migrations applies the PostgreSQL schema for the access layer.
package migrations

import (
	"context"
	"database/sql"
	"fmt"
)

// statements holds the schema DDL in apply order. Every statement is
// idempotent so Apply can run on each startup.
var statements = []string{
	`CREATE TABLE IF NOT EXISTS access_wallets (
		address        TEXT PRIMARY KEY,
		tier           TEXT NOT NULL DEFAULT 'none',
		balance        BIGINT NOT NULL DEFAULT 0 CHECK (balance >= 0),
		total_credited BIGINT NOT NULL DEFAULT 0,
		total_spent    BIGINT NOT NULL DEFAULT 0,
		created_at     TIMESTAMPTZ NOT NULL,
		updated_at     TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS ledger_entries (
		id         UUID PRIMARY KEY,
		wallet     TEXT NOT NULL,
		kind       TEXT NOT NULL,
		amount     BIGINT NOT NULL,
		reason     TEXT NOT NULL DEFAULT '',
		balance    BIGINT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS ledger_entries_wallet_idx ON ledger_entries (wallet, created_at)`,
	`CREATE TABLE IF NOT EXISTS purchase_receipts (
		id         UUID PRIMARY KEY,
		wallet     TEXT NOT NULL,
		kind       TEXT NOT NULL,
		item_id    TEXT NOT NULL,
		tokens     BIGINT NOT NULL DEFAULT 0,
		tier       TEXT NOT NULL DEFAULT 'none',
		price_eth  DOUBLE PRECISION NOT NULL,
		price_usd  DOUBLE PRECISION NOT NULL,
		tx_hash    TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS purchase_receipts_wallet_idx ON purchase_receipts (wallet, created_at)`,
	`CREATE TABLE IF NOT EXISTS session_kv (
		key        TEXT PRIMARY KEY,
		value      TEXT NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
}

// Apply runs every schema statement against the database.
func Apply(ctx context.Context, db *sql.DB) error {
	for i, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply migration %d: %w", i+1, err)
		}
	}
	return nil
}
