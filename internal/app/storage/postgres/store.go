// Package postgres implements the storage interfaces backed by PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iacai-network/access-layer/internal/app/domain/ledger"
	"github.com/iacai-network/access-layer/internal/app/domain/purchase"
	"github.com/iacai-network/access-layer/internal/app/domain/tier"
	"github.com/iacai-network/access-layer/internal/app/storage"
)

// Store implements the storage interfaces over a database handle. See
// schema.sql for the expected tables.
type Store struct {
	db *sql.DB
}

var _ storage.LedgerStore = (*Store)(nil)
var _ storage.ReceiptStore = (*Store)(nil)
var _ storage.SessionStore = (*Store)(nil)

// New creates a Store using the provided database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func normalize(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

// --- LedgerStore ------------------------------------------------------------

func (s *Store) GetWallet(ctx context.Context, address string) (ledger.Wallet, error) {
	var w ledger.Wallet
	var rawTier string
	err := s.db.QueryRowContext(ctx, `
		SELECT address, tier, balance, total_credited, total_spent, created_at, updated_at
		FROM access_wallets WHERE address = $1
	`, normalize(address)).Scan(&w.Address, &rawTier, &w.Balance, &w.TotalCredited, &w.TotalSpent, &w.CreatedAt, &w.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Wallet{Address: normalize(address), Tier: tier.None}, nil
	}
	if err != nil {
		return ledger.Wallet{}, err
	}
	w.Tier = tier.Parse(rawTier)
	return w, nil
}

func (s *Store) CreditBalance(ctx context.Context, address string, amount int64) (ledger.Wallet, error) {
	if amount <= 0 {
		return ledger.Wallet{}, ledger.ErrInvalidAmount
	}

	addr := normalize(address)
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO access_wallets (address, tier, balance, total_credited, total_spent, created_at, updated_at)
		VALUES ($1, 'none', $2, $2, 0, $3, $3)
		ON CONFLICT (address) DO UPDATE
		SET balance = access_wallets.balance + $2,
		    total_credited = access_wallets.total_credited + $2,
		    updated_at = $3
	`, addr, amount, now)
	if err != nil {
		return ledger.Wallet{}, err
	}
	return s.GetWallet(ctx, addr)
}

// DebitBalance applies the debit with a conditional update so that two
// concurrent debits cannot both pass the balance check.
func (s *Store) DebitBalance(ctx context.Context, address string, amount int64) (ledger.Wallet, error) {
	if amount <= 0 {
		return ledger.Wallet{}, ledger.ErrInvalidAmount
	}

	addr := normalize(address)
	result, err := s.db.ExecContext(ctx, `
		UPDATE access_wallets
		SET balance = balance - $2,
		    total_spent = total_spent + $2,
		    updated_at = $3
		WHERE address = $1 AND balance >= $2
	`, addr, amount, time.Now().UTC())
	if err != nil {
		return ledger.Wallet{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return ledger.Wallet{}, ledger.ErrInsufficientBalance
	}
	return s.GetWallet(ctx, addr)
}

func (s *Store) SetTier(ctx context.Context, address string, t tier.Tier) (ledger.Wallet, error) {
	addr := normalize(address)
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO access_wallets (address, tier, balance, total_credited, total_spent, created_at, updated_at)
		VALUES ($1, $2, 0, 0, 0, $3, $3)
		ON CONFLICT (address) DO UPDATE
		SET tier = $2, updated_at = $3
	`, addr, string(t), now)
	if err != nil {
		return ledger.Wallet{}, err
	}
	return s.GetWallet(ctx, addr)
}

func (s *Store) AppendEntry(ctx context.Context, entry ledger.Entry) (ledger.Entry, error) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	entry.Wallet = normalize(entry.Wallet)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ledger_entries (id, wallet, kind, amount, reason, balance, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, entry.ID, entry.Wallet, string(entry.Kind), entry.Amount, entry.Reason, entry.Balance, entry.CreatedAt)
	if err != nil {
		return ledger.Entry{}, err
	}
	return entry, nil
}

func (s *Store) ListEntries(ctx context.Context, address string) ([]ledger.Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, wallet, kind, amount, reason, balance, created_at
		FROM ledger_entries WHERE wallet = $1 ORDER BY created_at
	`, normalize(address))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ledger.Entry
	for rows.Next() {
		var e ledger.Entry
		var kind string
		if err := rows.Scan(&e.ID, &e.Wallet, &kind, &e.Amount, &e.Reason, &e.Balance, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Kind = ledger.EntryKind(kind)
		out = append(out, e)
	}
	return out, rows.Err()
}

// --- ReceiptStore -----------------------------------------------------------

func (s *Store) CreateReceipt(ctx context.Context, receipt purchase.Receipt) (purchase.Receipt, error) {
	if receipt.ID == "" {
		receipt.ID = uuid.NewString()
	}
	if receipt.CreatedAt.IsZero() {
		receipt.CreatedAt = time.Now().UTC()
	}
	receipt.Wallet = normalize(receipt.Wallet)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO purchase_receipts (id, wallet, kind, item_id, tokens, tier, price_eth, price_usd, tx_hash, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, receipt.ID, receipt.Wallet, string(receipt.Kind), receipt.ItemID, receipt.Tokens,
		string(receipt.Tier), receipt.PriceETH, receipt.PriceUSD, receipt.TxHash, receipt.CreatedAt)
	if err != nil {
		return purchase.Receipt{}, err
	}
	return receipt, nil
}

func (s *Store) ListReceipts(ctx context.Context, address string) ([]purchase.Receipt, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, wallet, kind, item_id, tokens, tier, price_eth, price_usd, tx_hash, created_at
		FROM purchase_receipts WHERE wallet = $1 ORDER BY created_at
	`, normalize(address))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []purchase.Receipt
	for rows.Next() {
		var r purchase.Receipt
		var kind, rawTier string
		if err := rows.Scan(&r.ID, &r.Wallet, &kind, &r.ItemID, &r.Tokens, &rawTier, &r.PriceETH, &r.PriceUSD, &r.TxHash, &r.CreatedAt); err != nil {
			return nil, err
		}
		r.Kind = purchase.Kind(kind)
		r.Tier = tier.Parse(rawTier)
		out = append(out, r)
	}
	return out, rows.Err()
}

// --- SessionStore -----------------------------------------------------------

func (s *Store) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM session_kv WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

func (s *Store) Set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO session_kv (key, value, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET value = $2, updated_at = $3
	`, key, value, time.Now().UTC())
	return err
}

func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM session_kv WHERE key = $1`, key)
	return err
}
