// Package storage declares the persistence interfaces used by the access
// layer services.
package storage

import (
	"context"

	"github.com/iacai-network/access-layer/internal/app/domain/ledger"
	"github.com/iacai-network/access-layer/internal/app/domain/purchase"
	"github.com/iacai-network/access-layer/internal/app/domain/tier"
)

// LedgerStore persists wallet tier and balance records plus the token
// journal. Balance mutations are atomic: DebitBalance either applies the
// full amount or fails with ledger.ErrInsufficientBalance leaving the
// record untouched, even under concurrent callers.
type LedgerStore interface {
	// GetWallet returns the record for an address. Absent wallets resolve
	// to a zero-balance, tierless record rather than an error.
	GetWallet(ctx context.Context, address string) (ledger.Wallet, error)
	CreditBalance(ctx context.Context, address string, amount int64) (ledger.Wallet, error)
	DebitBalance(ctx context.Context, address string, amount int64) (ledger.Wallet, error)
	SetTier(ctx context.Context, address string, t tier.Tier) (ledger.Wallet, error)

	AppendEntry(ctx context.Context, entry ledger.Entry) (ledger.Entry, error)
	ListEntries(ctx context.Context, address string) ([]ledger.Entry, error)
}

// ReceiptStore persists completed purchase receipts.
type ReceiptStore interface {
	CreateReceipt(ctx context.Context, receipt purchase.Receipt) (purchase.Receipt, error)
	ListReceipts(ctx context.Context, address string) ([]purchase.Receipt, error)
}

// SessionStore is a plain key-value store scoped to the deployment. The
// mock wallet provider keeps its session flags here so that a restart
// behaves like a browser reload did in the original front-end.
type SessionStore interface {
	// Get returns the stored value, or "" with no error when the key is
	// absent.
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}
