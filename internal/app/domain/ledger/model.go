// Package ledger holds the wallet balance record and journal types.
package ledger

import (
	"errors"
	"time"

	"github.com/iacai-network/access-layer/internal/app/domain/tier"
)

// Sentinel errors surfaced by balance mutations.
var (
	ErrInvalidAmount       = errors.New("amount must be positive")
	ErrInsufficientBalance = errors.New("insufficient token balance")
)

// Wallet is the persisted per-address record: current tier, spendable
// token balance, and lifetime totals.
type Wallet struct {
	Address       string    `json:"address"`
	Tier          tier.Tier `json:"tier"`
	Balance       int64     `json:"balance"`
	TotalCredited int64     `json:"total_credited"`
	TotalSpent    int64     `json:"total_spent"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// EntryKind distinguishes journal directions.
type EntryKind string

const (
	EntryCredit EntryKind = "credit"
	EntryDebit  EntryKind = "debit"
)

// Entry is one journal line. Balance records the wallet balance after
// the mutation was applied.
type Entry struct {
	ID        string    `json:"id"`
	Wallet    string    `json:"wallet"`
	Kind      EntryKind `json:"kind"`
	Amount    int64     `json:"amount"`
	Reason    string    `json:"reason"`
	Balance   int64     `json:"balance"`
	CreatedAt time.Time `json:"created_at"`
}
