// Package memory provides an in-memory implementation of the storage
// interfaces. It is safe for concurrent use and is primarily intended for
// tests and local development.
package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/iacai-network/access-layer/internal/app/domain/ledger"
	"github.com/iacai-network/access-layer/internal/app/domain/purchase"
	"github.com/iacai-network/access-layer/internal/app/domain/tier"
	"github.com/iacai-network/access-layer/internal/app/storage"
)

// Store keeps every record in process memory behind a single mutex, which
// also makes balance mutations naturally atomic.
type Store struct {
	mu       sync.RWMutex
	nextID   int64
	wallets  map[string]ledger.Wallet
	entries  map[string][]ledger.Entry
	receipts map[string][]purchase.Receipt
	kv       map[string]string
}

var _ storage.LedgerStore = (*Store)(nil)
var _ storage.ReceiptStore = (*Store)(nil)
var _ storage.SessionStore = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		nextID:   1,
		wallets:  make(map[string]ledger.Wallet),
		entries:  make(map[string][]ledger.Entry),
		receipts: make(map[string][]purchase.Receipt),
		kv:       make(map[string]string),
	}
}

func (s *Store) nextIDLocked() string {
	id := s.nextID
	s.nextID++
	return fmt.Sprintf("%d", id)
}

func normalize(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

// LedgerStore implementation -------------------------------------------------

func (s *Store) GetWallet(_ context.Context, address string) (ledger.Wallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	key := normalize(address)
	if w, ok := s.wallets[key]; ok {
		return w, nil
	}
	return ledger.Wallet{Address: key, Tier: tier.None}, nil
}

func (s *Store) CreditBalance(_ context.Context, address string, amount int64) (ledger.Wallet, error) {
	if amount <= 0 {
		return ledger.Wallet{}, ledger.ErrInvalidAmount
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	w := s.walletLocked(address)
	w.Balance += amount
	w.TotalCredited += amount
	w.UpdatedAt = time.Now().UTC()
	s.wallets[w.Address] = w
	return w, nil
}

func (s *Store) DebitBalance(_ context.Context, address string, amount int64) (ledger.Wallet, error) {
	if amount <= 0 {
		return ledger.Wallet{}, ledger.ErrInvalidAmount
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	w := s.walletLocked(address)
	if w.Balance < amount {
		return ledger.Wallet{}, ledger.ErrInsufficientBalance
	}
	w.Balance -= amount
	w.TotalSpent += amount
	w.UpdatedAt = time.Now().UTC()
	s.wallets[w.Address] = w
	return w, nil
}

func (s *Store) SetTier(_ context.Context, address string, t tier.Tier) (ledger.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w := s.walletLocked(address)
	w.Tier = t
	w.UpdatedAt = time.Now().UTC()
	s.wallets[w.Address] = w
	return w, nil
}

// walletLocked loads or creates the record for an address. Callers must
// hold the write lock.
func (s *Store) walletLocked(address string) ledger.Wallet {
	key := normalize(address)
	if w, ok := s.wallets[key]; ok {
		return w
	}
	now := time.Now().UTC()
	return ledger.Wallet{Address: key, Tier: tier.None, CreatedAt: now, UpdatedAt: now}
}

func (s *Store) AppendEntry(_ context.Context, entry ledger.Entry) (ledger.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = s.nextIDLocked()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	entry.Wallet = normalize(entry.Wallet)
	s.entries[entry.Wallet] = append(s.entries[entry.Wallet], entry)
	return entry, nil
}

func (s *Store) ListEntries(_ context.Context, address string) ([]ledger.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	src := s.entries[normalize(address)]
	out := make([]ledger.Entry, len(src))
	copy(out, src)
	return out, nil
}

// ReceiptStore implementation ------------------------------------------------

func (s *Store) CreateReceipt(_ context.Context, receipt purchase.Receipt) (purchase.Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if receipt.ID == "" {
		receipt.ID = s.nextIDLocked()
	}
	if receipt.CreatedAt.IsZero() {
		receipt.CreatedAt = time.Now().UTC()
	}
	receipt.Wallet = normalize(receipt.Wallet)
	s.receipts[receipt.Wallet] = append(s.receipts[receipt.Wallet], receipt)
	return receipt, nil
}

func (s *Store) ListReceipts(_ context.Context, address string) ([]purchase.Receipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	src := s.receipts[normalize(address)]
	out := make([]purchase.Receipt, len(src))
	copy(out, src)
	return out, nil
}

// SessionStore implementation ------------------------------------------------

func (s *Store) Get(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.kv[key], nil
}

func (s *Store) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.kv[key] = value
	return nil
}

func (s *Store) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.kv, key)
	return nil
}
