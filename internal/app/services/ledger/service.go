// Package ledger implements the token ledger service: balance reads,
// credits from purchases, and atomic debits for operation spends.
package ledger

import (
	"context"
	"fmt"

	"github.com/iacai-network/access-layer/internal/app/domain/ledger"
	"github.com/iacai-network/access-layer/internal/app/events"
	"github.com/iacai-network/access-layer/internal/app/storage"
	"github.com/iacai-network/access-layer/pkg/logger"
)

// Service journals every balance mutation and notifies subscribers of
// spends.
type Service struct {
	store storage.LedgerStore
	bus   *events.Bus
	log   *logger.Logger
}

// NewService wires the ledger service.
func NewService(store storage.LedgerStore, bus *events.Bus, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("ledger")
	}
	return &Service{store: store, bus: bus, log: log}
}

// Balance returns the wallet record. Unknown wallets read as zero-balance
// records with no tier.
func (s *Service) Balance(ctx context.Context, wallet string) (ledger.Wallet, error) {
	return s.store.GetWallet(ctx, wallet)
}

// History returns the wallet's journal, oldest first.
func (s *Service) History(ctx context.Context, wallet string) ([]ledger.Entry, error) {
	return s.store.ListEntries(ctx, wallet)
}

// Credit adds tokens to the wallet and journals the grant.
func (s *Service) Credit(ctx context.Context, wallet string, amount int64, reason string) (ledger.Wallet, error) {
	record, err := s.store.CreditBalance(ctx, wallet, amount)
	if err != nil {
		return ledger.Wallet{}, fmt.Errorf("credit %d tokens: %w", amount, err)
	}

	if _, err := s.store.AppendEntry(ctx, ledger.Entry{
		Wallet:  record.Address,
		Kind:    ledger.EntryCredit,
		Amount:  amount,
		Reason:  reason,
		Balance: record.Balance,
	}); err != nil {
		s.log.WithError(err).Warn("journal credit failed")
	}

	s.log.WithField("wallet", record.Address).Infof("credited %d tokens, balance %d", amount, record.Balance)
	return record, nil
}

// Debit removes tokens from the wallet. The debit is atomic: it either
// applies in full or fails with ledger.ErrInsufficientBalance and no
// state change, even when callers race.
func (s *Service) Debit(ctx context.Context, wallet string, amount int64, reason string) (ledger.Wallet, error) {
	record, err := s.store.DebitBalance(ctx, wallet, amount)
	if err != nil {
		return ledger.Wallet{}, err
	}

	if _, err := s.store.AppendEntry(ctx, ledger.Entry{
		Wallet:  record.Address,
		Kind:    ledger.EntryDebit,
		Amount:  amount,
		Reason:  reason,
		Balance: record.Balance,
	}); err != nil {
		s.log.WithError(err).Warn("journal debit failed")
	}

	if s.bus != nil {
		_ = s.bus.Publish(ctx, events.TopicTokensSpent, "ledger", map[string]any{
			"wallet":  record.Address,
			"amount":  amount,
			"reason":  reason,
			"balance": record.Balance,
		})
	}
	return record, nil
}
