// Package gate enforces the operation gate: every gated operation passes
// an ordered authorization check, and spends debit the ledger atomically
// with the authorization decision.
package gate

import (
	"context"
	"errors"
	"fmt"

	"github.com/iacai-network/access-layer/internal/app/auth"
	"github.com/iacai-network/access-layer/internal/app/domain/ledger"
	"github.com/iacai-network/access-layer/internal/app/domain/operation"
	"github.com/iacai-network/access-layer/internal/app/domain/tier"
	"github.com/iacai-network/access-layer/internal/app/metrics"
	ledgersvc "github.com/iacai-network/access-layer/internal/app/services/ledger"
	"github.com/iacai-network/access-layer/internal/app/storage"
	"github.com/iacai-network/access-layer/pkg/logger"
)

// DenialReason identifies why an operation was refused. Checks run in a
// fixed order, so a wallet that is both unauthenticated and broke is
// reported as unauthenticated.
type DenialReason string

const (
	ReasonNotAuthenticated   DenialReason = "not_authenticated"
	ReasonNoAccessTier       DenialReason = "no_access_tier"
	ReasonTierTooLow         DenialReason = "tier_too_low"
	ReasonInsufficientTokens DenialReason = "insufficient_tokens"
)

// DeniedError is an expected refusal, not a failure. Callers branch on
// Reason to tell the user what to fix.
type DeniedError struct {
	Reason       DenialReason
	Operation    string
	RequiredTier tier.Tier
	CurrentTier  tier.Tier
	TokenCost    int64
	Balance      int64
}

func (e *DeniedError) Error() string {
	switch e.Reason {
	case ReasonNotAuthenticated:
		return fmt.Sprintf("operation %s denied: wallet not authenticated", e.Operation)
	case ReasonNoAccessTier:
		return fmt.Sprintf("operation %s denied: wallet holds no access tier", e.Operation)
	case ReasonTierTooLow:
		return fmt.Sprintf("operation %s denied: requires %s tier, wallet has %s", e.Operation, e.RequiredTier, e.CurrentTier)
	case ReasonInsufficientTokens:
		return fmt.Sprintf("operation %s denied: costs %d tokens, balance is %d", e.Operation, e.TokenCost, e.Balance)
	default:
		return fmt.Sprintf("operation %s denied", e.Operation)
	}
}

// Decision is the successful outcome of an authorization.
type Decision struct {
	Operation operation.Request `json:"operation"`
	Wallet    ledger.Wallet     `json:"wallet"`
}

// Service answers "may this wallet run this operation" and performs the
// paired debit.
type Service struct {
	provider auth.Provider
	store    storage.LedgerStore
	ledger   *ledgersvc.Service
	log      *logger.Logger
}

// NewService wires the gate against the wallet provider and ledger.
func NewService(provider auth.Provider, store storage.LedgerStore, ledger *ledgersvc.Service, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("gate")
	}
	return &Service{provider: provider, store: store, ledger: ledger, log: log}
}

// Authorize runs the ordered checks for the wallet without spending
// anything. Authorization is advisory: the balance may change before a
// later spend, which is why spends go through AuthorizeAndDebit.
func (s *Service) Authorize(ctx context.Context, wallet, operationID string) (Decision, error) {
	op, record, err := s.check(ctx, wallet, operationID)
	if err != nil {
		s.observe(operationID, err)
		return Decision{}, err
	}
	metrics.RecordGateDecision(operationID, "allowed")
	return Decision{Operation: op, Wallet: record}, nil
}

// AuthorizeAndDebit authorizes the operation and debits its token cost in
// one decision. The debit itself is atomic at the store, so two
// concurrent spends can never both succeed against one balance.
func (s *Service) AuthorizeAndDebit(ctx context.Context, wallet, operationID string) (Decision, error) {
	op, _, err := s.check(ctx, wallet, operationID)
	if err != nil {
		s.observe(operationID, err)
		return Decision{}, err
	}

	record, err := s.ledger.Debit(ctx, wallet, op.TokenCost, "operation:"+operationID)
	if errors.Is(err, ledger.ErrInsufficientBalance) {
		// Lost a race with another spend since the check above.
		current, _ := s.store.GetWallet(ctx, wallet)
		denied := &DeniedError{
			Reason:    ReasonInsufficientTokens,
			Operation: operationID,
			TokenCost: op.TokenCost,
			Balance:   current.Balance,
		}
		s.observe(operationID, denied)
		return Decision{}, denied
	}
	if err != nil {
		return Decision{}, fmt.Errorf("debit for %s: %w", operationID, err)
	}

	metrics.RecordGateDecision(operationID, "allowed")
	metrics.RecordTokensSpent(operationID, op.TokenCost)
	s.log.WithField("wallet", record.Address).Infof("authorized %s, spent %d tokens", operationID, op.TokenCost)
	return Decision{Operation: op, Wallet: record}, nil
}

func (s *Service) check(ctx context.Context, wallet, operationID string) (operation.Request, ledger.Wallet, error) {
	op, err := operation.Lookup(operationID)
	if err != nil {
		return operation.Request{}, ledger.Wallet{}, err
	}

	if !s.provider.IsAuthenticated(ctx) {
		return operation.Request{}, ledger.Wallet{}, &DeniedError{Reason: ReasonNotAuthenticated, Operation: operationID}
	}
	if wallet == "" {
		wallet = s.provider.WalletAddress(ctx)
	}

	record, err := s.store.GetWallet(ctx, wallet)
	if err != nil {
		return operation.Request{}, ledger.Wallet{}, fmt.Errorf("read wallet %s: %w", wallet, err)
	}

	if op.RequiredTier != tier.None && record.Tier == tier.None {
		return operation.Request{}, ledger.Wallet{}, &DeniedError{
			Reason:       ReasonNoAccessTier,
			Operation:    operationID,
			RequiredTier: op.RequiredTier,
			CurrentTier:  tier.None,
		}
	}
	if !tier.IsSufficient(record.Tier, op.RequiredTier) {
		return operation.Request{}, ledger.Wallet{}, &DeniedError{
			Reason:       ReasonTierTooLow,
			Operation:    operationID,
			RequiredTier: op.RequiredTier,
			CurrentTier:  record.Tier,
		}
	}
	if record.Balance < op.TokenCost {
		return operation.Request{}, ledger.Wallet{}, &DeniedError{
			Reason:    ReasonInsufficientTokens,
			Operation: operationID,
			TokenCost: op.TokenCost,
			Balance:   record.Balance,
		}
	}
	return op, record, nil
}

func (s *Service) observe(operationID string, err error) {
	var denied *DeniedError
	if errors.As(err, &denied) {
		metrics.RecordGateDecision(operationID, string(denied.Reason))
		return
	}
	metrics.RecordGateDecision(operationID, "error")
}
