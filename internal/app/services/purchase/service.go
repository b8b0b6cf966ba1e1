// Package purchase runs the purchase flow: a small state machine that
// takes an order through authentication and payment, then applies the
// resulting tier or token grant exactly once.
package purchase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/iacai-network/access-layer/internal/app/auth"
	domain "github.com/iacai-network/access-layer/internal/app/domain/purchase"
	"github.com/iacai-network/access-layer/internal/app/domain/tier"
	"github.com/iacai-network/access-layer/internal/app/events"
	"github.com/iacai-network/access-layer/internal/app/metrics"
	ledgersvc "github.com/iacai-network/access-layer/internal/app/services/ledger"
	"github.com/iacai-network/access-layer/internal/app/storage"
	"github.com/iacai-network/access-layer/pkg/logger"
)

// State names a stage of the purchase flow.
type State string

const (
	StateIdle         State = "idle"
	StateAwaitingAuth State = "awaiting_auth"
	StateInProgress   State = "in_progress"
	StateSucceeded    State = "succeeded"
	StateFailed       State = "failed"
	StateCancelled    State = "cancelled"
)

// Progress is one recorded stage transition. Percent never decreases
// within a run.
type Progress struct {
	State   State     `json:"state"`
	Step    string    `json:"step,omitempty"`
	Percent int       `json:"percent"`
	At      time.Time `json:"at"`
}

// Result is the outcome of one purchase run.
type Result struct {
	Order   domain.Order    `json:"order"`
	State   State           `json:"state"`
	TxHash  string          `json:"tx_hash,omitempty"`
	Receipt *domain.Receipt `json:"receipt,omitempty"`
	Trace   []Progress      `json:"trace"`
	Error   string          `json:"error,omitempty"`
}

// Service is the purchase flow controller.
type Service struct {
	ledger   *ledgersvc.Service
	store    storage.LedgerStore
	receipts storage.ReceiptStore
	provider auth.Provider
	executor Executor
	bus      *events.Bus
	log      *logger.Logger
	timeout  time.Duration
}

// NewService wires the flow controller. A zero timeout defaults to two
// minutes.
func NewService(
	ledger *ledgersvc.Service,
	store storage.LedgerStore,
	receipts storage.ReceiptStore,
	provider auth.Provider,
	executor Executor,
	bus *events.Bus,
	log *logger.Logger,
	timeout time.Duration,
) *Service {
	if log == nil {
		log = logger.NewDefault("purchase")
	}
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Service{
		ledger:   ledger,
		store:    store,
		receipts: receipts,
		provider: provider,
		executor: executor,
		bus:      bus,
		log:      log,
		timeout:  timeout,
	}
}

// Run takes one order from idle to a terminal state. Ledger and tier
// state changes happen only on the success path, after payment confirmed.
func (s *Service) Run(ctx context.Context, wallet string, kind domain.Kind, itemID string) (Result, error) {
	started := time.Now()

	order, err := domain.NewOrder(uuid.NewString(), wallet, kind, itemID)
	if err != nil {
		return Result{}, err
	}

	run := &flowRun{order: order}
	run.record(StateIdle, "", 0)

	// Authentication gate. The mock provider logs in on demand, standing
	// in for the wallet prompt of a real provider.
	run.record(StateAwaitingAuth, "Connecting wallet", 0)
	if !s.provider.IsAuthenticated(ctx) {
		if err := s.provider.Login(ctx); err != nil {
			return s.fail(run, started, fmt.Errorf("wallet login: %w", err))
		}
	}
	if order.Wallet == "" {
		order.Wallet = s.provider.WalletAddress(ctx)
		run.order.Wallet = order.Wallet
	}
	if order.Wallet == "" {
		return s.fail(run, started, errors.New("no wallet address available"))
	}

	run.record(StateInProgress, "Starting purchase", 0)
	execCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	txResult, err := s.executor.Execute(execCtx, order, func(step string, percent int) {
		run.record(StateInProgress, step, percent)
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			run.record(StateCancelled, "Purchase cancelled", run.lastPercent())
			metrics.RecordPurchaseRun(string(order.Kind), string(StateCancelled), time.Since(started))
			s.log.WithField("order", order.ID).Warn("purchase cancelled before completion")
			return run.result(StateCancelled, err), nil
		}
		return s.fail(run, started, err)
	}

	txHash := hashString(txResult.Hash)
	receipt, err := s.settle(ctx, order, txHash)
	if err != nil {
		return s.fail(run, started, err)
	}

	run.record(StateSucceeded, "Purchase complete", 100)
	metrics.RecordPurchaseRun(string(order.Kind), string(StateSucceeded), time.Since(started))
	s.log.WithField("order", order.ID).WithField("wallet", order.Wallet).Infof("purchase of %s settled", order.ItemID)

	result := run.result(StateSucceeded, nil)
	result.TxHash = txHash
	result.Receipt = &receipt
	return result, nil
}

// settle applies the purchase outcome exactly once: grant tokens or
// upgrade the tier, then persist the receipt.
func (s *Service) settle(ctx context.Context, order domain.Order, txHash string) (domain.Receipt, error) {
	switch order.Kind {
	case domain.KindTokenPackage:
		record, err := s.ledger.Credit(ctx, order.Wallet, order.Tokens, "package:"+order.ItemID)
		if err != nil {
			return domain.Receipt{}, fmt.Errorf("grant tokens: %w", err)
		}
		if s.bus != nil {
			_ = s.bus.Publish(ctx, events.TopicTokensPurchased, "purchase", map[string]any{
				"wallet":  order.Wallet,
				"package": order.ItemID,
				"tokens":  order.Tokens,
				"balance": record.Balance,
			})
		}
	case domain.KindNFT:
		current, err := s.store.GetWallet(ctx, order.Wallet)
		if err != nil {
			return domain.Receipt{}, fmt.Errorf("read wallet: %w", err)
		}
		// Tier changes are upgrade-only: buying a lower NFT never
		// downgrades an existing tier.
		if tier.Rank(order.Tier) > tier.Rank(current.Tier) {
			if _, err := s.store.SetTier(ctx, order.Wallet, order.Tier); err != nil {
				return domain.Receipt{}, fmt.Errorf("set tier: %w", err)
			}
		}
		if s.bus != nil {
			_ = s.bus.Publish(ctx, events.TopicNFTPurchased, "purchase", map[string]any{
				"wallet": order.Wallet,
				"tier":   string(order.Tier),
			})
		}
	default:
		return domain.Receipt{}, fmt.Errorf("unknown purchase kind: %s", order.Kind)
	}

	receipt, err := s.receipts.CreateReceipt(ctx, domain.Receipt{
		Wallet:   order.Wallet,
		Kind:     order.Kind,
		ItemID:   order.ItemID,
		PriceETH: order.PriceETH,
		PriceUSD: order.PriceUSD,
		Tokens:   order.Tokens,
		Tier:     order.Tier,
		TxHash:   txHash,
	})
	if err != nil {
		// The grant already landed; a lost receipt is not worth failing
		// the purchase over.
		s.log.WithError(err).WithField("order", order.ID).Warn("store receipt failed")
		return domain.Receipt{Wallet: order.Wallet, Kind: order.Kind, ItemID: order.ItemID, TxHash: txHash}, nil
	}
	return receipt, nil
}

// Receipts lists the wallet's completed purchases.
func (s *Service) Receipts(ctx context.Context, wallet string) ([]domain.Receipt, error) {
	return s.receipts.ListReceipts(ctx, wallet)
}

func (s *Service) fail(run *flowRun, started time.Time, err error) (Result, error) {
	run.record(StateFailed, "Purchase failed", run.lastPercent())
	metrics.RecordPurchaseRun(string(run.order.Kind), string(StateFailed), time.Since(started))
	s.log.WithError(err).WithField("order", run.order.ID).Warn("purchase failed")
	return run.result(StateFailed, err), nil
}

// flowRun accumulates the progress trace for one purchase.
type flowRun struct {
	order domain.Order
	trace []Progress
}

func (r *flowRun) record(state State, step string, percent int) {
	if last := r.lastPercent(); percent < last {
		percent = last
	}
	r.trace = append(r.trace, Progress{State: state, Step: step, Percent: percent, At: time.Now().UTC()})
}

func (r *flowRun) lastPercent() int {
	if len(r.trace) == 0 {
		return 0
	}
	return r.trace[len(r.trace)-1].Percent
}

func (r *flowRun) result(state State, err error) Result {
	result := Result{Order: r.order, State: state, Trace: r.trace}
	if err != nil {
		result.Error = err.Error()
	}
	return result
}
