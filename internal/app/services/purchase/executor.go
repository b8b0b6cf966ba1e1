package purchase

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/nspcc-dev/neo-go/pkg/util"

	"github.com/iacai-network/access-layer/internal/app/auth"
	"github.com/iacai-network/access-layer/internal/app/chain"
	"github.com/iacai-network/access-layer/internal/app/domain/purchase"
)

// ErrTransactionRejected marks a wallet or chain refusal of the
// transaction, as opposed to a transport failure.
var ErrTransactionRejected = errors.New("transaction rejected")

// TransactionError wraps a chain-side failure with the order it belongs to.
type TransactionError struct {
	OrderID string
	Err     error
}

func (e *TransactionError) Error() string {
	return fmt.Sprintf("order %s: transaction failed: %v", e.OrderID, e.Err)
}

func (e *TransactionError) Unwrap() error { return e.Err }

// ProgressFunc receives step updates while an executor runs.
type ProgressFunc func(step string, percent int)

// Executor carries an order through payment. The flow controller owns all
// ledger and tier mutations; executors only move money on chain (or
// pretend to).
type Executor interface {
	Execute(ctx context.Context, order purchase.Order, progress ProgressFunc) (*chain.TxResult, error)
}

// Step is one timed stage of a simulated purchase.
type Step struct {
	Name    string
	Percent int
	Delay   time.Duration
}

// DefaultSteps mirrors the stages a real wallet purchase goes through.
func DefaultSteps() []Step {
	return []Step{
		{Name: "Preparing transaction", Percent: 10, Delay: 300 * time.Millisecond},
		{Name: "Awaiting wallet signature", Percent: 30, Delay: 900 * time.Millisecond},
		{Name: "Submitting transaction", Percent: 60, Delay: 600 * time.Millisecond},
		{Name: "Awaiting confirmation", Percent: 85, Delay: 900 * time.Millisecond},
		{Name: "Confirmed", Percent: 100, Delay: 300 * time.Millisecond},
	}
}

// SimulatedExecutor walks a fixed step table instead of touching a chain.
type SimulatedExecutor struct {
	steps []Step
}

var _ Executor = (*SimulatedExecutor)(nil)

// NewSimulatedExecutor builds a simulated executor. Nil steps select
// DefaultSteps.
func NewSimulatedExecutor(steps []Step) *SimulatedExecutor {
	if steps == nil {
		steps = DefaultSteps()
	}
	return &SimulatedExecutor{steps: steps}
}

// Execute plays the step table, honouring cancellation between steps.
func (e *SimulatedExecutor) Execute(ctx context.Context, _ purchase.Order, progress ProgressFunc) (*chain.TxResult, error) {
	for _, step := range e.steps {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(step.Delay):
		}
		if progress != nil {
			progress(step.Name, step.Percent)
		}
	}

	var raw [util.Uint256Size]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return nil, fmt.Errorf("generate tx hash: %w", err)
	}
	hash, err := util.Uint256DecodeBytesBE(raw[:])
	if err != nil {
		return nil, err
	}
	return &chain.TxResult{Hash: hash, Confirmed: true}, nil
}

// ChainExecutor submits the purchase through the wallet provider as a
// real contract call.
type ChainExecutor struct {
	provider      auth.Provider
	nftContract   util.Uint160
	tokenContract util.Uint160
}

var _ Executor = (*ChainExecutor)(nil)

// NewChainExecutor builds an executor bound to the deployed contracts.
func NewChainExecutor(provider auth.Provider, nftContract, tokenContract util.Uint160) *ChainExecutor {
	return &ChainExecutor{provider: provider, nftContract: nftContract, tokenContract: tokenContract}
}

func (e *ChainExecutor) Execute(ctx context.Context, order purchase.Order, progress ProgressFunc) (*chain.TxResult, error) {
	tx := chain.Transaction{
		ValueWei: ethToWei(order.PriceETH),
	}
	switch order.Kind {
	case purchase.KindNFT:
		tx.Contract = e.nftContract
		tx.Method = "purchaseTier"
		tx.Data = []byte(order.ItemID)
	case purchase.KindTokenPackage:
		tx.Contract = e.tokenContract
		tx.Method = "purchaseTokens"
		tx.Data = []byte(order.ItemID)
	default:
		return nil, fmt.Errorf("order %s: unknown kind %s", order.ID, order.Kind)
	}

	if progress != nil {
		progress("Submitting transaction", 50)
	}
	result, err := e.provider.ExecuteTransaction(ctx, tx)
	if err != nil {
		return nil, &TransactionError{OrderID: order.ID, Err: err}
	}
	if result == nil || !result.Confirmed {
		return nil, &TransactionError{OrderID: order.ID, Err: ErrTransactionRejected}
	}
	if progress != nil {
		progress("Confirmed", 100)
	}
	return result, nil
}

// ethToWei converts a catalog ETH price to wei without float drift on the
// catalog's four-decimal prices.
func ethToWei(eth float64) *big.Int {
	wei, _ := new(big.Float).Mul(big.NewFloat(eth), big.NewFloat(1e18)).Int(nil)
	return wei
}

func hashString(h util.Uint256) string {
	return "0x" + hex.EncodeToString(h.BytesBE())
}
