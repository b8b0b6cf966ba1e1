package purchase

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/nspcc-dev/neo-go/pkg/util"

	"github.com/iacai-network/access-layer/internal/app/chain"
	domain "github.com/iacai-network/access-layer/internal/app/domain/purchase"
)

// stubProvider lets tests script the wallet's transaction behaviour.
type stubProvider struct {
	result *chain.TxResult
	err    error
	lastTx chain.Transaction
}

func (s *stubProvider) IsAuthenticated(context.Context) bool { return true }
func (s *stubProvider) WalletAddress(context.Context) string { return "0xabc" }
func (s *stubProvider) Login(context.Context) error          { return nil }
func (s *stubProvider) Logout(context.Context) error         { return nil }
func (s *stubProvider) ExecuteTransaction(_ context.Context, tx chain.Transaction) (*chain.TxResult, error) {
	s.lastTx = tx
	return s.result, s.err
}

func TestChainExecutorNilResultIsRejection(t *testing.T) {
	provider := &stubProvider{result: nil, err: nil}
	exec := NewChainExecutor(provider, util.Uint160{}, util.Uint160{})
	order, _ := domain.NewOrder("o-1", "0xabc", domain.KindTokenPackage, "starter")

	_, err := exec.Execute(context.Background(), order, nil)
	if !errors.Is(err, ErrTransactionRejected) {
		t.Fatalf("err = %v, want ErrTransactionRejected", err)
	}
	var txErr *TransactionError
	if !errors.As(err, &txErr) || txErr.OrderID != "o-1" {
		t.Fatalf("expected TransactionError carrying the order, got %v", err)
	}
}

func TestChainExecutorWrapsProviderError(t *testing.T) {
	boom := errors.New("user rejected signature")
	provider := &stubProvider{err: boom}
	exec := NewChainExecutor(provider, util.Uint160{}, util.Uint160{})
	order, _ := domain.NewOrder("o-2", "0xabc", domain.KindNFT, "basic")

	_, err := exec.Execute(context.Background(), order, nil)
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want wrapped %v", err, boom)
	}
}

func TestChainExecutorBuildsTransaction(t *testing.T) {
	provider := &stubProvider{result: &chain.TxResult{Confirmed: true}}
	exec := NewChainExecutor(provider, util.Uint160{0x01}, util.Uint160{0x02})
	order, _ := domain.NewOrder("o-3", "0xabc", domain.KindTokenPackage, "starter")

	if _, err := exec.Execute(context.Background(), order, nil); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if provider.lastTx.Method != "purchaseTokens" {
		t.Fatalf("method = %q, want purchaseTokens", provider.lastTx.Method)
	}
	if provider.lastTx.Contract != (util.Uint160{0x02}) {
		t.Fatal("token purchase routed to wrong contract")
	}
	// starter costs 0.005 ETH.
	want := big.NewInt(5_000_000_000_000_000)
	if provider.lastTx.ValueWei.Cmp(want) != 0 {
		t.Fatalf("value = %s wei, want %s", provider.lastTx.ValueWei, want)
	}
}

func TestSimulatedExecutorHonoursCancellation(t *testing.T) {
	exec := NewSimulatedExecutor(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := exec.Execute(ctx, domain.Order{}, nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
