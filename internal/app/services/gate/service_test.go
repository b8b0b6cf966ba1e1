package gate

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/iacai-network/access-layer/internal/app/auth"
	"github.com/iacai-network/access-layer/internal/app/domain/tier"
	ledgersvc "github.com/iacai-network/access-layer/internal/app/services/ledger"
	"github.com/iacai-network/access-layer/internal/app/storage/memory"
)

func newTestGate(t *testing.T) (*Service, *memory.Store, *auth.MockProvider) {
	t.Helper()
	store := memory.New()
	provider := auth.NewMockProvider(store, nil, nil, "")
	ledger := ledgersvc.NewService(store, nil, nil)
	return NewService(provider, store, ledger, nil), store, provider
}

func denialReason(t *testing.T, err error) DenialReason {
	t.Helper()
	var denied *DeniedError
	if !errors.As(err, &denied) {
		t.Fatalf("err = %v, want *DeniedError", err)
	}
	return denied.Reason
}

func TestDeniedWhenNotAuthenticated(t *testing.T) {
	svc, _, _ := newTestGate(t)

	_, err := svc.Authorize(context.Background(), "", "terraform_analysis")
	if got := denialReason(t, err); got != ReasonNotAuthenticated {
		t.Fatalf("reason = %s, want %s", got, ReasonNotAuthenticated)
	}
}

func TestDeniedWithoutTier(t *testing.T) {
	svc, _, provider := newTestGate(t)
	ctx := context.Background()
	if err := provider.Login(ctx); err != nil {
		t.Fatalf("login: %v", err)
	}

	_, err := svc.Authorize(ctx, auth.DefaultMockWallet, "terraform_analysis")
	if got := denialReason(t, err); got != ReasonNoAccessTier {
		t.Fatalf("reason = %s, want %s", got, ReasonNoAccessTier)
	}
}

func TestDeniedWhenTierTooLow(t *testing.T) {
	svc, store, provider := newTestGate(t)
	ctx := context.Background()
	if err := provider.Login(ctx); err != nil {
		t.Fatalf("login: %v", err)
	}
	if _, err := store.SetTier(ctx, auth.DefaultMockWallet, tier.Basic); err != nil {
		t.Fatalf("set tier: %v", err)
	}
	if _, err := store.CreditBalance(ctx, auth.DefaultMockWallet, 100); err != nil {
		t.Fatalf("credit: %v", err)
	}

	_, err := svc.Authorize(ctx, auth.DefaultMockWallet, "security_audit")
	if got := denialReason(t, err); got != ReasonTierTooLow {
		t.Fatalf("reason = %s, want %s", got, ReasonTierTooLow)
	}
}

func TestDeniedWhenBroke(t *testing.T) {
	svc, store, provider := newTestGate(t)
	ctx := context.Background()
	if err := provider.Login(ctx); err != nil {
		t.Fatalf("login: %v", err)
	}
	if _, err := store.SetTier(ctx, auth.DefaultMockWallet, tier.Enterprise); err != nil {
		t.Fatalf("set tier: %v", err)
	}

	_, err := svc.Authorize(ctx, auth.DefaultMockWallet, "full_review")
	if got := denialReason(t, err); got != ReasonInsufficientTokens {
		t.Fatalf("reason = %s, want %s", got, ReasonInsufficientTokens)
	}
}

func TestAuthorizeAndDebitSpends(t *testing.T) {
	svc, store, provider := newTestGate(t)
	ctx := context.Background()
	if err := provider.Login(ctx); err != nil {
		t.Fatalf("login: %v", err)
	}
	if _, err := store.SetTier(ctx, auth.DefaultMockWallet, tier.Pro); err != nil {
		t.Fatalf("set tier: %v", err)
	}
	if _, err := store.CreditBalance(ctx, auth.DefaultMockWallet, 10); err != nil {
		t.Fatalf("credit: %v", err)
	}

	decision, err := svc.AuthorizeAndDebit(ctx, auth.DefaultMockWallet, "llm_analysis")
	if err != nil {
		t.Fatalf("authorize and debit: %v", err)
	}
	if decision.Wallet.Balance != 5 {
		t.Fatalf("balance = %d, want 5", decision.Wallet.Balance)
	}

	// Second spend of 5 exhausts the balance, third is refused.
	if _, err := svc.AuthorizeAndDebit(ctx, auth.DefaultMockWallet, "cost_optimization"); err != nil {
		t.Fatalf("second spend: %v", err)
	}
	_, err = svc.AuthorizeAndDebit(ctx, auth.DefaultMockWallet, "preview_analysis")
	if got := denialReason(t, err); got != ReasonInsufficientTokens {
		t.Fatalf("reason = %s, want %s", got, ReasonInsufficientTokens)
	}
}

func TestConcurrentSpendsNeverOverdraw(t *testing.T) {
	svc, store, provider := newTestGate(t)
	ctx := context.Background()
	if err := provider.Login(ctx); err != nil {
		t.Fatalf("login: %v", err)
	}
	if _, err := store.SetTier(ctx, auth.DefaultMockWallet, tier.Enterprise); err != nil {
		t.Fatalf("set tier: %v", err)
	}
	// full_review costs 15; a balance of 20 funds exactly one run.
	if _, err := store.CreditBalance(ctx, auth.DefaultMockWallet, 20); err != nil {
		t.Fatalf("credit: %v", err)
	}

	var wg sync.WaitGroup
	results := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.AuthorizeAndDebit(ctx, auth.DefaultMockWallet, "full_review")
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var ok, denied int
	for err := range results {
		if err == nil {
			ok++
			continue
		}
		if denialReason(t, err) == ReasonInsufficientTokens {
			denied++
		}
	}
	if ok != 1 || denied != 1 {
		t.Fatalf("got %d successes and %d denials, want exactly 1 and 1", ok, denied)
	}

	record, err := store.GetWallet(ctx, auth.DefaultMockWallet)
	if err != nil {
		t.Fatalf("get wallet: %v", err)
	}
	if record.Balance != 5 {
		t.Fatalf("balance = %d, want 5", record.Balance)
	}
}

func TestUnknownOperationRejected(t *testing.T) {
	svc, _, provider := newTestGate(t)
	ctx := context.Background()
	if err := provider.Login(ctx); err != nil {
		t.Fatalf("login: %v", err)
	}

	if _, err := svc.Authorize(ctx, auth.DefaultMockWallet, "quantum_audit"); err == nil {
		t.Fatal("expected error for unknown operation")
	}
}
