package memory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/iacai-network/access-layer/internal/app/domain/ledger"
	"github.com/iacai-network/access-layer/internal/app/domain/tier"
)

func TestCreditDebitRoundTrip(t *testing.T) {
	store := New()
	ctx := context.Background()

	w, err := store.GetWallet(ctx, "0xABC")
	if err != nil {
		t.Fatalf("get wallet: %v", err)
	}
	if w.Balance != 0 || w.Tier != tier.None {
		t.Fatalf("fresh wallet should be empty: %+v", w)
	}

	w, err = store.CreditBalance(ctx, "0xABC", 500)
	if err != nil {
		t.Fatalf("credit: %v", err)
	}
	if w.Balance != 500 {
		t.Fatalf("balance = %d, want 500", w.Balance)
	}

	w, err = store.DebitBalance(ctx, "0xabc", 500)
	if err != nil {
		t.Fatalf("debit: %v", err)
	}
	if w.Balance != 0 {
		t.Fatalf("round trip balance = %d, want 0", w.Balance)
	}
	if w.TotalCredited != 500 || w.TotalSpent != 500 {
		t.Fatalf("totals not tracked: %+v", w)
	}
}

func TestDebitInsufficientLeavesBalance(t *testing.T) {
	store := New()
	ctx := context.Background()

	if _, err := store.CreditBalance(ctx, "0xabc", 10); err != nil {
		t.Fatalf("credit: %v", err)
	}

	for i := 0; i < 2; i++ {
		if _, err := store.DebitBalance(ctx, "0xabc", 11); !errors.Is(err, ledger.ErrInsufficientBalance) {
			t.Fatalf("attempt %d: expected ErrInsufficientBalance, got %v", i, err)
		}
	}

	w, _ := store.GetWallet(ctx, "0xabc")
	if w.Balance != 10 {
		t.Fatalf("failed debit mutated balance: %d", w.Balance)
	}
}

func TestInvalidAmounts(t *testing.T) {
	store := New()
	ctx := context.Background()

	if _, err := store.CreditBalance(ctx, "0xabc", 0); !errors.Is(err, ledger.ErrInvalidAmount) {
		t.Fatalf("credit zero: %v", err)
	}
	if _, err := store.DebitBalance(ctx, "0xabc", -5); !errors.Is(err, ledger.ErrInvalidAmount) {
		t.Fatalf("debit negative: %v", err)
	}
}

func TestConcurrentDebitsNeverOverspend(t *testing.T) {
	store := New()
	ctx := context.Background()

	if _, err := store.CreditBalance(ctx, "0xabc", 100); err != nil {
		t.Fatalf("credit: %v", err)
	}

	var wg sync.WaitGroup
	results := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.DebitBalance(ctx, "0xabc", 60)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var succeeded, rejected int
	for err := range results {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, ledger.ErrInsufficientBalance):
			rejected++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if succeeded != 1 || rejected != 1 {
		t.Fatalf("expected exactly one success, got %d successes and %d rejections", succeeded, rejected)
	}

	w, _ := store.GetWallet(ctx, "0xabc")
	if w.Balance != 40 {
		t.Fatalf("final balance = %d, want 40", w.Balance)
	}
}

func TestSessionKV(t *testing.T) {
	store := New()
	ctx := context.Background()

	if v, _ := store.Get(ctx, "mockAuthenticated"); v != "" {
		t.Fatalf("absent key should read empty, got %q", v)
	}
	if err := store.Set(ctx, "mockAuthenticated", "true"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if v, _ := store.Get(ctx, "mockAuthenticated"); v != "true" {
		t.Fatalf("get = %q", v)
	}
	if err := store.Delete(ctx, "mockAuthenticated"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if v, _ := store.Get(ctx, "mockAuthenticated"); v != "" {
		t.Fatalf("deleted key should read empty, got %q", v)
	}
}
