package postgres

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	_ "github.com/lib/pq"

	"github.com/iacai-network/access-layer/internal/app/domain/ledger"
	"github.com/iacai-network/access-layer/internal/app/domain/tier"
)

func TestDebitBalanceConditionalUpdate(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	store := New(db)
	ctx := context.Background()

	// Conditional update misses: balance below the requested amount.
	mock.ExpectExec("UPDATE access_wallets").
		WithArgs("0xabc", int64(60), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	if _, err := store.DebitBalance(ctx, "0xABC", 60); !errors.Is(err, ledger.ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}

	// Conditional update hits: one row changed, wallet re-read.
	mock.ExpectExec("UPDATE access_wallets").
		WithArgs("0xabc", int64(60), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT address, tier, balance").
		WithArgs("0xabc").
		WillReturnRows(sqlmock.NewRows([]string{"address", "tier", "balance", "total_credited", "total_spent", "created_at", "updated_at"}).
			AddRow("0xabc", "basic", int64(40), int64(100), int64(60), sampleTime(t), sampleTime(t)))

	w, err := store.DebitBalance(ctx, "0xABC", 60)
	if err != nil {
		t.Fatalf("debit: %v", err)
	}
	if w.Balance != 40 || w.Tier != tier.Basic {
		t.Fatalf("unexpected wallet after debit: %+v", w)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDebitBalanceRejectsNonPositive(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	store := New(db)
	if _, err := store.DebitBalance(context.Background(), "0xabc", 0); !errors.Is(err, ledger.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
}

func TestGetWalletAbsent(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("SELECT address, tier, balance").
		WithArgs("0xmissing").
		WillReturnError(sql.ErrNoRows)

	w, err := New(db).GetWallet(context.Background(), "0xMISSING")
	if err != nil {
		t.Fatalf("get wallet: %v", err)
	}
	if w.Balance != 0 || w.Tier != tier.None {
		t.Fatalf("absent wallet should be empty: %+v", w)
	}
}

func TestStoreIntegration(t *testing.T) {
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set; skipping postgres integration test")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()

	store := New(db)
	ctx := context.Background()

	if _, err := store.CreditBalance(ctx, "0xintegration", 500); err != nil {
		t.Fatalf("credit: %v", err)
	}
	w, err := store.DebitBalance(ctx, "0xintegration", 5)
	if err != nil {
		t.Fatalf("debit: %v", err)
	}
	if w.Balance < 0 {
		t.Fatalf("balance went negative: %d", w.Balance)
	}
}

func sampleTime(t *testing.T) time.Time {
	t.Helper()
	return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
}
