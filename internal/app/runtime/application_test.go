package runtime

import (
	"context"
	"testing"

	"github.com/iacai-network/access-layer/internal/config"
	"github.com/iacai-network/access-layer/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.NewDefault("test")
}

func TestNewApplicationWithDefaults(t *testing.T) {
	app, err := NewApplicationWithConfig(config.Default())
	if err != nil {
		t.Fatalf("new application: %v", err)
	}
	if app.server == nil {
		t.Fatal("no HTTP server configured")
	}
	if app.db != nil || app.rdb != nil {
		t.Fatal("default config must not open external stores")
	}
	if err := app.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestBuildStoresDefaultsToMemory(t *testing.T) {
	cfg := config.Default()
	stores, db, rdb, err := buildStores(cfg, testLogger())
	if err != nil {
		t.Fatalf("build stores: %v", err)
	}
	if db != nil || rdb != nil {
		t.Fatal("memory path opened a connection")
	}
	if stores.Ledger != nil || stores.Receipts != nil || stores.Sessions != nil {
		t.Fatal("memory path should leave stores nil for app-level defaulting")
	}
}
