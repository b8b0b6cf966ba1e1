// Command accessd serves the access layer: tier-gated operation
// authorization, the token ledger, and the purchase flow.
package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/iacai-network/access-layer/internal/app/runtime"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Fatalf("accessd: %v", err)
	}
}

func run(ctx context.Context) error {
	// A missing .env file is fine; real deployments set the environment
	// directly.
	_ = godotenv.Load()

	app, err := runtime.NewApplication()
	if err != nil {
		return err
	}

	if err := app.Run(ctx); err != nil {
		return err
	}
	return app.Shutdown(context.Background())
}
