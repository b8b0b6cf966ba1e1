// Package app wires the access layer services together.
package app

import (
	"fmt"

	"github.com/iacai-network/access-layer/internal/app/auth"
	"github.com/iacai-network/access-layer/internal/app/chain"
	"github.com/iacai-network/access-layer/internal/app/events"
	gatesvc "github.com/iacai-network/access-layer/internal/app/services/gate"
	ledgersvc "github.com/iacai-network/access-layer/internal/app/services/ledger"
	purchasesvc "github.com/iacai-network/access-layer/internal/app/services/purchase"
	"github.com/iacai-network/access-layer/internal/app/storage"
	"github.com/iacai-network/access-layer/internal/app/storage/memory"
	"github.com/iacai-network/access-layer/internal/config"
	"github.com/iacai-network/access-layer/pkg/logger"
)

// Stores encapsulates persistence dependencies. Nil stores default to a
// shared in-memory implementation.
type Stores struct {
	Ledger   storage.LedgerStore
	Receipts storage.ReceiptStore
	Sessions storage.SessionStore
}

// Application ties the domain services together.
type Application struct {
	log *logger.Logger

	Bus       *events.Bus
	Provider  auth.Provider
	Verifier  *auth.Verifier
	Ledger    *ledgersvc.Service
	Gate      *gatesvc.Service
	Purchases *purchasesvc.Service
}

// New builds a fully initialised application. A nil provider gets the
// mock wallet provider; a nil executor is chosen from cfg.Web3.Mode.
func New(cfg *config.Config, stores Stores, provider auth.Provider, executor purchasesvc.Executor, log *logger.Logger) (*Application, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if log == nil {
		log = logger.NewDefault("app")
	}

	mem := memory.New()
	if stores.Ledger == nil {
		stores.Ledger = mem
	}
	if stores.Receipts == nil {
		stores.Receipts = mem
	}
	if stores.Sessions == nil {
		stores.Sessions = mem
	}

	bus := events.NewBus()

	if provider == nil {
		provider = auth.NewMockProvider(stores.Sessions, bus, log.Named("auth"), cfg.Web3.WalletAddress)
	}

	ledgerService := ledgersvc.NewService(stores.Ledger, bus, log.Named("ledger"))
	gateService := gatesvc.NewService(provider, stores.Ledger, ledgerService, log.Named("gate"))

	if executor == nil {
		switch cfg.Web3.Mode {
		case config.ModeChain:
			nftContract, err := chain.ParseContractAddress(cfg.Web3.NFTContractAddress)
			if err != nil {
				return nil, fmt.Errorf("nft contract: %w", err)
			}
			tokenContract, err := chain.ParseContractAddress(cfg.Web3.TokenContractAddress)
			if err != nil {
				return nil, fmt.Errorf("token contract: %w", err)
			}
			executor = purchasesvc.NewChainExecutor(provider, nftContract, tokenContract)
		default:
			executor = purchasesvc.NewSimulatedExecutor(nil)
		}
	}

	purchaseService := purchasesvc.NewService(
		ledgerService,
		stores.Ledger,
		stores.Receipts,
		provider,
		executor,
		bus,
		log.Named("purchase"),
		cfg.Web3.PurchaseTimeout,
	)

	verifier := auth.NewVerifier(cfg.Web3.VerifierEndpoint, cfg.Web3.JWTSecret, log.Named("verifier"))

	return &Application{
		log:       log,
		Bus:       bus,
		Provider:  provider,
		Verifier:  verifier,
		Ledger:    ledgerService,
		Gate:      gateService,
		Purchases: purchaseService,
	}, nil
}

// Close releases application resources.
func (a *Application) Close() {
	a.Bus.Close()
}
