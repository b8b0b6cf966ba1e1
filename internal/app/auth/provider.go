// Package auth abstracts the wallet authentication provider and the
// optional backend verifier.
package auth

import (
	"context"
	"crypto/rand"
	"fmt"
	"time"

	"github.com/nspcc-dev/neo-go/pkg/util"

	"github.com/iacai-network/access-layer/internal/app/chain"
	"github.com/iacai-network/access-layer/internal/app/domain/session"
	"github.com/iacai-network/access-layer/internal/app/events"
	"github.com/iacai-network/access-layer/internal/app/storage"
	"github.com/iacai-network/access-layer/pkg/logger"
)

// Provider is the wallet/auth collaborator. In production this fronts an
// embedded-wallet SDK; in development the mock implementation below stands
// in for it.
type Provider interface {
	IsAuthenticated(ctx context.Context) bool
	WalletAddress(ctx context.Context) string
	Login(ctx context.Context) error
	Logout(ctx context.Context) error
	ExecuteTransaction(ctx context.Context, tx chain.Transaction) (*chain.TxResult, error)
}

// SessionOf snapshots the provider state into a session value.
func SessionOf(ctx context.Context, p Provider) session.Session {
	if !p.IsAuthenticated(ctx) {
		return session.Anonymous()
	}
	return session.Session{Authenticated: true, Address: p.WalletAddress(ctx)}
}

// DefaultMockWallet is the development wallet address.
const DefaultMockWallet = "0x742d35Cc6634C0532925a3b844Bc9e7595f0bEb"

// Session store keys used by the mock provider.
const (
	keyMockAuthenticated = "mockAuthenticated"
	keyMockWallet        = "mockWallet"
)

// MockProvider simulates the wallet provider against the session store, so
// login state survives restarts the way it survived page reloads in the
// original front-end. State is read from the store on every call; nothing
// is cached across calls.
type MockProvider struct {
	store  storage.SessionStore
	bus    *events.Bus
	log    *logger.Logger
	wallet string
}

var _ Provider = (*MockProvider)(nil)

// NewMockProvider creates a provider bound to the session store. An empty
// wallet selects DefaultMockWallet.
func NewMockProvider(store storage.SessionStore, bus *events.Bus, log *logger.Logger, wallet string) *MockProvider {
	if log == nil {
		log = logger.NewDefault("auth-mock")
	}
	if wallet == "" {
		wallet = DefaultMockWallet
	}
	return &MockProvider{store: store, bus: bus, log: log, wallet: wallet}
}

func (p *MockProvider) IsAuthenticated(ctx context.Context) bool {
	flag, err := p.store.Get(ctx, keyMockAuthenticated)
	if err != nil {
		p.log.WithError(err).Warn("read auth flag failed")
		return false
	}
	return flag == "true"
}

func (p *MockProvider) WalletAddress(ctx context.Context) string {
	addr, err := p.store.Get(ctx, keyMockWallet)
	if err != nil {
		p.log.WithError(err).Warn("read cached wallet failed")
		return ""
	}
	return addr
}

func (p *MockProvider) Login(ctx context.Context) error {
	if err := p.store.Set(ctx, keyMockAuthenticated, "true"); err != nil {
		return fmt.Errorf("persist auth flag: %w", err)
	}
	if err := p.store.Set(ctx, keyMockWallet, p.wallet); err != nil {
		return fmt.Errorf("persist wallet: %w", err)
	}

	p.log.WithField("wallet", p.wallet).Info("mock login")
	if p.bus != nil {
		_ = p.bus.Publish(ctx, events.TopicUserAuthenticated, "auth", map[string]any{"wallet": p.wallet})
	}
	return nil
}

func (p *MockProvider) Logout(ctx context.Context) error {
	if err := p.store.Delete(ctx, keyMockAuthenticated); err != nil {
		return fmt.Errorf("clear auth flag: %w", err)
	}
	if err := p.store.Delete(ctx, keyMockWallet); err != nil {
		return fmt.Errorf("clear wallet: %w", err)
	}

	p.log.Info("mock logout")
	if p.bus != nil {
		_ = p.bus.Publish(ctx, events.TopicUserLogout, "auth", nil)
	}
	return nil
}

// ExecuteTransaction pretends a wallet signed and submitted the
// transaction, returning a confirmed result with a random hash.
func (p *MockProvider) ExecuteTransaction(ctx context.Context, tx chain.Transaction) (*chain.TxResult, error) {
	if !p.IsAuthenticated(ctx) {
		return nil, fmt.Errorf("wallet not connected")
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(10 * time.Millisecond):
	}

	var raw [util.Uint256Size]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return nil, fmt.Errorf("generate tx hash: %w", err)
	}
	hash, err := util.Uint256DecodeBytesBE(raw[:])
	if err != nil {
		return nil, err
	}

	p.log.WithField("method", tx.Method).Debug("mock transaction executed")
	return &chain.TxResult{Hash: hash, Confirmed: true}, nil
}
