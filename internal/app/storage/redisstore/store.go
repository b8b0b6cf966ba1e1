// Package redisstore implements the storage interfaces over Redis. The
// original product kept all gating state in a shared browser-origin
// key-value store; Redis plays that role for server deployments where
// several instances share one ledger.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"github.com/iacai-network/access-layer/internal/app/domain/ledger"
	"github.com/iacai-network/access-layer/internal/app/domain/purchase"
	"github.com/iacai-network/access-layer/internal/app/domain/tier"
	"github.com/iacai-network/access-layer/internal/app/storage"
)

// debitRetries bounds optimistic transaction retries under contention.
const debitRetries = 5

// Store keeps wallet records as Redis hashes and journals as lists.
type Store struct {
	client *redis.Client
}

var _ storage.LedgerStore = (*Store)(nil)
var _ storage.ReceiptStore = (*Store)(nil)
var _ storage.SessionStore = (*Store)(nil)

// New creates a Store over an existing client.
func New(client *redis.Client) *Store {
	return &Store{client: client}
}

func normalize(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

func walletKey(address string) string  { return "access:wallet:" + normalize(address) }
func entriesKey(address string) string { return "access:entries:" + normalize(address) }
func receiptKey(address string) string { return "access:receipts:" + normalize(address) }
func kvKey(key string) string          { return "access:kv:" + key }

// --- LedgerStore ------------------------------------------------------------

func (s *Store) GetWallet(ctx context.Context, address string) (ledger.Wallet, error) {
	fields, err := s.client.HGetAll(ctx, walletKey(address)).Result()
	if err != nil {
		return ledger.Wallet{}, fmt.Errorf("read wallet: %w", err)
	}
	return walletFromFields(normalize(address), fields), nil
}

func (s *Store) CreditBalance(ctx context.Context, address string, amount int64) (ledger.Wallet, error) {
	if amount <= 0 {
		return ledger.Wallet{}, ledger.ErrInvalidAmount
	}

	key := walletKey(address)
	now := time.Now().UTC().Format(time.RFC3339Nano)
	pipe := s.client.TxPipeline()
	pipe.HSetNX(ctx, key, "tier", string(tier.None))
	pipe.HSetNX(ctx, key, "created_at", now)
	pipe.HIncrBy(ctx, key, "balance", amount)
	pipe.HIncrBy(ctx, key, "total_credited", amount)
	pipe.HSet(ctx, key, "updated_at", now)
	if _, err := pipe.Exec(ctx); err != nil {
		return ledger.Wallet{}, fmt.Errorf("credit wallet: %w", err)
	}
	return s.GetWallet(ctx, address)
}

// DebitBalance runs a WATCH-guarded compare-and-swap so concurrent debits
// cannot both pass the balance check.
func (s *Store) DebitBalance(ctx context.Context, address string, amount int64) (ledger.Wallet, error) {
	if amount <= 0 {
		return ledger.Wallet{}, ledger.ErrInvalidAmount
	}

	key := walletKey(address)
	txn := func(tx *redis.Tx) error {
		balance, err := tx.HGet(ctx, key, "balance").Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if balance < amount {
			return ledger.ErrInsufficientBalance
		}
		now := time.Now().UTC().Format(time.RFC3339Nano)
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HIncrBy(ctx, key, "balance", -amount)
			pipe.HIncrBy(ctx, key, "total_spent", amount)
			pipe.HSet(ctx, key, "updated_at", now)
			return nil
		})
		return err
	}

	for i := 0; i < debitRetries; i++ {
		err := s.client.Watch(ctx, txn, key)
		switch {
		case err == nil:
			return s.GetWallet(ctx, address)
		case errors.Is(err, redis.TxFailedErr):
			continue
		default:
			return ledger.Wallet{}, err
		}
	}
	return ledger.Wallet{}, fmt.Errorf("debit wallet: too much contention on %s", normalize(address))
}

func (s *Store) SetTier(ctx context.Context, address string, t tier.Tier) (ledger.Wallet, error) {
	key := walletKey(address)
	now := time.Now().UTC().Format(time.RFC3339Nano)
	pipe := s.client.TxPipeline()
	pipe.HSetNX(ctx, key, "created_at", now)
	pipe.HSet(ctx, key, "tier", string(t), "updated_at", now)
	if _, err := pipe.Exec(ctx); err != nil {
		return ledger.Wallet{}, fmt.Errorf("set tier: %w", err)
	}
	return s.GetWallet(ctx, address)
}

func (s *Store) AppendEntry(ctx context.Context, entry ledger.Entry) (ledger.Entry, error) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	entry.Wallet = normalize(entry.Wallet)

	payload, err := json.Marshal(entry)
	if err != nil {
		return ledger.Entry{}, err
	}
	if err := s.client.RPush(ctx, entriesKey(entry.Wallet), payload).Err(); err != nil {
		return ledger.Entry{}, fmt.Errorf("append entry: %w", err)
	}
	return entry, nil
}

func (s *Store) ListEntries(ctx context.Context, address string) ([]ledger.Entry, error) {
	raw, err := s.client.LRange(ctx, entriesKey(address), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	out := make([]ledger.Entry, 0, len(raw))
	for _, item := range raw {
		var e ledger.Entry
		if err := json.Unmarshal([]byte(item), &e); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// --- ReceiptStore -----------------------------------------------------------

func (s *Store) CreateReceipt(ctx context.Context, receipt purchase.Receipt) (purchase.Receipt, error) {
	if receipt.ID == "" {
		receipt.ID = uuid.NewString()
	}
	if receipt.CreatedAt.IsZero() {
		receipt.CreatedAt = time.Now().UTC()
	}
	receipt.Wallet = normalize(receipt.Wallet)

	payload, err := json.Marshal(receipt)
	if err != nil {
		return purchase.Receipt{}, err
	}
	if err := s.client.RPush(ctx, receiptKey(receipt.Wallet), payload).Err(); err != nil {
		return purchase.Receipt{}, fmt.Errorf("store receipt: %w", err)
	}
	return receipt, nil
}

func (s *Store) ListReceipts(ctx context.Context, address string) ([]purchase.Receipt, error) {
	raw, err := s.client.LRange(ctx, receiptKey(address), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list receipts: %w", err)
	}
	out := make([]purchase.Receipt, 0, len(raw))
	for _, item := range raw {
		var r purchase.Receipt
		if err := json.Unmarshal([]byte(item), &r); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// --- SessionStore -----------------------------------------------------------

func (s *Store) Get(ctx context.Context, key string) (string, error) {
	value, err := s.client.Get(ctx, kvKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

func (s *Store) Set(ctx context.Context, key, value string) error {
	return s.client.Set(ctx, kvKey(key), value, 0).Err()
}

func (s *Store) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, kvKey(key)).Err()
}

func walletFromFields(address string, fields map[string]string) ledger.Wallet {
	w := ledger.Wallet{Address: address, Tier: tier.None}
	if len(fields) == 0 {
		return w
	}
	w.Tier = tier.Parse(fields["tier"])
	w.Balance = parseInt(fields["balance"])
	w.TotalCredited = parseInt(fields["total_credited"])
	w.TotalSpent = parseInt(fields["total_spent"])
	if ts, err := time.Parse(time.RFC3339Nano, fields["created_at"]); err == nil {
		w.CreatedAt = ts
	}
	if ts, err := time.Parse(time.RFC3339Nano, fields["updated_at"]); err == nil {
		w.UpdatedAt = ts
	}
	return w
}

func parseInt(s string) int64 {
	var v int64
	_, _ = fmt.Sscan(s, &v)
	return v
}
