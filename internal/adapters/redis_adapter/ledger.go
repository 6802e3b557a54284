// internal/adapters/redis_adapter/ledger.go
package redis_a

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ammerola/clothify-cart/internal/core/domain"
	"github.com/ammerola/clothify-cart/internal/core/ports"
)

// KeyPrefix defines prefixes for the ledger keys
type KeyPrefix string

const (
	PrefixQuantities KeyPrefix = "ledger:qty"
	PrefixLineIDs    KeyPrefix = "ledger:lines"
	PrefixProducts   KeyPrefix = "ledger:products"
)

// LedgerStore keeps each customer's ledger in Redis as three JSON values
// (quantities, line ids, key products) that are always written together.
type LedgerStore struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// Statically assert that *LedgerStore implements the LedgerStore interface.
var _ ports.LedgerStore = (*LedgerStore)(nil)

// NewLedgerStore creates a Redis backed ledger store. A zero ttl keeps keys
// until they are deleted.
func NewLedgerStore(client *redis.Client, ttl time.Duration, logger *slog.Logger) *LedgerStore {
	return &LedgerStore{
		client: client,
		ttl:    ttl,
		logger: logger.With(slog.String("component", "ledger_store")),
	}
}

// Load returns the stored ledger, or an empty one on a miss
func (s *LedgerStore) Load(ctx context.Context, customerID string) (*domain.Ledger, error) {
	qtyKey, linesKey, productsKey := keys(customerID)

	values, err := s.client.MGet(ctx, qtyKey, linesKey, productsKey).Result()
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to load ledger",
			slog.String("customer_id", customerID),
			slog.String("error", err.Error()))
		return nil, &LedgerError{Op: "load", Key: qtyKey, Err: err}
	}

	ledger := domain.NewLedger()
	if err := decodeInto(values[0], &ledger.Quantities); err != nil {
		return nil, &LedgerError{Op: "decode", Key: qtyKey, Err: err}
	}
	if err := decodeInto(values[1], &ledger.LineIDs); err != nil {
		return nil, &LedgerError{Op: "decode", Key: linesKey, Err: err}
	}
	if err := decodeInto(values[2], &ledger.Products); err != nil {
		return nil, &LedgerError{Op: "decode", Key: productsKey, Err: err}
	}
	if ledger.Quantities == nil {
		ledger.Quantities = make(map[string]int)
	}
	if ledger.LineIDs == nil {
		ledger.LineIDs = make(map[string]string)
	}
	if ledger.Products == nil {
		ledger.Products = make(map[string]string)
	}

	s.logger.DebugContext(ctx, "ledger loaded",
		slog.String("customer_id", customerID),
		slog.Int("keys", len(ledger.Quantities)))
	return ledger, nil
}

// Save replaces every part of the ledger in one MULTI/EXEC. An empty ledger
// deletes the keys.
func (s *LedgerStore) Save(ctx context.Context, customerID string, ledger *domain.Ledger) error {
	if ledger == nil || ledger.Empty() {
		return s.Delete(ctx, customerID)
	}

	qtyKey, linesKey, productsKey := keys(customerID)
	qty, err := json.Marshal(ledger.Quantities)
	if err != nil {
		return fmt.Errorf("marshal error: %w", err)
	}
	lines, err := json.Marshal(ledger.LineIDs)
	if err != nil {
		return fmt.Errorf("marshal error: %w", err)
	}
	products, err := json.Marshal(ledger.Products)
	if err != nil {
		return fmt.Errorf("marshal error: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, qtyKey, qty, s.ttl)
		pipe.Set(ctx, linesKey, lines, s.ttl)
		pipe.Set(ctx, productsKey, products, s.ttl)
		return nil
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to save ledger",
			slog.String("customer_id", customerID),
			slog.String("error", err.Error()))
		return &LedgerError{Op: "save", Key: qtyKey, Err: err}
	}

	s.logger.DebugContext(ctx, "ledger saved",
		slog.String("customer_id", customerID),
		slog.Duration("ttl", s.ttl))
	return nil
}

// Delete removes the customer's ledger keys
func (s *LedgerStore) Delete(ctx context.Context, customerID string) error {
	qtyKey, linesKey, productsKey := keys(customerID)
	if err := s.client.Del(ctx, qtyKey, linesKey, productsKey).Err(); err != nil {
		s.logger.ErrorContext(ctx, "failed to delete ledger",
			slog.String("customer_id", customerID),
			slog.String("error", err.Error()))
		return &LedgerError{Op: "delete", Key: qtyKey, Err: err}
	}
	return nil
}

// Ping checks Redis connectivity
func (s *LedgerStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func keys(customerID string) (qty, lines, products string) {
	return BuildKey(PrefixQuantities, customerID),
		BuildKey(PrefixLineIDs, customerID),
		BuildKey(PrefixProducts, customerID)
}

func decodeInto(value interface{}, dest interface{}) error {
	if value == nil {
		return nil
	}
	raw, ok := value.(string)
	if !ok {
		return errors.New("unexpected value type")
	}
	return json.Unmarshal([]byte(raw), dest)
}

// BuildKey creates a key with prefix
func BuildKey(prefix KeyPrefix, parts ...string) string {
	key := string(prefix)
	for _, part := range parts {
		key += ":" + part
	}
	return key
}

// LedgerError represents ledger store errors
type LedgerError struct {
	Op  string
	Key string
	Err error
}

func (e *LedgerError) Error() string {
	return fmt.Sprintf("ledger %s operation failed for key %s: %v", e.Op, e.Key, e.Err)
}

func (e *LedgerError) Unwrap() error {
	return e.Err
}
