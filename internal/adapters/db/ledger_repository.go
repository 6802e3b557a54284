// internal/adapters/db/ledger_repository.go
package db

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/ammerola/clothify-cart/internal/core/domain"
	"github.com/ammerola/clothify-cart/internal/core/ports"
)

const ledgerTable = "cart_ledger"

var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

// LedgerRepository stores ledgers in Postgres, one row per ledger key.
type LedgerRepository struct {
	db     ports.Database
	logger *slog.Logger
}

var _ ports.LedgerStore = (*LedgerRepository)(nil)

// NewLedgerRepository creates a new ledger repository
func NewLedgerRepository(db ports.Database, logger *slog.Logger) *LedgerRepository {
	return &LedgerRepository{
		db:     db,
		logger: logger.With(slog.String("repository", "ledger")),
	}
}

// Load returns the customer's ledger, empty when no rows exist
func (r *LedgerRepository) Load(ctx context.Context, customerID string) (*domain.Ledger, error) {
	query, args, err := loadQuery(customerID)
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		r.logger.ErrorContext(ctx, "failed to load ledger",
			slog.String("customer_id", customerID),
			slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to load ledger: %w", err)
	}
	defer rows.Close()

	ledger := domain.NewLedger()
	for rows.Next() {
		var (
			key       string
			quantity  int
			lineID    *string
			productID *string
		)
		if err := rows.Scan(&key, &quantity, &lineID, &productID); err != nil {
			return nil, fmt.Errorf("failed to scan ledger row: %w", err)
		}
		ledger.Set(key, quantity)
		if lineID != nil && *lineID != "" {
			ledger.SetLineID(key, *lineID)
		}
		if productID != nil {
			ledger.SetProduct(key, *productID)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate ledger rows: %w", err)
	}
	return ledger, nil
}

// Save replaces the customer's rows in one transaction
func (r *LedgerRepository) Save(ctx context.Context, customerID string, ledger *domain.Ledger) error {
	del, delArgs, err := deleteQuery(customerID)
	if err != nil {
		return fmt.Errorf("failed to build query: %w", err)
	}

	var (
		ins     string
		insArgs []interface{}
	)
	if ledger != nil && !ledger.Empty() {
		ins, insArgs, err = insertQuery(customerID, ledger, time.Now().UTC())
		if err != nil {
			return fmt.Errorf("failed to build query: %w", err)
		}
	}

	err = r.db.Transaction(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, del, delArgs...); err != nil {
			return fmt.Errorf("failed to clear ledger rows: %w", err)
		}
		if ins == "" {
			return nil
		}
		if _, err := tx.Exec(ctx, ins, insArgs...); err != nil {
			return fmt.Errorf("failed to insert ledger rows: %w", err)
		}
		return nil
	})
	if err != nil {
		r.logger.ErrorContext(ctx, "failed to save ledger",
			slog.String("customer_id", customerID),
			slog.String("error", err.Error()))
		return err
	}
	return nil
}

// Delete removes every row for the customer
func (r *LedgerRepository) Delete(ctx context.Context, customerID string) error {
	query, args, err := deleteQuery(customerID)
	if err != nil {
		return fmt.Errorf("failed to build query: %w", err)
	}
	if _, err := r.db.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to delete ledger: %w", err)
	}
	return nil
}

// PurgeStale removes ledgers untouched since before cutoff. Returns the
// number of rows deleted.
func (r *LedgerRepository) PurgeStale(ctx context.Context, cutoff time.Time) (int64, error) {
	query, args, err := psql.Delete(ledgerTable).
		Where(squirrel.Lt{"updated_at": cutoff}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build query: %w", err)
	}
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to purge stale ledgers: %w", err)
	}
	return tag.RowsAffected(), nil
}

func loadQuery(customerID string) (string, []interface{}, error) {
	return psql.Select("item_key", "quantity", "line_id", "product_id").
		From(ledgerTable).
		Where(squirrel.Eq{"customer_id": customerID}).
		OrderBy("item_key").
		ToSql()
}

func deleteQuery(customerID string) (string, []interface{}, error) {
	return psql.Delete(ledgerTable).
		Where(squirrel.Eq{"customer_id": customerID}).
		ToSql()
}

// insertQuery writes one row per key present in either half of the ledger.
// Keys with only a line id are stored with quantity 0.
func insertQuery(customerID string, ledger *domain.Ledger, now time.Time) (string, []interface{}, error) {
	keys := make(map[string]struct{}, len(ledger.Quantities)+len(ledger.LineIDs))
	for k := range ledger.Quantities {
		keys[k] = struct{}{}
	}
	for k := range ledger.LineIDs {
		keys[k] = struct{}{}
	}
	sorted := make([]string, 0, len(keys))
	for k := range keys {
		sorted = append(sorted, k)
	}
	sort.Strings(sorted)

	qb := psql.Insert(ledgerTable).
		Columns("customer_id", "item_key", "quantity", "line_id", "product_id", "updated_at")
	for _, key := range sorted {
		var lineID, productID interface{}
		if id, ok := ledger.LineID(key); ok {
			lineID = id
		}
		if id, ok := ledger.Products[key]; ok {
			productID = id
		}
		qb = qb.Values(customerID, key, ledger.Get(key), lineID, productID, now)
	}
	return qb.ToSql()
}
