// internal/workers/tasks.go
package workers

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/ammerola/clothify-cart/internal/core/domain"
)

// Task types
const (
	TypeStockCorrection = "cart:stock_correction"
	TypeLedgerCleanup   = "cart:ledger_cleanup"
)

// NewStockCorrectionTask builds the task that re-issues a reconciliation write.
func NewStockCorrectionTask(c domain.StockCorrection) (*asynq.Task, error) {
	if c.CustomerID == "" || c.LineID == "" {
		return nil, fmt.Errorf("stock correction needs a customer and a line id")
	}
	if c.Quantity < 0 {
		return nil, fmt.Errorf("stock correction quantity %d is negative", c.Quantity)
	}
	b, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal stock correction: %w", err)
	}
	return asynq.NewTask(TypeStockCorrection, b), nil
}

// NewLedgerCleanupTask builds the periodic stale ledger purge task.
func NewLedgerCleanupTask() *asynq.Task {
	return asynq.NewTask(TypeLedgerCleanup, nil)
}
