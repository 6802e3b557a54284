// internal/core/ports/database.go
package ports

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// PoolStats is a snapshot of the ledger database pool.
type PoolStats struct {
	Total             int32 `json:"total_connections"`
	Idle              int32 `json:"idle_connections"`
	Acquired          int32 `json:"acquired_connections"`
	Max               int32 `json:"max_connections"`
	EmptyAcquireCount int64 `json:"empty_acquires"`
	CanceledAcquires  int64 `json:"canceled_acquires"`
}

// Database is what the ledger repository and health checks need from Postgres.
type Database interface {
	Ping(ctx context.Context) error
	Stats() PoolStats
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Transaction(ctx context.Context, fn func(pgx.Tx) error) error
	Close()
}
