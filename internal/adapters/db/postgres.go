// internal/adapters/db/postgres.go
package db

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/tracelog"

	"github.com/ammerola/clothify-cart/internal/core/ports"
)

const (
	applicationName = "clothify-cart"

	// SQLSTATE codes a ledger write may hit under concurrent saves.
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"

	defaultTxAttempts = 3
)

// Config holds the ledger database settings
type Config struct {
	Host               string
	Port               string
	User               string
	Password           string
	Database           string
	SSLMode            string
	MaxConnections     int32
	MinConnections     int32
	MaxConnLifetime    time.Duration
	MaxConnIdleTime    time.Duration
	HealthCheckPeriod  time.Duration
	ConnectTimeout     time.Duration
	StatementCacheMode string
	EnableQueryLogging bool
	// TxAttempts bounds retries of a transaction aborted by a
	// serialization failure or deadlock.
	TxAttempts int
}

// DefaultConfig matches the local docker-compose Postgres
func DefaultConfig() *Config {
	return &Config{
		Host:               "localhost",
		Port:               "5432",
		User:               "clothify",
		Password:           "clothify_dev",
		Database:           "clothify_cart",
		SSLMode:            "disable",
		MaxConnections:     10,
		MinConnections:     2,
		MaxConnLifetime:    time.Hour,
		MaxConnIdleTime:    30 * time.Minute,
		HealthCheckPeriod:  time.Minute,
		ConnectTimeout:     10 * time.Second,
		StatementCacheMode: "describe",
		TxAttempts:         defaultTxAttempts,
	}
}

// URL renders the config as a postgres URL, the form golang-migrate and
// pgxpool.ParseConfig both accept.
func (c *Config) URL() string {
	u := url.URL{
		Scheme: "postgresql",
		User:   url.UserPassword(c.User, c.Password),
		Host:   net.JoinHostPort(c.Host, c.Port),
		Path:   "/" + c.Database,
	}
	q := url.Values{}
	q.Set("sslmode", c.SSLMode)
	if c.ConnectTimeout > 0 {
		q.Set("connect_timeout", fmt.Sprintf("%d", int(c.ConnectTimeout.Seconds())))
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// Database is the pgx pool behind the ledger repository
type Database struct {
	pool       *pgxpool.Pool
	txAttempts int
	logger     *slog.Logger
}

var _ ports.Database = (*Database)(nil)

// NewDatabase opens the pool and verifies it with a ping
func NewDatabase(ctx context.Context, config *Config, logger *slog.Logger) (*Database, error) {
	if config == nil {
		config = DefaultConfig()
	}
	logger = logger.With(slog.String("component", "postgres"))

	poolConfig, err := poolConfigFor(config, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to build pool config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	attempts := config.TxAttempts
	if attempts <= 0 {
		attempts = defaultTxAttempts
	}

	logger.Info("ledger database connected",
		slog.String("host", config.Host),
		slog.String("database", config.Database),
		slog.Int("max_connections", int(config.MaxConnections)))

	return &Database{pool: pool, txAttempts: attempts, logger: logger}, nil
}

func poolConfigFor(config *Config, logger *slog.Logger) (*pgxpool.Config, error) {
	poolConfig, err := pgxpool.ParseConfig(config.URL())
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection URL: %w", err)
	}

	poolConfig.MaxConns = config.MaxConnections
	poolConfig.MinConns = config.MinConnections
	poolConfig.MaxConnLifetime = config.MaxConnLifetime
	poolConfig.MaxConnIdleTime = config.MaxConnIdleTime
	poolConfig.HealthCheckPeriod = config.HealthCheckPeriod

	poolConfig.ConnConfig.RuntimeParams["application_name"] = applicationName
	poolConfig.ConnConfig.DefaultQueryExecMode = queryExecMode(config.StatementCacheMode)

	if config.EnableQueryLogging {
		poolConfig.ConnConfig.Tracer = &tracelog.TraceLog{
			Logger:   tracelog.LoggerFunc(slogTracer(logger)),
			LogLevel: tracelog.LogLevelDebug,
		}
	}
	return poolConfig, nil
}

func queryExecMode(mode string) pgx.QueryExecMode {
	switch mode {
	case "statement":
		return pgx.QueryExecModeCacheStatement
	case "exec":
		return pgx.QueryExecModeExec
	case "simple":
		return pgx.QueryExecModeSimpleProtocol
	default:
		return pgx.QueryExecModeCacheDescribe
	}
}

// Pool exposes the pgx pool for test fixtures
func (db *Database) Pool() *pgxpool.Pool {
	return db.pool
}

func (db *Database) Close() {
	db.pool.Close()
	db.logger.Info("ledger database closed")
}

func (db *Database) Ping(ctx context.Context) error {
	return db.pool.Ping(ctx)
}

// Stats reports pool counters for the health endpoint
func (db *Database) Stats() ports.PoolStats {
	s := db.pool.Stat()
	return ports.PoolStats{
		Total:             s.TotalConns(),
		Idle:              s.IdleConns(),
		Acquired:          s.AcquiredConns(),
		Max:               s.MaxConns(),
		EmptyAcquireCount: s.EmptyAcquireCount(),
		CanceledAcquires:  s.CanceledAcquireCount(),
	}
}

// Transaction runs fn in a read-committed transaction. A transaction
// aborted by a serialization failure or deadlock is retried from the
// start, so fn must not have side effects outside tx.
func (db *Database) Transaction(ctx context.Context, fn func(pgx.Tx) error) error {
	var err error
	for attempt := 1; attempt <= db.txAttempts; attempt++ {
		err = pgx.BeginTxFunc(ctx, db.pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, fn)
		if err == nil || !retryable(err) || ctx.Err() != nil {
			break
		}
		db.logger.WarnContext(ctx, "retrying ledger transaction",
			slog.Int("attempt", attempt),
			slog.String("error", err.Error()))
	}
	if err != nil {
		return fmt.Errorf("ledger transaction failed: %w", err)
	}
	return nil
}

func retryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == codeSerializationFailure || pgErr.Code == codeDeadlockDetected
}

func (db *Database) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return db.pool.Query(ctx, sql, args...)
}

func (db *Database) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return db.pool.Exec(ctx, sql, args...)
}

var traceLevels = map[tracelog.LogLevel]slog.Level{
	tracelog.LogLevelError: slog.LevelError,
	tracelog.LogLevelWarn:  slog.LevelWarn,
	tracelog.LogLevelInfo:  slog.LevelInfo,
}

// slogTracer forwards pgx trace events to slog. Unmapped levels log at debug.
func slogTracer(logger *slog.Logger) func(context.Context, tracelog.LogLevel, string, map[string]any) {
	logger = logger.With(slog.String("component", "pgx"))
	return func(ctx context.Context, level tracelog.LogLevel, msg string, data map[string]any) {
		lvl, ok := traceLevels[level]
		if !ok {
			lvl = slog.LevelDebug
		}
		attrs := make([]slog.Attr, 0, len(data))
		for k, v := range data {
			attrs = append(attrs, slog.Any(k, v))
		}
		logger.LogAttrs(ctx, lvl, msg, attrs...)
	}
}
