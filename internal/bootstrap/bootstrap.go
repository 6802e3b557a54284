// internal/bootstrap/bootstrap.go
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/ammerola/clothify-cart/internal/adapters/backend"
	"github.com/ammerola/clothify-cart/internal/adapters/db"
	"github.com/ammerola/clothify-cart/internal/adapters/memory"
	redis_a "github.com/ammerola/clothify-cart/internal/adapters/redis_adapter"
	"github.com/ammerola/clothify-cart/internal/core/ports"
	"github.com/ammerola/clothify-cart/internal/pkg/config"
	"github.com/ammerola/clothify-cart/internal/pkg/metrics"
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Ledger is the opened ledger store together with the connections behind it.
type Ledger struct {
	Store    ports.LedgerStore
	Pinger   Pinger
	Database *db.Database
	Redis    *redis.Client
}

// Close releases the connections the ledger opened.
func (l *Ledger) Close() {
	if l.Database != nil {
		l.Database.Close()
	}
	if l.Redis != nil {
		_ = l.Redis.Close()
	}
}

// DatabaseConfig maps application settings onto the pool configuration.
func DatabaseConfig(cfg *config.Config) *db.Config {
	return &db.Config{
		Host:               cfg.Database.Host,
		Port:               cfg.Database.Port,
		User:               cfg.Database.User,
		Password:           cfg.Database.Password,
		Database:           cfg.Database.Name,
		SSLMode:            cfg.Database.SSLMode,
		MaxConnections:     cfg.Database.MaxConnections,
		MinConnections:     cfg.Database.MinConnections,
		MaxConnLifetime:    cfg.Database.MaxConnLifetime,
		MaxConnIdleTime:    cfg.Database.MaxConnIdleTime,
		HealthCheckPeriod:  cfg.Database.HealthCheckPeriod,
		ConnectTimeout:     cfg.Database.ConnectTimeout,
		StatementCacheMode: cfg.Database.StatementCacheMode,
		EnableQueryLogging: cfg.Database.EnableQueryLogging,
	}
}

// NewRedisClient connects to Redis and verifies the connection.
func NewRedisClient(ctx context.Context, cfg *config.Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.GetRedisAddress(),
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		MaxRetries:   cfg.Redis.MaxRetries,
		DialTimeout:  cfg.Redis.DialTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
		PoolTimeout:  cfg.Redis.PoolTimeout,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// NewBackend builds the CLOTHIFY REST client.
func NewBackend(cfg *config.Config, logger *slog.Logger, m *metrics.CartMetrics) (*backend.Client, error) {
	client, err := backend.NewClient(backend.Config{
		BaseURL:   cfg.Backend.BaseURL,
		Timeout:   cfg.Backend.Timeout,
		RateLimit: cfg.Backend.RateLimit,
		Burst:     cfg.Backend.Burst,
		UserAgent: cfg.Backend.UserAgent,
	}, logger, backend.WithMetrics(m))
	if err != nil {
		return nil, fmt.Errorf("failed to create backend client: %w", err)
	}
	return client, nil
}

// AsynqRedisOpt returns the Redis connection used for the task queue.
func AsynqRedisOpt(cfg *config.Config) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Asynq.RedisAddr,
		Password: cfg.Asynq.RedisPassword,
		DB:       cfg.Asynq.RedisDB,
	}
}

// OpenLedger opens the store selected by cfg.Ledger.Driver. The postgres
// driver applies pending migrations outside production.
func OpenLedger(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Ledger, error) {
	logger.Info("opening ledger store", slog.String("driver", cfg.Ledger.Driver))

	switch cfg.Ledger.Driver {
	case config.LedgerMemory:
		store := memory.NewLedgerStore()
		return &Ledger{Store: store, Pinger: store}, nil

	case config.LedgerRedis:
		client, err := NewRedisClient(ctx, cfg)
		if err != nil {
			return nil, err
		}
		store := redis_a.NewLedgerStore(client, cfg.Ledger.TTL, logger)
		return &Ledger{Store: store, Pinger: store, Redis: client}, nil

	case config.LedgerPostgres:
		logger.Info("connecting to database",
			slog.String("host", cfg.Database.Host),
			slog.String("database", cfg.Database.Name))
		database, err := db.NewDatabase(ctx, DatabaseConfig(cfg), logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		if !cfg.IsProduction() {
			if err := RunMigrations(ctx, cfg, logger); err != nil {
				logger.Warn("failed to run migrations", slog.String("error", err.Error()))
			}
		}
		return &Ledger{
			Store:    db.NewLedgerRepository(database, logger),
			Pinger:   database,
			Database: database,
		}, nil
	}
	return nil, fmt.Errorf("unknown ledger driver %q: %w", cfg.Ledger.Driver, config.ErrMissingRequiredConfig)
}

func migrationConfig(cfg *config.Config) *db.MigrationConfig {
	return &db.MigrationConfig{
		DatabaseURL: cfg.GetDatabaseURL(),
		SourcePath:  cfg.Database.MigrationPath,
		TableName:   "schema_migrations",
		SchemaName:  "public",
	}
}

// RunMigrations applies the ledger schema.
func RunMigrations(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	logger.Info("running database migrations")
	return db.RunMigrationsWithRetry(ctx, migrationConfig(cfg), logger, 3)
}

// OpenMigrator is for callers that step or inspect the schema by hand.
func OpenMigrator(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*db.Migrator, error) {
	return db.NewMigrator(ctx, migrationConfig(cfg), logger)
}
