// internal/adapters/db/migrations.go
package db

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib"
)

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

// ErrDirtySchema is returned when a previous migration failed halfway and
// ForceDirty is off.
var ErrDirtySchema = errors.New("ledger schema is dirty")

// MigrationConfig holds migration configuration
type MigrationConfig struct {
	DatabaseURL string
	// SourcePath reads migrations from disk. Empty uses the embedded set.
	SourcePath       string
	TableName        string
	SchemaName       string
	ForceDirty       bool
	StatementTimeout time.Duration
}

func (c *MigrationConfig) withDefaults() MigrationConfig {
	out := *c
	if out.TableName == "" {
		out.TableName = "schema_migrations"
	}
	if out.SchemaName == "" {
		out.SchemaName = "public"
	}
	if out.StatementTimeout == 0 {
		out.StatementTimeout = time.Minute
	}
	return out
}

// MigrationStatus is the applied schema version
type MigrationStatus struct {
	Version uint `json:"version"`
	Dirty   bool `json:"dirty"`
}

// Migrator applies the ledger schema
type Migrator struct {
	m      *migrate.Migrate
	conn   *sql.DB
	force  bool
	logger *slog.Logger
}

// NewMigrator opens a short-lived connection for golang-migrate. Close it
// when done.
func NewMigrator(ctx context.Context, config *MigrationConfig, logger *slog.Logger) (*Migrator, error) {
	if config == nil || config.DatabaseURL == "" {
		return nil, errors.New("migration database URL is required")
	}
	cfg := config.withDefaults()

	conn, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	conn.SetMaxOpenConns(1)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := conn.PingContext(pingCtx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	target, err := postgres.WithInstance(conn, &postgres.Config{
		MigrationsTable:  cfg.TableName,
		SchemaName:       cfg.SchemaName,
		StatementTimeout: cfg.StatementTimeout,
	})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create postgres driver: %w", err)
	}

	src, name, err := openSource(cfg.SourcePath)
	if err != nil {
		conn.Close()
		return nil, err
	}

	m, err := migrate.NewWithInstance(name, src, "postgres", target)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create migration instance: %w", err)
	}

	return &Migrator{
		m:      m,
		conn:   conn,
		force:  cfg.ForceDirty,
		logger: logger.With(slog.String("component", "migrator")),
	}, nil
}

func openSource(path string) (source.Driver, string, error) {
	if path == "" {
		d, err := iofs.New(embeddedMigrations, "migrations")
		if err != nil {
			return nil, "", fmt.Errorf("failed to read embedded migrations: %w", err)
		}
		return d, "iofs", nil
	}
	d, err := source.Open("file://" + path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open migrations at %s: %w", path, err)
	}
	return d, "file", nil
}

// Status reports the applied version. A fresh database is version 0.
func (mg *Migrator) Status() (MigrationStatus, error) {
	version, dirty, err := mg.m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return MigrationStatus{}, nil
	}
	if err != nil {
		return MigrationStatus{}, fmt.Errorf("failed to read schema version: %w", err)
	}
	return MigrationStatus{Version: version, Dirty: dirty}, nil
}

// Up applies every pending migration
func (mg *Migrator) Up(ctx context.Context) (MigrationStatus, error) {
	return mg.run(ctx, "up", mg.m.Up)
}

// Steps moves n migrations forward, or back when n is negative
func (mg *Migrator) Steps(ctx context.Context, n int) (MigrationStatus, error) {
	return mg.run(ctx, fmt.Sprintf("steps %d", n), func() error { return mg.m.Steps(n) })
}

func (mg *Migrator) run(ctx context.Context, op string, apply func() error) (MigrationStatus, error) {
	before, err := mg.Status()
	if err != nil {
		return before, err
	}
	if before.Dirty {
		if !mg.force {
			return before, fmt.Errorf("%w at version %d", ErrDirtySchema, before.Version)
		}
		mg.logger.WarnContext(ctx, "forcing dirty schema version",
			slog.Uint64("version", uint64(before.Version)))
		if err := mg.m.Force(int(before.Version)); err != nil {
			return before, fmt.Errorf("failed to force version: %w", err)
		}
	}

	if err := apply(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return before, fmt.Errorf("migration %s failed: %w", op, err)
	}

	after, err := mg.Status()
	if err != nil {
		return before, err
	}
	mg.logger.InfoContext(ctx, "ledger schema migrated",
		slog.String("op", op),
		slog.Uint64("from", uint64(before.Version)),
		slog.Uint64("to", uint64(after.Version)))
	return after, nil
}

// Close releases the source, the driver and the connection
func (mg *Migrator) Close() error {
	srcErr, dbErr := mg.m.Close()
	if err := errors.Join(srcErr, dbErr, mg.conn.Close()); err != nil {
		return fmt.Errorf("failed to close migrator: %w", err)
	}
	return nil
}

// RunMigrationsWithRetry applies pending migrations, retrying while the
// database comes up. A dirty schema is not retried.
func RunMigrationsWithRetry(ctx context.Context, config *MigrationConfig, logger *slog.Logger, maxRetries int) error {
	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		if attempt > 1 {
			wait := time.Duration(attempt-1) * 2 * time.Second
			logger.InfoContext(ctx, "retrying migrations",
				slog.Int("attempt", attempt),
				slog.Duration("wait", wait))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
		}

		lastErr = migrateUp(ctx, config, logger)
		if lastErr == nil || errors.Is(lastErr, ErrDirtySchema) {
			return lastErr
		}
		logger.ErrorContext(ctx, "migration attempt failed",
			slog.Int("attempt", attempt),
			slog.String("error", lastErr.Error()))
	}
	return fmt.Errorf("migrations failed after %d attempts: %w", maxRetries, lastErr)
}

func migrateUp(ctx context.Context, config *MigrationConfig, logger *slog.Logger) error {
	mg, err := NewMigrator(ctx, config, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := mg.Close(); err != nil {
			logger.WarnContext(ctx, "failed to close migrator", slog.String("error", err.Error()))
		}
	}()
	_, err = mg.Up(ctx)
	return err
}
