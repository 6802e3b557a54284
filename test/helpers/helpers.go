// test/helpers/helpers.go
package helpers

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/ammerola/clothify-cart/internal/adapters/db"
	"github.com/ammerola/clothify-cart/internal/pkg/config"
	"github.com/ammerola/clothify-cart/internal/pkg/logger"
)

// TestDB represents a test database instance
type TestDB struct {
	PgxPool  *pgxpool.Pool
	Database *db.Database
	Resource *dockertest.Resource
	Pool     *dockertest.Pool
	Config   *db.Config
}

// TestRedis represents a test Redis instance
type TestRedis struct {
	Client *redis.Client
	Server *miniredis.Miniredis
}

// TestLogger returns a test logger. Output is only shown under -v.
func TestLogger() *slog.Logger {
	if testing.Verbose() {
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// TestAppLogger returns the application logger writing to w.
func TestAppLogger(w io.Writer) *logger.Logger {
	if w == nil {
		w = io.Discard
	}
	return logger.NewLoggerWithWriter(&logger.LogConfig{Level: "debug", Format: "json"}, w)
}

// SetupTestDB starts Postgres in Docker and applies the ledger schema.
// The container is purged when the test ends.
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()

	pool, err := dockertest.NewPool("")
	require.NoError(t, err, "Could not connect to Docker")
	pool.MaxWait = 90 * time.Second

	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "postgres",
		Tag:        "16-alpine",
		Env: []string{
			"POSTGRES_USER=cart",
			"POSTGRES_PASSWORD=cart",
			"POSTGRES_DB=cart_ledger_test",
		},
	}, func(hc *docker.HostConfig) {
		hc.AutoRemove = true
		hc.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	require.NoError(t, err, "Could not start PostgreSQL container")
	t.Cleanup(func() {
		if err := pool.Purge(resource); err != nil {
			t.Logf("Could not purge postgres container: %s", err)
		}
	})

	cfg := db.DefaultConfig()
	cfg.Port = resource.GetPort("5432/tcp")
	cfg.User, cfg.Password, cfg.Database = "cart", "cart", "cart_ledger_test"
	cfg.MaxConnections, cfg.MinConnections = 8, 1
	cfg.EnableQueryLogging = testing.Verbose()

	var database *db.Database
	require.NoError(t, pool.Retry(func() error {
		database, err = db.NewDatabase(context.Background(), cfg, TestLogger())
		return err
	}), "Could not connect to PostgreSQL")
	t.Cleanup(database.Close)

	require.NoError(t, db.RunMigrationsWithRetry(context.Background(),
		&db.MigrationConfig{DatabaseURL: cfg.URL()}, TestLogger(), 3),
		"Could not run migrations")

	return &TestDB{
		PgxPool:  database.Pool(),
		Database: database,
		Resource: resource,
		Pool:     pool,
		Config:   cfg,
	}
}

// SetupTestRedis starts an in-process Redis. Use Server.FastForward to
// expire ledger TTLs.
func SetupTestRedis(t *testing.T) *TestRedis {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return &TestRedis{Client: client, Server: mr}
}

// LoadTestConfig returns a configuration suitable for wiring tests
func LoadTestConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{
			Name:        "clothify-cart-test",
			Environment: "test",
			Version:     "test",
			LogLevel:    "debug",
			LogFormat:   "json",
		},
		Server: config.ServerConfig{
			Host:         "localhost",
			Port:         "8080",
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
		},
		Backend: config.BackendConfig{
			BaseURL: "http://localhost:8081",
			Timeout: 5 * time.Second,
		},
		Cart: config.CartConfig{
			RemoveDelay:           10 * time.Millisecond,
			CorrectionConcurrency: 4,
			NoticeCapacity:        20,
			EventsKeepAlive:       time.Second,
		},
		Ledger: config.LedgerConfig{
			Driver: config.LedgerMemory,
			TTL:    time.Hour,
		},
		Redis: config.RedisConfig{
			Host:     "localhost",
			Port:     "6379",
			PoolSize: 10,
		},
		Secrets: config.SecretsConfig{
			Provider:        "env",
			ServiceTokenKey: "CLOTHIFY_SERVICE_TOKEN",
		},
		Security: config.SecurityConfig{
			RateLimitRequests: 1000,
			RateLimitDuration: time.Minute,
			AllowedOrigins:    []string{"*"},
		},
	}
}

// LoadFixture loads a file from test/fixtures regardless of the caller's
// package directory.
func LoadFixture(tb testing.TB, filename string) []byte {
	tb.Helper()

	_, file, _, ok := runtime.Caller(0)
	require.True(tb, ok, "could not locate helpers package")
	path := filepath.Join(filepath.Dir(file), "..", "fixtures", filename)
	data, err := os.ReadFile(path)
	require.NoError(tb, err, "Failed to load fixture: %s", filename)

	return data
}

// AssertEventuallyWithTimeout polls condition every 10ms until timeout
func AssertEventuallyWithTimeout(t *testing.T, condition func() bool, timeout time.Duration, msg string) {
	t.Helper()
	require.Eventually(t, condition, timeout, 10*time.Millisecond, msg)
}

// TruncateAllTables empties the ledger tables between tests
func TruncateAllTables(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()

	_, err := pool.Exec(context.Background(), "TRUNCATE TABLE cart_ledger")
	require.NoError(t, err, "Failed to truncate cart_ledger")
}
