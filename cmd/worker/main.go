// cmd/worker/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/ammerola/clothify-cart/internal/adapters/db"
	"github.com/ammerola/clothify-cart/internal/adapters/eventbus"
	redis_a "github.com/ammerola/clothify-cart/internal/adapters/redis_adapter"
	"github.com/ammerola/clothify-cart/internal/bootstrap"
	"github.com/ammerola/clothify-cart/internal/core/ports"
	"github.com/ammerola/clothify-cart/internal/pkg/config"
	"github.com/ammerola/clothify-cart/internal/pkg/logger"
	"github.com/ammerola/clothify-cart/internal/workers"
)

const (
	retryBaseDelay = 2 * time.Second
	retryMaxDelay  = 5 * time.Minute
)

func main() {
	boot := logger.SetupLogger("info", "json")

	cfg, err := config.Load(boot.Logger)
	if err != nil {
		boot.Error("failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}
	log := logger.SetupLogger(cfg.App.LogLevel, cfg.App.LogFormat).Logger

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("worker stopped", slog.String("error", err.Error()))
		stop()
		os.Exit(1)
	}
}

// run blocks until ctx is cancelled or the asynq server fails.
func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	log.Info("starting worker",
		slog.String("environment", cfg.App.Environment),
		slog.String("redis_addr", cfg.Asynq.RedisAddr),
		slog.String("ledger_driver", cfg.Ledger.Driver))

	secrets, err := config.NewSecretsManager(ctx, cfg.Secrets, log)
	if err != nil {
		return fmt.Errorf("failed to initialize secrets: %w", err)
	}
	tokens := config.NewServiceTokenSource(secrets, cfg.Secrets.ServiceTokenKey)

	backendClient, err := bootstrap.NewBackend(cfg, log, nil)
	if err != nil {
		return fmt.Errorf("failed to initialize backend client: %w", err)
	}

	mux := asynq.NewServeMux()
	corrections := workers.NewCorrectionProcessor(backendClient, announcer(ctx, cfg, log), tokens, log)
	mux.HandleFunc(workers.TypeStockCorrection, corrections.ProcessStockCorrection)

	redisOpt := bootstrap.AsynqRedisOpt(cfg)
	var scheduler *asynq.Scheduler
	if cfg.Ledger.Driver == config.LedgerPostgres {
		database, err := db.NewDatabase(ctx, workerDatabaseConfig(cfg), log)
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		defer database.Close()

		if scheduler, err = scheduleCleanup(ctx, cfg, mux, database, redisOpt, log); err != nil {
			return err
		}
		defer scheduler.Shutdown()
	}

	srv := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency:     cfg.Asynq.Concurrency,
		Queues:          cfg.Asynq.Queues,
		StrictPriority:  cfg.Asynq.StrictPriority,
		ErrorHandler:    taskErrorHandler(log),
		RetryDelayFunc:  retryDelay,
		ShutdownTimeout: cfg.Asynq.ShutdownTimeout,
		HealthCheckFunc: func(err error) {
			if err != nil {
				log.Error("worker health check failed", slog.String("error", err.Error()))
			}
		},
		Logger: newAsynqLogger(log),
	})
	if err := srv.Start(mux); err != nil {
		return fmt.Errorf("failed to start worker server: %w", err)
	}
	log.Info("worker started",
		slog.Int("concurrency", cfg.Asynq.Concurrency),
		slog.Any("queues", cfg.Asynq.Queues),
		slog.Bool("ledger_cleanup", scheduler != nil))

	<-ctx.Done()
	log.Info("shutdown signal received")
	srv.Shutdown()
	log.Info("worker shutdown complete")
	return nil
}

// announcer relays corrections to API processes so open carts re-sync.
// Without Redis, corrections still run but nobody is told.
func announcer(ctx context.Context, cfg *config.Config, log *slog.Logger) ports.CartEvents {
	client, err := bootstrap.NewRedisClient(ctx, cfg)
	if err != nil {
		log.Warn("redis unavailable, corrections will not be announced", slog.String("error", err.Error()))
		return nil
	}
	context.AfterFunc(ctx, func() { _ = client.Close() })
	return redis_a.NewEventRelay(client, cfg.Redis.EventsChannel, eventbus.New(log), log)
}

// scheduleCleanup registers the periodic stale ledger purge. Only the
// postgres driver needs it: redis keys expire and memory ledgers end with
// the process.
func scheduleCleanup(ctx context.Context, cfg *config.Config, mux *asynq.ServeMux, database *db.Database, redisOpt asynq.RedisClientOpt, log *slog.Logger) (*asynq.Scheduler, error) {
	cleanup := workers.NewCleanupProcessor(db.NewLedgerRepository(database, log), cfg.Ledger.CleanupMaxAge, log)
	mux.HandleFunc(workers.TypeLedgerCleanup, cleanup.CleanupStaleLedgers)

	scheduler := asynq.NewScheduler(redisOpt, &asynq.SchedulerOpts{
		Logger:   newAsynqLogger(log),
		Location: time.UTC,
	})
	entryID, err := scheduler.Register(cfg.Asynq.CleanupSchedule, workers.NewLedgerCleanupTask(), asynq.Queue("low"))
	if err != nil {
		return nil, fmt.Errorf("failed to schedule ledger cleanup: %w", err)
	}
	if err := scheduler.Start(); err != nil {
		return nil, fmt.Errorf("failed to start scheduler: %w", err)
	}
	log.InfoContext(ctx, "ledger cleanup scheduled",
		slog.String("entry_id", entryID),
		slog.String("cron", cfg.Asynq.CleanupSchedule))
	return scheduler, nil
}

// workerDatabaseConfig uses a smaller pool than the API.
func workerDatabaseConfig(cfg *config.Config) *db.Config {
	dbConfig := bootstrap.DatabaseConfig(cfg)
	dbConfig.MaxConnections = 4
	dbConfig.MinConnections = 1
	return dbConfig
}

// taskErrorHandler logs failed attempts. Skipped retries are business
// rejections and log at warn.
func taskErrorHandler(log *slog.Logger) asynq.ErrorHandler {
	return asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
		level := slog.LevelError
		if errors.Is(err, asynq.SkipRetry) {
			level = slog.LevelWarn
		}
		retried, _ := asynq.GetRetryCount(ctx)
		log.LogAttrs(ctx, level, "task processing failed",
			slog.String("type", task.Type()),
			slog.Int("retried", retried),
			slog.String("error", err.Error()))
	})
}

// retryDelay doubles from retryBaseDelay up to retryMaxDelay.
func retryDelay(n int, _ error, _ *asynq.Task) time.Duration {
	return min(retryBaseDelay<<min(n, 16), retryMaxDelay)
}

// asynqLogger adapts slog to asynq.Logger
type asynqLogger struct {
	logger *slog.Logger
}

func newAsynqLogger(logger *slog.Logger) *asynqLogger {
	return &asynqLogger{logger: logger.With(slog.String("component", "asynq"))}
}

func (l *asynqLogger) log(level slog.Level, args []any) {
	l.logger.Log(context.Background(), level, fmt.Sprint(args...))
}

func (l *asynqLogger) Debug(args ...any) { l.log(slog.LevelDebug, args) }
func (l *asynqLogger) Info(args ...any)  { l.log(slog.LevelInfo, args) }
func (l *asynqLogger) Warn(args ...any)  { l.log(slog.LevelWarn, args) }
func (l *asynqLogger) Error(args ...any) { l.log(slog.LevelError, args) }

func (l *asynqLogger) Fatal(args ...any) {
	l.log(slog.LevelError, args)
	os.Exit(1)
}
