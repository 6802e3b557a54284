// cmd/api/main.go
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/ammerola/clothify-cart/internal/adapters/eventbus"
	"github.com/ammerola/clothify-cart/internal/adapters/notify"
	"github.com/ammerola/clothify-cart/internal/adapters/queue"
	redis_a "github.com/ammerola/clothify-cart/internal/adapters/redis_adapter"
	"github.com/ammerola/clothify-cart/internal/bootstrap"
	"github.com/ammerola/clothify-cart/internal/core/ports"
	"github.com/ammerola/clothify-cart/internal/core/services"
	"github.com/ammerola/clothify-cart/internal/handlers"
	"github.com/ammerola/clothify-cart/internal/handlers/middleware"
	"github.com/ammerola/clothify-cart/internal/pkg/auth"
	"github.com/ammerola/clothify-cart/internal/pkg/config"
	"github.com/ammerola/clothify-cart/internal/pkg/logger"
	"github.com/ammerola/clothify-cart/internal/pkg/metrics"
)

// Build information injected at compile time
var (
	Version   = "dev"
	BuildTime = "unknown"
	GoVersion = "unknown"
)

const apiPrefix = "/api/v1"

func main() {
	slogger := logger.SetupLogger("info", "json")
	slogger.Info("starting clothify cart api",
		slog.String("version", Version),
		slog.String("build_time", BuildTime),
		slog.String("go_version", GoVersion),
	)

	cfg, err := config.Load(slogger.Logger)
	if err != nil {
		slogger.Error("failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slogger = logger.SetupLogger(cfg.App.LogLevel, cfg.App.LogFormat)
	slogger.Info("configuration loaded",
		slog.String("environment", cfg.App.Environment),
		slog.String("ledger_driver", cfg.Ledger.Driver),
		slog.String("backend", cfg.Backend.BaseURL),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	deps, err := initializeDependencies(ctx, cfg, slogger)
	if err != nil {
		slogger.Error("failed to initialize dependencies", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer deps.cleanup()

	if deps.relay != nil {
		go func() {
			if err := deps.relay.Run(ctx); err != nil {
				slogger.Error("event relay stopped", slog.String("error", err.Error()))
			}
		}()
	}

	server := setupHTTPServer(cfg, deps, slogger)

	serverErrors := make(chan error, 1)
	go func() {
		slogger.Info("starting HTTP server",
			slog.String("address", cfg.GetServerAddress()),
			slog.Bool("tls", cfg.Server.TLSEnabled),
		)
		if cfg.Server.TLSEnabled {
			serverErrors <- server.ListenAndServeTLS(cfg.Server.TLSCertFile, cfg.Server.TLSKeyFile)
		} else {
			serverErrors <- server.ListenAndServe()
		}
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slogger.Error("server error", slog.String("error", err.Error()))
		}
	case sig := <-shutdown:
		slogger.Info("shutdown signal received", slog.String("signal", sig.String()))

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
		defer shutdownCancel()

		// Open event streams end when the bus closes.
		deps.bus.Close()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slogger.Error("failed to gracefully shutdown server", slog.String("error", err.Error()))
			_ = server.Close()
		}
		slogger.Info("server shutdown complete")
	}
}

// dependencies holds all application dependencies
type dependencies struct {
	registry       *prometheus.Registry
	httpMetrics    *metrics.HTTPMetrics
	ledger         *bootstrap.Ledger
	redisClient    *redis.Client
	bus            *eventbus.Bus
	relay          *redis_a.EventRelay
	asynqClient    *asynq.Client
	asynqInspector *asynq.Inspector
	resolver       *auth.Resolver
	cartHandler    *handlers.CartHandler
	healthHandler  *handlers.HealthHandler
}

func (d *dependencies) cleanup() {
	if d.ledger != nil {
		d.ledger.Close()
	}
	if d.redisClient != nil && (d.ledger == nil || d.ledger.Redis != d.redisClient) {
		_ = d.redisClient.Close()
	}
	if d.asynqClient != nil {
		_ = d.asynqClient.Close()
	}
	if d.asynqInspector != nil {
		_ = d.asynqInspector.Close()
	}
}

func initializeDependencies(ctx context.Context, cfg *config.Config, slogger *logger.Logger) (*dependencies, error) {
	log := slogger.Logger
	deps := &dependencies{
		registry: prometheus.NewRegistry(),
		resolver: auth.NewResolver(cfg.Security.JWTSecret),
	}
	deps.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	cartMetrics := metrics.NewCartMetrics(deps.registry)
	deps.httpMetrics = metrics.NewHTTPMetrics(deps.registry)

	backendClient, err := bootstrap.NewBackend(cfg, log, cartMetrics)
	if err != nil {
		return nil, err
	}

	deps.ledger, err = bootstrap.OpenLedger(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	deps.bus = eventbus.New(log)
	var events ports.CartEvents = deps.bus

	// Cart events from the worker arrive over Redis pub/sub.
	deps.redisClient = deps.ledger.Redis
	if deps.redisClient == nil {
		deps.redisClient, err = bootstrap.NewRedisClient(ctx, cfg)
		if err != nil {
			if cfg.IsProduction() {
				return nil, err
			}
			log.Warn("redis unavailable, cart events stay in process", slog.String("error", err.Error()))
		}
	}
	if deps.redisClient != nil {
		deps.relay = redis_a.NewEventRelay(deps.redisClient, cfg.Redis.EventsChannel, deps.bus, log)
		events = deps.relay
	}

	log.Info("initializing Asynq client")
	deps.asynqClient = asynq.NewClient(bootstrap.AsynqRedisOpt(cfg))
	deps.asynqInspector = asynq.NewInspector(bootstrap.AsynqRedisOpt(cfg))
	corrections := queue.NewAsynqCorrectionQueue(deps.asynqClient, queue.Options{
		Queue:     cfg.Asynq.CorrectionQueue,
		MaxRetry:  cfg.Asynq.RetryMax,
		UniqueTTL: cfg.Asynq.CorrectionUnique,
		Timeout:   cfg.Asynq.CorrectionTimeout,
	}, log)

	notices := notify.NewRecorder(cfg.Cart.NoticeCapacity)
	cartService := services.NewCartService(services.CartServiceDeps{
		Backend:     backendClient,
		Ledgers:     deps.ledger.Store,
		Events:      events,
		Notifier:    notify.Fanout{notices, notify.NewLogNotifier(log)},
		Corrections: corrections,
		Metrics:     cartMetrics,
		Logger:      log,
	}, services.CartServiceOptions{
		RemoveDelay:           cfg.Cart.RemoveDelay,
		CorrectionConcurrency: cfg.Cart.CorrectionConcurrency,
	})

	deps.cartHandler = handlers.NewCartHandler(cartService, notices, cfg.Cart.EventsKeepAlive, log)
	deps.healthHandler = handlers.NewHealthHandler(handlers.HealthDeps{
		Backend:  backendClient,
		Ledger:   deps.ledger.Pinger,
		Database: databaseOrNil(deps.ledger),
		Redis:    deps.redisClient,
		Asynq:    deps.asynqInspector,
	}, cfg, log)

	log.Info("all dependencies initialized successfully")
	return deps, nil
}

// databaseOrNil keeps a nil *db.Database out of the interface.
func databaseOrNil(l *bootstrap.Ledger) ports.Database {
	if l.Database == nil {
		return nil
	}
	return l.Database
}

func setupHTTPServer(cfg *config.Config, deps *dependencies, slogger *logger.Logger) *http.Server {
	mux := http.NewServeMux()
	registerRoutes(mux, deps, cfg)

	// Outermost first.
	chain := []func(http.Handler) http.Handler{
		middleware.Recovery(slogger.Logger),
		middleware.RequestID(cfg.Security.RequestIDHeader),
		middleware.Logger(slogger),
		middleware.Metrics(deps.httpMetrics),
	}
	if cfg.Security.SecureHeaders {
		chain = append(chain, middleware.SecureHeaders)
	}
	if len(cfg.Security.AllowedOrigins) > 0 {
		chain = append(chain, middleware.CORS(cfg.Security.AllowedOrigins))
	}
	if cfg.Security.RateLimitRequests > 0 {
		chain = append(chain, middleware.RateLimit(cfg.Security.RateLimitRequests, cfg.Security.RateLimitDuration))
	}
	chain = append(chain, middleware.Session(deps.resolver))

	return &http.Server{
		Addr:           cfg.GetServerAddress(),
		Handler:        middleware.Chain(mux, chain...),
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    cfg.Server.IdleTimeout,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
		ErrorLog:       slog.NewLogLogger(slogger.Handler(), slog.LevelError),
	}
}

func registerRoutes(mux *http.ServeMux, deps *dependencies, cfg *config.Config) {
	mux.HandleFunc("GET /health", deps.healthHandler.Health)
	mux.HandleFunc("GET /health/live", deps.healthHandler.Liveness)
	mux.HandleFunc("GET /health/ready", deps.healthHandler.Readiness)
	mux.HandleFunc("GET "+apiPrefix+"/health", deps.healthHandler.Health)

	if cfg.Metrics.Enabled {
		mux.Handle("GET "+cfg.Metrics.Path, promhttp.HandlerFor(deps.registry, promhttp.HandlerOpts{
			Registry: deps.registry,
		}))
	}

	deps.cartHandler.Register(mux, apiPrefix)
}
