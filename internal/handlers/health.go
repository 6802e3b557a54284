// internal/handlers/health.go
package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"runtime"
	"sync"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/ammerola/clothify-cart/internal/core/ports"
	"github.com/ammerola/clothify-cart/internal/pkg/config"
)

const (
	statusHealthy   = "healthy"
	statusUnhealthy = "unhealthy"
	statusDegraded  = "degraded"
)

// Pinger is any dependency with a cheap liveness probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthDeps are the dependencies reported by the health endpoints. Only
// Backend is required; the rest depend on the configured ledger driver.
type HealthDeps struct {
	Backend  ports.CartBackend
	Ledger   Pinger
	Database ports.Database
	Redis    *redis.Client
	Asynq    *asynq.Inspector
}

// dependency is one row of the health report. details runs only after a
// successful probe.
type dependency struct {
	name    string
	probe   func(context.Context) error
	details func(context.Context) map[string]any
	// informational dependencies show up in /health but never gate readiness.
	informational bool
}

// HealthHandler serves /health, /health/live and /health/ready
type HealthHandler struct {
	deps      []dependency
	config    *config.Config
	logger    *slog.Logger
	startTime time.Time
}

func NewHealthHandler(deps HealthDeps, cfg *config.Config, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		deps:      dependencies(deps, cfg),
		config:    cfg,
		logger:    logger.With(slog.String("handler", "health")),
		startTime: time.Now(),
	}
}

func dependencies(d HealthDeps, cfg *config.Config) []dependency {
	var out []dependency
	if d.Backend != nil {
		out = append(out, dependency{
			name:  "backend",
			probe: d.Backend.Ping,
			details: func(context.Context) map[string]any {
				return map[string]any{"base_url": cfg.Backend.BaseURL}
			},
		})
	}
	if d.Ledger != nil {
		out = append(out, dependency{
			name:  "ledger",
			probe: d.Ledger.Ping,
			details: func(context.Context) map[string]any {
				return map[string]any{"driver": cfg.Ledger.Driver}
			},
		})
	}
	if d.Database != nil {
		out = append(out, dependency{
			name:  "database",
			probe: d.Database.Ping,
			details: func(context.Context) map[string]any {
				return map[string]any{"pool": d.Database.Stats()}
			},
		})
	}
	if d.Redis != nil {
		out = append(out, dependency{
			name:    "redis",
			probe:   func(ctx context.Context) error { return d.Redis.Ping(ctx).Err() },
			details: func(context.Context) map[string]any { return redisDetails(d.Redis) },
		})
	}
	if d.Asynq != nil {
		out = append(out, dependency{
			name:          "asynq",
			probe:         func(context.Context) error { _, err := d.Asynq.Queues(); return err },
			details:       func(context.Context) map[string]any { return asynqDetails(d.Asynq) },
			informational: true,
		})
	}
	return out
}

// HealthStatus is the /health response body
type HealthStatus struct {
	Status      string                 `json:"status"`
	Version     string                 `json:"version"`
	Environment string                 `json:"environment"`
	Uptime      string                 `json:"uptime"`
	Timestamp   time.Time              `json:"timestamp"`
	Services    map[string]ServiceInfo `json:"services"`
	System      SystemInfo             `json:"system"`
}

// ServiceInfo is the state of one dependency
type ServiceInfo struct {
	Status       string         `json:"status"`
	Message      string         `json:"message,omitempty"`
	ResponseTime string         `json:"response_time,omitempty"`
	Details      map[string]any `json:"details,omitempty"`
}

// SystemInfo is a runtime snapshot of the process
type SystemInfo struct {
	GoVersion     string `json:"go_version"`
	NumGoroutines int    `json:"num_goroutines"`
	NumCPU        int    `json:"num_cpu"`
	HeapAllocMB   uint64 `json:"heap_alloc_mb"`
	SysMB         uint64 `json:"sys_mb"`
	NumGC         uint32 `json:"num_gc"`
}

// Health checks every dependency concurrently. Any unhealthy one makes
// the whole report degraded and the response 503.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	report := HealthStatus{
		Status:      statusHealthy,
		Version:     h.config.App.Version,
		Environment: h.config.App.Environment,
		Uptime:      time.Since(h.startTime).Round(time.Second).String(),
		Timestamp:   time.Now().UTC(),
		Services:    h.checkAll(ctx, false),
		System:      systemInfo(),
	}
	for _, info := range report.Services {
		if info.Status != statusHealthy {
			report.Status = statusDegraded
		}
	}

	status := http.StatusOK
	if report.Status != statusHealthy {
		status = http.StatusServiceUnavailable
	}
	respondJSON(w, h.logger, status, report)
}

// Liveness handles /health/live. It never touches dependencies.
func (h *HealthHandler) Liveness(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, h.logger, http.StatusOK, map[string]string{
		"status": "alive",
		"uptime": time.Since(h.startTime).Round(time.Second).String(),
	})
}

// Readiness handles /health/ready. Only dependencies that serve cart
// traffic are probed.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	ready := true
	details := make(map[string]string)
	for name, info := range h.checkAll(ctx, true) {
		if info.Status == statusHealthy {
			details[name] = "ready"
			continue
		}
		ready = false
		details[name] = "not ready"
	}

	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}
	respondJSON(w, h.logger, status, map[string]any{
		"ready":   ready,
		"details": details,
	})
}

func (h *HealthHandler) checkAll(ctx context.Context, probeOnly bool) map[string]ServiceInfo {
	var (
		mu  sync.Mutex
		out = make(map[string]ServiceInfo, len(h.deps))
		g   errgroup.Group
	)
	for _, dep := range h.deps {
		if probeOnly && dep.informational {
			continue
		}
		g.Go(func() error {
			info := h.check(ctx, dep, probeOnly)
			mu.Lock()
			out[dep.name] = info
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (h *HealthHandler) check(ctx context.Context, dep dependency, probeOnly bool) ServiceInfo {
	start := time.Now()
	if err := dep.probe(ctx); err != nil {
		h.logger.WarnContext(ctx, "dependency check failed",
			slog.String("dependency", dep.name),
			slog.String("error", err.Error()))
		return ServiceInfo{Status: statusUnhealthy, Message: err.Error()}
	}
	info := ServiceInfo{Status: statusHealthy, ResponseTime: time.Since(start).String()}
	if !probeOnly && dep.details != nil {
		info.Details = dep.details(ctx)
	}
	return info
}

func redisDetails(rdb *redis.Client) map[string]any {
	stats := rdb.PoolStats()
	return map[string]any{
		"total_conns": stats.TotalConns,
		"idle_conns":  stats.IdleConns,
		"stale_conns": stats.StaleConns,
		"timeouts":    stats.Timeouts,
	}
}

// asynqDetails summarizes queue depth. Queues that fail to load are skipped.
func asynqDetails(inspector *asynq.Inspector) map[string]any {
	names, err := inspector.Queues()
	if err != nil {
		return nil
	}
	queues := make(map[string]any, len(names))
	for _, name := range names {
		q, err := inspector.GetQueueInfo(name)
		if err != nil {
			continue
		}
		queues[name] = map[string]int{
			"pending":   q.Pending,
			"active":    q.Active,
			"scheduled": q.Scheduled,
			"retry":     q.Retry,
			"archived":  q.Archived,
		}
	}
	details := map[string]any{"queues": queues}
	if servers, err := inspector.Servers(); err == nil {
		details["servers"] = len(servers)
	}
	return details
}

func systemInfo() SystemInfo {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	return SystemInfo{
		GoVersion:     runtime.Version(),
		NumGoroutines: runtime.NumGoroutine(),
		NumCPU:        runtime.NumCPU(),
		HeapAllocMB:   mem.HeapAlloc >> 20,
		SysMB:         mem.Sys >> 20,
		NumGC:         mem.NumGC,
	}
}
