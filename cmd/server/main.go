// Package main is the entrypoint for the Deliberate API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kiranshivaraju/deliberate/internal/api"
	"github.com/kiranshivaraju/deliberate/internal/api/handler"
	mw "github.com/kiranshivaraju/deliberate/internal/api/middleware"
	"github.com/kiranshivaraju/deliberate/internal/api/response"
	"github.com/kiranshivaraju/deliberate/internal/cache"
	"github.com/kiranshivaraju/deliberate/internal/config"
	"github.com/kiranshivaraju/deliberate/internal/deliberate"
	"github.com/kiranshivaraju/deliberate/internal/gateway"
	"github.com/kiranshivaraju/deliberate/internal/store"
)

const shutdownTimeout = 30 * time.Second

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load config — fail fast on invalid config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded", "gateway", cfg.Gateway.Provider, "env", cfg.Server.Env,
		"models", cfg.Deliberate.DefaultModels)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Create Redis cache
	redisCache, err := cache.NewRedisCache(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("create redis cache: %w", err)
	}
	defer redisCache.Close()

	if err := redisCache.Ping(ctx); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis connected")

	// 3. Create model gateway
	gw, err := gateway.New(cfg.Gateway)
	if err != nil {
		return fmt.Errorf("create model gateway: %w", err)
	}
	slog.Info("model gateway initialized", "gateway", gw.Name())

	// 4. Job store and deliberation runner
	jobStore := store.NewMemoryStore()
	pipeline := deliberate.NewPipeline(gw, cfg.Deliberate.CallTimeout)
	runner := deliberate.NewRunner(jobStore, redisCache, pipeline,
		cfg.Deliberate.MaxConcurrentJobs, cfg.Deliberate.JobTimeout)

	// 5. Build router with dependencies
	auth := mw.NewAuth(cfg.Auth.KeyHashes)
	rateLimit := mw.NewRateLimit(redisCache, cfg.Auth.RateLimitPerMin)

	deps := api.Dependencies{
		Auth:      auth,
		RateLimit: rateLimit,

		HealthHandler:     healthHandler(redisCache),
		DeliberateHandler: handler.NewDeliberateHandler(runner, cfg.Deliberate.DefaultModels),
		PollJobHandler:    handler.NewPollJobHandler(jobStore),
		ListJobsHandler:   handler.NewListJobsHandler(jobStore),
	}

	router := api.NewRouter(deps)

	// 6. Start HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in background
	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}

// healthHandler checks cache connectivity.
func healthHandler(c cache.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"cache": "ok",
		}

		if err := c.Ping(r.Context()); err != nil {
			checks["cache"] = "degraded"
		}

		if checks["cache"] != "ok" {
			response.Error(w, http.StatusServiceUnavailable, "DEGRADED",
				"One or more services degraded", checks)
			return
		}

		response.JSON(w, map[string]any{
			"status":   "ok",
			"services": checks,
		})
	}
}
