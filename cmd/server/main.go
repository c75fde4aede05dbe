// Package main is the entrypoint for the classification API server.
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

	"github.com/pulmoscan/pulmoscan/internal/api"
	"github.com/pulmoscan/pulmoscan/internal/api/handler"
	mw "github.com/pulmoscan/pulmoscan/internal/api/middleware"
	"github.com/pulmoscan/pulmoscan/internal/api/response"
	"github.com/pulmoscan/pulmoscan/internal/cache"
	"github.com/pulmoscan/pulmoscan/internal/classifier"
	"github.com/pulmoscan/pulmoscan/internal/config"
	"github.com/pulmoscan/pulmoscan/internal/export"
	"github.com/pulmoscan/pulmoscan/internal/pipeline"
	"github.com/pulmoscan/pulmoscan/internal/storage"
	"github.com/pulmoscan/pulmoscan/internal/store"
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
	slog.Info("config loaded",
		"classifier_provider", cfg.Classifier.Provider,
		"cache_enabled", cfg.Cache.Enabled,
		"env", cfg.Server.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Connect to database
	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	slog.Info("database connected")

	// 3. Run migrations
	if err := store.RunMigrations(cfg.Database.URL, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("database migrations applied")

	// 4. Create Redis cache
	redisCache, err := cache.NewRedisCache(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("create redis cache: %w", err)
	}
	defer redisCache.Close()

	if err := redisCache.Ping(ctx); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis connected")

	// 5. Create classifier
	engine, err := classifier.New(cfg.Classifier)
	if err != nil {
		return fmt.Errorf("create classifier: %w", err)
	}
	slog.Info("classifier initialized", "provider", engine.Name(), "model", cfg.Classifier.HTTP.Model)

	// 6. Create stores and pipeline
	pgStore := store.NewPostgresStore(pool)
	objects, err := storage.NewFilesystem(cfg.Storage.Dir)
	if err != nil {
		return fmt.Errorf("create image storage: %w", err)
	}

	predCache := cache.NewPredictionCache(redisCache, cfg.Cache.TTL, cfg.Cache.Enabled)
	pipe := pipeline.New(pgStore, predCache, engine, objects, cfg.Classifier.InferenceTimeout)
	dispatcher := pipeline.NewDispatcher(pipe, cfg.Pipeline.Workers, cfg.Pipeline.QueueSize)
	jobSvc := pipeline.NewService(pgStore, objects, pipe, dispatcher, cfg.Classifier.HTTP.Model)
	exportSvc := export.NewService(pgStore, slog.Default())

	// 7. Build router with dependencies
	deps := api.Dependencies{
		RateLimit: mw.NewRateLimit(redisCache, int64(cfg.Server.RateLimitPerMin)),

		HealthHandler:          healthHandler(pgStore, redisCache, engine.Name()),
		ClassifyHandler:        handler.NewClassifyHandler(jobSvc),
		CreateBatchHandler:     handler.NewCreateBatchHandler(jobSvc),
		ListJobsHandler:        handler.NewListJobsHandler(jobSvc),
		GetJobHandler:          handler.NewGetJobHandler(jobSvc),
		ListPredictionsHandler: handler.NewListPredictionsHandler(jobSvc),
		ExportJobHandler:       handler.NewExportJobHandler(exportSvc),
	}

	router := api.NewRouter(deps)

	// 8. Start HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 120 * time.Second,
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
		dispatcher.Stop()
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	// Graceful shutdown with timeout; let in-flight jobs finish first
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	dispatcher.Stop()
	slog.Info("server stopped gracefully")
	return nil
}

// healthHandler checks database and cache connectivity and reports which
// inference provider is wired in.
func healthHandler(s store.Store, c cache.Cache, provider string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"database": "ok",
			"cache":    "ok",
		}

		if err := s.Ping(r.Context()); err != nil {
			checks["database"] = "degraded"
		}

		var cacheKeys int64
		if err := c.Ping(r.Context()); err != nil {
			checks["cache"] = "degraded"
		} else if n, err := c.DBSize(r.Context()); err == nil {
			cacheKeys = n
		}

		degraded := checks["database"] != "ok" || checks["cache"] != "ok"
		if degraded {
			response.Error(w, http.StatusServiceUnavailable, "DEGRADED",
				"One or more services degraded", checks)
			return
		}

		response.JSON(w, map[string]any{
			"status":     "ok",
			"services":   checks,
			"classifier": provider,
			"cache_keys": cacheKeys,
		})
	}
}
