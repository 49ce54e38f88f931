package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/leozw/leadboard/internal/api"
	"github.com/leozw/leadboard/internal/cache"
	"github.com/leozw/leadboard/internal/config"
	"github.com/leozw/leadboard/internal/dashboard"
	"github.com/leozw/leadboard/internal/fetcher"
	"github.com/leozw/leadboard/internal/metrics"
	"github.com/leozw/leadboard/internal/migration"
	"github.com/leozw/leadboard/internal/registry"
	"github.com/leozw/leadboard/internal/resolver"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	logger, err := newLogger(cfg.Server.Mode)
	if err != nil {
		log.Fatal("Failed to initialize logger:", err)
	}
	defer logger.Sync()

	// Legacy single-tenant settings keep working: they seed the registry
	// file when none exists and back resolution as a fallback.
	legacy := migration.Detect()
	if legacy != nil {
		logger.Info("legacy configuration detected",
			zap.String("source", legacy.Source),
			zap.String("domain", legacy.Domain),
		)
	}

	if _, err := os.Stat(cfg.Registry.Path); os.IsNotExist(err) {
		if legacy == nil {
			logger.Fatal("registry file not found and no legacy configuration to migrate",
				zap.String("path", cfg.Registry.Path),
			)
		}
		if err := migration.WriteDocument(cfg.Registry.Path, *legacy); err != nil {
			logger.Fatal("failed to write migrated registry", zap.Error(err))
		}
		logger.Info("registry created from legacy configuration",
			zap.String("path", cfg.Registry.Path),
		)
	}

	reg, err := registry.New(cfg.Registry.Path, logger)
	if err != nil {
		logger.Fatal("failed to load registry", zap.Error(err))
	}

	collector := metrics.NewCollector()
	collector.SetActiveDomains(len(reg.Snapshot().Domains()))

	dataCache := cache.New(logger)
	defer dataCache.Close()

	fetch := fetcher.New(cfg.Fetcher.BaseURL, cfg.Fetcher.Timeout, logger)
	svc := dashboard.NewService(fetch, dataCache, collector, cfg.Analytics.TopN, logger)
	res := resolver.New(reg, legacy)

	server := api.NewServer(cfg, reg, res, svc, collector, logger)

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: server.Router,
	}

	// Graceful shutdown
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("failed to start server", zap.Error(err))
		}
	}()

	logger.Info("API server started", zap.String("port", cfg.Server.Port))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server exited")
}

func newLogger(mode string) (*zap.Logger, error) {
	if mode == "release" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}
