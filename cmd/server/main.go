package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ikkim/storefront-cart/config"
	"github.com/ikkim/storefront-cart/internal/app/controller"
	"github.com/ikkim/storefront-cart/internal/app/service"
	"github.com/ikkim/storefront-cart/internal/middleware"
	"github.com/ikkim/storefront-cart/internal/router"
	"github.com/ikkim/storefront-cart/internal/scheduler"
	"github.com/ikkim/storefront-cart/internal/storage"
	"github.com/ikkim/storefront-cart/internal/websocket"
	"github.com/ikkim/storefront-cart/pkg/logger"
	"github.com/ikkim/storefront-cart/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", err)
	}

	// Initialize logger
	logLevel := "info"
	if cfg.Server.Environment == "development" {
		logLevel = "debug"
	}
	logger.Initialize(logger.Config{
		Level:       logLevel,
		Format:      cfg.Server.LogFormat,
		EnableColor: cfg.Server.LogFormat != "json",
	})

	logger.Info("Starting storefront cart server", map[string]interface{}{
		"environment": cfg.Server.Environment,
		"port":        cfg.Server.Port,
		"log_level":   logLevel,
		"backend":     cfg.Cart.StorageBackend,
	})

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	cartMetrics := metrics.NewCartMetrics(registry)
	jobMetrics := metrics.NewCronJobMetrics(registry)

	// Snapshot storage
	backend, err := storage.Open(cfg)
	if err != nil {
		logger.Fatal("Failed to open cart storage", err, map[string]interface{}{
			"backend": cfg.Cart.StorageBackend,
		})
	}
	defer func() {
		if err := backend.Close(); err != nil {
			logger.Error("Failed to close cart storage", err)
		}
	}()

	// Live updates
	hub := websocket.NewHub()
	go hub.Run()

	// Services
	cartService := service.NewCartService(backend.Storage, service.CartServiceConfig{
		KeyPrefix:       cfg.Cart.KeyPrefix,
		DebounceWindow:  cfg.Cart.DebounceWindow,
		IdleTTL:         cfg.Cart.IdleTTL,
		NotificationTTL: cfg.Cart.NotificationTTL,
		RejectUnpriced:  cfg.Cart.RejectUnpriced,
	},
		service.WithPublisher(hub),
		service.WithMetrics(cartMetrics),
	)

	// Controllers and middleware
	cartController := controller.NewCartController(cartService, hub, cfg.CORS.AllowedOrigins)
	ownerMiddleware := middleware.NewOwnerMiddleware(cfg.JWT.Secret, cfg.Server.Environment == "production")

	// Scheduler
	sweeper := scheduler.NewCartSweepScheduler(cfg.Cart.SweepSchedule, cartService, jobMetrics)
	if backend.Snapshots != nil {
		sweeper.WithRetention(backend.Snapshots, cfg.Cart.SnapshotTTL)
	}
	if err := sweeper.Start(); err != nil {
		logger.Fatal("Failed to start cart sweep scheduler", err)
	}

	// Setup router
	r := router.NewRouter(cartController, ownerMiddleware, registry, cfg).
		WithHealthCheck(backend.Ping)
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           r.Setup(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("Server started successfully", map[string]interface{}{
			"address": srv.Addr,
			"pid":     os.Getpid(),
		})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server gracefully...")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("HTTP server shutdown failed", err)
	}
	sweeper.Stop()
	hub.Stop()

	// Pending debounced writes must land before storage closes.
	if err := cartService.FlushAll(ctx); err != nil {
		logger.Error("Failed to flush pending cart snapshots", err)
	}

	logger.Info("Server stopped successfully")
}
