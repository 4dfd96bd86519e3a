package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/jwebster45206/quest-engine/internal/config"
	"github.com/jwebster45206/quest-engine/internal/logger"
	"github.com/jwebster45206/quest-engine/internal/metrics"
	"github.com/jwebster45206/quest-engine/internal/services"
	"github.com/jwebster45206/quest-engine/internal/services/events"
	"github.com/jwebster45206/quest-engine/internal/services/queue"
	"github.com/jwebster45206/quest-engine/internal/storage"
	"github.com/jwebster45206/quest-engine/internal/worker"
	"github.com/jwebster45206/quest-engine/pkg/actor"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	log := logger.Setup(cfg)

	log.Info("Starting Quest Engine Worker",
		"environment", cfg.Environment,
		"data_dir", cfg.DataDir)

	// Initialize queue service
	queueClient, err := queue.NewClient(cfg.RedisURL, log)
	if err != nil {
		log.Error("Failed to create queue client", "error", err)
		os.Exit(1)
	}
	defer func() {
		err = queueClient.Close()
		if err != nil {
			log.Error("Error closing queue client", "error", err)
		}
	}()

	requests := queue.NewRequestQueue(queueClient)
	log.Info("Queue service initialized successfully")

	// Initialize storage service
	storageService, err := storage.NewRedisStorage(cfg.RedisURL, cfg.DataDir, log)
	if err != nil {
		log.Error("Failed to create storage", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = storageService.Close()
	}()

	storageCtx, storageCancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer storageCancel()
	if err := storageService.WaitForConnection(storageCtx); err != nil {
		log.Error("Failed to connect to storage", "error", err)
		os.Exit(1)
	}
	log.Info("Storage service initialized successfully")

	// Catalog is optional; without it requirement reasons use formatted IDs
	var catalog *actor.Catalog
	catalogPath := filepath.Join(cfg.DataDir, "catalog.yaml")
	if _, err := os.Stat(catalogPath); err == nil {
		catalog, err = actor.LoadCatalog(catalogPath)
		if err != nil {
			log.Error("Failed to load catalog", "error", err, "path", catalogPath)
			os.Exit(1)
		}
		log.Info("Catalog loaded", "classes", len(catalog.Classes), "skills", len(catalog.Skills), "equipment", len(catalog.Equipment))
	}

	m := metrics.New()
	broadcaster := events.NewBroadcaster(queueClient.GetRedisClient(), log)
	svc := services.NewProgressionService(storageService, log, services.Options{
		Catalog:     catalog,
		MaxLevelUps: cfg.MaxLevelUps,
		Publisher:   broadcaster,
		Metrics:     m,
	})

	var metricsServer *http.Server
	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", m.Handler())
		metricsServer = &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			log.Info("Metrics listener started", "addr", cfg.MetricsAddr)
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("Metrics listener failed", "error", err)
			}
		}()
	}

	// Create and start worker
	w := worker.New(requests, svc, broadcaster, queueClient.GetRedisClient(), log, worker.Options{
		WorkerID:       cfg.WorkerID,
		LockTTL:        cfg.LockTTL,
		DequeueTimeout: cfg.DequeueTimeout,
		Metrics:        m,
	})

	// Handle graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		if err := w.Start(); err != nil {
			log.Error("Worker error", "error", err)
		}
	}()

	log.Info("Worker started, waiting for requests...", "worker_id", w.ID())

	// Wait for shutdown signal
	<-quit
	log.Info("Worker shutdown signal received")

	w.Stop()

	// Give worker time to finish current request
	select {
	case <-stopped:
	case <-time.After(cfg.DequeueTimeout + 2*time.Second):
		log.Warn("Worker did not stop in time")
	}

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			log.Error("Metrics listener shutdown failed", "error", err)
		}
	}

	log.Info("Worker exited")
}
