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

	"github.com/gin-gonic/gin"

	"github.com/kurihiro0119/github-compatibility/internal/api"
	"github.com/kurihiro0119/github-compatibility/internal/collector"
	"github.com/kurihiro0119/github-compatibility/internal/config"
	"github.com/kurihiro0119/github-compatibility/internal/matcher"
	"github.com/kurihiro0119/github-compatibility/internal/metrics"
	"github.com/kurihiro0119/github-compatibility/internal/narrative"
	"github.com/kurihiro0119/github-compatibility/internal/storage"
	"github.com/kurihiro0119/github-compatibility/internal/storage/memory"
	"github.com/kurihiro0119/github-compatibility/internal/storage/postgres"
	"github.com/kurihiro0119/github-compatibility/internal/storage/sqlite"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	// Initialize storage
	store, err := getStorage(cfg)
	if err != nil {
		slog.Error("Failed to initialize storage", "storage_type", cfg.StorageType, "error", err)
		os.Exit(1)
	}
	defer store.Close()

	coll, err := collector.NewGitHubCollector(cfg.GitHubAPIURL, cfg.GitHubTimeout)
	if err != nil {
		slog.Error("Failed to initialize GitHub collector", "error", err)
		os.Exit(1)
	}

	if cfg.XAIAPIKey == "" {
		slog.Warn("XAI_API_KEY is not set, analyses will fail at the narrative step")
	}
	generator := narrative.NewXAIGenerator(cfg.XAIAPIKey, cfg.NarrativeModel, cfg.NarrativeBaseURL, cfg.NarrativeTimeout)

	recorder := metrics.NewRecorder()
	service := matcher.NewService(coll, generator, store, cfg.CacheTTL,
		matcher.WithMetrics(recorder),
		matcher.WithLogger(logger),
	)

	gin.SetMode(cfg.GinMode)
	router := api.SetupRoutes(api.NewHandler(service), recorder)

	addr := fmt.Sprintf("%s:%s", cfg.APIHost, cfg.APIPort)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("Starting API server", "addr", addr, "storage_type", cfg.StorageType, "cache_ttl", cfg.CacheTTL.String())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}
	slog.Info("Server exited")
}

func getStorage(cfg *config.Config) (storage.Storage, error) {
	switch cfg.StorageType {
	case config.StoragePostgres:
		return postgres.NewPostgresStorage(cfg.PostgresURL)
	case config.StorageMemory:
		return memory.NewMemoryStorage(), nil
	default:
		return sqlite.NewSQLiteStorage(cfg.SQLitePath)
	}
}
