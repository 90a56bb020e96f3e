package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/cie10-predict-server/internal/api"
	"github.com/cie10-predict-server/internal/breaker"
	"github.com/cie10-predict-server/internal/cache"
	"github.com/cie10-predict-server/internal/config"
	"github.com/cie10-predict-server/internal/domain"
	"github.com/cie10-predict-server/internal/repository"
	"github.com/cie10-predict-server/internal/service"
	"github.com/cie10-predict-server/internal/store"
)

func main() {
	// Load configuration
	configManager, err := config.NewManager()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Validate configuration
	if err := configManager.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}

	cfg := configManager.GetConfig()
	logger := newLogger(cfg.Logging)

	logger.WithFields(logrus.Fields{
		"host": cfg.Server.Host,
		"port": cfg.Server.Port,
	}).Info("Starting CIE-10 prediction server")

	// Reference store: PostgreSQL in production, SQLite snapshot offline
	refs, err := openReferenceStore(cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to open reference store")
	}
	defer refs.Close()

	// Model bundles. A missing top-level bundle is fatal.
	modelStore, err := store.NewStore(&cfg.Models, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to load model artifacts")
	}

	// Description lookups go through the cache and the circuit breaker
	// before reaching the database.
	descriptions := cache.NewDescriptionCache(
		breaker.NewDescriptionBreaker(refs, logger),
		&cfg.Cache,
		logger,
	)
	defer descriptions.Close()

	engine := service.NewEngine(modelStore, cfg.Models.TopN, logger)
	enricher := service.NewEnricher(descriptions, logger)

	server := api.NewServer(cfg, engine, enricher, refs, logger)

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, gracefully shutting down")
		cancel()
	}()

	if err := server.Start(ctx); err != nil {
		logger.WithError(err).Fatal("Server failed")
	}

	logger.Info("Server stopped")
}

func openReferenceStore(cfg *domain.Config, logger *logrus.Logger) (domain.ReferenceStore, error) {
	if cfg.Database.SQLitePath != "" {
		return repository.OpenSQLite(cfg.Database.SQLitePath, cfg.Database.QueryTimeout, logger)
	}
	return repository.OpenPostgres(&cfg.Database, logger)
}

func newLogger(cfg domain.LoggingConfig) *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	if cfg.Output == "stderr" {
		logger.SetOutput(os.Stderr)
	}

	return logger
}
