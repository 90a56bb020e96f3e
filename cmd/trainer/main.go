package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/cie10-predict-server/internal/config"
	"github.com/cie10-predict-server/internal/database"
	"github.com/cie10-predict-server/internal/model"
	"github.com/cie10-predict-server/internal/training"
)

func main() {
	var (
		outDir         = flag.String("out", "", "output directory for model bundles (defaults to the configured models dir)")
		skipTopLevel   = flag.Bool("skip-top-level", false, "skip the diagnostic-group model")
		skipCategories = flag.Bool("skip-categories", false, "skip the per-category cause models")
		migrationsPath = flag.String("migrate", "", "run schema migrations from this directory before training")
	)
	flag.Parse()

	configManager, err := config.NewManager()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := configManager.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}

	cfg := configManager.GetConfig()
	logger := logrus.New()
	if level, err := logrus.ParseLevel(cfg.Logging.Level); err == nil {
		logger.SetLevel(level)
	}

	if *outDir == "" {
		*outDir = cfg.Models.Dir
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("Interrupt received, stopping after the current model")
		cancel()
	}()

	if *migrationsPath != "" {
		runner, err := database.NewMigrationRunner(configManager.GetDatabaseURL(), *migrationsPath, logger)
		if err != nil {
			logger.WithError(err).Fatal("Failed to create migration runner")
		}
		if err := runner.Up(); err != nil {
			logger.WithError(err).Fatal("Migrations failed")
		}
		if err := runner.Close(); err != nil {
			logger.WithError(err).Warn("Closing migration runner failed")
		}
	}

	db, err := database.NewConnection(ctx, database.FromConfig(cfg.Database), logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to the records database")
	}
	defer db.Close()

	trainer := training.NewTrainer(
		training.NewSQLSource(db.Pool),
		*outDir,
		model.DefaultTrainConfig(),
		logger,
	)

	if !*skipTopLevel {
		if err := trainer.TrainTopLevel(ctx); err != nil {
			logger.WithError(err).Fatal("Top-level training failed")
		}
	}
	if !*skipCategories {
		if err := trainer.TrainCategories(ctx); err != nil {
			logger.WithError(err).Fatal("Category training failed")
		}
	}

	logger.WithField("out", *outDir).Info("Training complete")
}
