// ====================================
// File: cmd/dispatcher/main.go
// ====================================
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/alphapay/billing-dispatcher/internal/config"
	"github.com/alphapay/billing-dispatcher/internal/dispatcher"
	"github.com/alphapay/billing-dispatcher/internal/events"
	"github.com/alphapay/billing-dispatcher/internal/events/kafka"
	"github.com/alphapay/billing-dispatcher/internal/intake"
	"github.com/alphapay/billing-dispatcher/internal/logger"
	"github.com/alphapay/billing-dispatcher/internal/processor"
	"github.com/alphapay/billing-dispatcher/internal/storage"
	"github.com/alphapay/billing-dispatcher/internal/storage/memory"
	"github.com/alphapay/billing-dispatcher/internal/storage/postgres"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to configuration file")
	flag.Parse()

	// Local overrides; missing .env is fine.
	_ = godotenv.Load()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(&logger.Config{
		LogFile:     cfg.LogFile,
		MaxSize:     100,
		MaxAge:      7,
		MaxBackups:  3,
		Compress:    true,
		Development: cfg.DebugLogging,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	log.Info("Starting billing dispatcher")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var store storage.Storage
	if cfg.PostgresURL != "" {
		store, err = postgres.NewStorage(ctx, cfg.PostgresURL, log.Logger)
		if err != nil {
			log.Fatal("Failed to connect to transaction store", zap.Error(err))
		}
		if err := store.RunMigrations(); err != nil {
			log.Fatal("Failed to run migrations", zap.Error(err))
		}
	} else {
		log.Warn("No postgres_url configured, using in-memory store")
		store = memory.NewStorage()
	}

	eventBus := events.NewBus(log.Logger, 256)

	if len(cfg.KafkaBrokers) > 0 {
		publisher := kafka.NewPublisher(cfg.KafkaBrokers, log.Logger)
		defer publisher.Close()
		eventBus.Subscribe(events.TransactionSent, publisher)
		log.Info("Kafka bridge enabled", zap.Strings("brokers", cfg.KafkaBrokers))
	}

	client := processor.NewClient(
		cfg.ProcessorURL,
		cfg.ProcessorAPIKey,
		time.Duration(cfg.ProcessorTimeoutMs)*time.Millisecond,
		log.Logger,
	)

	disp := dispatcher.New(store, client, eventBus, log.Logger, dispatcher.Config{
		SrcBankAccount: cfg.SrcBankAccount,
		Workers:        cfg.Workers,
	})

	var loader *intake.Loader
	if cfg.IntakeFile != "" {
		loader = intake.NewLoader(store, log.Logger)
	}

	interval := time.Duration(cfg.DispatchIntervalMs) * time.Millisecond
	runner := dispatcher.NewRunner(disp, eventBus, loader, cfg.IntakeFile, interval, log.Logger)

	if err := runner.Run(ctx); err != nil {
		log.Error("Dispatcher execution error", zap.Error(err))
	}

	runner.Shutdown()
}
