package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	_ "time/tzdata"

	"github.com/tuanvumaihuynh/ledger/internal/config"
	"github.com/tuanvumaihuynh/ledger/internal/log"
	"github.com/tuanvumaihuynh/ledger/internal/repository"
	"github.com/tuanvumaihuynh/ledger/internal/storage/db"
	"github.com/tuanvumaihuynh/ledger/internal/storage/mq"
	"github.com/tuanvumaihuynh/ledger/internal/sweep"
	"github.com/tuanvumaihuynh/ledger/internal/telemetry"
)

// ledger-sweep runs the overdue invoice sweep once and exits.
func main() {
	if err := run(); err != nil {
		fmt.Printf("error running sweep application: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	type Config struct {
		Log   config.Log
		MySQL config.MySQL
		Sweep config.Sweep
		Kafka config.Kafka
		Otel  config.Otel
	}
	cfg, err := config.New[Config]()
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}

	logger := log.NewSlogLogger(cfg.Log)

	cleanupTracer, err := telemetry.InitTracer(ctx, cfg.Otel)
	if err != nil {
		return fmt.Errorf("error initializing tracer: %w", err)
	}
	defer func() {
		if err := cleanupTracer(ctx); err != nil {
			logger.ErrorContext(ctx, "error cleaning up tracer", slog.Any("error", err))
		}
	}()

	pool, err := db.NewPool(ctx, cfg.MySQL, logger)
	if err != nil {
		return fmt.Errorf("error creating db pool: %w", err)
	}
	defer pool.Close()

	var opts []sweep.Option
	if cfg.Kafka.Enabled() {
		kafkaProducer, err := mq.NewKafkaProducer(ctx, cfg.Kafka)
		if err != nil {
			return fmt.Errorf("error creating kafka producer: %w", err)
		}
		defer kafkaProducer.Close()

		opts = append(opts, sweep.WithReporter(kafkaProducer, cfg.Kafka.ReportTopic()))
	}

	svc, err := sweep.NewService(cfg.Sweep, logger, repository.NewInvoiceRepository(pool), opts...)
	if err != nil {
		return fmt.Errorf("error creating sweep service: %w", err)
	}

	marked, err := svc.RunOnce(ctx)
	if err != nil {
		return fmt.Errorf("error running sweep: %w", err)
	}

	logger.InfoContext(ctx, "sweep completed", slog.Int64("marked", marked))

	return nil
}
