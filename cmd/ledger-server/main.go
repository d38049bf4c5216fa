package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	_ "time/tzdata"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/tuanvumaihuynh/ledger/internal/config"
	"github.com/tuanvumaihuynh/ledger/internal/http"
	"github.com/tuanvumaihuynh/ledger/internal/log"
	"github.com/tuanvumaihuynh/ledger/internal/metric"
	"github.com/tuanvumaihuynh/ledger/internal/repository"
	"github.com/tuanvumaihuynh/ledger/internal/storage/db"
	"github.com/tuanvumaihuynh/ledger/internal/storage/mq"
	"github.com/tuanvumaihuynh/ledger/internal/sweep"
	"github.com/tuanvumaihuynh/ledger/internal/telemetry"
	"github.com/tuanvumaihuynh/ledger/pkg/cmdutil"
)

func main() {
	if err := run(); err != nil {
		fmt.Printf("error running server application: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	type Config struct {
		Log   config.Log
		MySQL config.MySQL
		HTTP  config.HTTP
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

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := metric.New(reg)

	// The diagnostic connection is independent of the pool and never fatal.
	diagnostics := db.OpenDiagnostics(ctx, db.MySQLOpener(cfg.MySQL), logger)
	defer func() {
		if err := diagnostics.Close(); err != nil {
			logger.WarnContext(ctx, "error closing diagnostic connection", slog.Any("error", err))
		}
	}()

	// An unreachable database is not an error here: the pool dials lazily and
	// its monitor recovers once the server is back.
	pool, err := db.NewPool(ctx, cfg.MySQL, logger, db.WithMetrics(metrics))
	if err != nil {
		return fmt.Errorf("error creating db pool: %w", err)
	}
	defer func() {
		if err := pool.Close(); err != nil {
			logger.ErrorContext(ctx, "error closing db pool", slog.Any("error", err))
		}
	}()
	reg.MustRegister(metric.NewDBStatsCollector(pool.Stats))

	sweepOpts := []sweep.Option{sweep.WithMetrics(metrics)}
	if cfg.Kafka.Enabled() {
		kafkaProducer, err := mq.NewKafkaProducer(ctx, cfg.Kafka)
		if err != nil {
			return fmt.Errorf("error creating kafka producer: %w", err)
		}
		defer kafkaProducer.Close()

		sweepOpts = append(sweepOpts, sweep.WithReporter(kafkaProducer, cfg.Kafka.ReportTopic()))
	}

	invoiceRepository := repository.NewInvoiceRepository(pool)

	sweepSvc, err := sweep.NewService(cfg.Sweep, logger, invoiceRepository, sweepOpts...)
	if err != nil {
		return fmt.Errorf("error creating sweep service: %w", err)
	}

	interruptChan := cmdutil.InterruptChan()

	cleanupMonitor := pool.Run(ctx)
	logger.InfoContext(ctx, "db pool monitor started",
		slog.Duration("interval", cfg.MySQL.HealthCheckInterval))

	cleanupSweep, err := sweepSvc.Run(ctx)
	if err != nil {
		cleanupMonitor()
		return fmt.Errorf("error running sweep service: %w", err)
	}
	logger.InfoContext(ctx, "sweep service started")

	httpSvc := http.New(cfg.HTTP, logger, pool, http.WithMetrics(metrics, reg))
	cleanupHTTP, err := httpSvc.Run(ctx)
	if err != nil {
		cleanupSweep()
		cleanupMonitor()
		return fmt.Errorf("error running http service: %w", err)
	}
	logger.InfoContext(ctx, "http service started", slog.String("address", fmt.Sprintf(":%d", cfg.HTTP.Port)))

	<-interruptChan

	logger.InfoContext(ctx, "http service is shutting down")
	if err := cleanupHTTP(ctx); err != nil {
		logger.ErrorContext(ctx, "error shutting down http service", slog.Any("error", err))
	}
	logger.InfoContext(ctx, "http service is stopped")

	logger.InfoContext(ctx, "sweep service is shutting down")
	cleanupSweep()
	logger.InfoContext(ctx, "sweep service is stopped")

	cleanupMonitor()
	logger.InfoContext(ctx, "db pool monitor is stopped")

	return nil
}
