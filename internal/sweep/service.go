package sweep

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tuanvumaihuynh/ledger/internal/config"
	"github.com/tuanvumaihuynh/ledger/internal/event"
	"github.com/tuanvumaihuynh/ledger/internal/metric"
	"github.com/tuanvumaihuynh/ledger/internal/repository"
	"github.com/tuanvumaihuynh/ledger/internal/storage/mq"
	"github.com/tuanvumaihuynh/ledger/pkg/eventheader"
	"github.com/tuanvumaihuynh/ledger/pkg/ptr"
)

var tracer = otel.Tracer("internal/sweep")

// Service marks overdue purchase invoices on a cron schedule.
type Service struct {
	cfg         config.Sweep
	loc         *time.Location
	logger      *slog.Logger
	metrics     *metric.Metrics
	invoiceRepo repository.InvoiceRepository

	mqProducer  mq.Producer
	reportTopic string

	now  func() time.Time
	cron *cron.Cron
}

type Option func(*Service)

// WithClock replaces time.Now as the source of the sweep date.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func WithMetrics(m *metric.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithReporter publishes a report to topic after every run that marked invoices.
func WithReporter(p mq.Producer, topic string) Option {
	return func(s *Service) {
		s.mqProducer = p
		s.reportTopic = topic
	}
}

func NewService(
	cfg config.Sweep,
	logger *slog.Logger,
	invoiceRepo repository.InvoiceRepository,
	opts ...Option,
) (*Service, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	s := &Service{
		cfg:         cfg,
		loc:         loc,
		logger:      logger.With(slog.String("service", "sweep")),
		invoiceRepo: invoiceRepo,
		mqProducer:  mq.NopProducer{},
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = metric.NewNop()
	}

	cronLogger := newCronLogger(s.logger)
	s.cron = cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(cronLogger),
		cron.WithChain(
			cron.Recover(cronLogger),
			cron.SkipIfStillRunning(cronLogger),
		),
	)

	return s, nil
}

type CleanupFunc func()

// Run registers the sweep on its schedule and starts the scheduler. The
// returned cleanup stops the scheduler and waits for a running sweep.
func (s *Service) Run(ctx context.Context) (CleanupFunc, error) {
	ctx, cancel := context.WithCancel(ctx)

	if _, err := s.cron.AddFunc(s.cfg.Schedule, func() {
		_, _ = s.RunOnce(ctx)
	}); err != nil {
		cancel()
		return nil, fmt.Errorf("register sweep schedule %q: %w", s.cfg.Schedule, err)
	}

	s.cron.Start()
	s.logger.InfoContext(ctx, "sweep scheduled",
		slog.String("schedule", s.cfg.Schedule),
		slog.String("location", s.loc.String()),
	)

	return func() {
		stopCtx := s.cron.Stop()
		select {
		case <-stopCtx.Done():
		case <-time.After(5 * time.Second):
		}
		cancel()
	}, nil
}

// RunOnce marks every posted invoice with an open payment and a due date
// before today as overdue, and returns the number of invoices changed.
// Failures are logged and returned; they do not affect later runs.
func (s *Service) RunOnce(ctx context.Context) (marked int64, err error) {
	startedAt := time.Now()
	today := startOfDay(s.now().In(s.loc))
	asOf := today.Format(time.DateOnly)

	ctx, span := tracer.Start(ctx, "Service.RunOnce", trace.WithAttributes(
		attribute.String("sweep.as_of", asOf),
	))
	defer func() {
		s.metrics.SweepDuration.Observe(time.Since(startedAt).Seconds())
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "sweep failed")
		}
		span.End()
	}()

	runCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	marked, err = s.invoiceRepo.MarkOverdue(runCtx, repository.MarkOverdueParams{Today: today})
	if err != nil {
		s.metrics.SweepRuns.WithLabelValues("failure").Inc()
		s.logger.ErrorContext(ctx, "error marking overdue invoices",
			slog.String("as_of", asOf),
			slog.Any("error", err),
		)
		return 0, fmt.Errorf("mark overdue invoices: %w", err)
	}

	s.metrics.SweepRuns.WithLabelValues("success").Inc()
	s.metrics.SweepMarked.Add(float64(marked))
	s.metrics.SweepLastRunAt.SetToCurrentTime()
	span.SetAttributes(attribute.Int64("sweep.marked", marked))

	if marked == 0 {
		return 0, nil
	}

	s.logger.InfoContext(ctx, "marked invoices overdue",
		slog.Int64("count", marked),
		slog.String("as_of", asOf),
	)

	if err := s.report(ctx, asOf, marked); err != nil {
		s.logger.ErrorContext(ctx, "error publishing sweep report", slog.Any("error", err))
	}

	return marked, nil
}

func (s *Service) report(ctx context.Context, asOf string, marked int64) error {
	if s.reportTopic == "" {
		return nil
	}

	runID, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("generate uuid v7: %w", err)
	}

	payload, err := json.Marshal(event.InvoiceOverdueSweptEvent{
		RunID:   runID.String(),
		AsOf:    asOf,
		Marked:  marked,
		SweptAt: s.now(),
	})
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	if err := s.mqProducer.Produce(ctx, mq.ProduceMsg{
		Topic:        s.reportTopic,
		Headers:      eventheader.Build(ctx),
		Payload:      payload,
		PartitionKey: ptr.New(asOf),
	}); err != nil {
		return fmt.Errorf("produce message: %w", err)
	}

	return nil
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
