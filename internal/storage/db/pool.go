package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/tuanvumaihuynh/ledger/internal/config"
	"github.com/tuanvumaihuynh/ledger/internal/metric"
)

var tracer = otel.Tracer("internal/storage/db")

// handle is one generation of the underlying pool.
type handle struct {
	db  *sqlx.DB
	gen uint64
}

// Pool owns the shared connection pool. Callers never keep the *sqlx.DB: every
// operation resolves the current generation through the pool, so a recreation
// is picked up by the next call.
type Pool struct {
	cfg     config.MySQL
	logger  *slog.Logger
	metrics *metric.Metrics
	open    Opener

	current     atomic.Pointer[handle]
	outstanding atomic.Int64

	mu      sync.Mutex // serializes Recreate and Close
	closed  bool
	limiter *rate.Limiter

	stopChan chan struct{}
	stopOnce sync.Once
}

type PoolOption func(*Pool)

// WithOpener replaces the MySQL opener, mainly for tests.
func WithOpener(open Opener) PoolOption {
	return func(p *Pool) {
		p.open = open
	}
}

func WithMetrics(m *metric.Metrics) PoolOption {
	return func(p *Pool) {
		p.metrics = m
	}
}

// NewPool opens the first generation of the pool and pings it. A failed ping
// is logged and the pool is returned anyway: connections are dialed on demand,
// and the error handler and the monitor take over once the database is back.
func NewPool(ctx context.Context, cfg config.MySQL, logger *slog.Logger, opts ...PoolOption) (*Pool, error) {
	limit := rate.Inf
	if cfg.RecreateMinInterval > 0 {
		limit = rate.Every(cfg.RecreateMinInterval)
	}

	p := &Pool{
		cfg:      cfg,
		logger:   logger.With(slog.String("component", "db_pool")),
		open:     MySQLOpener(cfg),
		limiter:  rate.NewLimiter(limit, 1),
		stopChan: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.metrics == nil {
		p.metrics = metric.NewNop()
	}

	db, err := p.open(ctx)
	if err != nil {
		return nil, fmt.Errorf("open pool: %w", err)
	}
	applyPoolSettings(db, cfg)

	p.current.Store(&handle{db: db, gen: 1})

	pingCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		p.logger.WarnContext(ctx, "database unreachable at startup", slog.Any("error", err))
	}

	return p, nil
}

// Generation identifies the current underlying pool; it increases on every recreation.
func (p *Pool) Generation() uint64 {
	if h := p.current.Load(); h != nil {
		return h.gen
	}
	return 0
}

// Stats returns the statistics of the current underlying pool.
func (p *Pool) Stats() sql.DBStats {
	if h := p.current.Load(); h != nil {
		return h.db.Stats()
	}
	return sql.DBStats{}
}

func (p *Pool) Rebind(query string) string {
	if h := p.current.Load(); h != nil {
		return h.db.Rebind(query)
	}
	return query
}

func (p *Pool) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	var res sql.Result
	err := p.withConn(ctx, func(conn *sqlx.Conn) error {
		var err error
		res, err = conn.ExecContext(ctx, query, args...)
		return err
	})
	return res, err
}

func (p *Pool) GetContext(ctx context.Context, dest any, query string, args ...any) error {
	return p.withConn(ctx, func(conn *sqlx.Conn) error {
		return conn.GetContext(ctx, dest, query, args...)
	})
}

func (p *Pool) SelectContext(ctx context.Context, dest any, query string, args ...any) error {
	return p.withConn(ctx, func(conn *sqlx.Conn) error {
		return conn.SelectContext(ctx, dest, query, args...)
	})
}

func (p *Pool) WithTx(ctx context.Context, txFunc func(DB) error) error {
	return p.withConn(ctx, func(conn *sqlx.Conn) error {
		return runTx(ctx, conn, txFunc)
	})
}

func (p *Pool) IsHealthy(ctx context.Context) (bool, error) {
	h := p.current.Load()
	if h == nil {
		return false, ErrPoolClosed
	}

	if err := h.db.PingContext(ctx); err != nil {
		p.handleLost(ctx, h.gen, err)
		return false, fmt.Errorf("ping database: %w", err)
	}
	return true, nil
}

// withConn checks a connection out of the current generation, waiting at most
// AcquireTimeout, runs fn on it and returns it.
func (p *Pool) withConn(ctx context.Context, fn func(conn *sqlx.Conn) error) error {
	h := p.current.Load()
	if h == nil {
		return ErrPoolClosed
	}

	release, err := p.enter()
	if err != nil {
		return err
	}
	defer release()

	acquireCtx, cancel := context.WithTimeout(ctx, p.cfg.AcquireTimeout)
	conn, err := h.db.Connx(acquireCtx)
	cancel()
	if err != nil {
		p.handleLost(ctx, h.gen, err)
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Close()

	if err := fn(conn); err != nil {
		p.handleLost(ctx, h.gen, err)
		return err
	}

	return nil
}

// enter counts the caller as outstanding (holding or waiting for a
// connection) and enforces QueueLimit when it is set.
func (p *Pool) enter() (func(), error) {
	n := p.outstanding.Add(1)
	if p.cfg.QueueLimit > 0 && n > int64(p.cfg.ConnectionLimit+p.cfg.QueueLimit) {
		p.outstanding.Add(-1)
		return nil, ErrQueueLimitReached
	}

	return func() { p.outstanding.Add(-1) }, nil
}

// HandleError is the pool-level error handler. A connection-lost error is
// logged and triggers one recreation; any other error is ignored.
// It reports whether err was a connection-lost error.
func (p *Pool) HandleError(ctx context.Context, err error) bool {
	return p.handleLost(ctx, p.Generation(), err)
}

func (p *Pool) handleLost(ctx context.Context, gen uint64, err error) bool {
	if !IsConnectionLost(err) {
		return false
	}

	p.metrics.ConnectionLost.Inc()
	p.logger.ErrorContext(ctx, "database connection lost",
		slog.Uint64("generation", gen),
		slog.Any("error", err),
	)

	if rErr := p.recreateFrom(ctx, gen); rErr != nil && !errors.Is(rErr, ErrRecreateThrottled) {
		p.logger.ErrorContext(ctx, "error recreating pool", slog.Any("error", rErr))
	}

	return true
}

// Recreate replaces the current generation with a freshly opened one.
func (p *Pool) Recreate(ctx context.Context) error {
	return p.recreateFrom(ctx, p.Generation())
}

// recreateFrom replaces generation gen. When gen was already replaced by a
// concurrent event the call is a no-op. Recreations are rate limited; a caller
// denied a slot returns at once with ErrRecreateThrottled instead of queueing.
func (p *Pool) recreateFrom(ctx context.Context, gen uint64) (err error) {
	ctx, span := tracer.Start(ctx, "Pool.Recreate", trace.WithAttributes(
		attribute.Int64("db.pool.generation", int64(gen)), //nolint:gosec
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "pool recreation failed")
		}
		span.End()
	}()

	cur := p.current.Load()
	if cur == nil {
		return ErrPoolClosed
	}
	if cur.gen != gen {
		p.coalesced(ctx, gen)
		return nil
	}

	if !p.limiter.Allow() {
		p.metrics.PoolRecreations.WithLabelValues("throttled").Inc()
		p.logger.WarnContext(ctx, "pool recreation throttled", slog.Uint64("generation", gen))
		return ErrRecreateThrottled
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPoolClosed
	}

	old := p.current.Load()
	if old == nil || old.gen != gen {
		p.coalesced(ctx, gen)
		return nil
	}

	db, err := p.open(ctx)
	if err != nil {
		p.metrics.PoolRecreations.WithLabelValues("failure").Inc()
		return fmt.Errorf("open pool: %w", err)
	}
	applyPoolSettings(db, p.cfg)

	next := &handle{db: db, gen: old.gen + 1}
	p.current.Store(next)
	p.metrics.PoolRecreations.WithLabelValues("success").Inc()

	p.logger.InfoContext(ctx, "pool recreated", slog.Uint64("generation", next.gen))

	// Close blocks until checked-out connections are returned.
	go func() {
		if err := old.db.Close(); err != nil {
			p.logger.WarnContext(context.WithoutCancel(ctx), "error closing replaced pool",
				slog.Uint64("generation", old.gen),
				slog.Any("error", err),
			)
		}
	}()

	return nil
}

func (p *Pool) coalesced(ctx context.Context, gen uint64) {
	p.metrics.PoolRecreations.WithLabelValues("coalesced").Inc()
	p.logger.InfoContext(ctx, "pool already recreated",
		slog.Uint64("generation", gen),
		slog.Uint64("current_generation", p.Generation()),
	)
}

type CleanupFunc func()

// Run starts the keep-alive monitor: the current generation is pinged every
// HealthCheckInterval and ping failures go through the pool error handler.
func (p *Pool) Run(ctx context.Context) CleanupFunc {
	ctx, cancel := context.WithCancel(ctx)

	stoppedChan := make(chan struct{})
	go func() {
		defer close(stoppedChan)
		p.monitor(ctx)
	}()

	return func() {
		defer cancel()

		p.stopOnce.Do(func() { close(p.stopChan) })
		select {
		case <-stoppedChan:
		case <-time.After(5 * time.Second):
			cancel()
		}
	}
}

func (p *Pool) monitor(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.HealthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopChan:
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, p.cfg.ConnectTimeout)
			if _, err := p.IsHealthy(pingCtx); err != nil {
				p.logger.WarnContext(ctx, "pool health check failed", slog.Any("error", err))
			}
			cancel()
		}
	}
}

// Close closes the current generation. Subsequent calls fail with ErrPoolClosed.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	h := p.current.Swap(nil)
	if h == nil {
		return nil
	}
	return h.db.Close()
}
