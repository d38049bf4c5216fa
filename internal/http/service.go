package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"

	"github.com/tuanvumaihuynh/ledger/internal/apperr"
	"github.com/tuanvumaihuynh/ledger/internal/config"
	"github.com/tuanvumaihuynh/ledger/internal/http/apierr"
	"github.com/tuanvumaihuynh/ledger/internal/http/middleware"
	"github.com/tuanvumaihuynh/ledger/internal/metric"
	"github.com/tuanvumaihuynh/ledger/internal/storage/db"
)

var tracer = otel.Tracer("internal/http")

// Service represents the HTTP service.
type Service struct {
	cfg      config.HTTP
	logger   *slog.Logger
	metrics  *metric.Metrics
	gatherer prometheus.Gatherer
	health   db.HealthChecker

	routes []func(chi.Router)
}

type Option func(*Service)

// WithRoutes mounts application handlers behind the middleware chain, ahead
// of the static frontend.
func WithRoutes(fn func(r chi.Router)) Option {
	return func(s *Service) {
		s.routes = append(s.routes, fn)
	}
}

// WithMetrics exports HTTP metrics to m and serves gatherer on /metrics.
func WithMetrics(m *metric.Metrics, gatherer prometheus.Gatherer) Option {
	return func(s *Service) {
		s.metrics = m
		s.gatherer = gatherer
	}
}

type CleanupFunc func(ctx context.Context) error

func New(
	cfg config.HTTP,
	log *slog.Logger,
	health db.HealthChecker,
	opts ...Option,
) *Service {
	s := &Service{
		cfg:      cfg,
		logger:   log.With(slog.String("service", "http")),
		gatherer: prometheus.DefaultGatherer,
		health:   health,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = metric.NewNop()
	}

	return s
}

func (s *Service) Run(ctx context.Context) (CleanupFunc, error) {
	return s.RunWithServer(ctx, s.Handler())
}

// Handler builds the router: middleware chain, health checks, application routes
// and the static frontend.
func (s *Service) Handler() http.Handler {
	r := chi.NewRouter()
	s.RegisterMiddlewares(r)
	s.RegisterHandlers(r)
	return r
}

func (s *Service) RunWithServer(ctx context.Context, handler http.Handler) (CleanupFunc, error) {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Port),
		Handler:           handler,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 16, // 64 KB
		ErrorLog:          slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn),
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", srv.Addr, err)
	}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.ErrorContext(ctx, "error serving http", slog.Any("error", err))
		}
	}()

	s.logger.InfoContext(ctx, "http server listening", slog.String("addr", ln.Addr().String()))

	return func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	}, nil
}

func (s *Service) RegisterMiddlewares(r chi.Router) {
	r.Use(
		middleware.Recoverer(s.logger),
		middleware.Trace(tracer),
		middleware.Metrics(s.metrics),
		middleware.CorrelationID(),
		middleware.Cors(s.cfg.CorsAllowedOrigins),
		middleware.Logging(s.logger),
		middleware.BodyParser(s.cfg.Body.Limit, s.logger),
	)
}

func (s *Service) RegisterHandlers(r chi.Router) {
	r.Get(middleware.HealthPath, s.handleHealth)
	r.Handle(middleware.MetricsPath, promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{
		ErrorLog: slog.NewLogLogger(s.logger.Handler(), slog.LevelError),
	}))

	for _, fn := range s.routes {
		fn(r)
	}

	js := http.StripPrefix("/js", newStaticHandler(s.cfg.JSDir))
	r.Get("/js/*", js.ServeHTTP)
	r.Head("/js/*", js.ServeHTTP)

	static := newStaticHandler(s.cfg.StaticDir)
	r.Get("/*", static.ServeHTTP)
	r.Head("/*", static.ServeHTTP)
}

func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if ok, err := s.health.IsHealthy(ctx); !ok {
		s.handleResponseError(w, r, apperr.DatabaseUnavailableErr.WrapParent(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(map[string]string{"status": "ok"}); err != nil {
		s.logger.WarnContext(r.Context(), "error encoding health response", slog.Any("error", err))
	}
}

func (s *Service) handleResponseError(w http.ResponseWriter, r *http.Request, err error) {
	res := apierr.New(err)

	logLevel := slog.LevelInfo
	if res.StatusCode >= 500 {
		logLevel = slog.LevelError
	} else if res.StatusCode >= 400 {
		logLevel = slog.LevelWarn
	}
	s.logger.Log(r.Context(), logLevel, "http response error", slog.Any("error", err))

	if err := apierr.Write(w, err); err != nil {
		s.logger.ErrorContext(r.Context(), "error encoding error response",
			slog.Any("error", err))
	}
}
