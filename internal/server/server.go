/*
Package server exposes the payroll engine over HTTP.

ROUTES:

	GET  /healthz                   Liveness
	GET  /api/rulesets              Rule sets of the current catalog
	POST /api/payslips/calculate    Calculate one payslip
	POST /api/payslips/grossup      Solve the base salary for a target net pay
	POST /api/runs                  Run (and persist) a payroll batch
	GET  /api/runs                  Stored runs, optional ?company_id=
	GET  /api/runs/{id}             One stored run with payslips
	GET  /api/runs/{id}/payslips    Payslips of a stored run
	POST /api/runs/{id}/approve     Approve a run pending approval
	POST /api/runs/{id}/reject      Reject a run pending approval, with a reason
	GET  /metrics                   Prometheus metrics

Errors are JSON objects {"error": "...", "code": "..."}.
*/
package server

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rgehrsitz/paycalc/internal/batch"
	"github.com/rgehrsitz/paycalc/internal/calculation"
	"github.com/rgehrsitz/paycalc/internal/config"
	"github.com/rgehrsitz/paycalc/internal/metrics"
	"github.com/rgehrsitz/paycalc/internal/store/sqlite"
	"go.uber.org/zap"
)

// RunStore persists payroll runs.
type RunStore interface {
	SaveRun(ctx context.Context, run *batch.RunSummary) error
	GetRun(ctx context.Context, id string) (*batch.RunSummary, error)
	ListRuns(ctx context.Context, companyID string) ([]sqlite.RunRecord, error)
	ListPayslips(ctx context.Context, runID string) ([]batch.EmployeePayslip, error)
	UpdateStatus(ctx context.Context, id string, from, to batch.RunStatus, actor, reason string) error
}

// Config holds the dependencies of a Server. Store, Metrics and Gatherer
// are optional.
type Config struct {
	Engine         *calculation.Engine
	Catalog        *config.CatalogHolder
	Store          RunStore
	Workers        int
	Logger         *zap.Logger
	Metrics        *metrics.Metrics
	Gatherer       prometheus.Gatherer
	AllowedOrigins []string
}

// Server serves the payroll API.
type Server struct {
	engine  *calculation.Engine
	catalog *config.CatalogHolder
	store   RunStore
	workers int
	logger  *zap.Logger
	metrics *metrics.Metrics
	gather  prometheus.Gatherer
	origins []string
	parser  *config.InputParser
}

// New creates a server from cfg.
func New(cfg Config) *Server {
	s := &Server{
		engine:  cfg.Engine,
		catalog: cfg.Catalog,
		store:   cfg.Store,
		workers: cfg.Workers,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
		gather:  cfg.Gatherer,
		origins: cfg.AllowedOrigins,
		parser:  config.NewInputParser(),
	}
	if s.engine == nil {
		s.engine = calculation.NewDefaultEngine()
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.gather == nil {
		s.gather = prometheus.DefaultGatherer
	}
	if len(s.origins) == 0 {
		s.origins = []string{"*"}
	}
	return s
}

// Router returns the HTTP handler with all routes configured.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id", "X-User-Id"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))

	r.Get("/healthz", s.Health)
	r.Handle("/metrics", promhttp.HandlerFor(s.gather, promhttp.HandlerOpts{}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/rulesets", s.ListRuleSets)
		r.Post("/payslips/calculate", s.CalculatePayslip)
		r.Post("/payslips/grossup", s.GrossUpPayslip)

		r.Route("/runs", func(r chi.Router) {
			r.Post("/", s.CreateRun)
			r.Get("/", s.ListRuns)
			r.Get("/{id}", s.GetRun)
			r.Get("/{id}/payslips", s.ListRunPayslips)
			r.Post("/{id}/approve", s.ApproveRun)
			r.Post("/{id}/reject", s.RejectRun)
		})
	})

	return r
}

// ListenAndServe serves on addr until ctx is done, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.logger.Info("http server shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		if s.metrics != nil {
			s.metrics.ObserveRequest(route, strconv.Itoa(status))
		}
		s.logger.Info("http request",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("method", r.Method),
			zap.String("route", route),
			zap.Int("status", status),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(start)),
		)
	})
}
