package admin

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tkingovr/viewfilter/api"
	"github.com/tkingovr/viewfilter/internal/audit"
	"github.com/tkingovr/viewfilter/internal/policy"
)

// RouteLister describes the routes bound on the site.
type RouteLister interface {
	Routes() []api.RouteInfo
}

// Server is the admin HTTP server: audit log, stats, routes, policy checks
// and metrics.
type Server struct {
	mux        *http.ServeMux
	logger     *slog.Logger
	auditStore audit.Store
	engine     policy.Engine
	routes     RouteLister
	metrics    http.Handler
	addr       string
}

// NewServer creates a new admin server. gatherer may be nil to disable
// /metrics.
func NewServer(addr string, store audit.Store, engine policy.Engine, routes RouteLister, gatherer prometheus.Gatherer, logger *slog.Logger) *Server {
	s := &Server{
		mux:        http.NewServeMux(),
		logger:     logger,
		auditStore: store,
		engine:     engine,
		routes:     routes,
		addr:       addr,
	}
	if gatherer != nil {
		s.metrics = promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /api/v1/stats", s.handleStats)
	s.mux.HandleFunc("GET /api/v1/audit", s.handleAudit)
	s.mux.HandleFunc("GET /api/v1/audit/stream", s.handleAuditStream)
	s.mux.HandleFunc("GET /api/v1/routes", s.handleRoutes)
	s.mux.HandleFunc("GET /api/v1/policy", s.handlePolicy)
	s.mux.HandleFunc("POST /api/v1/check", s.handleCheck)
	if s.metrics != nil {
		s.mux.Handle("GET /metrics", s.metrics)
	}
}

// ListenAndServe starts the admin server and shuts it down when ctx ends.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		srv.Close()
	}()

	s.logger.Info("starting admin server", "addr", s.addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Handler returns the HTTP handler for embedding in other servers.
func (s *Server) Handler() http.Handler {
	return s.mux
}
