package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/metrics"
	"github.com/opensource-finance/kestrel/internal/rules"
	"github.com/opensource-finance/kestrel/internal/scoring"
	"github.com/opensource-finance/kestrel/internal/workflow"
)

// Server represents the HTTP API server.
type Server struct {
	router  *chi.Mux
	handler *Handler
	server  *http.Server
	config  domain.ServerConfig
}

// NewServer creates a new API server.
func NewServer(cfg domain.ServerConfig, repo domain.Repository, cache domain.Cache, bus domain.EventBus, ruleEngine *rules.Engine, analyzer *scoring.Analyzer, wfEngine *workflow.Engine, version string) *Server {
	handler := NewHandler(repo, cache, bus, ruleEngine, analyzer, wfEngine, version)
	router := chi.NewRouter()

	// Global middleware stack
	router.Use(CORSMiddleware)          // CORS for browser clients
	router.Use(RecoverMiddleware)       // Recover from panics
	router.Use(TracingMiddleware)       // OpenTelemetry tracing
	router.Use(LoggingMiddleware)       // Request logging
	router.Use(metrics.Middleware)      // Prometheus request metrics
	router.Use(middleware.RealIP)       // Extract real IP
	router.Use(middleware.Compress(5))  // Gzip compression

	// Health and observability endpoints
	router.Get("/health", handler.Health)
	router.Get("/ready", handler.Ready)
	router.Method(http.MethodGet, "/metrics", metrics.Handler())

	// Workflow orchestration
	router.Post("/workflows", handler.ExecuteWorkflow)
	router.Get("/workflows/{id}", handler.WorkflowStatus)

	// Fraud analysis
	router.Post("/analyze", handler.Analyze)
	router.Post("/analyze/batch", handler.AnalyzeBatch)
	router.Post("/observations", handler.IngestObservation)
	router.Get("/assessments/{id}", handler.GetAssessment)
	router.Get("/alerts", handler.ListAlerts)

	// Rule management
	router.Get("/rules", handler.ListRules)
	router.Get("/rules/{id}", handler.GetRule)
	router.Post("/rules", handler.CreateRule)
	router.Post("/rules/reload", handler.ReloadRules)

	return &Server{
		router:  router,
		handler: handler,
		config:  cfg,
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.config.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.config.WriteTimeout) * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the Chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Handler returns the handler for testing.
func (s *Server) Handler() *Handler {
	return s.handler
}
