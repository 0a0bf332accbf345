// Package api provides the HTTP API of the lifecycle engine.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/slate/pkg/observability"
)

// Request headers understood by the API.
const (
	HeaderUserID        = "X-User-ID"
	HeaderCorrelationID = "X-Correlation-ID"
)

// Server is the HTTP API server.
type Server struct {
	mux     *http.ServeMux
	server  *http.Server
	logger  *slog.Logger
	handler *ProjectHandler
	health  *observability.HealthRegistry
	ws      http.Handler
}

// ServerConfig holds configuration for the API server.
type ServerConfig struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// DefaultServerConfig returns the default server configuration.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:         "0.0.0.0:8080",
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// NewServer creates a new API server. ws serves the live update endpoint and
// may be nil.
func NewServer(cfg ServerConfig, handler *ProjectHandler, ws http.Handler, health *observability.HealthRegistry, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if health == nil {
		health = observability.NewHealthRegistry()
	}

	s := &Server{
		mux:     http.NewServeMux(),
		logger:  logger,
		handler: handler,
		health:  health,
		ws:      ws,
	}
	s.registerRoutes()

	s.server = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return s
}

// registerRoutes sets up the API routes.
func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)

	// Projects
	s.mux.HandleFunc("GET /api/v1/projects", s.handler.ListProjects)
	s.mux.HandleFunc("POST /api/v1/projects", s.handler.CreateProject)
	s.mux.HandleFunc("GET /api/v1/projects/{projectID}", s.handler.GetProject)
	s.mux.HandleFunc("PATCH /api/v1/projects/{projectID}", s.handler.UpdateProject)
	s.mux.HandleFunc("DELETE /api/v1/projects/{projectID}", s.handler.DeleteProject)

	// Lifecycle
	s.mux.HandleFunc("POST /api/v1/projects/{projectID}/stage", s.handler.UpdateStageStatus)
	s.mux.HandleFunc("POST /api/v1/projects/{projectID}/special", s.handler.UpdateSpecialStatus)
	s.mux.HandleFunc("GET /api/v1/projects/{projectID}/history", s.handler.ListHistory)
	s.mux.HandleFunc("GET /api/v1/projects/{projectID}/payment-gate", s.handler.CheckPaymentGate)

	// Financial documents
	s.mux.HandleFunc("GET /api/v1/projects/{projectID}/documents", s.handler.ListDocuments)
	s.mux.HandleFunc("POST /api/v1/projects/{projectID}/documents", s.handler.CreateDocument)
	s.mux.HandleFunc("POST /api/v1/documents/{documentID}/pay", s.handler.MarkDocumentPaid)

	if s.ws != nil {
		s.mux.Handle("GET /ws", s.ws)
	}
}

// Handler returns the routed handler with request middleware applied.
func (s *Server) Handler() http.Handler {
	return s.withRequestContext(s.mux)
}

// withRequestContext attaches correlation and request IDs to the context.
func (s *Server) withRequestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		correlationID := r.Header.Get(HeaderCorrelationID)
		if correlationID == "" {
			correlationID = uuid.NewString()
		}
		w.Header().Set(HeaderCorrelationID, correlationID)
		ctx := observability.NewRequestContext(r.Context(), correlationID)

		start := time.Now()
		next.ServeHTTP(w, r.WithContext(ctx))
		s.logger.DebugContext(ctx, "http request",
			"method", r.Method,
			"path", r.URL.Path,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

// handleHealth reports the registered dependency checks.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := s.health.Check(r.Context())
	status := http.StatusOK
	if health.Status == observability.HealthStatusUnhealthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, health)
}

// Start starts the API server.
func (s *Server) Start() error {
	s.logger.Info("starting API server", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down API server")
	return s.server.Shutdown(ctx)
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("failed to encode JSON response", "error", err)
		}
	}
}
