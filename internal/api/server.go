// Package api provides the HTTP server for the heritage governance daemon.
// It exposes the proposal, voting and execution operations as a JSON REST API.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/heritage-dao/heritage/internal/domain"
	"github.com/heritage-dao/heritage/internal/health"
	"github.com/heritage-dao/heritage/internal/infra/governance"
)

// PrincipalHeader carries the caller's identity. Authentication happens in
// front of this server; the header value is trusted as-is.
const PrincipalHeader = "X-Heritage-Principal"

// AuditLog reads back persisted audit events, newest first.
type AuditLog interface {
	RecentAudit(ctx context.Context, target uint64, limit int) ([]domain.AuditEvent, error)
}

// Server is the heritage HTTP API server.
type Server struct {
	gov            *governance.Engine
	health         *health.Checker // nil if not set
	auditLog       AuditLog        // nil unless the store persists audit events
	registry       Registry        // nil if not set
	metricsEnabled bool
	version        string
	logger         *slog.Logger
}

// NewServer creates a new API server over the governance engine.
func NewServer(gov *governance.Engine, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{gov: gov, version: "dev", logger: logger.With("component", "api")}
}

// EnableMetrics enables the /metrics Prometheus endpoint.
func (s *Server) EnableMetrics() { s.metricsEnabled = true }

// SetHealthChecker reports checker results on /health.
func (s *Server) SetHealthChecker(c *health.Checker) { s.health = c }

// SetAuditLog serves the persistent audit log on /api/audit.
func (s *Server) SetAuditLog(l AuditLog) { s.auditLog = l }

// SetRegistry serves users and artifacts on /api/users and /api/artifacts.
func (s *Server) SetRegistry(reg Registry) { s.registry = reg }

// SetVersion sets the version reported by /api/version.
func (s *Server) SetVersion(v string) { s.version = v }

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(corsMiddleware)

	r.Get("/health", s.handleHealth)

	r.Get("/api/version", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"version": s.version,
		})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/stats", s.handleStats)
		r.Get("/audit", s.handleAudit)
		r.Get("/users", s.handleListUsers)
		r.Get("/artifacts/{id}", s.handleGetArtifact)

		r.Route("/proposals", func(r chi.Router) {
			r.Get("/", s.handleListProposals)
			r.Post("/", s.handleCreateProposal)
			r.Get("/active", s.handleActiveProposals)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetProposal)
				r.Get("/votes", s.handleVoteDetails)
				r.Post("/votes", s.handleCastVote)
				r.Put("/votes", s.handleChangeVote)
				r.Post("/comments", s.handleAddComment)
				r.Post("/execute", s.handleExecute)
			})
		})
	})

	// Prometheus metrics endpoint
	if s.metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}
	status, code := "ok", http.StatusOK
	if !s.health.IsHealthy() {
		status, code = "degraded", http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{
		"status": status,
		"checks": s.health.Statuses(),
	})
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    "error",
		},
	})
}

// writeDomainError maps a governance error to its HTTP status.
func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "err", err)
	}
	writeError(w, status, err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrExecutionFailed):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrPermissionDenied), errors.Is(err, domain.ErrInsufficientExpertise):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrProposalClosed),
		errors.Is(err, domain.ErrAlreadyVoted),
		errors.Is(err, domain.ErrNotYetVoted),
		errors.Is(err, domain.ErrNotPassed):
		return http.StatusConflict
	case errors.Is(err, domain.ErrDeadlinePassed), errors.Is(err, domain.ErrDeadlineExceeded):
		return http.StatusGone
	default:
		return http.StatusInternalServerError
	}
}

// corsMiddleware adds CORS headers for local development.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, "+PrincipalHeader)
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
