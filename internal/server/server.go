package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/meltforce/freecoach/internal/coach"
	"github.com/meltforce/freecoach/internal/metrics"
)

// Server holds dependencies for HTTP handlers.
type Server struct {
	svc     *coach.Service
	metrics *metrics.Manager
	log     *slog.Logger
	apiKey  string
	router  chi.Router
}

// New creates a new Server with all routes configured. An empty apiKey
// leaves write routes open.
func New(svc *coach.Service, m *metrics.Manager, apiKey string, log *slog.Logger) *Server {
	s := &Server{
		svc:     svc,
		metrics: m,
		log:     log,
		apiKey:  apiKey,
		router:  chi.NewRouter(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.Use(RequestID)
	s.router.Use(RequestLogging(s.log))
	s.router.Use(RequestMetrics(s.metrics))
	s.router.Use(CORS)

	s.router.Get("/health", s.handleHealth)

	// Reads are open; the listener decides who can reach them.
	s.router.Get("/api/v1/users", s.handleListUsers)
	s.router.Get("/api/v1/users/{userID}", s.handleGetUser)
	s.router.Get("/api/v1/users/{userID}/plans", s.handleListPlans)
	s.router.Get("/api/v1/users/{userID}/progress", s.handleProgress)
	s.router.Get("/api/v1/exercise-types", s.handleListExerciseTypes)
	s.router.Get("/api/v1/plans/{planID}", s.handleGetPlan)

	// Writes need the API key when one is configured.
	s.router.Group(func(r chi.Router) {
		r.Use(s.writeAuth)
		r.Post("/api/v1/users", s.handleCreateUser)
		r.Post("/api/v1/exercise-types", s.handleCreateExerciseType)
		r.Post("/api/v1/users/{userID}/plans/generate", s.handleGeneratePlan)
		r.Post("/api/v1/users/{userID}/plans/{planID}/sessions", s.handleReportSessions)
		r.Put("/api/v1/plans/{planID}", s.handleUpdatePlan)
		r.Delete("/api/v1/plans/{planID}", s.handleDeletePlan)
	})
}

// SetMetricsHandler mounts h at /metrics.
func (s *Server) SetMetricsHandler(h http.Handler) {
	s.router.Handle("/metrics", h)
}

// SetMCP mounts a streamable MCP handler at /mcp. The MCP surface exposes
// write tools, so it sits behind the same key as the write routes.
func (s *Server) SetMCP(h http.Handler) {
	s.router.With(s.writeAuth).Handle("/mcp", h)
}

func (s *Server) writeAuth(next http.Handler) http.Handler {
	if s.apiKey == "" {
		return next
	}
	return APIKeyAuth(s.apiKey)(next)
}
