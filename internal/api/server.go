package api

import (
	"log/slog"
	"net/http"

	"github.com/dgallion1/docsearch/internal/config"
	"github.com/dgallion1/docsearch/internal/docs"
	"github.com/dgallion1/docsearch/internal/pipeline"
	"github.com/dgallion1/docsearch/internal/roles"
	"github.com/dgallion1/docsearch/internal/stats"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server is the HTTP API server for docsearch.
type Server struct {
	router       chi.Router
	docs         *docs.Service
	orchestrator *pipeline.Orchestrator
	stats        *stats.Registry
	log          *slog.Logger
	cfg          config.Config
}

// NewServer creates and configures the HTTP server.
func NewServer(svc *docs.Service, orch *pipeline.Orchestrator, reg *stats.Registry, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		docs:         svc,
		orchestrator: orch,
		stats:        reg,
		log:          log,
		cfg:          cfg,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	// Public endpoints.
	r.Get("/health", s.handleHealth)

	// Authenticated endpoints.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(s.cfg.JWTSecret, s.log))

		r.Get("/api/documents", s.handleListDocuments)
		r.Get("/api/documents/{docID}", s.handleGetDocument)
		r.Get("/api/search", s.handleSearch)
		r.Get("/api/jobs/{jobID}", s.handleJobStatus)

		r.Group(func(r chi.Router) {
			r.Use(RequireRole(roles.Editor))
			r.Post("/api/documents", s.handleUpload)
			r.Delete("/api/documents/{docID}", s.handleDeleteDocument)
		})

		r.Group(func(r chi.Router) {
			r.Use(RequireRole(roles.Admin))
			r.Post("/api/reindex", s.handleReindex)
			r.Get("/api/stats/backend", s.handleBackendStats)
		})
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
