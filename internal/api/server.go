// Package api exposes the pipeline over HTTP for serve mode: health
// plus synchronous single-document processing. Batch work stays on the
// CLI; this surface exists for ad-hoc submissions.
package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/docmill/docmill/internal/config"
	"github.com/docmill/docmill/internal/pipeline"
)

// Server is the serve-mode HTTP API.
type Server struct {
	router chi.Router
	worker *pipeline.Worker
	log    *slog.Logger
	cfg    config.Config
}

// NewServer configures the router around a shared pipeline worker.
func NewServer(worker *pipeline.Worker, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{worker: worker, log: log, cfg: cfg}
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

	r.Get("/health", s.handleHealth)

	r.Group(func(r chi.Router) {
		if s.cfg.APIKey != "" {
			r.Use(AuthMiddleware(s.cfg.APIKey))
		}
		r.Post("/api/documents", s.handleProcessDocument)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
