package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/dgallion1/offersplice/internal/block"
	"github.com/dgallion1/offersplice/internal/config"
	"github.com/dgallion1/offersplice/internal/engine"
	"github.com/dgallion1/offersplice/internal/pipeline"
	"github.com/dgallion1/offersplice/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// DocumentPutter stores imported drafts. The local SQLite store
// implements it.
type DocumentPutter interface {
	PutDocument(ctx context.Context, doc block.Document, source string) (bool, error)
}

// Services are the collaborators the handlers call.
type Services struct {
	Orchestrator *pipeline.Orchestrator
	Engine       *engine.Engine
	Store        store.Store
	Stats        *store.Stats   // optional
	Local        DocumentPutter // optional; enables /api/import
}

// Server is the HTTP API server for offersplice.
type Server struct {
	router chi.Router
	svc    Services
	log    *slog.Logger
	cfg    config.Config
}

// NewServer creates and configures the HTTP server.
func NewServer(svc Services, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		svc: svc,
		log: log,
		cfg: cfg,
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
		r.Use(AuthMiddleware(s.cfg.APIKey, s.log))

		r.Get("/api/documents", s.handleListDocuments)
		r.Get("/api/documents/{docID}/suggestions", s.handleSuggestions)
		r.Post("/api/documents/{docID}/{op}", s.handleApply)

		r.Post("/api/runs", s.handleSubmitRun)
		r.Get("/api/runs", s.handleListRuns)
		r.Get("/api/runs/{runID}", s.handleRunStatus)

		r.Post("/api/import", s.handleImport)
		r.Get("/api/stats/store", s.handleStoreStats)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
