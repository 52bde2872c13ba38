// Package server exposes the queue manager over HTTP. It is a thin
// translation layer: request parsing and JSON envelopes live here, all
// semantics live in the queue store and the worker.
package server

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/wheresmyhair/Shell-Queue-Manager/internal/queue"
	"github.com/wheresmyhair/Shell-Queue-Manager/internal/server/middleware"
	"github.com/wheresmyhair/Shell-Queue-Manager/internal/worker"
)

// Server handles HTTP requests for the queue manager.
type Server struct {
	store  *queue.Store
	worker *worker.Worker
	logger *slog.Logger
}

// New creates a Server over the given store and worker.
func New(store *queue.Store, w *worker.Worker, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{store: store, worker: w, logger: logger}
}

// Router builds the chi router with all API routes mounted under /api.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(middleware.RequestLogger(s.logger))

	r.Get("/healthz", s.Healthz)
	r.Get("/readyz", s.Readyz)

	r.Route("/api", func(r chi.Router) {
		r.Post("/submit", s.SubmitTask)
		r.Get("/status", s.GetQueueStatus)
		r.Get("/status/{id}", s.GetTaskStatus)
		r.Get("/tasks/recent", s.GetRecentTasks)
		r.Post("/tasks/clear", s.ClearQueue)
		r.Get("/live-output", s.GetLiveOutput)
		r.Post("/tasks/abort/{id}", s.AbortTask)
		r.Post("/tasks/abort-by-path", s.AbortTasksByPath)
	})

	return r
}
