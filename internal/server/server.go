// Package server exposes a Scheduler as a JSON HTTP API.
package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/elektrokombinacija/stsched/internal/logging"
	"github.com/elektrokombinacija/stsched/internal/scheduler"
)

// Server is the scheduling REST API server.
type Server struct {
	router    chi.Router
	logger    *slog.Logger
	sched     *scheduler.Scheduler
	startTime time.Time
}

// New creates a Server with all routes registered.
func New(sched *scheduler.Scheduler, logger *slog.Logger) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		logger:    logging.Component(logger, "server"),
		sched:     sched,
		startTime: time.Now(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Handler returns the http.Handler for this server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() {
	r := s.router

	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(s.logger))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Get("/clock", s.handleGetClock)
		r.Put("/clock", s.handleSetClock)

		r.Route("/agents", func(r chi.Router) {
			r.Get("/", s.handleListAgents)
			r.Post("/", s.handleAddAgent)
			r.Get("/{id}", s.handleGetAgent)
			r.Delete("/{id}", s.handleRemoveAgent)
		})

		r.Route("/jobs", func(r chi.Router) {
			r.Get("/", s.handleListJobs)
			r.Post("/", s.handleScheduleJob)
			r.Post("/batch", s.handleScheduleBatch)
			r.Post("/periodic", s.handleSchedulePeriodic)
			r.Get("/{id}", s.handleGetJob)
			r.Put("/{id}", s.handleRescheduleJob)
			r.Delete("/{id}", s.handleUnscheduleJob)
		})

		r.Route("/transactions", func(r chi.Router) {
			r.Get("/", s.handleListTransactions)
			r.Get("/{id}", s.handleGetTransaction)
			r.Post("/{id}/commit", s.handleCommit)
			r.Post("/{id}/abort", s.handleAbort)
		})
	})
}
