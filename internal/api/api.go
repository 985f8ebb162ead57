// SPDX-License-Identifier: MIT

// Package api is the HTTP surface: clip CRUD, caption editing, the
// progress websocket and static delivery of finished clips.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dschwenke/clippy/internal/bus"
	"github.com/dschwenke/clippy/internal/caption"
	"github.com/dschwenke/clippy/internal/job"
	"github.com/dschwenke/clippy/internal/log"
	"github.com/dschwenke/clippy/internal/registry"
)

// JobService is the orchestrator surface the handlers need.
type JobService interface {
	Create(ctx context.Context, caller job.Identity, req job.Request) (string, error)
	Query(caller job.Identity, jobID string) (job.Snapshot, error)
	Refresh(caller job.Identity, jobID string) (string, []job.Caption, error)
	UpdateCaptions(ctx context.Context, caller job.Identity, jobID string, edits []caption.Edit) error
	Publish(ctx context.Context, caller job.Identity, jobID string) (job.Publication, error)
	Promote(ctx context.Context, sessionID, userID string) error
	Dismiss(ctx context.Context, caller job.Identity, jobID string) error
}

// ClipLister lists a session's durable clips.
type ClipLister interface {
	ListBySession(ctx context.Context, sessionID string, limit int) ([]*registry.Record, error)
}

// Deps bundles the server's collaborators.
type Deps struct {
	Jobs     JobService
	Clips    ClipLister
	Bus      bus.Bus
	ClipsDir string

	// CreateRateLimit caps clip creations per caller per minute.
	// Zero disables the limiter.
	CreateRateLimit int
}

// Server carries the handler state.
type Server struct {
	deps Deps
}

// New constructs the API server.
func New(deps Deps) *Server {
	return &Server{deps: deps}
}

// Router builds the HTTP routing tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(requestLogger)
	r.Use(chimw.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Use(withIdentity)

		r.Route("/clips", func(r chi.Router) {
			if s.deps.CreateRateLimit > 0 {
				r.With(httprate.LimitByIP(s.deps.CreateRateLimit, time.Minute)).
					Post("/", s.handleCreate)
			} else {
				r.Post("/", s.handleCreate)
			}
			r.Get("/", s.handleList)
			r.Route("/{jobID}", func(r chi.Router) {
				r.Get("/", s.handleStatus)
				r.Delete("/", s.handleDismiss)
				r.Put("/captions", s.handleUpdateCaptions)
				r.Get("/refresh", s.handleRefresh)
				r.Post("/publish", s.handlePublish)
			})
		})
		r.Post("/auth/promote", s.handlePromote)
	})

	r.With(withIdentity).Get("/ws/{jobID}", s.handleProgressSocket)

	if s.deps.ClipsDir != "" {
		fs := http.StripPrefix("/clips/", http.FileServer(http.Dir(s.deps.ClipsDir)))
		r.Get("/clips/*", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Cache-Control", "no-cache")
			fs.ServeHTTP(w, r)
		})
	}

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return r
}

// requestLogger logs one line per request with a request id in context.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := uuid.NewString()
		ctx := log.ContextWithRequestID(r.Context(), requestID)
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r.WithContext(ctx))

		log.WithComponent("api").Info().
			Str("request_id", requestID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("request")
	})
}
