// Package api provides the debug HTTP server: health, version, pipeline
// stats, and the Prometheus scrape endpoint. It is an outer surface only;
// the pipeline itself never depends on it.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/lumen/lumen/pkg/decode"
	"github.com/lumen/lumen/pkg/fetch"
	"github.com/lumen/lumen/pkg/logger"
	"github.com/lumen/lumen/pkg/version"
)

// Deps holds what the debug endpoints report on.
type Deps struct {
	Fetch  *fetch.Reactor
	Decode *decode.Reactor

	// Metrics serves the Prometheus registry. Nil disables /metrics.
	Metrics http.Handler
}

// Server is the debug HTTP server.
type Server struct {
	server *http.Server
	log    logger.Logger
}

// NewServer creates a debug server listening on addr.
func NewServer(addr string, log logger.Logger, deps Deps) *Server {
	router := NewRouter(deps)

	return &Server{
		server: &http.Server{
			Addr:         addr,
			Handler:      router,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		log: log,
	}
}

// Start starts the debug server. Blocks until shutdown.
func (s *Server) Start() error {
	s.log.Info("Starting debug HTTP server", "addr", s.server.Addr)

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		s.log.Error("Debug HTTP server failed", "error", err)
		return fmt.Errorf("failed to start debug server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the debug server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Shutting down debug HTTP server")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown debug server: %w", err)
	}
	return nil
}

// NewRouter creates the chi router with all debug routes.
func NewRouter(deps Deps) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", handleHealth)
	r.Get("/version", handleVersion)
	r.Get("/stats", handleStats(deps))

	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics)
	}

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, version.Info())
}

// statsPayload is the /stats response body.
type statsPayload struct {
	Fetch       fetch.Stats `json:"fetch"`
	DecodeQueue int         `json:"decode_queue"`
}

func handleStats(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload statsPayload
		if deps.Fetch != nil {
			payload.Fetch = deps.Fetch.Stats()
		}
		if deps.Decode != nil {
			payload.DecodeQueue = deps.Decode.QueueLen()
		}
		writeJSON(w, http.StatusOK, payload)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
