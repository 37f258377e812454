// Package web exposes a small status endpoint for long-running transfer
// runs: liveness plus the current progress marker.
package web

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/chatvault/chatvault/internal/logger"
	"github.com/chatvault/chatvault/internal/progress"
)

// Server serves the status routes over HTTP.
type Server struct {
	store *progress.Store
	http  *http.Server
	log   *logger.Logger
}

// NewServer builds the status server listening on addr.
func NewServer(addr string, store *progress.Store) *Server {
	s := &Server{
		store: store,
		log:   logger.Get(),
	}
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Router creates a new chi router with the status endpoints
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	// middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.health)
	r.Get("/progress", s.progress)

	return r
}

// Start serves until the listener fails or Stop is called.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.http.Addr).Msg("web: status server listening")
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) progress(w http.ResponseWriter, _ *http.Request) {
	marker, ok := s.store.Load()
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{
			"last_message_id": nil,
			"total_processed": nil,
		})
		return
	}
	writeJSON(w, http.StatusOK, marker)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
