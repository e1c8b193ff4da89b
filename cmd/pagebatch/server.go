package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/FiratKiziltepe/pagebatch/pkg/metrics"
	"github.com/FiratKiziltepe/pagebatch/pkg/orchestrator"
)

// Session is the part of the orchestrator exposed over HTTP.
type Session interface {
	State() orchestrator.State
	Progress() orchestrator.ProgressSnapshot
	Pause() error
	Resume() error
	Cancel() error
}

// Server is the session control server.
type Server struct {
	router  *chi.Mux
	server  *http.Server
	addr    string
	session Session
	logger  zerolog.Logger
}

// NewServer creates a control server for session listening on addr.
func NewServer(addr string, session Session, logger zerolog.Logger) *Server {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	s := &Server{
		router:  r,
		addr:    addr,
		session: session,
		logger:  logger.With().Str("component", "control").Logger(),
	}

	r.Get("/health", s.handleHealth)
	r.Get("/status", s.handleStatus)
	r.Post("/pause", s.control(session.Pause))
	r.Post("/resume", s.control(session.Resume))
	r.Post("/cancel", s.control(session.Cancel))
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	return s
}

// Start listens until Shutdown is called.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	s.logger.Info().Str("addr", s.addr).Msg("Starting control server")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the control server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	s.logger.Info().Msg("Shutting down control server")
	return s.server.Shutdown(ctx)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

type statusResponse struct {
	State    orchestrator.State            `json:"state"`
	Progress orchestrator.ProgressSnapshot `json:"progress"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, statusResponse{
		State:    s.session.State(),
		Progress: s.session.Progress(),
	})
}

// control wraps a session transition. Transitions without an active session
// answer 409.
func (s *Server) control(fn func() error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := fn(); err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, orchestrator.ErrNotRunning) {
				status = http.StatusConflict
			}
			writeJSON(w, status, map[string]string{"error": err.Error()})
			return
		}
		s.logger.Info().Str("path", r.URL.Path).Str("remote", r.RemoteAddr).Msg("Session control")
		writeJSON(w, http.StatusOK, map[string]orchestrator.State{"state": s.session.State()})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
