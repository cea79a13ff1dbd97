package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
)

// ServerConfig holds settings for the daemon's HTTP endpoint.
type ServerConfig struct {
	Port int
	Bind string
}

// StatusFunc produces the project status payload for GET /status.
type StatusFunc func(ctx context.Context) (any, error)

// Server exposes health and control endpoints for the running daemon.
// Safe for concurrent use.
type Server struct {
	mu          sync.RWMutex
	health      *HealthManager
	config      ServerConfig
	server      *http.Server
	router      *chi.Mux
	statusFunc  StatusFunc
	reindexFunc func(ctx context.Context)
	pauseFunc   func()
	resumeFunc  func()
}

// NewServer creates the HTTP server bound to the given health manager.
func NewServer(health *HealthManager, config ServerConfig) *Server {
	s := &Server{
		health: health,
		config: config,
		router: chi.NewRouter(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealthz)
	s.router.Get("/readyz", s.handleReadyz)
	s.router.Get("/status", s.handleStatus)
	s.router.Post("/reindex", s.handleReindex)
	s.router.Post("/pause", s.handlePause)
	s.router.Post("/resume", s.handleResume)
}

// SetStatusFunc sets the handler backing GET /status.
func (s *Server) SetStatusFunc(fn StatusFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statusFunc = fn
}

// SetReindexFunc sets the handler backing POST /reindex.
func (s *Server) SetReindexFunc(fn func(ctx context.Context)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reindexFunc = fn
}

// SetPauseFuncs sets the handlers backing POST /pause and POST /resume.
func (s *Server) SetPauseFuncs(pause, resume func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pauseFunc = pause
	s.resumeFunc = resume
}

// Start listens and serves until the context is canceled or Shutdown is
// called.
func (s *Server) Start(ctx context.Context) error {
	addr := net.JoinHostPort(s.config.Bind, fmt.Sprintf("%d", s.config.Port))

	s.mu.Lock()
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	srv := s.server
	s.mu.Unlock()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server failed on %s; %w", addr, err)
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.RLock()
	srv := s.server
	s.mu.RUnlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	status := s.health.Status()
	status.Components = nil // liveness only

	code := http.StatusOK
	if status.Status == "unhealthy" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, status)
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	status := s.health.Status()
	code := http.StatusOK
	if !status.Ready {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, status)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	fn := s.statusFunc
	s.mu.RUnlock()
	if fn == nil {
		writeJSON(w, http.StatusNotImplemented, map[string]string{"error": "status not available"})
		return
	}

	payload, err := fn(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *Server) handleReindex(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	fn := s.reindexFunc
	s.mu.RUnlock()
	if fn == nil {
		writeJSON(w, http.StatusNotImplemented, map[string]string{"error": "reindex not available"})
		return
	}

	fn(r.Context())
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	fn := s.pauseFunc
	s.mu.RUnlock()
	if fn == nil {
		writeJSON(w, http.StatusNotImplemented, map[string]string{"error": "no watcher attached"})
		return
	}
	fn()
	writeJSON(w, http.StatusOK, map[string]string{"status": "paused"})
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	fn := s.resumeFunc
	s.mu.RUnlock()
	if fn == nil {
		writeJSON(w, http.StatusNotImplemented, map[string]string{"error": "no watcher attached"})
		return
	}
	fn()
	writeJSON(w, http.StatusOK, map[string]string{"status": "resumed"})
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}
