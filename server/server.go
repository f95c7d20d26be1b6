// Package server serves built assets: a static server for the output
// directory and a development server that rebuilds and live-reloads.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"log"
	"net/http"
	"sync"

	sentryhttp "github.com/getsentry/sentry-go/http"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"

	"github.com/hannes/pagepack/config"
	"github.com/hannes/pagepack/telemetry"
)

// Server serves the output directory
type Server struct {
	config *config.Config
	dist   *DistManager
	router chi.Router

	mu   sync.RWMutex
	port int
}

// NewServer creates a server for the configured root directory on disk
func NewServer(cfg *config.Config) (*Server, error) {
	root := cfg.ResolvePath(cfg.Server.Root)
	if root == "" {
		return nil, fmt.Errorf("server root is empty")
	}
	return newServer(cfg, NewDistManager(root, indexFile(cfg))), nil
}

// NewServerWithEmbedded creates a server for an embedded file system holding a dist/ directory
func NewServerWithEmbedded(cfg *config.Config, distFS fs.FS) (*Server, error) {
	if distFS == nil {
		return nil, fmt.Errorf("embedded file system is nil")
	}

	subFS, err := fs.Sub(distFS, "dist")
	if err != nil {
		log.Printf("[Server] Failed to create sub-filesystem: %v", err)
		subFS = distFS
	}
	return newServer(cfg, NewEmbeddedDistManager(subFS, indexFile(cfg))), nil
}

func newServer(cfg *config.Config, dist *DistManager) *Server {
	s := &Server{config: cfg, dist: dist}
	s.router = s.buildRouter()
	return s
}

func indexFile(cfg *config.Config) string {
	if !cfg.HTML.Enabled {
		return ""
	}
	return cfg.HTML.Filename
}

// Dist returns the manager of the served directory
func (s *Server) Dist() *DistManager {
	return s.dist
}

// Handler returns the server's HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Port returns the bound port, or 0 before Start has bound the socket
func (s *Server) Port() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.port
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	if telemetry.Enabled() {
		r.Use(sentryhttp.New(sentryhttp.Options{Repanic: true}).Handle)
	}
	r.Use(requestID)
	if s.config.Logging.LogRequests {
		r.Use(requestLogger("Server"))
	}
	if rl := s.config.Server.RateLimit; rl.RequestsPerSecond > 0 {
		r.Use(rateLimit(rate.NewLimiter(rate.Limit(rl.RequestsPerSecond), rl.Burst)))
	}

	r.Get("/health", s.healthCheck)
	r.Handle("/*", s.staticHandler())
	return r
}

// staticHandler serves whatever file system the dist manager currently holds
func (s *Server) staticHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.FileServer(http.FS(s.dist.FS())).ServeHTTP(w, r)
	})
}

// healthCheck reports the state of the served directory
func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	info := s.dist.GetInfo()
	status := http.StatusOK
	info["status"] = "healthy"
	if !s.dist.IsHealthy() {
		status = http.StatusServiceUnavailable
		info["status"] = "unhealthy"
	}
	writeJSON(w, status, info)
}

// Start serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.config.Server.ListenAddr(),
		Handler:      s.router,
		ReadTimeout:  s.config.Server.ReadTimeout,
		WriteTimeout: s.config.Server.WriteTimeout,
		IdleTimeout:  s.config.Server.IdleTimeout,
	}

	return serve(ctx, "Server", srv, func(port int) {
		log.Printf("server is listening on localhost:%d", port)
		s.mu.Lock()
		s.port = port
		s.mu.Unlock()
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Failed to write JSON response: %v", err)
	}
}
