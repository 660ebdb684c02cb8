// Package web exposes a read-only operator API over the running
// engine: health, status, the known-identity list, and a one-shot
// recognize call.
package web

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/kozaktomas/face-gate/internal/config"
	"github.com/kozaktomas/face-gate/internal/engine"
	"github.com/kozaktomas/face-gate/internal/identity"
)

// EngineObserver is the slice of the engine the API needs.
type EngineObserver interface {
	Status() engine.Status
	RecognizeOnce(ctx context.Context) ([]engine.MatchResult, error)
}

// IdentitySource serves the current known-set snapshot.
type IdentitySource interface {
	Snapshot() identity.KnownSet
}

// EndpointReporter reports the dispatcher's current sticky endpoint.
type EndpointReporter interface {
	Primary() string
}

// Server is the operator API server.
type Server struct {
	router     *chi.Mux
	httpServer *http.Server
	engine     EngineObserver
	identities IdentitySource
	endpoints  EndpointReporter
}

// NewServer creates the operator API server.
func NewServer(cfg config.WebConfig, eng EngineObserver, identities IdentitySource, endpoints EndpointReporter) *Server {
	r := chi.NewRouter()

	s := &Server{
		router:     r,
		engine:     eng,
		identities: identities,
		endpoints:  endpoints,
	}

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(30 * time.Second))

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

func (s *Server) setupRoutes() {
	s.router.Get("/api/v1/health", s.handleHealth)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/identities", s.handleIdentities)
		r.Post("/recognize", s.handleRecognize)
	})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	log.Printf("Starting operator API on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Println("Shutting down operator API...")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	return nil
}

// Router returns the chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}
