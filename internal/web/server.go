package web

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/officeflow/attendance/internal/attendance"
	"github.com/officeflow/attendance/internal/auth"
	"github.com/officeflow/attendance/internal/config"
	"github.com/officeflow/attendance/internal/database"
	"github.com/officeflow/attendance/internal/faceid"
	"github.com/officeflow/attendance/internal/logging"
	"github.com/officeflow/attendance/internal/web/handlers"
	"github.com/officeflow/attendance/internal/web/middleware"
)

// Deps carries the wired components the server routes requests to.
type Deps struct {
	Directory database.DirectoryWriter
	Log       database.LogWriter
	Extractor faceid.Extractor
	Index     *database.CandidateIndex
	DB        handlers.Pinger
}

// Server is the attendance HTTP API.
type Server struct {
	config     *config.Config
	router     *chi.Mux
	httpServer *http.Server
	tokens     *auth.TokenManager
}

// NewServer creates the API server and wires the verification pipeline.
func NewServer(cfg *config.Config, deps Deps) *Server {
	r := chi.NewRouter()

	s := &Server{
		config: cfg,
		router: r,
		tokens: auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL),
	}

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(60 * time.Second))
	r.Use(middleware.CORS())
	r.Use(middleware.Metrics())

	s.setupRoutes(deps)

	s.httpServer = &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	logging.Default().Info("starting attendance API", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	logging.Default().Info("shutting down attendance API")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	return nil
}

// Router returns the chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// resolverFromConfig builds the shared 1:N resolver.
func resolverFromConfig(cfg *config.Config) *attendance.Resolver {
	return attendance.NewResolver(cfg.Matching.Threshold, cfg.Matching.Margin)
}
