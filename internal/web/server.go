package web

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/JoahanSP/SECURENET/internal/config"
	"github.com/JoahanSP/SECURENET/internal/database"
	"github.com/JoahanSP/SECURENET/internal/metrics"
	"github.com/JoahanSP/SECURENET/internal/storage"
	"github.com/JoahanSP/SECURENET/internal/web/handlers"
	"github.com/JoahanSP/SECURENET/internal/web/middleware"
)

// Deps are the components the HTTP layer serves.
type Deps struct {
	Ingester    handlers.Ingester
	Router      *storage.Router
	Queue       handlers.QueueDepth
	Faces       FaceRegistry
	Users       database.UserStore
	SessionRepo middleware.SessionRepository // optional
	Metrics     *metrics.Registry            // optional
}

// FaceRegistry manages the gallery and reports its size.
type FaceRegistry interface {
	handlers.FaceManager
	handlers.GalleryCounter
}

// Server represents the web server
type Server struct {
	config         *config.ServerConfig
	router         *chi.Mux
	httpServer     *http.Server
	sessionManager *middleware.SessionManager
	log            zerolog.Logger
}

// NewServer creates a new web server
func NewServer(cfg *config.ServerConfig, deps Deps, log zerolog.Logger) *Server {
	r := chi.NewRouter()

	sessionManager := middleware.NewSessionManager(cfg.SessionSecret, deps.SessionRepo, log)

	s := &Server{
		config:         cfg,
		router:         r,
		sessionManager: sessionManager,
		log:            log.With().Str("component", "web").Logger(),
	}

	// Set up middleware stack
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(2 * time.Minute))
	r.Use(middleware.CORS(cfg.AllowedOrigins))
	r.Use(middleware.SecurityHeaders())

	s.setupRoutes(deps)

	s.httpServer = &http.Server{
		Addr:              net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}

	return s
}

// Start starts the HTTP server and blocks until it is shut down
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.httpServer.Addr).Msg("starting web server")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("shutting down web server")

	// Stop the session cleanup goroutine
	s.sessionManager.Stop()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	return nil
}

// Router returns the chi router for testing
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Sessions exposes the session manager, mainly for tests
func (s *Server) Sessions() *middleware.SessionManager {
	return s.sessionManager
}
