package web

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/JoahanSP/SECURENET/internal/web/handlers"
	"github.com/JoahanSP/SECURENET/internal/web/middleware"
)

func (s *Server) setupRoutes(deps Deps) {
	authHandler := handlers.NewAuthHandler(deps.Users, s.sessionManager, s.log)
	uploadHandler := handlers.NewUploadHandler(deps.Ingester, s.config.MaxUploadBytes, s.log)
	artifactsHandler := handlers.NewArtifactsHandler(deps.Router, s.log)
	statsHandler := handlers.NewStatsHandler(deps.Router, deps.Queue, deps.Faces, s.log)
	facesHandler := handlers.NewFacesHandler(deps.Router, deps.Faces, s.config.MaxUploadBytes, s.log)

	requireSession := middleware.RequireAuth(s.sessionManager)
	requireKey := middleware.RequireAPIKey(s.config.APIKeys)

	// set before Route so mounted subrouters inherit it
	s.router.NotFound(handlers.NotFound)

	// Health check and metrics (no auth required)
	s.router.Get("/api/v1/health", handlers.HealthCheck)
	s.router.Method("GET", "/metrics", deps.Metrics.Handler())

	// Camera uploads. The legacy path stays for deployed firmware.
	s.router.Group(func(r chi.Router) {
		r.Use(requireKey)
		if s.config.UploadRateLimit > 0 {
			r.Use(httprate.LimitByIP(s.config.UploadRateLimit, time.Minute))
		}
		r.Post("/upload", uploadHandler.Upload)
		r.Post("/api/v1/upload", uploadHandler.Upload)
	})

	s.router.With(requireSession).Get("/files/{category}/{filename}", artifactsHandler.ServeFile)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/login", authHandler.Login)
		r.Post("/auth/logout", authHandler.Logout)
		r.Get("/auth/status", authHandler.Status)

		// Dashboard
		r.Group(func(r chi.Router) {
			r.Use(requireSession)

			r.Get("/alerts", artifactsHandler.Alerts)
			r.Get("/images", artifactsHandler.Images)
			r.Get("/artifacts/{category}", artifactsHandler.List)
			r.Get("/stats", statsHandler.Get)
			r.Get("/authorized-faces", facesHandler.List)
		})

		// Gallery management
		r.Group(func(r chi.Router) {
			r.Use(requireKey)

			r.Post("/authorized-faces", facesHandler.Add)
			r.Delete("/authorized-faces/{name}", facesHandler.Delete)
		})
	})
}
