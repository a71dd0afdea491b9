package server

import (
	"github.com/fulmenhq/gofulmen/signals"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/docgate/docgate/internal/observability"
	"github.com/docgate/docgate/internal/server/handlers"
)

func (s *Server) registerRoutes() {
	health := s.opts.Health
	if health != nil {
		s.router.Get("/health", health.HealthHandler)
		s.router.Get("/health/live", health.LivenessHandler)
		s.router.Get("/health/ready", health.ReadinessHandler)
		s.router.Get("/health/startup", health.StartupHandler)
	} else {
		s.router.Get("/health", handlers.HealthHandler)
		s.router.Get("/health/live", handlers.LivenessHandler)
		s.router.Get("/health/ready", handlers.ReadinessHandler)
		s.router.Get("/health/startup", handlers.StartupHandler)
	}

	s.router.Get("/version", handlers.VersionHandler)
	s.router.Get("/metrics", MetricsHandler)

	documents := &handlers.DocumentsHandler{
		Submitter:    s.opts.Submitter,
		MaxBodyBytes: s.opts.Server.MaxBodyBytes,
	}
	var documentRoutes chi.Router = s.router
	if s.inbound != nil {
		documentRoutes = s.router.With(s.inbound.Middleware)
	}
	documentRoutes.Post("/v1/documents", documents.Create)

	s.registerAdminEndpoint()
}

// registerAdminEndpoint exposes gofulmen's signal endpoint behind a bearer token.
func (s *Server) registerAdminEndpoint() {
	logger := observability.ServerLogger
	if s.opts.AdminToken == "" {
		if logger != nil {
			logger.Debug("Admin signal endpoint disabled (no admin token configured)")
		}
		return
	}

	handler := signals.NewHTTPHandler(signals.HTTPConfig{
		TokenAuth: s.opts.AdminToken,
		RateLimit: 10,
		RateBurst: 5,
	})
	s.router.Post("/admin/signal", handler.ServeHTTP)

	if logger != nil {
		logger.Info("Admin signal endpoint enabled",
			zap.String("path", "/admin/signal"),
			zap.String("rate_limit", "10/min, burst 5"))
	}
}
