package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/helpdesk-insight/ticket-ingest/internal/api/http/handlers"
	"github.com/helpdesk-insight/ticket-ingest/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Metrics        *handlers.MetricsHandler
	Sync           *handlers.SyncHandler
	Imports        *handlers.ImportHandler
	Jobs           *handlers.JobsHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	authn := cfg.AuthMiddleware.Handle

	read := auth.RequireRole(auth.RoleViewer)
	app.Get("/metrics", authn, read, cfg.Metrics.Get)
	app.Get("/sync/status", authn, read, cfg.Sync.Status)
	app.Get("/jobs/failed", authn, read, cfg.Jobs.Failed)
	app.Get("/queue/stats", authn, read, cfg.Jobs.Stats)

	write := auth.RequireRole(auth.RoleAdmin)
	app.Post("/sync/run", authn, write, cfg.Sync.Run)
	app.Post("/imports", authn, write, cfg.Imports.Create)
}
