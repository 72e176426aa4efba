package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-ingest/internal/api/http/handlers"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health  *handlers.HealthHandler
	Ingest  *handlers.IngestHandler
	Tickets *handlers.TicketsHandler
	Stats   *handlers.StatsHandler
	Ops     *handlers.OpsHandler
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health", cfg.Health.Health)

	app.Post("/ingest/run", cfg.Ingest.Run)
	app.Get("/ingest/status", cfg.Ingest.Status)
	app.Get("/ingest/progress/:job_id", cfg.Ingest.Progress)
	app.Get("/ingest/lock/:tenant_id", cfg.Ingest.LockStatus)
	app.Delete("/ingest/:job_id", cfg.Ingest.Cancel)

	// /tickets/urgent registers before the :external_id routes on purpose.
	app.Get("/tickets/urgent", cfg.Tickets.Urgent)
	app.Get("/tickets", cfg.Tickets.List)
	app.Get("/tickets/:external_id", cfg.Tickets.Get)
	app.Get("/tickets/:external_id/history", cfg.Tickets.History)

	app.Get("/tenants/:tenant_id/stats", cfg.Stats.TenantStats)

	app.Get("/circuit/:name/status", cfg.Ops.CircuitStatus)
	app.Post("/circuit/:name/reset", cfg.Ops.CircuitReset)
	app.Get("/rate-limiter/status", cfg.Ops.RateLimiterStatus)
}
