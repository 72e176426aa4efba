package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-ingest/internal/ingest"
	"github.com/spec-kit/ticket-ingest/internal/persistence"
)

// HealthHandler reports dependency health: the document store and the
// external ticket source.
type HealthHandler struct {
	serviceName string
	version     string
	mongo       *persistence.Mongo
	source      *ingest.SourceClient
}

// NewHealthHandler returns a new handler instance.
func NewHealthHandler(serviceName, version string, mongo *persistence.Mongo, source *ingest.SourceClient) *HealthHandler {
	return &HealthHandler{serviceName: serviceName, version: version, mongo: mongo, source: source}
}

// Health GET /health. 200 when all dependencies answer; 503 with
// per-dependency detail otherwise.
func (h *HealthHandler) Health(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	depStatus := fiber.Map{}
	healthy := true

	if err := h.mongo.Ping(ctx); err != nil {
		depStatus["mongodb"] = "unhealthy: " + err.Error()
		healthy = false
	} else {
		depStatus["mongodb"] = "healthy"
	}

	if err := h.source.Healthy(ctx); err != nil {
		depStatus["external_api"] = "unhealthy: " + err.Error()
		healthy = false
	} else {
		depStatus["external_api"] = "healthy"
	}

	if healthy {
		return c.JSON(fiber.Map{
			"status":       "ok",
			"service":      h.serviceName,
			"version":      h.version,
			"dependencies": depStatus,
		})
	}

	return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
		"status":       "degraded",
		"service":      h.serviceName,
		"version":      h.version,
		"dependencies": depStatus,
	})
}
