package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-ingest/internal/breaker"
	"github.com/spec-kit/ticket-ingest/internal/ratelimit"
	apperrors "github.com/spec-kit/ticket-ingest/pkg/util"
)

// OpsHandler exposes circuit breaker and rate limiter introspection.
type OpsHandler struct {
	breakers *breaker.Registry
	limiter  *ratelimit.Limiter
}

// NewOpsHandler constructs handler.
func NewOpsHandler(breakers *breaker.Registry, limiter *ratelimit.Limiter) *OpsHandler {
	return &OpsHandler{breakers: breakers, limiter: limiter}
}

// CircuitStatus GET /circuit/:name/status.
func (h *OpsHandler) CircuitStatus(c *fiber.Ctx) error {
	name := c.Params("name")
	b, ok := h.breakers.Lookup(name)
	if !ok {
		return apperrors.NewNotFound("circuit", map[string]any{"name": name})
	}
	return c.JSON(b.Status())
}

// CircuitReset POST /circuit/:name/reset.
func (h *OpsHandler) CircuitReset(c *fiber.Ctx) error {
	name := c.Params("name")
	b, ok := h.breakers.Lookup(name)
	if !ok {
		return apperrors.NewNotFound("circuit", map[string]any{"name": name})
	}
	b.Reset()
	return c.JSON(fiber.Map{"status": "reset", "name": name})
}

// RateLimiterStatus GET /rate-limiter/status.
func (h *OpsHandler) RateLimiterStatus(c *fiber.Ctx) error {
	return c.JSON(h.limiter.Status())
}
