package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-ingest/internal/analytics"
	apperrors "github.com/spec-kit/ticket-ingest/pkg/util"
)

// StatsHandler exposes the tenant dashboard endpoint.
type StatsHandler struct {
	service *analytics.Service
}

// NewStatsHandler constructs handler.
func NewStatsHandler(service *analytics.Service) *StatsHandler {
	return &StatsHandler{service: service}
}

// TenantStats GET /tenants/:tenant_id/stats.
func (h *StatsHandler) TenantStats(c *fiber.Ctx) error {
	tenantID := c.Params("tenant_id")

	from, err := parseDate(c.Query("from_date"))
	if err != nil {
		return apperrors.NewValidationError("invalid from_date", map[string]any{"from_date": c.Query("from_date")})
	}
	to, err := parseDate(c.Query("to_date"))
	if err != nil {
		return apperrors.NewValidationError("invalid to_date", map[string]any{"to_date": c.Query("to_date")})
	}

	stats, err := h.service.TenantStats(c.UserContext(), tenantID, from, to)
	if err != nil {
		return err
	}
	return c.JSON(stats)
}

// parseDate accepts RFC3339 timestamps or bare dates; empty is the zero time.
func parseDate(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", value)
}
