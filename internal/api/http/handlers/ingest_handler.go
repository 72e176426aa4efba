package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-ingest/internal/api/dto"
	"github.com/spec-kit/ticket-ingest/internal/ingest"
	"github.com/spec-kit/ticket-ingest/internal/lock"
	apperrors "github.com/spec-kit/ticket-ingest/pkg/util"
)

// IngestHandler exposes ingestion run, status, progress, cancellation, and
// lock inspection endpoints.
type IngestHandler struct {
	orchestrator *ingest.Orchestrator
	locks        *lock.Manager
}

// NewIngestHandler constructs handler.
func NewIngestHandler(orchestrator *ingest.Orchestrator, locks *lock.Manager) *IngestHandler {
	return &IngestHandler{orchestrator: orchestrator, locks: locks}
}

// Run POST /ingest/run?tenant_id=T.
func (h *IngestHandler) Run(c *fiber.Ctx) error {
	tenantID := c.Query("tenant_id")
	if tenantID == "" {
		return apperrors.NewValidationError("tenant_id required", nil)
	}

	// The run outlives the request timeout budget; its lifecycle is governed
	// by the lock lease, not the HTTP deadline.
	result, err := h.orchestrator.Run(context.Background(), tenantID)
	if err != nil {
		return err
	}
	return c.JSON(result)
}

// Status GET /ingest/status?tenant_id=T.
func (h *IngestHandler) Status(c *fiber.Ctx) error {
	tenantID := c.Query("tenant_id")
	if tenantID == "" {
		return apperrors.NewValidationError("tenant_id required", nil)
	}

	job, err := h.orchestrator.TenantStatus(c.UserContext(), tenantID)
	if err != nil {
		return err
	}
	if job == nil {
		return c.JSON(fiber.Map{"running": false, "status": "idle", "tenant_id": tenantID})
	}
	return c.JSON(fiber.Map{
		"running":    true,
		"job_id":     job.JobID,
		"tenant_id":  tenantID,
		"status":     job.Status,
		"started_at": job.StartedAt,
	})
}

// Progress GET /ingest/progress/:job_id.
func (h *IngestHandler) Progress(c *fiber.Ctx) error {
	job, err := h.orchestrator.JobProgress(c.UserContext(), c.Params("job_id"))
	if err != nil {
		return apperrors.MapError(err)
	}
	return c.JSON(dto.FromJob(job))
}

// Cancel DELETE /ingest/:job_id.
func (h *IngestHandler) Cancel(c *fiber.Ctx) error {
	jobID := c.Params("job_id")
	ok, err := h.orchestrator.Cancel(c.UserContext(), jobID)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.NewNotFound("job", map[string]any{"job_id": jobID})
	}
	return c.JSON(fiber.Map{"status": "cancelled", "job_id": jobID})
}

// LockStatus GET /ingest/lock/:tenant_id.
func (h *IngestHandler) LockStatus(c *fiber.Ctx) error {
	tenantID := c.Params("tenant_id")
	status, err := h.locks.Status(c.UserContext(), ingest.LockResource(tenantID))
	if err != nil {
		return err
	}
	if status == nil {
		return c.JSON(fiber.Map{"locked": false, "tenant_id": tenantID})
	}
	return c.JSON(fiber.Map{
		"locked":      !status.IsExpired,
		"tenant_id":   tenantID,
		"resource_id": status.ResourceID,
		"owner_id":    status.OwnerID,
		"acquired_at": status.AcquiredAt,
		"expires_at":  status.ExpiresAt,
		"is_expired":  status.IsExpired,
	})
}
