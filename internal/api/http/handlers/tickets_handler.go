package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/spec-kit/ticket-ingest/internal/api/dto"
	"github.com/spec-kit/ticket-ingest/internal/domain"
	"github.com/spec-kit/ticket-ingest/internal/repository"
	"github.com/spec-kit/ticket-ingest/internal/syncer"
	apperrors "github.com/spec-kit/ticket-ingest/pkg/util"
)

const (
	defaultPageSize   = 20
	maxPageSize       = 100
	urgentListLimit   = 100
	defaultHistoryLen = 50
	maxHistoryLen     = 200
)

// TicketsHandler exposes tenant-scoped ticket read endpoints. Soft-deleted
// tickets never appear in any response.
type TicketsHandler struct {
	tickets repository.TicketRepository
	engine  *syncer.Engine
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(tickets repository.TicketRepository, engine *syncer.Engine) *TicketsHandler {
	return &TicketsHandler{tickets: tickets, engine: engine}
}

// List GET /tickets.
func (h *TicketsHandler) List(c *fiber.Ctx) error {
	tenantID := c.Query("tenant_id")
	if tenantID == "" {
		return apperrors.NewValidationError("tenant_id required", nil)
	}

	filter := repository.TicketFilter{
		TenantID: tenantID,
		Status:   c.Query("status"),
		Urgency:  c.Query("urgency"),
		Source:   c.Query("source"),
		Page:     c.QueryInt("page", 1),
		PageSize: clamp(c.QueryInt("page_size", defaultPageSize), 1, maxPageSize),
	}

	tickets, err := h.tickets.List(c.UserContext(), filter)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"tickets": ticketResponses(tickets)})
}

// Urgent GET /tickets/urgent.
func (h *TicketsHandler) Urgent(c *fiber.Ctx) error {
	tenantID := c.Query("tenant_id")
	if tenantID == "" {
		return apperrors.NewValidationError("tenant_id required", nil)
	}

	tickets, err := h.tickets.ListUrgent(c.UserContext(), tenantID, urgentListLimit)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"tickets": ticketResponses(tickets)})
}

// Get GET /tickets/:external_id.
func (h *TicketsHandler) Get(c *fiber.Ctx) error {
	tenantID := c.Query("tenant_id")
	if tenantID == "" {
		return apperrors.NewValidationError("tenant_id required", nil)
	}

	ticket, err := h.tickets.FindByExternalID(c.UserContext(), tenantID, c.Params("external_id"))
	if errors.Is(err, mongo.ErrNoDocuments) {
		return apperrors.NewNotFound("ticket", map[string]any{"external_id": c.Params("external_id")})
	}
	if err != nil {
		return err
	}
	return c.JSON(dto.FromTicket(ticket))
}

// History GET /tickets/:external_id/history.
func (h *TicketsHandler) History(c *fiber.Ctx) error {
	tenantID := c.Query("tenant_id")
	if tenantID == "" {
		return apperrors.NewValidationError("tenant_id required", nil)
	}

	limit := clamp(c.QueryInt("limit", defaultHistoryLen), 1, maxHistoryLen)
	ticketID := c.Params("external_id")

	entries, err := h.engine.History(c.UserContext(), tenantID, ticketID, limit)
	if err != nil {
		return err
	}

	rows := make([]dto.HistoryEntryResponse, 0, len(entries))
	for i := range entries {
		rows = append(rows, dto.FromHistory(&entries[i]))
	}
	return c.JSON(fiber.Map{"ticket_id": ticketID, "history": rows})
}

func ticketResponses(tickets []domain.Ticket) []dto.TicketResponse {
	items := make([]dto.TicketResponse, 0, len(tickets))
	for i := range tickets {
		items = append(items, dto.FromTicket(&tickets[i]))
	}
	return items
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
