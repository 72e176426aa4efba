package dto

import (
	"time"

	"github.com/spec-kit/ticket-ingest/internal/domain"
)

// TicketResponse is the wire shape of one ticket.
type TicketResponse struct {
	ID             string           `json:"id"`
	ExternalID     string           `json:"external_id"`
	TenantID       string           `json:"tenant_id"`
	CustomerID     string           `json:"customer_id"`
	Source         string           `json:"source"`
	Subject        string           `json:"subject"`
	Message        string           `json:"message"`
	Status         string           `json:"status"`
	Urgency        domain.Urgency   `json:"urgency"`
	Sentiment      domain.Sentiment `json:"sentiment"`
	RequiresAction bool             `json:"requires_action"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// FromTicket maps a stored ticket to its response shape.
func FromTicket(t *domain.Ticket) TicketResponse {
	return TicketResponse{
		ID:             t.ID.Hex(),
		ExternalID:     t.ExternalID,
		TenantID:       t.TenantID,
		CustomerID:     t.CustomerID,
		Source:         t.Source,
		Subject:        t.Subject,
		Message:        t.Message,
		Status:         t.Status,
		Urgency:        t.Urgency,
		Sentiment:      t.Sentiment,
		RequiresAction: t.RequiresAction,
		CreatedAt:      t.CreatedAt,
		UpdatedAt:      t.UpdatedAt,
	}
}

// HistoryEntryResponse is one change-log row.
type HistoryEntryResponse struct {
	ID         string                        `json:"id"`
	TicketID   string                        `json:"ticket_id"`
	Action     domain.HistoryAction          `json:"action"`
	Changes    map[string]domain.FieldChange `json:"changes"`
	RecordedAt time.Time                     `json:"recorded_at"`
}

// FromHistory maps a history entry to its response shape.
func FromHistory(h *domain.TicketHistory) HistoryEntryResponse {
	return HistoryEntryResponse{
		ID:         h.ID.Hex(),
		TicketID:   h.TicketID,
		Action:     h.Action,
		Changes:    h.Changes,
		RecordedAt: h.RecordedAt,
	}
}
