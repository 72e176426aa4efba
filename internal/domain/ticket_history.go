package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// HistoryAction captures what kind of change a history entry records.
type HistoryAction string

const (
	HistoryActionCreated HistoryAction = "created"
	HistoryActionUpdated HistoryAction = "updated"
	HistoryActionDeleted HistoryAction = "deleted"
)

// FieldChange holds the before/after values of one ticket field.
type FieldChange struct {
	Old any `bson:"old" json:"old"`
	New any `bson:"new" json:"new"`
}

// TicketHistory is an immutable change-log entry, keyed by the ticket's
// external id within its tenant.
type TicketHistory struct {
	ID         primitive.ObjectID     `bson:"_id,omitempty" json:"id"`
	TicketID   string                 `bson:"ticket_id" json:"ticket_id"`
	TenantID   string                 `bson:"tenant_id" json:"tenant_id"`
	Action     HistoryAction          `bson:"action" json:"action"`
	Changes    map[string]FieldChange `bson:"changes" json:"changes"`
	RecordedAt time.Time              `bson:"recorded_at" json:"recorded_at"`
}
