package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Urgency enumerates classifier urgency levels.
type Urgency string

const (
	UrgencyHigh   Urgency = "high"
	UrgencyMedium Urgency = "medium"
	UrgencyLow    Urgency = "low"
)

// Sentiment enumerates classifier sentiment levels.
type Sentiment string

const (
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
	SentimentPositive Sentiment = "positive"
)

// Ticket is the stored copy of one externally sourced support ticket.
// (tenant_id, external_id) is globally unique; a ticket with DeletedAt set
// is excluded from all normal reads.
type Ticket struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	TenantID       string             `bson:"tenant_id" json:"tenant_id"`
	ExternalID     string             `bson:"external_id" json:"external_id"`
	CustomerID     string             `bson:"customer_id" json:"customer_id"`
	Source         string             `bson:"source" json:"source"`
	Subject        string             `bson:"subject" json:"subject"`
	Message        string             `bson:"message" json:"message"`
	Status         string             `bson:"status" json:"status"`
	Urgency        Urgency            `bson:"urgency" json:"urgency"`
	Sentiment      Sentiment          `bson:"sentiment" json:"sentiment"`
	RequiresAction bool               `bson:"requires_action" json:"requires_action"`
	CreatedAt      time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt      time.Time          `bson:"updated_at" json:"updated_at"`
	DeletedAt      *time.Time         `bson:"deleted_at,omitempty" json:"deleted_at,omitempty"`
}
