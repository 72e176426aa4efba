package domain

import "time"

// ExternalTicket is the upstream source's wire representation of a ticket.
type ExternalTicket struct {
	ID         string    `json:"id"`
	CustomerID string    `json:"customer_id"`
	Source     string    `json:"source"`
	Subject    string    `json:"subject"`
	Message    string    `json:"message"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Valid reports whether the payload carries the minimum usable fields.
func (t ExternalTicket) Valid() bool {
	return t.ID != ""
}
