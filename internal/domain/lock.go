package domain

import "time"

// Lock is one distributed-lock document, unique per resource. An entry whose
// ExpiresAt is in the past is logically free and eligible for takeover.
type Lock struct {
	ResourceID string    `bson:"resource_id" json:"resource_id"`
	OwnerID    string    `bson:"owner_id" json:"owner_id"`
	AcquiredAt time.Time `bson:"acquired_at" json:"acquired_at"`
	ExpiresAt  time.Time `bson:"expires_at" json:"expires_at"`
}

// Expired reports whether the lease has lapsed at the given instant.
func (l Lock) Expired(now time.Time) bool {
	return now.After(l.ExpiresAt)
}
