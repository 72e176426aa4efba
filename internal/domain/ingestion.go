package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// JobStatus enumerates ingestion run lifecycle states.
type JobStatus string

const (
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusCancelled JobStatus = "cancelled"
	JobStatusFailed    JobStatus = "failed"
)

// Terminal reports whether the status is immutable.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusCancelled || s == JobStatusFailed
}

// IngestionJob tracks one ingestion run. At most one job per tenant may be
// in running state; that is enforced by the distributed lock, not by an index.
type IngestionJob struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"-"`
	JobID          string             `bson:"job_id" json:"job_id"`
	TenantID       string             `bson:"tenant_id" json:"tenant_id"`
	Status         JobStatus          `bson:"status" json:"status"`
	StartedAt      time.Time          `bson:"started_at" json:"started_at"`
	EndedAt        *time.Time         `bson:"ended_at,omitempty" json:"ended_at,omitempty"`
	TotalPages     int                `bson:"total_pages" json:"total_pages"`
	ProcessedPages int                `bson:"processed_pages" json:"processed_pages"`
	Progress       int                `bson:"progress" json:"progress"`
}

// LogStatus enumerates audit outcomes.
type LogStatus string

const (
	LogStatusSuccess        LogStatus = "SUCCESS"
	LogStatusPartialSuccess LogStatus = "PARTIAL_SUCCESS"
	LogStatusCancelled      LogStatus = "CANCELLED"
	LogStatusFailed         LogStatus = "FAILED"
)

// IngestionLog is the append-only audit row written at the end of every run.
type IngestionLog struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"-"`
	TenantID    string             `bson:"tenant_id" json:"tenant_id"`
	JobID       string             `bson:"job_id" json:"job_id"`
	Status      LogStatus          `bson:"status" json:"status"`
	StartedAt   time.Time          `bson:"started_at" json:"started_at"`
	EndedAt     time.Time          `bson:"ended_at" json:"ended_at"`
	NewIngested int                `bson:"new_ingested" json:"new_ingested"`
	Updated     int                `bson:"updated" json:"updated"`
	Errors      int                `bson:"errors" json:"errors"`
	Error       string             `bson:"error,omitempty" json:"error,omitempty"`
}
