package dto

import (
	"time"

	"github.com/spec-kit/ticket-ingest/internal/domain"
)

// JobProgressResponse is the progress view of one run.
type JobProgressResponse struct {
	JobID          string           `json:"job_id"`
	TenantID       string           `json:"tenant_id"`
	Status         domain.JobStatus `json:"status"`
	Progress       int              `json:"progress"`
	TotalPages     int              `json:"total_pages"`
	ProcessedPages int              `json:"processed_pages"`
	StartedAt      time.Time        `json:"started_at"`
	EndedAt        *time.Time       `json:"ended_at,omitempty"`
}

// FromJob maps a job row to its progress response.
func FromJob(j *domain.IngestionJob) JobProgressResponse {
	return JobProgressResponse{
		JobID:          j.JobID,
		TenantID:       j.TenantID,
		Status:         j.Status,
		Progress:       j.Progress,
		TotalPages:     j.TotalPages,
		ProcessedPages: j.ProcessedPages,
		StartedAt:      j.StartedAt,
		EndedAt:        j.EndedAt,
	}
}
