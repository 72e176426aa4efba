package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/spec-kit/ticket-ingest/internal/domain"
)

// JobRepository encapsulates ingestion job persistence.
type JobRepository interface {
	Insert(ctx context.Context, job *domain.IngestionJob) error
	UpdateProgress(ctx context.Context, jobID string, totalPages, processedPages, progress int) error
	Finish(ctx context.Context, jobID string, status domain.JobStatus, endedAt time.Time, progress int) error
	FindByJobID(ctx context.Context, jobID string) (*domain.IngestionJob, error)
	FindRunningByTenant(ctx context.Context, tenantID string) (*domain.IngestionJob, error)
}

type jobRepository struct {
	coll *mongo.Collection
}

// NewJobRepository instantiates repository.
func NewJobRepository(coll *mongo.Collection) JobRepository {
	return &jobRepository{coll: coll}
}

func (r *jobRepository) Insert(ctx context.Context, job *domain.IngestionJob) error {
	_, err := r.coll.InsertOne(ctx, job)
	return err
}

func (r *jobRepository) UpdateProgress(ctx context.Context, jobID string, totalPages, processedPages, progress int) error {
	update := bson.M{"$set": bson.M{
		"total_pages":     totalPages,
		"processed_pages": processedPages,
		"progress":        progress,
	}}
	_, err := r.coll.UpdateOne(ctx, bson.M{"job_id": jobID}, update)
	return err
}

// Finish writes the terminal state. Terminal states are immutable: a job
// already out of running state is left as-is.
func (r *jobRepository) Finish(ctx context.Context, jobID string, status domain.JobStatus, endedAt time.Time, progress int) error {
	filter := bson.M{"job_id": jobID, "status": domain.JobStatusRunning}
	update := bson.M{"$set": bson.M{
		"status":   status,
		"ended_at": endedAt,
		"progress": progress,
	}}
	_, err := r.coll.UpdateOne(ctx, filter, update)
	return err
}

func (r *jobRepository) FindByJobID(ctx context.Context, jobID string) (*domain.IngestionJob, error) {
	var job domain.IngestionJob
	if err := r.coll.FindOne(ctx, bson.M{"job_id": jobID}).Decode(&job); err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *jobRepository) FindRunningByTenant(ctx context.Context, tenantID string) (*domain.IngestionJob, error) {
	filter := bson.M{"tenant_id": tenantID, "status": domain.JobStatusRunning}
	opts := options.FindOne().SetSort(bson.D{{Key: "started_at", Value: -1}})

	var job domain.IngestionJob
	if err := r.coll.FindOne(ctx, filter, opts).Decode(&job); err != nil {
		return nil, err
	}
	return &job, nil
}
