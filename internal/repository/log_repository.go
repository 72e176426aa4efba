package repository

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo"

	"github.com/spec-kit/ticket-ingest/internal/domain"
)

// LogRepository appends ingestion audit rows.
type LogRepository interface {
	Insert(ctx context.Context, log *domain.IngestionLog) error
}

type logRepository struct {
	coll *mongo.Collection
}

// NewLogRepository instantiates repository.
func NewLogRepository(coll *mongo.Collection) LogRepository {
	return &logRepository{coll: coll}
}

func (r *logRepository) Insert(ctx context.Context, log *domain.IngestionLog) error {
	_, err := r.coll.InsertOne(ctx, log)
	return err
}
