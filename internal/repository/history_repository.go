package repository

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/spec-kit/ticket-ingest/internal/domain"
)

// HistoryRepository encapsulates the append-only ticket change log.
type HistoryRepository interface {
	Insert(ctx context.Context, entry *domain.TicketHistory) error
	ListByTicket(ctx context.Context, tenantID, ticketID string, limit int) ([]domain.TicketHistory, error)
}

type historyRepository struct {
	coll *mongo.Collection
}

// NewHistoryRepository instantiates repository.
func NewHistoryRepository(coll *mongo.Collection) HistoryRepository {
	return &historyRepository{coll: coll}
}

func (r *historyRepository) Insert(ctx context.Context, entry *domain.TicketHistory) error {
	_, err := r.coll.InsertOne(ctx, entry)
	return err
}

func (r *historyRepository) ListByTicket(ctx context.Context, tenantID, ticketID string, limit int) ([]domain.TicketHistory, error) {
	filter := bson.M{"tenant_id": tenantID, "ticket_id": ticketID}
	opts := options.Find().
		SetSort(bson.D{{Key: "recorded_at", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	entries := make([]domain.TicketHistory, 0, limit)
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}
