package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/spec-kit/ticket-ingest/internal/domain"
)

// TicketFilter captures listing parameters. TenantID is always required.
type TicketFilter struct {
	TenantID string
	Status   string
	Urgency  string
	Source   string
	Page     int
	PageSize int
}

// SweepScope bounds the deletion sweep to tickets last updated inside the
// window the run actually fetched. A nil scope means the whole tenant.
type SweepScope struct {
	From time.Time
	To   time.Time
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	FindByExternalID(ctx context.Context, tenantID, externalID string) (*domain.Ticket, error)
	Upsert(ctx context.Context, ticket *domain.Ticket) (created bool, err error)
	List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	ListUrgent(ctx context.Context, tenantID string, limit int) ([]domain.Ticket, error)
	FindMissingExternalIDs(ctx context.Context, tenantID string, seen []string, scope *SweepScope) ([]string, error)
	SoftDeleteMany(ctx context.Context, tenantID string, externalIDs []string, deletedAt time.Time) (int64, error)
}

type ticketRepository struct {
	coll *mongo.Collection
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(coll *mongo.Collection) TicketRepository {
	return &ticketRepository{coll: coll}
}

func (r *ticketRepository) FindByExternalID(ctx context.Context, tenantID, externalID string) (*domain.Ticket, error) {
	filter := bson.M{
		"tenant_id":   tenantID,
		"external_id": externalID,
		"deleted_at":  bson.M{"$exists": false},
	}
	var ticket domain.Ticket
	if err := r.coll.FindOne(ctx, filter).Decode(&ticket); err != nil {
		return nil, err
	}
	return &ticket, nil
}

// Upsert converges the (tenant_id, external_id) document to the given state.
// A concurrent insert losing the unique-index race is retried once as a plain
// update, so no duplicate is ever created.
func (r *ticketRepository) Upsert(ctx context.Context, ticket *domain.Ticket) (bool, error) {
	filter := bson.M{
		"tenant_id":   ticket.TenantID,
		"external_id": ticket.ExternalID,
	}
	update := bson.M{
		"$set": bson.M{
			"customer_id":     ticket.CustomerID,
			"source":          ticket.Source,
			"subject":         ticket.Subject,
			"message":         ticket.Message,
			"status":          ticket.Status,
			"urgency":         ticket.Urgency,
			"sentiment":       ticket.Sentiment,
			"requires_action": ticket.RequiresAction,
			"updated_at":      ticket.UpdatedAt,
		},
		"$setOnInsert": bson.M{
			"created_at": ticket.CreatedAt,
		},
	}

	res, err := r.coll.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if mongo.IsDuplicateKeyError(err) {
		res, err = r.coll.UpdateOne(ctx, filter, update)
	}
	if err != nil {
		return false, err
	}
	return res.UpsertedCount > 0, nil
}

func (r *ticketRepository) List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	query := bson.M{
		"tenant_id":  filter.TenantID,
		"deleted_at": bson.M{"$exists": false},
	}
	if filter.Status != "" {
		query["status"] = filter.Status
	}
	if filter.Urgency != "" {
		query["urgency"] = filter.Urgency
	}
	if filter.Source != "" {
		query["source"] = filter.Source
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize < 1 {
		pageSize = 20
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(int64((page - 1) * pageSize)).
		SetLimit(int64(pageSize))

	cursor, err := r.coll.Find(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	tickets := make([]domain.Ticket, 0, pageSize)
	if err := cursor.All(ctx, &tickets); err != nil {
		return nil, err
	}
	return tickets, nil
}

func (r *ticketRepository) ListUrgent(ctx context.Context, tenantID string, limit int) ([]domain.Ticket, error) {
	query := bson.M{
		"tenant_id":  tenantID,
		"urgency":    domain.UrgencyHigh,
		"deleted_at": bson.M{"$exists": false},
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := r.coll.Find(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	tickets := make([]domain.Ticket, 0, limit)
	if err := cursor.All(ctx, &tickets); err != nil {
		return nil, err
	}
	return tickets, nil
}

func (r *ticketRepository) FindMissingExternalIDs(ctx context.Context, tenantID string, seen []string, scope *SweepScope) ([]string, error) {
	query := bson.M{
		"tenant_id":   tenantID,
		"external_id": bson.M{"$nin": seen},
		"deleted_at":  bson.M{"$exists": false},
	}
	if scope != nil {
		query["updated_at"] = bson.M{"$gte": scope.From, "$lte": scope.To}
	}

	opts := options.Find().SetProjection(bson.M{"external_id": 1})
	cursor, err := r.coll.Find(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var rows []struct {
		ExternalID string `bson:"external_id"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ExternalID)
	}
	return ids, nil
}

func (r *ticketRepository) SoftDeleteMany(ctx context.Context, tenantID string, externalIDs []string, deletedAt time.Time) (int64, error) {
	if len(externalIDs) == 0 {
		return 0, nil
	}
	filter := bson.M{
		"tenant_id":   tenantID,
		"external_id": bson.M{"$in": externalIDs},
		"deleted_at":  bson.M{"$exists": false},
	}
	res, err := r.coll.UpdateMany(ctx, filter, bson.M{"$set": bson.M{"deleted_at": deletedAt}})
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}
