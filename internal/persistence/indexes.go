package persistence

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// EnsureIndexes provisions the fixed index set on startup. Index creation is
// idempotent; existing indexes with the same keys are left untouched.
func EnsureIndexes(ctx context.Context, m *Mongo, logger *zap.Logger) error {
	ticketIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "tenant_id", Value: 1}, {Key: "external_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("unique_tenant_external_id"),
		},
		{
			Keys:    bson.D{{Key: "tenant_id", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("tenant_created_at"),
		},
		{
			Keys:    bson.D{{Key: "tenant_id", Value: 1}, {Key: "status", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("tenant_status_created"),
		},
		{
			Keys:    bson.D{{Key: "tenant_id", Value: 1}, {Key: "urgency", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("tenant_urgency_created"),
		},
		{
			Keys:    bson.D{{Key: "tenant_id", Value: 1}, {Key: "sentiment", Value: 1}},
			Options: options.Index().SetName("tenant_sentiment"),
		},
		{
			Keys:    bson.D{{Key: "tenant_id", Value: 1}, {Key: "source", Value: 1}},
			Options: options.Index().SetName("tenant_source"),
		},
		{
			Keys:    bson.D{{Key: "tenant_id", Value: 1}, {Key: "deleted_at", Value: 1}},
			Options: options.Index().SetName("tenant_deleted_at"),
		},
		{
			Keys:    bson.D{{Key: "tenant_id", Value: 1}, {Key: "customer_id", Value: 1}},
			Options: options.Index().SetName("tenant_customer"),
		},
		{
			Keys:    bson.D{{Key: "tenant_id", Value: 1}, {Key: "updated_at", Value: 1}},
			Options: options.Index().SetName("tenant_updated_at"),
		},
		{
			// Covers the match+group phase of the stats aggregation.
			Keys: bson.D{
				{Key: "tenant_id", Value: 1},
				{Key: "deleted_at", Value: 1},
				{Key: "created_at", Value: -1},
				{Key: "status", Value: 1},
				{Key: "urgency", Value: 1},
			},
			Options: options.Index().SetName("stats_optimized"),
		},
	}
	if _, err := m.Tickets().Indexes().CreateMany(ctx, ticketIndexes); err != nil {
		return err
	}

	jobIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "tenant_id", Value: 1}, {Key: "status", Value: 1}},
			Options: options.Index().SetName("tenant_status"),
		},
		{
			Keys:    bson.D{{Key: "job_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetSparse(true).SetName("job_id_unique"),
		},
		{
			Keys:    bson.D{{Key: "started_at", Value: -1}},
			Options: options.Index().SetName("started_at"),
		},
	}
	if _, err := m.Jobs().Indexes().CreateMany(ctx, jobIndexes); err != nil {
		return err
	}

	logIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "tenant_id", Value: 1}, {Key: "started_at", Value: -1}},
			Options: options.Index().SetName("tenant_started"),
		},
		{
			Keys:    bson.D{{Key: "job_id", Value: 1}},
			Options: options.Index().SetName("job_id"),
		},
	}
	if _, err := m.Logs().Indexes().CreateMany(ctx, logIndexes); err != nil {
		return err
	}

	lockIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "resource_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("resource_id_unique"),
		},
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetName("expires_at"),
		},
	}
	if _, err := m.Locks().Indexes().CreateMany(ctx, lockIndexes); err != nil {
		return err
	}

	historyIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "ticket_id", Value: 1}, {Key: "recorded_at", Value: -1}},
			Options: options.Index().SetName("ticket_recorded"),
		},
		{
			Keys:    bson.D{{Key: "tenant_id", Value: 1}, {Key: "recorded_at", Value: -1}},
			Options: options.Index().SetName("tenant_recorded"),
		},
	}
	if _, err := m.History().Indexes().CreateMany(ctx, historyIndexes); err != nil {
		return err
	}

	logger.Info("indexes provisioned")
	return nil
}
