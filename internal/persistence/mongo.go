package persistence

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-ingest/internal/config"
)

// Collection names for the persisted state layout.
const (
	CollectionTickets       = "tickets"
	CollectionIngestionJobs = "ingestion_jobs"
	CollectionIngestionLogs = "ingestion_logs"
	CollectionTicketHistory = "ticket_history"
	CollectionLocks         = "distributed_locks"
)

// Mongo wraps access to the document-store client and database.
type Mongo struct {
	Client *mongo.Client
	DB     *mongo.Database
}

// NewMongo establishes the connection pool and verifies connectivity.
func NewMongo(ctx context.Context, cfg config.MongoConfig, logger *zap.Logger) (*Mongo, error) {
	opts := options.Client().
		ApplyURI(cfg.URI).
		SetMinPoolSize(cfg.MinPoolSize).
		SetMaxPoolSize(cfg.MaxPoolSize).
		SetMaxConnIdleTime(time.Duration(cfg.MaxConnIdleSeconds) * time.Second).
		SetServerSelectionTimeout(time.Duration(cfg.ServerSelectionSeconds) * time.Second).
		SetConnectTimeout(time.Duration(cfg.ConnectTimeoutSeconds) * time.Second).
		SetSocketTimeout(time.Duration(cfg.SocketTimeoutSeconds) * time.Second)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, err
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}

	logger.Info("connected to mongodb", zap.String("database", cfg.Database))
	return &Mongo{Client: client, DB: client.Database(cfg.Database)}, nil
}

// Ping verifies the store is reachable.
func (m *Mongo) Ping(ctx context.Context) error {
	if m == nil || m.Client == nil {
		return mongo.ErrClientDisconnected
	}
	return m.Client.Ping(ctx, readpref.Primary())
}

// Close releases pool resources.
func (m *Mongo) Close(ctx context.Context) {
	if m != nil && m.Client != nil {
		_ = m.Client.Disconnect(ctx)
	}
}

// Tickets returns the tickets collection.
func (m *Mongo) Tickets() *mongo.Collection {
	return m.DB.Collection(CollectionTickets)
}

// Jobs returns the ingestion jobs collection.
func (m *Mongo) Jobs() *mongo.Collection {
	return m.DB.Collection(CollectionIngestionJobs)
}

// Logs returns the ingestion audit log collection.
func (m *Mongo) Logs() *mongo.Collection {
	return m.DB.Collection(CollectionIngestionLogs)
}

// History returns the ticket history collection.
func (m *Mongo) History() *mongo.Collection {
	return m.DB.Collection(CollectionTicketHistory)
}

// Locks returns the distributed locks collection.
func (m *Mongo) Locks() *mongo.Collection {
	return m.DB.Collection(CollectionLocks)
}
