package repository

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/spec-kit/ticket-ingest/internal/domain"
)

// LockRepository offers the atomic document operations the lock manager
// builds on. Each call is a single document-store operation.
type LockRepository interface {
	// TakeOverExpired atomically claims an existing lock whose lease has
	// lapsed. Returns false when no expired lock matched.
	TakeOverExpired(ctx context.Context, resourceID, ownerID string, now, expiresAt time.Time) (bool, error)
	// Insert creates a fresh lock document. The unique index on resource_id
	// makes a lost race surface as a duplicate-key error.
	Insert(ctx context.Context, lock *domain.Lock) error
	UpdateExpiry(ctx context.Context, resourceID, ownerID string, expiresAt time.Time) (bool, error)
	DeleteOwned(ctx context.Context, resourceID, ownerID string) (bool, error)
	FindByResource(ctx context.Context, resourceID string) (*domain.Lock, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type lockRepository struct {
	coll *mongo.Collection
}

// NewLockRepository instantiates repository.
func NewLockRepository(coll *mongo.Collection) LockRepository {
	return &lockRepository{coll: coll}
}

func (r *lockRepository) TakeOverExpired(ctx context.Context, resourceID, ownerID string, now, expiresAt time.Time) (bool, error) {
	filter := bson.M{
		"resource_id": resourceID,
		"expires_at":  bson.M{"$lt": now},
	}
	update := bson.M{"$set": bson.M{
		"owner_id":    ownerID,
		"acquired_at": now,
		"expires_at":  expiresAt,
	}}

	err := r.coll.FindOneAndUpdate(ctx, filter, update).Err()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *lockRepository) Insert(ctx context.Context, lock *domain.Lock) error {
	_, err := r.coll.InsertOne(ctx, lock)
	return err
}

func (r *lockRepository) UpdateExpiry(ctx context.Context, resourceID, ownerID string, expiresAt time.Time) (bool, error) {
	filter := bson.M{"resource_id": resourceID, "owner_id": ownerID}
	res, err := r.coll.UpdateOne(ctx, filter, bson.M{"$set": bson.M{"expires_at": expiresAt}})
	if err != nil {
		return false, err
	}
	return res.ModifiedCount > 0, nil
}

func (r *lockRepository) DeleteOwned(ctx context.Context, resourceID, ownerID string) (bool, error) {
	res, err := r.coll.DeleteOne(ctx, bson.M{"resource_id": resourceID, "owner_id": ownerID})
	if err != nil {
		return false, err
	}
	return res.DeletedCount > 0, nil
}

func (r *lockRepository) FindByResource(ctx context.Context, resourceID string) (*domain.Lock, error) {
	var lock domain.Lock
	if err := r.coll.FindOne(ctx, bson.M{"resource_id": resourceID}).Decode(&lock); err != nil {
		return nil, err
	}
	return &lock, nil
}

func (r *lockRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.coll.DeleteMany(ctx, bson.M{"expires_at": bson.M{"$lt": now}})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
