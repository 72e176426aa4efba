package lock

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-ingest/internal/domain"
	"github.com/spec-kit/ticket-ingest/internal/repository"
)

// DefaultTTL is the lease duration applied when none is configured.
const DefaultTTL = 60 * time.Second

// Status describes a lock for inspection endpoints.
type Status struct {
	ResourceID string    `json:"resource_id"`
	OwnerID    string    `json:"owner_id"`
	AcquiredAt time.Time `json:"acquired_at"`
	ExpiresAt  time.Time `json:"expires_at"`
	IsExpired  bool      `json:"is_expired"`
}

// Manager provides TTL-bounded, owner-scoped mutual exclusion keyed by
// resource name. All operations are non-blocking; a losing acquirer gets a
// clean false, never a queue slot.
type Manager struct {
	repo   repository.LockRepository
	ttl    time.Duration
	logger *zap.Logger
	now    func() time.Time
}

// NewManager creates a lock manager with the given lease TTL.
func NewManager(repo repository.LockRepository, ttl time.Duration, logger *zap.Logger) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{repo: repo, ttl: ttl, logger: logger, now: time.Now}
}

// Acquire attempts to take the lock for resourceID on behalf of ownerID.
// Strategy: first atomically claim an expired lease, then fall back to
// inserting a fresh document. The unique index on resource_id is the only
// serialization point; a lost race on either path returns false.
func (m *Manager) Acquire(ctx context.Context, resourceID, ownerID string) (bool, error) {
	now := m.now().UTC()
	expiresAt := now.Add(m.ttl)

	taken, err := m.repo.TakeOverExpired(ctx, resourceID, ownerID, now, expiresAt)
	if err != nil {
		return false, err
	}
	if taken {
		m.logger.Info("lock acquired over expired lease",
			zap.String("resource_id", resourceID), zap.String("owner_id", ownerID))
		return true, nil
	}

	err = m.repo.Insert(ctx, &domain.Lock{
		ResourceID: resourceID,
		OwnerID:    ownerID,
		AcquiredAt: now,
		ExpiresAt:  expiresAt,
	})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return false, nil
		}
		return false, err
	}

	m.logger.Info("lock acquired",
		zap.String("resource_id", resourceID), zap.String("owner_id", ownerID))
	return true, nil
}

// Refresh extends the lease iff ownerID still holds it. A false return means
// the caller has lost its lease and must abandon work.
func (m *Manager) Refresh(ctx context.Context, resourceID, ownerID string) (bool, error) {
	expiresAt := m.now().UTC().Add(m.ttl)
	return m.repo.UpdateExpiry(ctx, resourceID, ownerID, expiresAt)
}

// Release deletes the lock iff ownerID holds it. Idempotent.
func (m *Manager) Release(ctx context.Context, resourceID, ownerID string) error {
	released, err := m.repo.DeleteOwned(ctx, resourceID, ownerID)
	if err != nil {
		return err
	}
	if !released {
		m.logger.Warn("release skipped, lock not owned",
			zap.String("resource_id", resourceID), zap.String("owner_id", ownerID))
	}
	return nil
}

// Status returns the current lock document for inspection, or nil when no
// lock exists for the resource.
func (m *Manager) Status(ctx context.Context, resourceID string) (*Status, error) {
	lck, err := m.repo.FindByResource(ctx, resourceID)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &Status{
		ResourceID: lck.ResourceID,
		OwnerID:    lck.OwnerID,
		AcquiredAt: lck.AcquiredAt,
		ExpiresAt:  lck.ExpiresAt,
		IsExpired:  lck.Expired(m.now().UTC()),
	}, nil
}

// CleanupExpired removes lapsed lock documents. Operator hygiene only; an
// expired lease is already reclaimable through Acquire.
func (m *Manager) CleanupExpired(ctx context.Context) (int64, error) {
	return m.repo.DeleteExpired(ctx, m.now().UTC())
}
