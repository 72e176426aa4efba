package lock

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-ingest/internal/domain"
)

// fakeLockRepo backs the manager with an in-memory map, reproducing the
// collection's atomic semantics including the duplicate-key insert failure.
type fakeLockRepo struct {
	mu    sync.Mutex
	locks map[string]*domain.Lock
}

func newFakeLockRepo() *fakeLockRepo {
	return &fakeLockRepo{locks: make(map[string]*domain.Lock)}
}

func (r *fakeLockRepo) TakeOverExpired(_ context.Context, resourceID, ownerID string, now, expiresAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.locks[resourceID]
	if !ok || !existing.ExpiresAt.Before(now) {
		return false, nil
	}
	existing.OwnerID = ownerID
	existing.AcquiredAt = now
	existing.ExpiresAt = expiresAt
	return true, nil
}

func (r *fakeLockRepo) Insert(_ context.Context, lck *domain.Lock) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.locks[lck.ResourceID]; ok {
		return mongo.WriteException{WriteErrors: []mongo.WriteError{{Code: 11000}}}
	}
	copied := *lck
	r.locks[lck.ResourceID] = &copied
	return nil
}

func (r *fakeLockRepo) UpdateExpiry(_ context.Context, resourceID, ownerID string, expiresAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.locks[resourceID]
	if !ok || existing.OwnerID != ownerID {
		return false, nil
	}
	existing.ExpiresAt = expiresAt
	return true, nil
}

func (r *fakeLockRepo) DeleteOwned(_ context.Context, resourceID, ownerID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.locks[resourceID]
	if !ok || existing.OwnerID != ownerID {
		return false, nil
	}
	delete(r.locks, resourceID)
	return true, nil
}

func (r *fakeLockRepo) FindByResource(_ context.Context, resourceID string) (*domain.Lock, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.locks[resourceID]
	if !ok {
		return nil, mongo.ErrNoDocuments
	}
	copied := *existing
	return &copied, nil
}

func (r *fakeLockRepo) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for id, lck := range r.locks {
		if lck.ExpiresAt.Before(now) {
			delete(r.locks, id)
			count++
		}
	}
	return count, nil
}

func testManager(t *testing.T) (*Manager, *fakeLockRepo, *time.Time) {
	t.Helper()
	repo := newFakeLockRepo()
	m := NewManager(repo, time.Minute, zap.NewNop())
	now := time.Date(2026, 8, 5, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }
	return m, repo, &now
}

func TestManager_AcquireFreshLock(t *testing.T) {
	m, _, _ := testManager(t)

	acquired, err := m.Acquire(context.Background(), "ingest:t1", "job-1")
	require.NoError(t, err)
	assert.True(t, acquired)

	status, err := m.Status(context.Background(), "ingest:t1")
	require.NoError(t, err)
	require.NotNil(t, status)
	assert.Equal(t, "job-1", status.OwnerID)
	assert.False(t, status.IsExpired)
}

func TestManager_AcquireHeldLockFails(t *testing.T) {
	m, _, _ := testManager(t)

	acquired, err := m.Acquire(context.Background(), "ingest:t1", "job-1")
	require.NoError(t, err)
	require.True(t, acquired)

	acquired, err = m.Acquire(context.Background(), "ingest:t1", "job-2")
	require.NoError(t, err)
	assert.False(t, acquired)
}

func TestManager_AcquireTakesOverExpiredLease(t *testing.T) {
	m, _, now := testManager(t)

	acquired, err := m.Acquire(context.Background(), "ingest:t1", "job-1")
	require.NoError(t, err)
	require.True(t, acquired)

	*now = now.Add(61 * time.Second)

	acquired, err = m.Acquire(context.Background(), "ingest:t1", "job-2")
	require.NoError(t, err)
	assert.True(t, acquired)

	status, err := m.Status(context.Background(), "ingest:t1")
	require.NoError(t, err)
	assert.Equal(t, "job-2", status.OwnerID)
}

func TestManager_RefreshOnlyByOwner(t *testing.T) {
	m, _, now := testManager(t)

	_, err := m.Acquire(context.Background(), "ingest:t1", "job-1")
	require.NoError(t, err)

	ok, err := m.Refresh(context.Background(), "ingest:t1", "job-2")
	require.NoError(t, err)
	assert.False(t, ok)

	*now = now.Add(30 * time.Second)
	ok, err = m.Refresh(context.Background(), "ingest:t1", "job-1")
	require.NoError(t, err)
	assert.True(t, ok)

	status, err := m.Status(context.Background(), "ingest:t1")
	require.NoError(t, err)
	assert.Equal(t, now.Add(time.Minute), status.ExpiresAt)
}

func TestManager_ReleaseIsOwnerScopedAndIdempotent(t *testing.T) {
	m, repo, _ := testManager(t)

	_, err := m.Acquire(context.Background(), "ingest:t1", "job-1")
	require.NoError(t, err)

	// Wrong owner leaves the lock in place.
	require.NoError(t, m.Release(context.Background(), "ingest:t1", "job-2"))
	assert.Len(t, repo.locks, 1)

	require.NoError(t, m.Release(context.Background(), "ingest:t1", "job-1"))
	assert.Empty(t, repo.locks)

	// Releasing again is a no-op.
	require.NoError(t, m.Release(context.Background(), "ingest:t1", "job-1"))
}

func TestManager_StatusNilWhenUnlocked(t *testing.T) {
	m, _, _ := testManager(t)
	status, err := m.Status(context.Background(), "ingest:absent")
	require.NoError(t, err)
	assert.Nil(t, status)
}

func TestManager_CleanupExpired(t *testing.T) {
	m, _, now := testManager(t)

	_, err := m.Acquire(context.Background(), "ingest:t1", "job-1")
	require.NoError(t, err)
	_, err = m.Acquire(context.Background(), "ingest:t2", "job-2")
	require.NoError(t, err)

	*now = now.Add(2 * time.Minute)
	removed, err := m.CleanupExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)
}
