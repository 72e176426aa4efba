package syncer

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
	"github.com/spec-kit/ticket-ingest/internal/repository"
)

type fakeTicketRepo struct {
	mu      sync.Mutex
	tickets map[string]*domain.Ticket // key: tenant|external
}

func newFakeTicketRepo() *fakeTicketRepo {
	return &fakeTicketRepo{tickets: make(map[string]*domain.Ticket)}
}

func key(tenantID, externalID string) string {
	return tenantID + "|" + externalID
}

func (r *fakeTicketRepo) FindByExternalID(_ context.Context, tenantID, externalID string) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tickets[key(tenantID, externalID)]
	if !ok || t.DeletedAt != nil {
		return nil, mongo.ErrNoDocuments
	}
	copied := *t
	return &copied, nil
}

func (r *fakeTicketRepo) Upsert(_ context.Context, ticket *domain.Ticket) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := key(ticket.TenantID, ticket.ExternalID)
	existing, ok := r.tickets[k]
	copied := *ticket
	if ok {
		copied.CreatedAt = existing.CreatedAt
		copied.DeletedAt = existing.DeletedAt
	}
	r.tickets[k] = &copied
	return !ok, nil
}

func (r *fakeTicketRepo) List(_ context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Ticket
	for _, t := range r.tickets {
		if t.TenantID != filter.TenantID || t.DeletedAt != nil {
			continue
		}
		out = append(out, *t)
	}
	return out, nil
}

func (r *fakeTicketRepo) ListUrgent(_ context.Context, tenantID string, limit int) ([]domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Ticket
	for _, t := range r.tickets {
		if t.TenantID == tenantID && t.DeletedAt == nil && t.Urgency == domain.UrgencyHigh {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (r *fakeTicketRepo) FindMissingExternalIDs(_ context.Context, tenantID string, seen []string, scope *repository.SweepScope) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	seenSet := make(map[string]struct{}, len(seen))
	for _, id := range seen {
		seenSet[id] = struct{}{}
	}
	var missing []string
	for _, t := range r.tickets {
		if t.TenantID != tenantID || t.DeletedAt != nil {
			continue
		}
		if scope != nil && (t.UpdatedAt.Before(scope.From) || t.UpdatedAt.After(scope.To)) {
			continue
		}
		if _, ok := seenSet[t.ExternalID]; !ok {
			missing = append(missing, t.ExternalID)
		}
	}
	return missing, nil
}

func (r *fakeTicketRepo) SoftDeleteMany(_ context.Context, tenantID string, externalIDs []string, deletedAt time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for _, id := range externalIDs {
		if t, ok := r.tickets[key(tenantID, id)]; ok && t.DeletedAt == nil {
			at := deletedAt
			t.DeletedAt = &at
			count++
		}
	}
	return count, nil
}

type fakeHistoryRepo struct {
	mu      sync.Mutex
	entries []domain.TicketHistory
}

func (r *fakeHistoryRepo) Insert(_ context.Context, entry *domain.TicketHistory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, *entry)
	return nil
}

func (r *fakeHistoryRepo) ListByTicket(_ context.Context, tenantID, ticketID string, limit int) ([]domain.TicketHistory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.TicketHistory
	for i := len(r.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if r.entries[i].TenantID == tenantID && r.entries[i].TicketID == ticketID {
			out = append(out, r.entries[i])
		}
	}
	return out, nil
}

func (r *fakeHistoryRepo) actions(ticketID string) []domain.HistoryAction {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.HistoryAction
	for _, e := range r.entries {
		if e.TicketID == ticketID {
			out = append(out, e.Action)
		}
	}
	return out
}

func testEngine(t *testing.T) (*Engine, *fakeTicketRepo, *fakeHistoryRepo) {
	t.Helper()
	tickets := newFakeTicketRepo()
	history := &fakeHistoryRepo{}
	return NewEngine(tickets, history, zap.NewNop()), tickets, history
}

func externalTicket(id string, updatedAt time.Time) domain.ExternalTicket {
	return domain.ExternalTicket{
		ID:         id,
		CustomerID: "cust-1",
		Source:     "email",
		Subject:    "Question about invoices",
		Message:    "Where can I find my invoices?",
		Status:     "open",
		CreatedAt:  updatedAt.Add(-time.Hour),
		UpdatedAt:  updatedAt,
	}
}

func TestSyncTicket_CreatesNewTicket(t *testing.T) {
	engine, tickets, history := testEngine(t)
	now := time.Date(2026, 8, 5, 10, 0, 0, 0, time.UTC)

	res, err := engine.SyncTicket(context.Background(), "t1", externalTicket("ext-1", now))
	require.NoError(t, err)
	assert.Equal(t, ActionCreated, res.Action)
	assert.Equal(t, domain.UrgencyLow, res.Urgency)

	stored, err := tickets.FindByExternalID(context.Background(), "t1", "ext-1")
	require.NoError(t, err)
	assert.Equal(t, "open", stored.Status)
	assert.Equal(t, domain.SentimentNeutral, stored.Sentiment)

	assert.Equal(t, []domain.HistoryAction{domain.HistoryActionCreated}, history.actions("ext-1"))
}

func TestSyncTicket_UnchangedWhenNotNewer(t *testing.T) {
	engine, _, history := testEngine(t)
	now := time.Date(2026, 8, 5, 10, 0, 0, 0, time.UTC)
	ext := externalTicket("ext-1", now)

	_, err := engine.SyncTicket(context.Background(), "t1", ext)
	require.NoError(t, err)

	// Same updated_at: no write, no history.
	res, err := engine.SyncTicket(context.Background(), "t1", ext)
	require.NoError(t, err)
	assert.Equal(t, ActionUnchanged, res.Action)

	// Older updated_at: still unchanged.
	older := externalTicket("ext-1", now.Add(-time.Minute))
	res, err = engine.SyncTicket(context.Background(), "t1", older)
	require.NoError(t, err)
	assert.Equal(t, ActionUnchanged, res.Action)

	assert.Equal(t, []domain.HistoryAction{domain.HistoryActionCreated}, history.actions("ext-1"))
}

func TestSyncTicket_UpdatesAndRecordsDiff(t *testing.T) {
	engine, tickets, history := testEngine(t)
	now := time.Date(2026, 8, 5, 10, 0, 0, 0, time.UTC)

	_, err := engine.SyncTicket(context.Background(), "t1", externalTicket("ext-1", now))
	require.NoError(t, err)

	changed := externalTicket("ext-1", now.Add(time.Minute))
	changed.Subject = "URGENT: account locked"
	changed.Status = "escalated"

	res, err := engine.SyncTicket(context.Background(), "t1", changed)
	require.NoError(t, err)
	assert.Equal(t, ActionUpdated, res.Action)
	assert.Equal(t, domain.UrgencyHigh, res.Urgency)
	assert.Contains(t, res.Changes, "subject")
	assert.Contains(t, res.Changes, "status")
	assert.Contains(t, res.Changes, "urgency")

	stored, err := tickets.FindByExternalID(context.Background(), "t1", "ext-1")
	require.NoError(t, err)
	assert.Equal(t, "escalated", stored.Status)
	assert.True(t, stored.RequiresAction)

	entries, err := engine.History(context.Background(), "t1", "ext-1", 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, domain.HistoryActionUpdated, entries[0].Action)
	assert.Equal(t, "open", entries[0].Changes["status"].Old)
	assert.Equal(t, "escalated", entries[0].Changes["status"].New)
	assert.Equal(t, []domain.HistoryAction{domain.HistoryActionCreated, domain.HistoryActionUpdated},
		history.actions("ext-1"))
}

func TestSyncTicket_NewerTimestampWithoutFieldChanges(t *testing.T) {
	engine, _, history := testEngine(t)
	now := time.Date(2026, 8, 5, 10, 0, 0, 0, time.UTC)

	_, err := engine.SyncTicket(context.Background(), "t1", externalTicket("ext-1", now))
	require.NoError(t, err)

	// Bumped updated_at but identical tracked fields: no update recorded.
	bumped := externalTicket("ext-1", now.Add(time.Minute))
	res, err := engine.SyncTicket(context.Background(), "t1", bumped)
	require.NoError(t, err)
	assert.Equal(t, ActionUnchanged, res.Action)
	assert.Equal(t, []domain.HistoryAction{domain.HistoryActionCreated}, history.actions("ext-1"))
}

func TestSweepDeleted_MarksMissingTickets(t *testing.T) {
	engine, tickets, history := testEngine(t)
	now := time.Date(2026, 8, 5, 10, 0, 0, 0, time.UTC)

	for _, id := range []string{"A", "B", "C"} {
		_, err := engine.SyncTicket(context.Background(), "t1", externalTicket(id, now))
		require.NoError(t, err)
	}

	count, err := engine.SweepDeleted(context.Background(), "t1", []string{"A", "B"}, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	_, err = tickets.FindByExternalID(context.Background(), "t1", "C")
	assert.ErrorIs(t, err, mongo.ErrNoDocuments)

	assert.Equal(t, []domain.HistoryAction{domain.HistoryActionCreated, domain.HistoryActionDeleted},
		history.actions("C"))

	// Sweep is scoped to the tenant: other tenants keep their tickets.
	_, err = engine.SyncTicket(context.Background(), "t2", externalTicket("C", now))
	require.NoError(t, err)
	count, err = engine.SweepDeleted(context.Background(), "t1", []string{"A", "B"}, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestSweepDeleted_RespectsScope(t *testing.T) {
	engine, tickets, _ := testEngine(t)
	now := time.Date(2026, 8, 5, 10, 0, 0, 0, time.UTC)

	_, err := engine.SyncTicket(context.Background(), "t1", externalTicket("old", now.Add(-48*time.Hour)))
	require.NoError(t, err)
	_, err = engine.SyncTicket(context.Background(), "t1", externalTicket("recent", now))
	require.NoError(t, err)

	scope := &repository.SweepScope{From: now.Add(-time.Hour), To: now.Add(time.Hour)}
	count, err := engine.SweepDeleted(context.Background(), "t1", []string{}, scope)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	// The out-of-scope ticket survives.
	_, err = tickets.FindByExternalID(context.Background(), "t1", "old")
	assert.NoError(t, err)
}

func TestComputeChanges(t *testing.T) {
	old := &domain.Ticket{Subject: "a", Status: "open", Urgency: domain.UrgencyLow}
	incoming := &domain.Ticket{Subject: "b", Status: "open", Urgency: domain.UrgencyHigh, RequiresAction: true}

	changes := computeChanges(old, incoming)
	assert.Len(t, changes, 3)
	assert.Equal(t, "a", changes["subject"].Old)
	assert.Equal(t, "b", changes["subject"].New)
	assert.Equal(t, string(domain.UrgencyLow), changes["urgency"].Old)
	assert.NotContains(t, changes, "status")
	assert.Contains(t, changes, "requires_action")
}
