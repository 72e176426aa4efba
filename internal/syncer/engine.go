package syncer

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-ingest/internal/classifier"
	"github.com/spec-kit/ticket-ingest/internal/domain"
	"github.com/spec-kit/ticket-ingest/internal/repository"
)

// Action is the outcome of syncing one external ticket.
type Action string

const (
	ActionCreated   Action = "created"
	ActionUpdated   Action = "updated"
	ActionUnchanged Action = "unchanged"
)

// Result describes what a sync did.
type Result struct {
	Action     Action
	ExternalID string
	Urgency    domain.Urgency
	Changes    []string
}

// diffFields is the field set compared during change detection.
var diffFields = []string{
	"subject", "message", "status", "urgency", "sentiment",
	"requires_action", "customer_id", "source",
}

// Engine performs change detection, soft deletion, and field-level history
// for externally sourced tickets.
type Engine struct {
	tickets repository.TicketRepository
	history repository.HistoryRepository
	logger  *zap.Logger
	now     func() time.Time
}

// NewEngine creates a sync engine.
func NewEngine(tickets repository.TicketRepository, history repository.HistoryRepository, logger *zap.Logger) *Engine {
	return &Engine{tickets: tickets, history: history, logger: logger, now: time.Now}
}

// SyncTicket reconciles one external ticket against the stored copy. New
// tickets are inserted with classifier outputs; a stored copy at least as new
// as the external one is left untouched; otherwise the changed fields are
// upserted and recorded in history.
func (e *Engine) SyncTicket(ctx context.Context, tenantID string, ext domain.ExternalTicket) (*Result, error) {
	existing, err := e.tickets.FindByExternalID(ctx, tenantID, ext.ID)
	if err != nil && !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, err
	}

	incoming := e.buildTicket(tenantID, ext)

	if existing == nil {
		created, err := e.tickets.Upsert(ctx, incoming)
		if err != nil {
			return nil, err
		}

		action := ActionCreated
		historyAction := domain.HistoryActionCreated
		if !created {
			// Lost the insert race to a concurrent writer; the upsert
			// converged the document, so this sight is an update.
			action = ActionUpdated
			historyAction = domain.HistoryActionUpdated
		}
		if err := e.recordHistory(ctx, tenantID, ext.ID, historyAction, nil); err != nil {
			return nil, err
		}
		return &Result{Action: action, ExternalID: ext.ID, Urgency: incoming.Urgency}, nil
	}

	if !incoming.UpdatedAt.After(existing.UpdatedAt) {
		return &Result{Action: ActionUnchanged, ExternalID: ext.ID, Urgency: existing.Urgency}, nil
	}

	changes := computeChanges(existing, incoming)
	if len(changes) == 0 {
		return &Result{Action: ActionUnchanged, ExternalID: ext.ID, Urgency: existing.Urgency}, nil
	}

	if _, err := e.tickets.Upsert(ctx, incoming); err != nil {
		return nil, err
	}
	if err := e.recordHistory(ctx, tenantID, ext.ID, domain.HistoryActionUpdated, changes); err != nil {
		return nil, err
	}

	changed := make([]string, 0, len(changes))
	for _, field := range diffFields {
		if _, ok := changes[field]; ok {
			changed = append(changed, field)
		}
	}
	return &Result{Action: ActionUpdated, ExternalID: ext.ID, Urgency: incoming.Urgency, Changes: changed}, nil
}

// SweepDeleted soft-deletes non-deleted tickets inside scope that the run did
// not see, recording deleted history per ticket. Returns how many were marked.
func (e *Engine) SweepDeleted(ctx context.Context, tenantID string, seen []string, scope *repository.SweepScope) (int64, error) {
	missing, err := e.tickets.FindMissingExternalIDs(ctx, tenantID, seen, scope)
	if err != nil {
		return 0, err
	}
	if len(missing) == 0 {
		return 0, nil
	}

	count, err := e.tickets.SoftDeleteMany(ctx, tenantID, missing, e.now().UTC())
	if err != nil {
		return 0, err
	}

	for _, externalID := range missing {
		if err := e.recordHistory(ctx, tenantID, externalID, domain.HistoryActionDeleted, nil); err != nil {
			return count, err
		}
	}

	e.logger.Info("deletion sweep marked tickets",
		zap.String("tenant_id", tenantID), zap.Int64("count", count))
	return count, nil
}

// History returns the newest-first change log for a ticket.
func (e *Engine) History(ctx context.Context, tenantID, ticketID string, limit int) ([]domain.TicketHistory, error) {
	return e.history.ListByTicket(ctx, tenantID, ticketID, limit)
}

func (e *Engine) buildTicket(tenantID string, ext domain.ExternalTicket) *domain.Ticket {
	cls := classifier.Classify(ext.Subject, ext.Message)
	now := e.now().UTC()

	createdAt := ext.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	updatedAt := ext.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = now
	}

	return &domain.Ticket{
		TenantID:       tenantID,
		ExternalID:     ext.ID,
		CustomerID:     ext.CustomerID,
		Source:         ext.Source,
		Subject:        ext.Subject,
		Message:        ext.Message,
		Status:         ext.Status,
		Urgency:        cls.Urgency,
		Sentiment:      cls.Sentiment,
		RequiresAction: cls.RequiresAction,
		CreatedAt:      createdAt,
		UpdatedAt:      updatedAt,
	}
}

func (e *Engine) recordHistory(ctx context.Context, tenantID, ticketID string, action domain.HistoryAction, changes map[string]domain.FieldChange) error {
	if changes == nil {
		changes = map[string]domain.FieldChange{}
	}
	return e.history.Insert(ctx, &domain.TicketHistory{
		TicketID:   ticketID,
		TenantID:   tenantID,
		Action:     action,
		Changes:    changes,
		RecordedAt: e.now().UTC(),
	})
}

// computeChanges diffs the tracked field set between the stored and incoming
// ticket states.
func computeChanges(old, incoming *domain.Ticket) map[string]domain.FieldChange {
	changes := make(map[string]domain.FieldChange)

	add := func(field string, oldVal, newVal any) {
		if oldVal != newVal {
			changes[field] = domain.FieldChange{Old: oldVal, New: newVal}
		}
	}

	add("subject", old.Subject, incoming.Subject)
	add("message", old.Message, incoming.Message)
	add("status", old.Status, incoming.Status)
	add("urgency", string(old.Urgency), string(incoming.Urgency))
	add("sentiment", string(old.Sentiment), string(incoming.Sentiment))
	add("requires_action", old.RequiresAction, incoming.RequiresAction)
	add("customer_id", old.CustomerID, incoming.CustomerID)
	add("source", old.Source, incoming.Source)

	return changes
}
