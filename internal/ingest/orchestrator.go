package ingest

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spec-kit/ticket-ingest/internal/config"
	"github.com/spec-kit/ticket-ingest/internal/domain"
	"github.com/spec-kit/ticket-ingest/internal/lock"
	"github.com/spec-kit/ticket-ingest/internal/notify"
	"github.com/spec-kit/ticket-ingest/internal/observability"
	"github.com/spec-kit/ticket-ingest/internal/repository"
	"github.com/spec-kit/ticket-ingest/internal/syncer"
	apperrors "github.com/spec-kit/ticket-ingest/pkg/util"
)

// syncConcurrency bounds how many tickets of one page sync at once. Writes to
// the same (tenant_id, external_id) stay serialized by the unique index.
const syncConcurrency = 4

// LockResource returns the lock key guarding a tenant's ingestion.
func LockResource(tenantID string) string {
	return "ingest:" + tenantID
}

// Notifier schedules best-effort notification delivery.
type Notifier interface {
	Enqueue(task notify.Task) bool
}

// RunResult carries the final counters of one run.
type RunResult struct {
	JobID       string           `json:"job_id"`
	Status      domain.JobStatus `json:"status"`
	NewIngested int              `json:"new_ingested"`
	Updated     int              `json:"updated"`
	Errors      int              `json:"errors"`
}

// Dependencies bundles orchestrator collaborators.
type Dependencies struct {
	Jobs     repository.JobRepository
	Logs     repository.LogRepository
	Locks    *lock.Manager
	Engine   *syncer.Engine
	Source   *SourceClient
	Notifier Notifier
	Metrics  *observability.Metrics
}

// Orchestrator drives the per-tenant ingestion run: lock, paginate, sync,
// notify, sweep, audit. The lock is the only serialization point; there is no
// pre-check of existing jobs.
type Orchestrator struct {
	jobs         repository.JobRepository
	logs         repository.LogRepository
	locks        *lock.Manager
	engine       *syncer.Engine
	source       *SourceClient
	notifier     Notifier
	logger       *zap.Logger
	metrics      *observability.Metrics
	refreshEvery time.Duration
	cancels      *cancelRegistry
}

// NewOrchestrator creates the orchestrator.
func NewOrchestrator(cfg config.LockConfig, deps Dependencies, logger *zap.Logger) *Orchestrator {
	refreshEvery := cfg.RefreshInterval()
	if refreshEvery <= 0 {
		refreshEvery = 30 * time.Second
	}
	return &Orchestrator{
		jobs:         deps.Jobs,
		logs:         deps.Logs,
		locks:        deps.Locks,
		engine:       deps.Engine,
		source:       deps.Source,
		notifier:     deps.Notifier,
		logger:       logger,
		metrics:      deps.Metrics,
		refreshEvery: refreshEvery,
		cancels:      newCancelRegistry(),
	}
}

type runCounters struct {
	mu          sync.Mutex
	newIngested int
	updated     int
	errors      int
	seen        []string
}

// Run executes one ingestion run for the tenant and returns the final
// counters. A lost lock race surfaces as a conflict error with no job row
// written.
func (o *Orchestrator) Run(ctx context.Context, tenantID string) (*RunResult, error) {
	jobID := uuid.NewString()
	resource := LockResource(tenantID)

	acquired, err := o.locks.Acquire(ctx, resource, jobID)
	if err != nil {
		return nil, err
	}
	if !acquired {
		details := map[string]any{"tenant_id": tenantID}
		if running, err := o.jobs.FindRunningByTenant(ctx, tenantID); err == nil {
			details["job_id"] = running.JobID
		}
		return nil, apperrors.NewConflict("ingestion already running for tenant "+tenantID, details)
	}

	startedAt := time.Now().UTC()
	job := &domain.IngestionJob{
		JobID:     jobID,
		TenantID:  tenantID,
		Status:    domain.JobStatusRunning,
		StartedAt: startedAt,
	}
	if err := o.jobs.Insert(ctx, job); err != nil {
		_ = o.locks.Release(ctx, resource, jobID)
		return nil, err
	}
	o.cancels.register(jobID)

	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	var leaseLost atomic.Bool
	refresherDone := make(chan struct{})
	go o.refreshLease(runCtx, resource, jobID, &leaseLost, cancelRun, refresherDone)

	counters := &runCounters{}
	finalStatus, runErr := o.execute(runCtx, tenantID, jobID, counters)

	cancelRun()
	<-refresherDone

	if leaseLost.Load() {
		finalStatus = domain.JobStatusFailed
		runErr = errors.New("lock lease lost mid-run")
	}

	o.teardown(tenantID, jobID, resource, startedAt, finalStatus, counters, runErr)

	if runErr != nil {
		return nil, runErr
	}
	return &RunResult{
		JobID:       jobID,
		Status:      finalStatus,
		NewIngested: counters.newIngested,
		Updated:     counters.updated,
		Errors:      counters.errors,
	}, nil
}

// execute is the fetch/process loop. It returns the terminal status the job
// should get; teardown handles all persistence of that outcome.
func (o *Orchestrator) execute(ctx context.Context, tenantID, jobID string, counters *runCounters) (domain.JobStatus, error) {
	page := 1
	totalPages := 1

	for {
		if o.cancels.requested(jobID) {
			o.logger.Info("ingestion cancelled", zap.String("job_id", jobID))
			return domain.JobStatusCancelled, nil
		}

		pageData, err := o.source.FetchPage(ctx, tenantID, page)
		if err != nil {
			return domain.JobStatusFailed, err
		}

		totalPages = pageData.TotalPages
		o.processPage(ctx, tenantID, pageData.Tickets, counters)

		progress := 100 * page / max(totalPages, 1)
		if progress > 99 {
			progress = 99
		}
		if err := o.jobs.UpdateProgress(ctx, jobID, totalPages, page, progress); err != nil {
			return domain.JobStatusFailed, err
		}

		if page >= totalPages {
			break
		}
		page++
	}

	if o.cancels.requested(jobID) {
		return domain.JobStatusCancelled, nil
	}

	// Sweep scope covers the whole tenant: the source serves full dumps, so
	// any non-deleted ticket missing from this run's seen set is gone upstream.
	deleted, err := o.engine.SweepDeleted(ctx, tenantID, counters.seen, nil)
	if err != nil {
		return domain.JobStatusFailed, err
	}
	if deleted > 0 {
		o.logger.Info("sweep soft-deleted tickets",
			zap.String("tenant_id", tenantID), zap.Int64("count", deleted))
	}

	return domain.JobStatusCompleted, nil
}

// processPage syncs one page's tickets, a few at a time. Per-ticket failures
// count as data errors and never abort the run.
func (o *Orchestrator) processPage(ctx context.Context, tenantID string, tickets []domain.ExternalTicket, counters *runCounters) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(syncConcurrency)

	for _, ext := range tickets {
		ext := ext
		if !ext.Valid() {
			counters.mu.Lock()
			counters.errors++
			counters.mu.Unlock()
			continue
		}

		g.Go(func() error {
			res, err := o.engine.SyncTicket(gctx, tenantID, ext)

			counters.mu.Lock()
			defer counters.mu.Unlock()

			if err != nil {
				counters.errors++
				o.logger.Warn("ticket sync failed",
					zap.String("external_id", ext.ID), zap.Error(err))
				return nil
			}

			counters.seen = append(counters.seen, ext.ID)
			switch res.Action {
			case syncer.ActionCreated:
				counters.newIngested++
			case syncer.ActionUpdated:
				counters.updated++
			default:
				return nil
			}

			if res.Urgency == domain.UrgencyHigh {
				o.notifier.Enqueue(notify.Task{
					TicketID: ext.ID,
					TenantID: tenantID,
					Urgency:  string(domain.UrgencyHigh),
					Reason:   "High urgency ticket detected",
				})
			}
			return nil
		})
	}

	_ = g.Wait()
}

// refreshLease keeps the lock alive for the run's duration. A refresh that
// reports "not owner" means the lease is gone: the run self-aborts.
func (o *Orchestrator) refreshLease(ctx context.Context, resource, jobID string, leaseLost *atomic.Bool, cancelRun context.CancelFunc, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(o.refreshEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ok, err := o.locks.Refresh(ctx, resource, jobID)
			if err != nil {
				o.logger.Warn("lock refresh errored",
					zap.String("resource_id", resource), zap.Error(err))
				continue
			}
			if !ok {
				o.logger.Error("lock lease lost, aborting run",
					zap.String("resource_id", resource), zap.String("job_id", jobID))
				leaseLost.Store(true)
				cancelRun()
				return
			}
		}
	}
}

// teardown is the guaranteed-release scope: it finalizes the job row, writes
// exactly one audit entry, releases the lock, and drops the cancellation
// flag. It runs on every exit and uses its own context so a cancelled run
// cannot skip it.
func (o *Orchestrator) teardown(tenantID, jobID, resource string, startedAt time.Time, status domain.JobStatus, counters *runCounters, runErr error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	endedAt := time.Now().UTC()

	progress := -1
	if status == domain.JobStatusCompleted {
		progress = 100
	}
	if err := o.finishJob(ctx, jobID, status, endedAt, progress); err != nil {
		o.logger.Error("job finalize failed", zap.String("job_id", jobID), zap.Error(err))
	}

	logStatus := domain.LogStatusSuccess
	switch {
	case status == domain.JobStatusFailed:
		logStatus = domain.LogStatusFailed
	case status == domain.JobStatusCancelled:
		logStatus = domain.LogStatusCancelled
	case counters.errors > 0:
		logStatus = domain.LogStatusPartialSuccess
	}

	entry := &domain.IngestionLog{
		TenantID:    tenantID,
		JobID:       jobID,
		Status:      logStatus,
		StartedAt:   startedAt,
		EndedAt:     endedAt,
		NewIngested: counters.newIngested,
		Updated:     counters.updated,
		Errors:      counters.errors,
	}
	if runErr != nil {
		entry.Error = runErr.Error()
	}
	if err := o.logs.Insert(ctx, entry); err != nil {
		o.logger.Error("audit log write failed", zap.String("job_id", jobID), zap.Error(err))
	}

	if err := o.locks.Release(ctx, resource, jobID); err != nil {
		o.logger.Error("lock release failed", zap.String("resource_id", resource), zap.Error(err))
	}
	o.cancels.remove(jobID)
	o.metrics.RecordIngestRun(tenantID, string(status))
}

// finishJob writes the terminal job state, keeping the last computed progress
// when the run did not complete.
func (o *Orchestrator) finishJob(ctx context.Context, jobID string, status domain.JobStatus, endedAt time.Time, progress int) error {
	if progress < 0 {
		job, err := o.jobs.FindByJobID(ctx, jobID)
		if err != nil {
			return err
		}
		progress = job.Progress
	}
	return o.jobs.Finish(ctx, jobID, status, endedAt, progress)
}

// JobProgress looks up a run by job id.
func (o *Orchestrator) JobProgress(ctx context.Context, jobID string) (*domain.IngestionJob, error) {
	return o.jobs.FindByJobID(ctx, jobID)
}

// TenantStatus returns the tenant's running job, or nil when idle.
func (o *Orchestrator) TenantStatus(ctx context.Context, tenantID string) (*domain.IngestionJob, error) {
	job, err := o.jobs.FindRunningByTenant(ctx, tenantID)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return job, nil
}

// Cancel flags a running job for cooperative cancellation. The orchestrator
// polls the flag between pages; cancellation is not preemptive.
func (o *Orchestrator) Cancel(ctx context.Context, jobID string) (bool, error) {
	job, err := o.jobs.FindByJobID(ctx, jobID)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if job.Status != domain.JobStatusRunning {
		return false, nil
	}
	return o.cancels.request(jobID), nil
}
