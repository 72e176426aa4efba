package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"math/rand"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/spec-kit/ticket-ingest/internal/breaker"
	"github.com/spec-kit/ticket-ingest/internal/config"
	"github.com/spec-kit/ticket-ingest/internal/observability"
	"github.com/spec-kit/ticket-ingest/internal/ratelimit"
)

// Task is one pending notification.
type Task struct {
	TicketID string `json:"ticket_id"`
	TenantID string `json:"tenant_id"`
	Urgency  string `json:"urgency"`
	Reason   string `json:"reason"`
}

// Pool is a bounded worker pool for best-effort notification delivery. Its
// lifetime is tied to the server, not to any ingestion run; callers get
// control back immediately and never see a delivery error.
type Pool struct {
	url         string
	client      *http.Client
	breaker     *breaker.Breaker
	limiter     *ratelimit.Limiter
	logger      *zap.Logger
	metrics     *observability.Metrics
	sem         *semaphore.Weighted
	capacity    int64
	maxAttempts int
	backoffCap  time.Duration

	baseCtx context.Context
	cancel  context.CancelFunc
}

// NewPool creates the notification pool.
func NewPool(cfg config.NotifyConfig, br *breaker.Breaker, limiter *ratelimit.Limiter, logger *zap.Logger, metrics *observability.Metrics) *Pool {
	capacity := cfg.MaxConcurrent
	if capacity <= 0 {
		capacity = 8
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	backoffCap := time.Duration(cfg.BackoffCapSeconds) * time.Second
	if backoffCap <= 0 {
		backoffCap = 8 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		url:         cfg.URL,
		client:      &http.Client{Timeout: cfg.Timeout()},
		breaker:     br,
		limiter:     limiter,
		logger:      logger,
		metrics:     metrics,
		sem:         semaphore.NewWeighted(capacity),
		capacity:    capacity,
		maxAttempts: maxAttempts,
		backoffCap:  backoffCap,
		baseCtx:     ctx,
		cancel:      cancel,
	}
}

// Enqueue schedules a notification send. Non-blocking: when every worker slot
// is busy the task is dropped with a log. Returns whether the task was taken.
func (p *Pool) Enqueue(task Task) bool {
	if !p.sem.TryAcquire(1) {
		p.logger.Warn("notification dropped, pool saturated",
			zap.String("ticket_id", task.TicketID), zap.String("tenant_id", task.TenantID))
		p.metrics.RecordNotification("dropped")
		return false
	}

	go func() {
		defer p.sem.Release(1)
		p.send(p.baseCtx, task)
	}()
	return true
}

// Shutdown drains in-flight sends until ctx expires, then abandons the rest.
func (p *Pool) Shutdown(ctx context.Context) error {
	err := p.sem.Acquire(ctx, p.capacity)
	p.cancel()
	if err == nil {
		p.sem.Release(p.capacity)
	}
	return err
}

// send runs the bounded-retry delivery for one task. Failures are logged,
// never raised.
func (p *Pool) send(ctx context.Context, task Task) {
	body, err := json.Marshal(task)
	if err != nil {
		p.logger.Error("notification payload marshal failed", zap.Error(err))
		return
	}

	for attempt := 0; attempt < p.maxAttempts; attempt++ {
		if !p.breaker.Allow() {
			p.logger.Warn("notification skipped, circuit open",
				zap.String("ticket_id", task.TicketID), zap.String("tenant_id", task.TenantID))
			p.metrics.RecordNotification("skipped")
			return
		}

		status, err := p.post(ctx, body)
		switch {
		case err == nil && status < http.StatusMultipleChoices:
			p.breaker.RecordSuccess()
			p.metrics.RecordNotification("sent")
			p.logger.Info("notification sent",
				zap.String("ticket_id", task.TicketID), zap.String("tenant_id", task.TenantID))
			return
		case err == nil && status == http.StatusTooManyRequests:
			// The limiter's domain, not the breaker's.
			p.breaker.RecordSuccess()
		case err == nil && status < http.StatusInternalServerError:
			p.breaker.RecordSuccess()
			p.logger.Warn("notification rejected by endpoint",
				zap.String("ticket_id", task.TicketID), zap.Int("status", status))
			p.metrics.RecordNotification("failed")
			return
		default:
			p.breaker.RecordFailure()
			p.logger.Warn("notification attempt failed",
				zap.String("ticket_id", task.TicketID),
				zap.Int("attempt", attempt+1),
				zap.Int("status", status),
				zap.Error(err))
		}

		if attempt < p.maxAttempts-1 {
			timer := time.NewTimer(p.backoff(attempt))
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
		}
	}

	p.logger.Error("notification delivery failed after all attempts",
		zap.String("ticket_id", task.TicketID), zap.String("tenant_id", task.TenantID))
	p.metrics.RecordNotification("failed")
}

func (p *Pool) post(ctx context.Context, body []byte) (int, error) {
	if err := p.limiter.Acquire(ctx); err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	return resp.StatusCode, nil
}

// backoff is min(2^attempt, cap) plus jitter in [0, 2^attempt) seconds.
func (p *Pool) backoff(attempt int) time.Duration {
	base := time.Duration(1<<uint(attempt)) * time.Second
	delay := base
	if delay > p.backoffCap {
		delay = p.backoffCap
	}
	jitter := time.Duration(rand.Float64() * float64(base))
	return delay + jitter
}
