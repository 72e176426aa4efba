package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-ingest/internal/breaker"
	"github.com/spec-kit/ticket-ingest/internal/config"
	"github.com/spec-kit/ticket-ingest/internal/observability"
	"github.com/spec-kit/ticket-ingest/internal/ratelimit"
)

func testPool(t *testing.T, url string, maxAttempts int) (*Pool, *breaker.Breaker) {
	t.Helper()
	br := breaker.New("notify", breaker.DefaultConfig())
	cfg := config.NotifyConfig{
		URL:               url,
		TimeoutSeconds:    2,
		MaxAttempts:       maxAttempts,
		MaxConcurrent:     4,
		BackoffCapSeconds: 1,
	}
	return NewPool(cfg, br, ratelimit.New(100, time.Minute), zap.NewNop(), observability.NewMetrics()), br
}

func drain(t *testing.T, p *Pool) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, p.Shutdown(ctx))
}

func TestPool_DeliversNotification(t *testing.T) {
	var got atomic.Int32
	var mu sync.Mutex
	var lastTask Task
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		require.NoError(t, json.NewDecoder(r.Body).Decode(&lastTask))
		got.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	pool, br := testPool(t, srv.URL, 3)
	ok := pool.Enqueue(Task{TicketID: "ext-1", TenantID: "t1", Urgency: "high", Reason: "High urgency ticket detected"})
	assert.True(t, ok)

	drain(t, pool)
	assert.Equal(t, int32(1), got.Load())
	mu.Lock()
	assert.Equal(t, "ext-1", lastTask.TicketID)
	mu.Unlock()
	assert.Equal(t, breaker.StateClosed, br.State())
}

func TestPool_SkipsWhenCircuitOpen(t *testing.T) {
	var got atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.Add(1)
	}))
	defer srv.Close()

	pool, br := testPool(t, srv.URL, 3)
	for i := 0; i < 5; i++ {
		br.RecordFailure()
	}
	for i := 0; i < 5; i++ {
		br.RecordSuccess()
	}
	require.Equal(t, breaker.StateOpen, br.State())

	pool.Enqueue(Task{TicketID: "ext-1", TenantID: "t1"})
	drain(t, pool)

	assert.Equal(t, int32(0), got.Load(), "open circuit must not touch the endpoint")
}

func TestPool_ServerErrorCountsAsBreakerFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	pool, br := testPool(t, srv.URL, 1)
	pool.Enqueue(Task{TicketID: "ext-1", TenantID: "t1"})
	drain(t, pool)

	assert.Equal(t, 1, br.Status().FailureCount)
}

func TestPool_ClientErrorDoesNotCountAsBreakerFailure(t *testing.T) {
	var got atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.Add(1)
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	pool, br := testPool(t, srv.URL, 3)
	pool.Enqueue(Task{TicketID: "ext-1", TenantID: "t1"})
	drain(t, pool)

	// 4xx is terminal, not retried, and not a breaker failure.
	assert.Equal(t, int32(1), got.Load())
	assert.Equal(t, 0, br.Status().FailureCount)
}

func TestPool_RetriesTransientFailure(t *testing.T) {
	var got atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	pool, br := testPool(t, srv.URL, 3)
	pool.Enqueue(Task{TicketID: "ext-1", TenantID: "t1"})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, pool.Shutdown(ctx))

	assert.Equal(t, int32(2), got.Load())
	assert.Equal(t, breaker.StateClosed, br.State())
}

func TestPool_DropsWhenSaturated(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	pool, _ := testPool(t, srv.URL, 1)
	for i := 0; i < 4; i++ {
		assert.True(t, pool.Enqueue(Task{TicketID: "busy", TenantID: "t1"}))
	}
	// All worker slots are blocked on the endpoint; the next task drops.
	assert.Eventually(t, func() bool {
		return !pool.Enqueue(Task{TicketID: "dropped", TenantID: "t1"})
	}, time.Second, 10*time.Millisecond)

	close(release)
	drain(t, pool)
}
