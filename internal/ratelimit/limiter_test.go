package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiter_AdmitsUpToLimitImmediately(t *testing.T) {
	l := New(3, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		start := time.Now()
		require.NoError(t, l.Acquire(ctx))
		assert.Less(t, time.Since(start), 50*time.Millisecond)
	}

	status := l.Status()
	assert.Equal(t, 3, status.CurrentRequests)
	assert.Equal(t, 0, status.Remaining)
}

func TestLimiter_BlocksUntilWindowSlides(t *testing.T) {
	l := New(2, 200*time.Millisecond)
	ctx := context.Background()

	require.NoError(t, l.Acquire(ctx))
	require.NoError(t, l.Acquire(ctx))

	start := time.Now()
	require.NoError(t, l.Acquire(ctx))
	elapsed := time.Since(start)

	assert.GreaterOrEqual(t, elapsed, 150*time.Millisecond)
}

func TestLimiter_NeverExceedsLimitInWindow(t *testing.T) {
	l := New(5, 300*time.Millisecond)
	ctx := context.Background()

	admitted := make(chan time.Time, 20)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 12; i++ {
			if err := l.Acquire(ctx); err != nil {
				return
			}
			admitted <- time.Now()
		}
	}()
	<-done
	close(admitted)

	var times []time.Time
	for ts := range admitted {
		times = append(times, ts)
	}
	require.Len(t, times, 12)

	// Sliding check: no 6 admissions inside any 300ms span.
	for i := 0; i+5 < len(times); i++ {
		span := times[i+5].Sub(times[i])
		assert.GreaterOrEqual(t, span, 250*time.Millisecond,
			"admissions %d..%d landed within %v", i, i+5, span)
	}
}

func TestLimiter_CancellationDoesNotConsumeSlot(t *testing.T) {
	l := New(1, time.Minute)
	require.NoError(t, l.Acquire(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- l.Acquire(ctx)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	err := <-errCh
	assert.ErrorIs(t, err, context.Canceled)

	status := l.Status()
	assert.Equal(t, 1, status.CurrentRequests)
}

func TestLimiter_StatusPrunesExpired(t *testing.T) {
	l := New(2, 50*time.Millisecond)
	require.NoError(t, l.Acquire(context.Background()))

	time.Sleep(80 * time.Millisecond)

	status := l.Status()
	assert.Equal(t, 0, status.CurrentRequests)
	assert.Equal(t, 2, status.Remaining)
}

func TestLimiter_DefaultsOnInvalidConfig(t *testing.T) {
	l := New(0, 0)
	status := l.Status()
	assert.Equal(t, 60, status.Limit)
	assert.Equal(t, 60, status.WindowSeconds)
}
