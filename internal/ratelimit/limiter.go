package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Status reports current window occupancy.
type Status struct {
	Limit           int `json:"limit"`
	WindowSeconds   int `json:"window_seconds"`
	CurrentRequests int `json:"current_requests"`
	Remaining       int `json:"remaining"`
}

// Limiter is a sliding-window throttle on outbound calls. One instance is
// shared by all tenants; admission keeps the timestamps of the last up-to-N
// admitted requests and blocks once the window is full.
type Limiter struct {
	mu       sync.Mutex
	limit    int
	window   time.Duration
	admitted []time.Time

	now func() time.Time
}

// New creates a limiter admitting at most limit requests per window.
func New(limit int, window time.Duration) *Limiter {
	if limit <= 0 {
		limit = 60
	}
	if window <= 0 {
		window = time.Minute
	}
	return &Limiter{
		limit:    limit,
		window:   window,
		admitted: make([]time.Time, 0, limit),
		now:      time.Now,
	}
}

// Acquire blocks until a slot is available or ctx is cancelled. Cancellation
// never consumes a slot. FIFO order across waiters is not guaranteed.
func (l *Limiter) Acquire(ctx context.Context) error {
	for {
		l.mu.Lock()
		now := l.now()
		l.prune(now)

		if len(l.admitted) < l.limit {
			l.admitted = append(l.admitted, now)
			l.mu.Unlock()
			return nil
		}

		wait := l.admitted[0].Add(l.window).Sub(now)
		l.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Status returns current usage of the rolling window.
func (l *Limiter) Status() Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.prune(l.now())

	current := len(l.admitted)
	remaining := l.limit - current
	if remaining < 0 {
		remaining = 0
	}
	return Status{
		Limit:           l.limit,
		WindowSeconds:   int(l.window / time.Second),
		CurrentRequests: current,
		Remaining:       remaining,
	}
}

// prune drops admissions older than the window. Caller holds the mutex.
func (l *Limiter) prune(now time.Time) {
	cutoff := now.Add(-l.window)
	idx := 0
	for idx < len(l.admitted) && !l.admitted[idx].After(cutoff) {
		idx++
	}
	if idx > 0 {
		l.admitted = append(l.admitted[:0], l.admitted[idx:]...)
	}
}
