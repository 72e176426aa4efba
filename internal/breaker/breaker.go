package breaker

import (
	"fmt"
	"sync"
	"time"
)

// State represents the state of a circuit breaker.
type State int

const (
	StateClosed   State = iota // normal operation
	StateOpen                  // failing fast
	StateHalfOpen              // probing
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", int(s))
	}
}

// Config holds circuit breaker settings.
type Config struct {
	WindowSize       int           // outcomes kept in the sliding window (default 10)
	FailureThreshold int           // failures within a full window that trip the breaker (default 5)
	Cooldown         time.Duration // how long to stay open before probing (default 30s)
}

// DefaultConfig returns the default config.
func DefaultConfig() Config {
	return Config{
		WindowSize:       10,
		FailureThreshold: 5,
		Cooldown:         30 * time.Second,
	}
}

// Status is the observable breaker state.
type Status struct {
	Name             string   `json:"name"`
	State            string   `json:"state"`
	FailureCount     int      `json:"failure_count"`
	WindowSize       int      `json:"window_size"`
	TimeSinceOpenSec *float64 `json:"time_since_open_seconds,omitempty"`
}

// Breaker is a failure-window state machine guarding one downstream endpoint.
// Decisions depend only on the last WindowSize outcomes and the cooldown
// timer. Half-open admits exactly one probe; concurrent callers are rejected
// until the probe resolves.
type Breaker struct {
	mu       sync.Mutex
	name     string
	config   Config
	window   []bool // true = failure
	state    State
	openedAt time.Time
	probing  bool

	now func() time.Time
}

// New creates a breaker with the given name and config.
func New(name string, config Config) *Breaker {
	if config.WindowSize <= 0 {
		config.WindowSize = 10
	}
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = 5
	}
	if config.Cooldown <= 0 {
		config.Cooldown = 30 * time.Second
	}
	return &Breaker{
		name:   name,
		config: config,
		window: make([]bool, 0, config.WindowSize),
		now:    time.Now,
	}
}

// Allow reports whether a call may proceed. In the open state it fails fast
// until the cooldown elapses, then admits a single half-open probe.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return true
	case StateOpen:
		if b.now().Sub(b.openedAt) >= b.config.Cooldown {
			b.state = StateHalfOpen
			b.probing = true
			return true
		}
		return false
	case StateHalfOpen:
		if b.probing {
			return false
		}
		b.probing = true
		return true
	}
	return true
}

// RecordSuccess records a successful call outcome.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateHalfOpen {
		b.state = StateClosed
		b.probing = false
		b.window = b.window[:0]
		return
	}
	b.record(false)
	b.maybeTrip()
}

// RecordFailure records a failed call outcome. In half-open state the probe
// failure reopens the breaker and restarts the cooldown timer.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateHalfOpen {
		b.state = StateOpen
		b.openedAt = b.now()
		b.probing = false
		return
	}

	b.record(true)
	b.maybeTrip()
}

// maybeTrip opens the breaker once the window is full and holds enough
// failures. Caller holds the mutex.
func (b *Breaker) maybeTrip() {
	if len(b.window) == b.config.WindowSize && b.failures() >= b.config.FailureThreshold {
		b.state = StateOpen
		b.openedAt = b.now()
	}
}

// Reset forces the breaker back to closed and clears the window.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = StateClosed
	b.probing = false
	b.window = b.window[:0]
}

// State returns the current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Status returns the observable state snapshot.
func (b *Breaker) Status() Status {
	b.mu.Lock()
	defer b.mu.Unlock()

	status := Status{
		Name:         b.name,
		State:        b.state.String(),
		FailureCount: b.failures(),
		WindowSize:   b.config.WindowSize,
	}
	if b.state == StateOpen || b.state == StateHalfOpen {
		since := b.now().Sub(b.openedAt).Seconds()
		status.TimeSinceOpenSec = &since
	}
	return status
}

// record appends an outcome, trimming the window to its size. Caller holds
// the mutex.
func (b *Breaker) record(failure bool) {
	b.window = append(b.window, failure)
	if len(b.window) > b.config.WindowSize {
		b.window = append(b.window[:0], b.window[len(b.window)-b.config.WindowSize:]...)
	}
}

// failures counts failures in the window. Caller holds the mutex.
func (b *Breaker) failures() int {
	count := 0
	for _, failed := range b.window {
		if failed {
			count++
		}
	}
	return count
}
