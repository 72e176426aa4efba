package breaker

import "sync"

// Registry holds per-name breaker singletons. One registry serves the whole
// process; it and the rate limiter are the only process-wide registries.
type Registry struct {
	mu       sync.Mutex
	config   Config
	breakers map[string]*Breaker
}

// NewRegistry creates a registry applying config to breakers it creates.
func NewRegistry(config Config) *Registry {
	return &Registry{
		config:   config,
		breakers: make(map[string]*Breaker),
	}
}

// Get returns the breaker for name, creating it on first use.
func (r *Registry) Get(name string) *Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.breakers[name]
	if !ok {
		b = New(name, r.config)
		r.breakers[name] = b
	}
	return b
}

// Lookup returns the breaker for name without creating it.
func (r *Registry) Lookup(name string) (*Breaker, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.breakers[name]
	return b, ok
}
