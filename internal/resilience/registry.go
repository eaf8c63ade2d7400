package resilience

import (
	"context"
	"sync"
)

// Registry holds one breaker per dependency name, lazily created. It is an
// explicit object owned by the composition root and injected into whatever
// constructs remote-calling components; breaker state lives for the process
// lifetime and is deliberately not persisted.
type Registry struct {
	mu       sync.Mutex
	breakers map[string]*Breaker
	config   BreakerConfig
}

// NewRegistry creates a registry whose breakers share config.
func NewRegistry(config BreakerConfig) *Registry {
	return &Registry{
		breakers: make(map[string]*Breaker),
		config:   config,
	}
}

// Get returns the breaker for a dependency name, creating it on first use.
func (r *Registry) Get(name string) *Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.breakers[name]
	if !ok {
		b = NewBreaker(name, r.config)
		r.breakers[name] = b
	}
	return b
}

// Health returns snapshots for every dependency used at least once.
func (r *Registry) Health() map[string]Health {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]Health, len(r.breakers))
	for name, b := range r.breakers {
		out[name] = b.GetHealth()
	}
	return out
}

// Call is the composition contract for remote calls: the named breaker
// wraps the retry policy, which wraps op. An OPEN breaker prevents even the
// first attempt; a CLOSED breaker allows the full retry budget before the
// failure counts once against the threshold.
func (r *Registry) Call(ctx context.Context, name string, policy Policy, op func() error) error {
	return r.Get(name).Execute(func() error {
		return Do(ctx, name, policy, op)
	})
}
