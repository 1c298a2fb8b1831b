package gate

import (
	"sync"
	"time"
)

type entry struct {
	gate     *Gate
	lastUsed time.Time
}

// Registry mounts one gate per browser and unmounts gates left idle
type Registry struct {
	deps Deps
	now  func() time.Time

	mu    sync.Mutex
	gates map[string]*entry
}

func NewRegistry(deps Deps) *Registry {
	return &Registry{
		deps:  deps,
		now:   time.Now,
		gates: make(map[string]*entry),
	}
}

// Acquire returns the browser's gate, mounting it on first use
func (r *Registry) Acquire(browserID string) *Gate {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.gates[browserID]; ok {
		e.lastUsed = r.now()
		return e.gate
	}

	g := New(browserID, r.deps)
	g.Mount()
	r.gates[browserID] = &entry{gate: g, lastUsed: r.now()}
	r.deps.Metrics.GatesMounted.Inc()
	return g
}

// Sweep unmounts gates not acquired within idle and not being watched.
// Returns the number of gates closed.
func (r *Registry) Sweep(idle time.Duration) int {
	cutoff := r.now().Add(-idle)

	var stale []*Gate
	r.mu.Lock()
	for browserID, e := range r.gates {
		if e.lastUsed.Before(cutoff) && !e.gate.watched() {
			stale = append(stale, e.gate)
			delete(r.gates, browserID)
		}
	}
	r.mu.Unlock()

	for _, g := range stale {
		g.Close()
		r.deps.Metrics.GatesMounted.Dec()
	}
	return len(stale)
}

// Len returns the number of mounted gates
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.gates)
}

// Close unmounts every gate
func (r *Registry) Close() {
	r.mu.Lock()
	gates := r.gates
	r.gates = make(map[string]*entry)
	r.mu.Unlock()

	for _, e := range gates {
		e.gate.Close()
		r.deps.Metrics.GatesMounted.Dec()
	}
}
