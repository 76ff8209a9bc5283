package resilience

import (
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

// UpstreamHealth is the health snapshot of one upstream service,
// as exposed by the ops status endpoint.
type UpstreamHealth struct {
	// Name is the upstream identifier.
	Name string

	// CircuitState is the current breaker state.
	CircuitState gobreaker.State

	// Counts contains the breaker counters.
	Counts gobreaker.Counts

	// LastSuccessAt is when the last request succeeded.
	LastSuccessAt *time.Time

	// LastFailureAt is when the last request failed.
	LastFailureAt *time.Time

	// LastError is the most recent failure message, if any.
	LastError string
}

// IsHealthy reports whether the upstream's breaker is closed.
func (h *UpstreamHealth) IsHealthy() bool {
	return h.CircuitState == gobreaker.StateClosed
}

// IsDegraded reports whether the upstream is being probed (half-open).
func (h *UpstreamHealth) IsDegraded() bool {
	return h.CircuitState == gobreaker.StateHalfOpen
}

// Registry tracks resilient clients and their health.
type Registry struct {
	mu        sync.RWMutex
	upstreams map[string]*registeredUpstream
}

type registeredUpstream struct {
	client        *Client
	lastSuccessAt *time.Time
	lastFailureAt *time.Time
	lastError     string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{upstreams: make(map[string]*registeredUpstream)}
}

// Register adds a client under the given upstream name.
func (r *Registry) Register(name string, client *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.upstreams[name] = &registeredUpstream{client: client}
}

// RecordSuccess marks a successful request for the upstream.
func (r *Registry) RecordSuccess(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.upstreams[name]; ok {
		now := time.Now()
		u.lastSuccessAt = &now
	}
}

// RecordFailure marks a failed request for the upstream.
func (r *Registry) RecordFailure(name string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.upstreams[name]; ok {
		now := time.Now()
		u.lastFailureAt = &now
		if err != nil {
			u.lastError = err.Error()
		}
	}
}

// Health returns the health snapshot for one upstream, or nil if unknown.
func (r *Registry) Health(name string) *UpstreamHealth {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.upstreams[name]
	if !ok {
		return nil
	}
	return snapshot(name, u)
}

// AllHealth returns health snapshots for every registered upstream.
func (r *Registry) AllHealth() []*UpstreamHealth {
	r.mu.RLock()
	defer r.mu.RUnlock()

	health := make([]*UpstreamHealth, 0, len(r.upstreams))
	for name, u := range r.upstreams {
		health = append(health, snapshot(name, u))
	}
	return health
}

func snapshot(name string, u *registeredUpstream) *UpstreamHealth {
	return &UpstreamHealth{
		Name:          name,
		CircuitState:  u.client.BreakerState(),
		Counts:        u.client.BreakerCounts(),
		LastSuccessAt: u.lastSuccessAt,
		LastFailureAt: u.lastFailureAt,
		LastError:     u.lastError,
	}
}
