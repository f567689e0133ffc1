package resilience

import (
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Registry holds the process-wide set of named circuit breakers. It is an
// explicit object constructed at startup and handed to whatever needs it,
// not an ambient singleton, so tests and multi-instance reasoning stay
// deterministic.
type Registry struct {
	defaults Settings
	logger   *zap.Logger

	mu       sync.RWMutex
	breakers map[string]*Breaker
}

// NewRegistry creates a registry whose breakers default to the given
// settings. A state-change logger is attached to every breaker unless the
// settings already carry an OnStateChange callback.
func NewRegistry(defaults Settings, logger *zap.Logger) *Registry {
	return &Registry{
		defaults: defaults,
		logger:   logger,
		breakers: make(map[string]*Breaker),
	}
}

// Register creates and stores a breaker for a named dependency, applying
// registry defaults for any zero-valued setting. Registering the same name
// twice returns the existing breaker.
func (r *Registry) Register(name string, settings Settings) *Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	if b, ok := r.breakers[name]; ok {
		return b
	}

	if settings.FailureThreshold <= 0 {
		settings.FailureThreshold = r.defaults.FailureThreshold
	}
	if settings.ResetTimeout <= 0 {
		settings.ResetTimeout = r.defaults.ResetTimeout
	}
	if settings.CallTimeout <= 0 {
		settings.CallTimeout = r.defaults.CallTimeout
	}
	if settings.OnStateChange == nil {
		settings.OnStateChange = r.logStateChange
	}

	b := NewBreaker(name, settings)
	r.breakers[name] = b
	return b
}

// Get returns the breaker for a dependency, or nil if none is registered
func (r *Registry) Get(name string) *Breaker {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.breakers[name]
}

// Names returns the registered dependency names in sorted order
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.breakers))
	for name := range r.breakers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Snapshot returns the stats of every registered breaker, keyed by
// dependency name. Read-only; used by the health endpoint.
func (r *Registry) Snapshot() map[string]Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snapshot := make(map[string]Stats, len(r.breakers))
	for name, b := range r.breakers {
		snapshot[name] = b.Stats()
	}
	return snapshot
}

func (r *Registry) logStateChange(name string, from, to State) {
	if r.logger == nil {
		return
	}
	r.logger.Warn("Circuit breaker state changed",
		zap.String("dependency", name),
		zap.String("from", from.String()),
		zap.String("to", to.String()),
	)
}
