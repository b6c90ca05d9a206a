package circuitbreaker

import (
	"sync"
	"time"
)

// Registry keeps one breaker per backend port.
type Registry struct {
	mutex     sync.RWMutex
	breakers  map[int]*CircuitBreaker
	threshold int
	timeout   time.Duration
}

func NewRegistry(threshold int, timeout time.Duration) *Registry {
	return &Registry{
		breakers:  make(map[int]*CircuitBreaker),
		threshold: threshold,
		timeout:   timeout,
	}
}

func (r *Registry) GetBreaker(port int) *CircuitBreaker {
	r.mutex.RLock()
	cb, exists := r.breakers[port]
	r.mutex.RUnlock()

	if exists {
		return cb
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	// Another goroutine may have created it meanwhile
	if cb, exists = r.breakers[port]; exists {
		return cb
	}

	cb = NewCircuitBreaker(r.threshold, r.timeout)
	r.breakers[port] = cb
	return cb
}

// MarkAlive closes the breaker for port if one exists.
func (r *Registry) MarkAlive(port int) {
	r.mutex.RLock()
	cb, exists := r.breakers[port]
	r.mutex.RUnlock()

	if exists {
		cb.RecordSuccess()
	}
}

func (r *Registry) Stats() map[int]State {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	stats := make(map[int]State, len(r.breakers))
	for port, cb := range r.breakers {
		stats[port] = cb.State()
	}
	return stats
}
