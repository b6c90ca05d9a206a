package routing

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"sync"

	"github.com/angeloszaimis/portrouter/internal/store"
)

// Table maps canonical endpoints to backend ports.
type Table struct {
	mutex  sync.RWMutex
	routes map[string]int
	store  store.Store
	logger *slog.Logger
}

func NewTable(s store.Store, logger *slog.Logger) *Table {
	return &Table{
		routes: make(map[string]int),
		store:  s,
		logger: logger,
	}
}

// Load replaces the table with the stored mapping. An absent or unreadable
// store yields an empty table; corrupt content, including entries that break
// the endpoint or port rules, is returned as an error.
func (t *Table) Load() error {
	stored, err := t.store.Load()
	if err != nil {
		if errors.Is(err, store.ErrCorrupt) {
			return err
		}
		t.logger.Warn("Route store unreadable, starting with empty table", slog.Any("err", err))
		stored = map[string]int{}
	}

	routes := make(map[string]int, len(stored))
	for endpoint, port := range stored {
		if Canonicalize(endpoint) != endpoint {
			return fmt.Errorf("%w: endpoint %q is not canonical", store.ErrCorrupt, endpoint)
		}
		if err := ValidateEndpoint(endpoint); err != nil {
			return fmt.Errorf("%w: %v", store.ErrCorrupt, err)
		}
		if err := ValidatePort(port); err != nil {
			return fmt.Errorf("%w: endpoint %q: %v", store.ErrCorrupt, endpoint, err)
		}
		routes[endpoint] = port
	}

	t.mutex.Lock()
	t.routes = routes
	t.mutex.Unlock()

	t.logger.Info("Loaded routes", slog.Int("count", len(routes)))
	return nil
}

func (t *Table) Get(endpoint string) (int, bool) {
	t.mutex.RLock()
	defer t.mutex.RUnlock()

	port, ok := t.routes[endpoint]
	return port, ok
}

// List returns a copy of the table as of the call.
func (t *Table) List() map[string]int {
	t.mutex.RLock()
	defer t.mutex.RUnlock()

	return maps.Clone(t.routes)
}

func (t *Table) Len() int {
	t.mutex.RLock()
	defer t.mutex.RUnlock()

	return len(t.routes)
}

// Set canonicalizes endpoint, validates both arguments, and inserts or
// overwrites the route.
func (t *Table) Set(endpoint string, port int) error {
	endpoint = Canonicalize(endpoint)
	if err := ValidateEndpoint(endpoint); err != nil {
		return err
	}
	if err := ValidatePort(port); err != nil {
		return err
	}

	t.mutex.Lock()
	defer t.mutex.Unlock()

	t.routes[endpoint] = port
	t.logger.Info("Route set", slog.String("endpoint", endpoint), slog.Int("port", port))

	return t.persist()
}

// Delete removes endpoint if present. Removing an absent endpoint succeeds
// without touching the store.
func (t *Table) Delete(endpoint string) error {
	endpoint = Canonicalize(endpoint)
	if err := ValidateEndpoint(endpoint); err != nil {
		return err
	}

	t.mutex.Lock()
	defer t.mutex.Unlock()

	if _, ok := t.routes[endpoint]; !ok {
		return nil
	}

	delete(t.routes, endpoint)
	t.logger.Info("Route deleted", slog.String("endpoint", endpoint))

	return t.persist()
}

// Rename moves the port held by oldEndpoint to newEndpoint, overwriting any
// route already stored under newEndpoint.
func (t *Table) Rename(oldEndpoint, newEndpoint string) error {
	oldEndpoint = Canonicalize(oldEndpoint)
	newEndpoint = Canonicalize(newEndpoint)

	t.mutex.Lock()
	defer t.mutex.Unlock()

	port, ok := t.routes[oldEndpoint]
	if !ok {
		return fmt.Errorf("%w: %q", ErrNotFound, oldEndpoint)
	}
	if err := ValidateEndpoint(newEndpoint); err != nil {
		return err
	}
	if oldEndpoint == newEndpoint {
		return nil
	}

	delete(t.routes, oldEndpoint)
	t.routes[newEndpoint] = port
	t.logger.Info("Route renamed",
		slog.String("from", oldEndpoint),
		slog.String("to", newEndpoint),
		slog.Int("port", port))

	return t.persist()
}

// persist must be called with the write lock held.
func (t *Table) persist() error {
	if err := t.store.Save(maps.Clone(t.routes)); err != nil {
		t.logger.Error("Failed to persist routes", slog.Any("err", err))
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return nil
}
