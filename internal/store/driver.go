package store

import (
	"context"
	"fmt"
	"sync"
)

// Driver constructs an InvitationStore from the configured store data
// directory (store.data_dir).
type Driver interface {
	// Name is the registered driver name, e.g. "memory" or "sqlite".
	Name() string

	// Open constructs a ready-to-use InvitationStore. dataDir is the
	// store's data directory, empty for drivers that don't persist to
	// disk.
	Open(ctx context.Context, dataDir string) (InvitationStore, error)
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Driver)
)

// Register adds a driver to the registry. Intended to be called from a
// driver package's init() via a blank import.
func Register(d Driver) {
	registryMu.Lock()
	defer registryMu.Unlock()

	name := d.Name()
	if _, exists := registry[name]; exists {
		panic(fmt.Sprintf("store: driver %q already registered", name))
	}
	registry[name] = d
}

// Open constructs an InvitationStore using the named driver.
func Open(ctx context.Context, name, dataDir string) (InvitationStore, error) {
	registryMu.RLock()
	d, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("store: unknown driver %q", name)
	}
	return d.Open(ctx, dataDir)
}

// AvailableDrivers returns the names of all registered drivers.
func AvailableDrivers() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	return names
}
