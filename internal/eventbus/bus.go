// Package eventbus provides the conduit's pub/sub fan-out: conduit_updated
// wakes talk/listen waiters, status_changed drives the claimer presence
// tracker and invite_list freshness.
package eventbus

import (
	"context"
	"fmt"
	"sync"
)

// Kind names an event topic.
type Kind string

const (
	KindConduitUpdated Kind = "conduit_updated"
	KindStatusChanged  Kind = "status_changed"
)

// Event is broadcast by a Bus to subscribers filtering on the same
// (organization, token).
type Event struct {
	Kind           Kind
	OrganizationID string
	Token          [16]byte
	Status         string // populated for KindStatusChanged
}

// Subscription is a live registration returned by Subscribe. Callers read
// from C until they call Close, after which no further sends occur.
type Subscription struct {
	C     <-chan Event
	Close func()
}

// Bus publishes events and lets callers subscribe to a single (org, token)
// filter. A conforming Bus delivers every Publish to every Subscription
// registered for the same (org, token) at publish time, across backend
// processes when the driver is distributed (§4.C).
type Bus interface {
	Publish(ctx context.Context, ev Event) error

	// Subscribe filters to a single (org, token): used by the conduit
	// engine's waiting loop.
	Subscribe(ctx context.Context, org string, token [16]byte) (*Subscription, error)

	// SubscribeOrg filters to every event for an organization regardless
	// of token: used by the claimer presence tracker, which watches
	// status_changed across all of an org's invitations.
	SubscribeOrg(ctx context.Context, org string) (*Subscription, error)

	Close() error
}

// Driver constructs a Bus from configuration.
type Driver interface {
	Name() string
	Open(ctx context.Context, cfg map[string]any) (Bus, error)
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Driver)
)

// Register adds a driver to the registry, called from a driver package's
// init() via a blank import.
func Register(d Driver) {
	registryMu.Lock()
	defer registryMu.Unlock()

	name := d.Name()
	if _, exists := registry[name]; exists {
		panic(fmt.Sprintf("eventbus: driver %q already registered", name))
	}
	registry[name] = d
}

// Open constructs a Bus using the named driver.
func Open(ctx context.Context, name string, cfg map[string]any) (Bus, error) {
	registryMu.RLock()
	d, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("eventbus: unknown driver %q", name)
	}
	return d.Open(ctx, cfg)
}
