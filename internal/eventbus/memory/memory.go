// Package memory provides an in-process eventbus.Bus driver. Suitable for a
// single-backend deployment or tests; it does not fan out across processes.
package memory

import (
	"context"
	"sync"

	"github.com/scille-labs/invite-conduit/internal/eventbus"
)

func init() {
	eventbus.Register(driver{})
}

type driver struct{}

func (driver) Name() string { return "memory" }

func (driver) Open(ctx context.Context, cfg map[string]any) (eventbus.Bus, error) {
	return New(), nil
}

func key(org string, token [16]byte) string {
	return org + "\x00" + string(token[:])
}

// Bus is an in-process, in-memory eventbus.Bus.
type Bus struct {
	mu      sync.Mutex
	subs    map[string]map[chan eventbus.Event]struct{} // per (org, token)
	orgSubs map[string]map[chan eventbus.Event]struct{} // per org, all tokens
}

// New creates an empty in-process bus.
func New() *Bus {
	return &Bus{
		subs:    make(map[string]map[chan eventbus.Event]struct{}),
		orgSubs: make(map[string]map[chan eventbus.Event]struct{}),
	}
}

func send(ch chan eventbus.Event, ev eventbus.Event) {
	select {
	case ch <- ev:
	default:
		// Slow subscriber: drop. Waiters re-check state on wake and
		// treat missed sends as spurious, per the bus's best-effort
		// delivery contract.
	}
}

func (b *Bus) Publish(ctx context.Context, ev eventbus.Event) error {
	k := key(ev.OrganizationID, ev.Token)

	// Sends are non-blocking, so they run under the lock: a subscription's
	// Close removes its channel under the same lock before closing it, so
	// no send can reach a closed channel.
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs[k] {
		send(ch, ev)
	}
	for ch := range b.orgSubs[ev.OrganizationID] {
		send(ch, ev)
	}
	return nil
}

func (b *Bus) Subscribe(ctx context.Context, org string, token [16]byte) (*eventbus.Subscription, error) {
	k := key(org, token)
	ch := make(chan eventbus.Event, 4)

	b.mu.Lock()
	if b.subs[k] == nil {
		b.subs[k] = make(map[chan eventbus.Event]struct{})
	}
	b.subs[k][ch] = struct{}{}
	b.mu.Unlock()

	closeOnce := sync.Once{}
	closeFn := func() {
		closeOnce.Do(func() {
			b.mu.Lock()
			delete(b.subs[k], ch)
			if len(b.subs[k]) == 0 {
				delete(b.subs, k)
			}
			b.mu.Unlock()
			close(ch)
		})
	}

	return &eventbus.Subscription{C: ch, Close: closeFn}, nil
}

func (b *Bus) SubscribeOrg(ctx context.Context, org string) (*eventbus.Subscription, error) {
	ch := make(chan eventbus.Event, 16)

	b.mu.Lock()
	if b.orgSubs[org] == nil {
		b.orgSubs[org] = make(map[chan eventbus.Event]struct{})
	}
	b.orgSubs[org][ch] = struct{}{}
	b.mu.Unlock()

	closeOnce := sync.Once{}
	closeFn := func() {
		closeOnce.Do(func() {
			b.mu.Lock()
			delete(b.orgSubs[org], ch)
			if len(b.orgSubs[org]) == 0 {
				delete(b.orgSubs, org)
			}
			b.mu.Unlock()
			close(ch)
		})
	}

	return &eventbus.Subscription{C: ch, Close: closeFn}, nil
}

func (b *Bus) Close() error { return nil }

var _ eventbus.Bus = (*Bus)(nil)
