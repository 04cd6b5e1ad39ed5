// Package presence tracks which invitation tokens currently have a
// connected claimer (component F). It is soft state: a backend restart
// empties the tracker, and it re-populates as claimers reconnect.
package presence

import (
	"context"
	"sync"

	"github.com/scille-labs/invite-conduit/internal/eventbus"
)

// Tracker is an in-memory, per-organization set of tokens whose claimer is
// currently connected.
type Tracker struct {
	mu    sync.RWMutex
	ready map[string]map[[16]byte]struct{} // org -> set of tokens
}

// New creates an empty Tracker.
func New() *Tracker {
	return &Tracker{ready: make(map[string]map[[16]byte]struct{})}
}

// IsReady reports whether a claimer is currently tracked as connected for
// (org, token).
func (t *Tracker) IsReady(org string, token [16]byte) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	_, ok := t.ready[org][token]
	return ok
}

func (t *Tracker) setReady(org string, token [16]byte, ready bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if ready {
		if t.ready[org] == nil {
			t.ready[org] = make(map[[16]byte]struct{})
		}
		t.ready[org][token] = struct{}{}
		return
	}

	delete(t.ready[org], token)
	if len(t.ready[org]) == 0 {
		delete(t.ready, org)
	}
}

// Run subscribes to status_changed events for org and updates the tracker
// until ctx is cancelled or the subscription ends. Call it in its own
// goroutine per organization of interest, or once per tenant at startup.
func (t *Tracker) Run(ctx context.Context, bus eventbus.Bus, org string) error {
	sub, err := bus.SubscribeOrg(ctx, org)
	if err != nil {
		return err
	}
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-sub.C:
			if !ok {
				return nil
			}
			if ev.Kind != eventbus.KindStatusChanged {
				continue
			}
			t.setReady(ev.OrganizationID, ev.Token, ev.Status == "READY")
		}
	}
}
