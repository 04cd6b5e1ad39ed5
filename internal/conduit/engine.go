package conduit

import (
	"bytes"
	"context"
	"errors"
	"time"

	"github.com/scille-labs/invite-conduit/internal/eventbus"
	"github.com/scille-labs/invite-conduit/internal/store"
)

// ErrPeerEventTimeout surfaces PEER_EVENT_MAX_WAIT expiry (§5). Callers
// should treat this as a transport-level failure, not a conduit error code.
var ErrPeerEventTimeout = errors.New("conduit: timed out waiting for peer")

// Engine is the state-machine kernel (component D): talk deposits a
// payload and maybe consumes the peer's; listen waits and consumes.
// ConduitExchange composes both into the compound operation exposed to the
// invitation API.
type Engine struct {
	invitations      store.InvitationStore
	slots            SlotStore
	bus              eventbus.Bus
	peerEventMaxWait time.Duration
}

// NewEngine builds an Engine over the given invitation store, slot store,
// and event bus. peerEventMaxWait bounds how long ConduitExchange waits for
// the peer before failing with ErrPeerEventTimeout.
func NewEngine(invitations store.InvitationStore, slots SlotStore, bus eventbus.Bus, peerEventMaxWait time.Duration) *Engine {
	return &Engine{
		invitations:      invitations,
		slots:            slots,
		bus:              bus,
		peerEventMaxWait: peerEventMaxWait,
	}
}

// listenContext is returned by talk and consumed by each subsequent listen
// attempt in ConduitExchange's waiting loop.
type listenContext struct {
	state      State
	ourPayload []byte
}

// ConduitExchange implements talk followed by one or more listen calls,
// reacting to conduit_updated (§4.D). It subscribes before calling talk to
// avoid lost wakeups (§4.D.3, §5).
func (e *Engine) ConduitExchange(ctx context.Context, org string, side Side, token [16]byte, expectedState State, payload []byte) ([]byte, error) {
	sub, err := e.bus.Subscribe(ctx, org, token)
	if err != nil {
		return nil, err
	}
	defer sub.Close()

	lctx, err := e.talk(ctx, org, side, token, expectedState, payload)
	if err != nil {
		return nil, err
	}

	deadline := time.Now().Add(e.peerEventMaxWait)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, ErrPeerEventTimeout
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-sub.C:
			// Spurious wakes are expected; listen re-checks state.
		case <-time.After(remaining):
			return nil, ErrPeerEventTimeout
		}

		result, err := e.listen(ctx, org, side, token, lctx)
		if err != nil {
			return nil, err
		}
		if result != nil {
			return result, nil
		}
	}
}

// checkInvitation returns the invitation's current status, translating
// store errors into engine errors.
func (e *Engine) checkInvitation(ctx context.Context, org string, token [16]byte) error {
	inv, err := e.invitations.Get(ctx, org, token)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	if inv.Status == store.StatusDeleted {
		return ErrAlreadyDeleted
	}
	return nil
}

// talk is the atomic deposit step (§4.D.1).
func (e *Engine) talk(ctx context.Context, org string, side Side, token [16]byte, expectedState State, payload []byte) (*listenContext, error) {
	unlock, err := e.slots.Lock(ctx, org, token)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if err := e.checkInvitation(ctx, org, token); err != nil {
		return nil, err
	}

	slot, err := e.slots.Load(ctx, org, token)
	if err != nil {
		return nil, err
	}
	if slot == nil {
		slot = NewSlot(org, token)
	}

	// State reconciliation: proceed only if the caller's expected state
	// exactly matches the slot and, if this side already deposited for
	// this state, the deposit is identical. Any other case resets the
	// slot to the caller's state (§9: reset uniformly, both sides).
	matches := slot.State == expectedState
	if matches {
		if existing := slot.payload(side); existing != nil && !bytes.Equal(existing, payload) {
			matches = false
		}
	}
	if !matches {
		slot.resetTo(expectedState)
	}

	slot.setPayload(side, payload)

	if slot.peerPayload(side) != nil {
		// The peer already deposited; the next listen call will hand its
		// payload straight back, so this side has, in effect, consumed it.
		slot.setConsumed(side, true)
	}

	if err := e.slots.Save(ctx, slot); err != nil {
		return nil, err
	}
	if err := e.bus.Publish(ctx, eventbus.Event{Kind: eventbus.KindConduitUpdated, OrganizationID: org, Token: token}); err != nil {
		return nil, err
	}

	return &listenContext{state: expectedState, ourPayload: append([]byte(nil), payload...)}, nil
}

// listen is the atomic wait-and-consume step (§4.D.2). It returns (nil, nil)
// when the peer has not yet deposited, signalling the caller to wait for
// the next conduit_updated and retry.
func (e *Engine) listen(ctx context.Context, org string, side Side, token [16]byte, lctx *listenContext) ([]byte, error) {
	unlock, err := e.slots.Lock(ctx, org, token)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if err := e.checkInvitation(ctx, org, token); err != nil {
		return nil, err
	}

	slot, err := e.slots.Load(ctx, org, token)
	if err != nil {
		return nil, err
	}
	if slot == nil {
		return nil, ErrNotFound
	}

	if slot.State != lctx.state || !bytes.Equal(slot.payload(side), lctx.ourPayload) {
		return nil, ErrInvalidState
	}

	peer := slot.peerPayload(side)
	if peer == nil {
		return nil, nil
	}
	result := append([]byte(nil), peer...)

	slot.setConsumed(side, true)
	if slot.ClaimerConsumed && slot.GreeterConsumed {
		slot.advance()
	}

	if err := e.slots.Save(ctx, slot); err != nil {
		return nil, err
	}
	if err := e.bus.Publish(ctx, eventbus.Event{Kind: eventbus.KindConduitUpdated, OrganizationID: org, Token: token}); err != nil {
		return nil, err
	}

	return result, nil
}
