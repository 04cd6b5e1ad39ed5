package conduit

import "errors"

var (
	ErrNotFound       = errors.New("conduit: invitation not found")
	ErrAlreadyDeleted = errors.New("conduit: invitation already deleted")
	ErrInvalidState   = errors.New("conduit: peer reset the conduit")
)

// Slot is the ephemeral per-token conduit state (§3, "Conduit slot").
// A slot is created on the first talk for a non-deleted invitation. Deleting
// the invitation does not discard the slot; every talk and listen checks
// the invitation's status first and fails once it is DELETED.
type Slot struct {
	OrganizationID string
	Token          [16]byte

	State State

	ClaimerPayload []byte // nil until the claimer deposits for State
	GreeterPayload []byte // nil until the greeter deposits for State

	ClaimerConsumed bool // true once the claimer has observed GreeterPayload
	GreeterConsumed bool // true once the greeter has observed ClaimerPayload
}

// NewSlot creates a fresh slot at STATE_1_WAIT_PEERS.
func NewSlot(org string, token [16]byte) *Slot {
	return &Slot{
		OrganizationID: org,
		Token:          token,
		State:          State1WaitPeers,
	}
}

// advance resets payloads and consumed flags and moves to Next(s.State).
func (s *Slot) advance() {
	s.State = Next(s.State)
	s.ClaimerPayload = nil
	s.GreeterPayload = nil
	s.ClaimerConsumed = false
	s.GreeterConsumed = false
}

// resetTo rewinds the slot to target, clearing all payloads and flags. Used
// when a side's call doesn't match the slot's current state (§4.D.1).
func (s *Slot) resetTo(target State) {
	s.State = target
	s.ClaimerPayload = nil
	s.GreeterPayload = nil
	s.ClaimerConsumed = false
	s.GreeterConsumed = false
}

func (s *Slot) payload(side Side) []byte {
	if side == SideGreeter {
		return s.GreeterPayload
	}
	return s.ClaimerPayload
}

func (s *Slot) peerPayload(side Side) []byte {
	if side == SideGreeter {
		return s.ClaimerPayload
	}
	return s.GreeterPayload
}

func (s *Slot) setPayload(side Side, payload []byte) {
	if side == SideGreeter {
		s.GreeterPayload = payload
	} else {
		s.ClaimerPayload = payload
	}
}

func (s *Slot) consumed(side Side) bool {
	if side == SideGreeter {
		return s.GreeterConsumed
	}
	return s.ClaimerConsumed
}

func (s *Slot) setConsumed(side Side, v bool) {
	if side == SideGreeter {
		s.GreeterConsumed = v
	} else {
		s.ClaimerConsumed = v
	}
}

func (s *Slot) peerConsumed(side Side) bool {
	if side == SideGreeter {
		return s.ClaimerConsumed
	}
	return s.GreeterConsumed
}

// Clone returns a deep-enough copy safe to hand to callers outside the
// store's lock.
func (s *Slot) Clone() *Slot {
	cp := *s
	if s.ClaimerPayload != nil {
		cp.ClaimerPayload = append([]byte(nil), s.ClaimerPayload...)
	}
	if s.GreeterPayload != nil {
		cp.GreeterPayload = append([]byte(nil), s.GreeterPayload...)
	}
	return &cp
}
