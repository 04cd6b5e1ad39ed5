package conduit

import "context"

// SlotStore holds per-token ephemeral conduit slots under a per-token mutual
// exclusion (§4.B, §5). Implementations must make Load/mutate/Save appear
// atomic relative to concurrent callers for the same token.
type SlotStore interface {
	// Lock acquires the per-token mutual exclusion for (org, token) and
	// returns a function that releases it. Callers must call unlock
	// exactly once.
	Lock(ctx context.Context, org string, token [16]byte) (unlock func(), err error)

	// Load returns the slot for (org, token), or (nil, nil) if none has
	// been created yet. Callers hold the token's lock before calling.
	Load(ctx context.Context, org string, token [16]byte) (*Slot, error)

	// Save atomically persists slot. Callers hold the token's lock.
	Save(ctx context.Context, slot *Slot) error

	// Discard removes any slot for (org, token), e.g. on invitation
	// delete. Safe to call when no slot exists.
	Discard(ctx context.Context, org string, token [16]byte) error
}
