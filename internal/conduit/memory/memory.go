// Package memory provides the in-memory conduit.SlotStore driver. Conduit
// state is ephemeral by design and is not kept across a restart, so this is
// the only slot store driver; there is no transactional variant.
package memory

import (
	"context"
	"sync"

	"github.com/scille-labs/invite-conduit/internal/conduit"
)

func key(org string, token [16]byte) string {
	return org + "\x00" + string(token[:])
}

// Store is an in-memory conduit.SlotStore with one mutex per token.
type Store struct {
	mu    sync.Mutex // protects slots and locks maps
	slots map[string]*conduit.Slot
	locks map[string]*sync.Mutex
}

// New creates an empty in-memory slot store.
func New() *Store {
	return &Store{
		slots: make(map[string]*conduit.Slot),
		locks: make(map[string]*sync.Mutex),
	}
}

func (s *Store) tokenLock(k string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.locks[k]
	if !ok {
		l = &sync.Mutex{}
		s.locks[k] = l
	}
	return l
}

func (s *Store) Lock(ctx context.Context, org string, token [16]byte) (func(), error) {
	l := s.tokenLock(key(org, token))
	l.Lock()
	return l.Unlock, nil
}

func (s *Store) Load(ctx context.Context, org string, token [16]byte) (*conduit.Slot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	slot, ok := s.slots[key(org, token)]
	if !ok {
		return nil, nil
	}
	return slot.Clone(), nil
}

func (s *Store) Save(ctx context.Context, slot *conduit.Slot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.slots[key(slot.OrganizationID, slot.Token)] = slot.Clone()
	return nil
}

func (s *Store) Discard(ctx context.Context, org string, token [16]byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.slots, key(org, token))
	return nil
}

var _ conduit.SlotStore = (*Store)(nil)
