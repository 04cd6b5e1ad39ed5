// Package memory provides an in-memory InvitationStore driver, suitable for
// tests and single-process deployments.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/scille-labs/invite-conduit/internal/store"
)

func init() {
	store.Register(driver{})
}

type driver struct{}

func (driver) Name() string { return "memory" }

func (driver) Open(ctx context.Context, dataDir string) (store.InvitationStore, error) {
	return New(), nil
}

// Store is an in-memory, organization-scoped InvitationStore.
type Store struct {
	mu   sync.RWMutex
	byID map[string]*store.Invitation // "org\x00token" -> invitation
}

// New creates an empty in-memory invitation store.
func New() *Store {
	return &Store{byID: make(map[string]*store.Invitation)}
}

func key(org string, token [16]byte) string {
	return org + "\x00" + string(token[:])
}

func (s *Store) Create(ctx context.Context, org string, kind store.Kind, greeterUserID, greeterHumanHandle, claimerEmail string) (*store.Invitation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var token [16]byte
	for {
		token = store.NewToken()
		if _, exists := s.byID[key(org, token)]; !exists {
			break
		}
	}

	inv := &store.Invitation{
		OrganizationID:     org,
		Token:              token,
		Kind:               kind,
		GreeterUserID:      greeterUserID,
		GreeterHumanHandle: greeterHumanHandle,
		ClaimerEmail:       claimerEmail,
		CreatedOn:          time.Now(),
		Status:             store.StatusIdle,
	}

	cp := *inv
	s.byID[key(org, token)] = &cp
	return inv, nil
}

func (s *Store) Get(ctx context.Context, org string, token [16]byte) (*store.Invitation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	inv, ok := s.byID[key(org, token)]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *inv
	return &cp, nil
}

func (s *Store) Delete(ctx context.Context, org, greeterUserID string, token [16]byte, on time.Time, reason store.DeletedReason) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	inv, ok := s.byID[key(org, token)]
	if !ok || inv.GreeterUserID != greeterUserID {
		return store.ErrNotFound
	}
	if inv.Status == store.StatusDeleted {
		return store.ErrAlreadyDeleted
	}

	inv.Status = store.StatusDeleted
	inv.DeletedOn = on
	inv.DeletedReason = reason
	return nil
}

func (s *Store) List(ctx context.Context, org, greeterUserID string) ([]*store.Invitation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*store.Invitation, 0)
	for _, inv := range s.byID {
		if inv.OrganizationID == org && inv.GreeterUserID == greeterUserID {
			cp := *inv
			out = append(out, &cp)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedOn.Equal(out[j].CreatedOn) {
			return out[i].CreatedOn.Before(out[j].CreatedOn)
		}
		return string(out[i].Token[:]) < string(out[j].Token[:])
	})
	return out, nil
}

func (s *Store) SetReady(ctx context.Context, org string, token [16]byte, ready bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	inv, ok := s.byID[key(org, token)]
	if !ok || inv.Status == store.StatusDeleted {
		return nil
	}
	if ready {
		inv.Status = store.StatusReady
	} else {
		inv.Status = store.StatusIdle
	}
	return nil
}
