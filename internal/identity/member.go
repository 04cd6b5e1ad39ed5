// Package identity provides the organization-scoped member directory backing
// the AUTHENTICATED handshake: who a greeter is, and whether their profile
// allows creating USER invitations.
package identity

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrMemberNotFound = errors.New("member not found")
	ErrMemberExists   = errors.New("member already exists")
	ErrInvalidPassword = errors.New("invalid password")
)

// Profile is the authorization level of an organization member, carried by
// the AUTHENTICATED handshake per spec.md §6.
type Profile string

const (
	ProfileAdmin    Profile = "ADMIN"
	ProfileStandard Profile = "STANDARD"
	ProfileOutsider Profile = "OUTSIDER"
)

// Member is a user within an organization.
type Member struct {
	OrganizationID string
	UserID         string // unique within OrganizationID
	Username       string // login name, unique within OrganizationID
	DisplayName    string
	PasswordHash   string // bcrypt, never serialized
	Profile        Profile
	CreatedAt      time.Time
}

// IsAdmin reports whether the member may create USER invitations.
func (m *Member) IsAdmin() bool {
	return m.Profile == ProfileAdmin
}

// MemberStore provides organization-scoped member storage and lookup.
type MemberStore interface {
	Create(ctx context.Context, m *Member) error
	Get(ctx context.Context, org, userID string) (*Member, error)
	GetByUsername(ctx context.Context, org, username string) (*Member, error)
}

// MemoryMemberStore is an in-memory MemberStore, keyed by organization.
type MemoryMemberStore struct {
	mu         sync.RWMutex
	byUserID   map[string]*Member // "org\x00userID" -> member
	byUsername map[string]string  // "org\x00username" -> userID
}

// NewMemoryMemberStore creates an empty in-memory member store.
func NewMemoryMemberStore() *MemoryMemberStore {
	return &MemoryMemberStore{
		byUserID:   make(map[string]*Member),
		byUsername: make(map[string]string),
	}
}

func orgKey(org, id string) string {
	return org + "\x00" + id
}

func (s *MemoryMemberStore) Create(ctx context.Context, m *Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byUsername[orgKey(m.OrganizationID, m.Username)]; exists {
		return ErrMemberExists
	}

	if m.UserID == "" {
		m.UserID = newOpaqueID()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}

	cp := *m
	s.byUserID[orgKey(m.OrganizationID, m.UserID)] = &cp
	s.byUsername[orgKey(m.OrganizationID, m.Username)] = m.UserID
	return nil
}

func (s *MemoryMemberStore) Get(ctx context.Context, org, userID string) (*Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.byUserID[orgKey(org, userID)]
	if !ok {
		return nil, ErrMemberNotFound
	}
	cp := *m
	return &cp, nil
}

func (s *MemoryMemberStore) GetByUsername(ctx context.Context, org, username string) (*Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	userID, ok := s.byUsername[orgKey(org, username)]
	if !ok {
		return nil, ErrMemberNotFound
	}
	m := s.byUserID[orgKey(org, userID)]
	cp := *m
	return &cp, nil
}

// newOpaqueID generates a random identifier for members created without an
// explicit UserID.
func newOpaqueID() string {
	return uuid.NewString()
}
