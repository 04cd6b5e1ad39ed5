package identity

import (
	"context"
	"testing"
)

func TestMemoryMemberStore_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryMemberStore()

	m := &Member{OrganizationID: "acme", Username: "alice", Profile: ProfileAdmin}
	if err := store.Create(ctx, m); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if m.UserID == "" {
		t.Fatal("expected UserID to be assigned")
	}

	got, err := store.GetByUsername(ctx, "acme", "alice")
	if err != nil {
		t.Fatalf("GetByUsername() error = %v", err)
	}
	if got.UserID != m.UserID {
		t.Errorf("expected UserID %s, got %s", m.UserID, got.UserID)
	}
	if !got.IsAdmin() {
		t.Error("expected IsAdmin() true for ProfileAdmin")
	}

	if _, err := store.GetByUsername(ctx, "other-org", "alice"); err != ErrMemberNotFound {
		t.Errorf("expected ErrMemberNotFound across orgs, got %v", err)
	}
}

func TestMemoryMemberStore_DuplicateUsername(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryMemberStore()

	if err := store.Create(ctx, &Member{OrganizationID: "acme", Username: "bob"}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	err := store.Create(ctx, &Member{OrganizationID: "acme", Username: "bob"})
	if err != ErrMemberExists {
		t.Errorf("expected ErrMemberExists, got %v", err)
	}
}

func TestAuthenticator_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryMemberStore()
	auth := NewAuthenticator(4) // low cost for fast tests

	hash, err := auth.HashPassword("correct horse battery staple")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}

	m := &Member{OrganizationID: "acme", Username: "carol", PasswordHash: hash, Profile: ProfileStandard}
	if err := store.Create(ctx, m); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if _, err := auth.Authenticate(ctx, store, "acme", "carol", "correct horse battery staple"); err != nil {
		t.Errorf("Authenticate() with correct password error = %v", err)
	}

	if _, err := auth.Authenticate(ctx, store, "acme", "carol", "wrong password"); err != ErrInvalidPassword {
		t.Errorf("expected ErrInvalidPassword, got %v", err)
	}
}
