package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/scille-labs/invite-conduit/internal/store"
)

func openTestStore(t *testing.T) store.InvitationStore {
	t.Helper()
	s, err := driver{}.Open(context.Background(), t.TempDir())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	return s
}

func TestStore_CreateGetDelete(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	inv, err := s.Create(ctx, "acme", store.KindUser, "alice", "Alice", "bob@example.com")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	got, err := s.Get(ctx, "acme", inv.Token)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Status != store.StatusIdle {
		t.Errorf("expected IDLE, got %s", got.Status)
	}

	if err := s.Delete(ctx, "acme", "alice", inv.Token, time.Now(), store.ReasonRotten); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	got, err = s.Get(ctx, "acme", inv.Token)
	if err != nil {
		t.Fatalf("Get() after delete error = %v", err)
	}
	if got.Status != store.StatusDeleted || got.DeletedReason != store.ReasonRotten {
		t.Errorf("expected DELETED/ROTTEN, got %s/%s", got.Status, got.DeletedReason)
	}

	if err := s.Delete(ctx, "acme", "alice", inv.Token, time.Now(), store.ReasonRotten); err != store.ErrAlreadyDeleted {
		t.Errorf("expected ErrAlreadyDeleted, got %v", err)
	}
}

func TestStore_Get_NotFound(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Get(context.Background(), "acme", store.NewToken())
	if err != store.ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_List_ScopedByGreeter(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	for i := 0; i < 2; i++ {
		if _, err := s.Create(ctx, "acme", store.KindDevice, "alice", "Alice", ""); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}
	if _, err := s.Create(ctx, "acme", store.KindDevice, "carol", "Carol", ""); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	list, err := s.List(ctx, "acme", "alice")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 invitations for alice, got %d", len(list))
	}
}

func TestStore_SetReady(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	inv, _ := s.Create(ctx, "acme", store.KindDevice, "alice", "Alice", "")
	if err := s.SetReady(ctx, "acme", inv.Token, true); err != nil {
		t.Fatalf("SetReady() error = %v", err)
	}
	got, _ := s.Get(ctx, "acme", inv.Token)
	if got.Status != store.StatusReady {
		t.Errorf("expected READY, got %s", got.Status)
	}
}
