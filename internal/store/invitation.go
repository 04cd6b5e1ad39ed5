// Package store defines the invitation record and its persistence interface
// (component A of the conduit: create, list, delete, status tracking).
package store

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound      = errors.New("invitation not found")
	ErrAlreadyDeleted = errors.New("invitation already deleted")
)

// Kind distinguishes a USER invitation (email-addressed, admin-only to
// create) from a DEVICE invitation (self-service, for enrolling a new
// device of the creating greeter).
type Kind string

const (
	KindUser   Kind = "USER"
	KindDevice Kind = "DEVICE"
)

// Status is the lifecycle state of an invitation.
type Status string

const (
	StatusIdle    Status = "IDLE"
	StatusReady   Status = "READY"
	StatusDeleted Status = "DELETED"
)

// DeletedReason explains why a DELETED invitation was terminated.
type DeletedReason string

const (
	ReasonFinished  DeletedReason = "FINISHED"
	ReasonCancelled DeletedReason = "CANCELLED"
	ReasonRotten    DeletedReason = "ROTTEN"
)

// Invitation is a record identified by (OrganizationID, Token).
type Invitation struct {
	OrganizationID     string
	Token              [16]byte
	Kind               Kind
	GreeterUserID      string
	GreeterHumanHandle string
	ClaimerEmail       string // present iff Kind == KindUser
	CreatedOn          time.Time
	Status             Status
	DeletedOn          time.Time
	DeletedReason      DeletedReason
}

// TokenString renders Token as a lowercase hex string for wire/API use.
func (i *Invitation) TokenString() string {
	return TokenToString(i.Token)
}

// InvitationStore persists invitation records (§4.A).
type InvitationStore interface {
	// Create assigns a fresh random token, persists the record with
	// Status = IDLE, and returns it. The memory driver never fails; the
	// sqlite driver returns the database's write error.
	Create(ctx context.Context, org string, kind Kind, greeterUserID, greeterHumanHandle, claimerEmail string) (*Invitation, error)

	// Get returns the invitation, including deleted ones. Returns
	// ErrNotFound if no record exists for (org, token).
	Get(ctx context.Context, org string, token [16]byte) (*Invitation, error)

	// Delete transitions the invitation to DELETED, recording the reason
	// and timestamp. It publishes no event; the invite_delete handler
	// publishes status_changed(DELETED) after a successful Delete.
	// Returns ErrNotFound if absent or not owned by greeterUserID.
	// Returns ErrAlreadyDeleted if already DELETED.
	Delete(ctx context.Context, org, greeterUserID string, token [16]byte, on time.Time, reason DeletedReason) error

	// List returns invitations created by greeterUserID, ordered by
	// CreatedOn ascending, tie-broken by Token byte order.
	List(ctx context.Context, org, greeterUserID string) ([]*Invitation, error)

	// SetReady marks (or unmarks, if ready=false) an invitation's soft
	// READY status, reflecting claimer connection presence. Deleted
	// invitations are left untouched.
	SetReady(ctx context.Context, org string, token [16]byte, ready bool) error
}
