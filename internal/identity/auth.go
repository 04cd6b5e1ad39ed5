package identity

import (
	"context"

	"golang.org/x/crypto/bcrypt"
)

// Authenticator handles password hashing and verification for members.
type Authenticator struct {
	cost int // bcrypt cost factor
}

// NewAuthenticator creates an Authenticator with the given bcrypt cost.
// A cost below bcrypt.MinCost falls back to bcrypt.DefaultCost.
func NewAuthenticator(cost int) *Authenticator {
	if cost < bcrypt.MinCost {
		cost = bcrypt.DefaultCost
	}
	return &Authenticator{cost: cost}
}

// HashPassword returns the bcrypt hash of password.
func (a *Authenticator) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), a.cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// Authenticate verifies a member's credentials and returns the member on
// success. Returns ErrMemberNotFound or ErrInvalidPassword on failure.
func (a *Authenticator) Authenticate(ctx context.Context, store MemberStore, org, username, password string) (*Member, error) {
	m, err := store.GetByUsername(ctx, org, username)
	if err != nil {
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(m.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidPassword
	}

	return m, nil
}
