package store

import (
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
)

// NewToken generates a fresh random 128-bit invitation token.
func NewToken() [16]byte {
	return [16]byte(uuid.New())
}

// TokenToString renders a token as lowercase hex.
func TokenToString(t [16]byte) string {
	return hex.EncodeToString(t[:])
}

// TokenFromString parses a hex-encoded token string.
func TokenFromString(s string) ([16]byte, error) {
	var t [16]byte
	b, err := hex.DecodeString(s)
	if err != nil {
		return t, fmt.Errorf("invalid token: %w", err)
	}
	if len(b) != len(t) {
		return t, fmt.Errorf("invalid token length: got %d bytes, want %d", len(b), len(t))
	}
	copy(t[:], b)
	return t, nil
}
