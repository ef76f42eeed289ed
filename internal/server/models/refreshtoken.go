package models

import "time"

// RefreshToken is a ledger row. Only the SHA-256 hash of the opaque token is
// stored. Rotation revokes a row and points ReplacedBy at its successor.
type RefreshToken struct {
	ID         string
	UserID     string
	TokenHash  string
	ExpiresAt  time.Time
	CreatedAt  time.Time
	RevokedAt  *time.Time
	ReplacedBy *string
}

// Valid reports whether the token is unrevoked and unexpired at now.
func (t *RefreshToken) Valid(now time.Time) bool {
	return t.RevokedAt == nil && t.ExpiresAt.After(now)
}
