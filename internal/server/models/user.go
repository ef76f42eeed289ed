// Package models defines server-side data models persisted in the database.
package models

import "time"

// UserAccount is the authentication-relevant part of a user record.
// FailedLoginAttempts counts consecutive failures since the last success;
// LockoutUntil, when set and in the future, blocks every login attempt.
type UserAccount struct {
	ID                  string
	PermissionLevel     PermissionLevel
	FailedLoginAttempts int
	LockoutUntil        *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// LockedAt reports whether the account is locked at instant now.
func (u *UserAccount) LockedAt(now time.Time) bool {
	return u.LockoutUntil != nil && u.LockoutUntil.After(now)
}
