package models

import "time"

// Credential binds an email and a password hash to exactly one user.
// Rows are immutable once written.
type Credential struct {
	UserID       string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}
