// Package users declares the repository contract for user accounts and the
// login-failure bookkeeping stored on them.
package users

import (
	"context"
	"time"

	"github.com/dmitrijs2005/gophguard/internal/server/models"
)

// Repository persists UserAccount rows.
type Repository interface {
	// Create inserts a new account with zeroed failure counters. An empty
	// user.ID is replaced with a freshly generated UUID.
	Create(ctx context.Context, user *models.UserAccount) (*models.UserAccount, error)

	// FindByID returns common.ErrorNotFound when the account does not exist.
	FindByID(ctx context.Context, id string) (*models.UserAccount, error)

	// RecordLoginFailure atomically increments the failure counter and, when
	// the new count reaches maxAttempts, sets lockout_until to lockoutUntil.
	// Below the threshold lockout_until is cleared. The updated row is returned.
	RecordLoginFailure(ctx context.Context, id string, maxAttempts int, lockoutUntil time.Time) (*models.UserAccount, error)

	// ResetLoginFailures zeroes the counter and clears any lockout.
	ResetLoginFailures(ctx context.Context, id string) error
}
