// Package mfa declares the repository contract for per-user TOTP enrollments.
package mfa

import (
	"context"

	"github.com/dmitrijs2005/gophguard/internal/server/models"
)

type Repository interface {
	// FindByUserID returns common.ErrorNotFound when the user has no enrollment.
	FindByUserID(ctx context.Context, userID string) (*models.MfaEnrollment, error)

	// Provision stores secret as a disabled enrollment unless one already
	// exists, and returns whichever row is stored afterwards. Concurrent
	// callers therefore all observe the same secret.
	Provision(ctx context.Context, userID, secret string) (*models.MfaEnrollment, error)

	// Activate marks the enrollment enabled. It returns false when there is
	// no enrollment to activate.
	Activate(ctx context.Context, userID string) (bool, error)

	// Delete removes the enrollment and its secret. Deleting nothing is not an error.
	Delete(ctx context.Context, userID string) error
}
