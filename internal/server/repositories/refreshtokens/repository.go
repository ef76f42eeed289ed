// Package refreshtokens declares the server-side repository contract for the
// refresh token ledger. Only token hashes are stored.
package refreshtokens

import (
	"context"
	"time"

	"github.com/dmitrijs2005/gophguard/internal/server/models"
)

// Repository defines operations for issuing, looking up and revoking refresh tokens.
type Repository interface {
	// Create stores a new ledger row and returns it with its generated ID.
	Create(ctx context.Context, userID, tokenHash string, expiresAt time.Time) (*models.RefreshToken, error)

	// FindValid returns the row for tokenHash if it is unrevoked and
	// unexpired at now, otherwise common.ErrorNotFound.
	FindValid(ctx context.Context, tokenHash string, now time.Time) (*models.RefreshToken, error)

	// LockValid is FindValid with a row lock held until the surrounding
	// transaction ends. It must be called on a transaction-bound repository.
	LockValid(ctx context.Context, tokenHash string, now time.Time) (*models.RefreshToken, error)

	// FindByHash returns the row for tokenHash regardless of its state.
	FindByHash(ctx context.Context, tokenHash string) (*models.RefreshToken, error)

	// Revoke marks an unrevoked row revoked at now, optionally linking it to
	// its successor. It returns false when the row was already revoked or absent.
	Revoke(ctx context.Context, id string, replacedBy *string, now time.Time) (bool, error)

	// RevokeSuccessors revokes every still-valid row reachable from id via
	// replaced_by and returns how many rows changed.
	RevokeSuccessors(ctx context.Context, id string, now time.Time) (int64, error)
}
