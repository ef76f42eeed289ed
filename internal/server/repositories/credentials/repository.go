// Package credentials declares the repository contract for email/password
// credentials bound to user accounts.
package credentials

import (
	"context"

	"github.com/dmitrijs2005/gophguard/internal/server/models"
)

type Repository interface {
	// Create stores a credential. A duplicate user or email yields
	// common.ErrorAlreadyExists.
	Create(ctx context.Context, cred *models.Credential) error
	FindByEmail(ctx context.Context, email string) (*models.Credential, error)
	FindByUserID(ctx context.Context, userID string) (*models.Credential, error)
}
