package services

import (
	"context"
	"fmt"
	"net/http"

	"github.com/dmitrijs2005/gophguard/internal/common"
	"github.com/dmitrijs2005/gophguard/internal/dbx"
	"github.com/dmitrijs2005/gophguard/internal/logging"
	"github.com/dmitrijs2005/gophguard/internal/server/models"
	"github.com/dmitrijs2005/gophguard/internal/server/repositories/repomanager"
)

// UserService creates bare user accounts for operators.
type UserService struct {
	tx     dbx.Transactor
	repos  repomanager.RepositoryManager
	logger logging.Logger
}

func NewUserService(tx dbx.Transactor, repos repomanager.RepositoryManager, logger logging.Logger) *UserService {
	return &UserService{tx: tx, repos: repos, logger: logger.With("module", "users")}
}

// Provision creates an account with the given permission level.
func (s *UserService) Provision(ctx context.Context, level models.PermissionLevel) (*models.UserAccount, error) {
	if !level.Valid() {
		return nil, common.NewAppError(http.StatusBadRequest, fmt.Sprintf("Unknown permission level %q.", level))
	}

	user, err := s.repos.Users(s.tx.Conn()).Create(ctx, &models.UserAccount{PermissionLevel: level})
	if err != nil {
		return nil, fmt.Errorf("error creating user: %w", err)
	}

	s.logger.Info(ctx, "user provisioned", "user_id", user.ID, "permission_level", level)
	return user, nil
}

// Get returns the account or common.ErrUserNotFound.
func (s *UserService) Get(ctx context.Context, id string) (*models.UserAccount, error) {
	return findUser(ctx, s.repos, s.tx.Conn(), id)
}
