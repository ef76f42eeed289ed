package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"unicode/utf8"

	"github.com/dmitrijs2005/gophguard/internal/common"
	"github.com/dmitrijs2005/gophguard/internal/dbx"
	"github.com/dmitrijs2005/gophguard/internal/logging"
	"github.com/dmitrijs2005/gophguard/internal/server/auth"
	"github.com/dmitrijs2005/gophguard/internal/server/models"
	"github.com/dmitrijs2005/gophguard/internal/server/repositories/repomanager"
)

const minPasswordLength = 8

// CreateCredentialsInput binds an email and password to an existing user.
type CreateCredentialsInput struct {
	UserID          string
	Email           string
	Password        string
	ConfirmPassword string
}

// CredentialService provisions login credentials for existing users.
type CredentialService struct {
	tx     dbx.Transactor
	repos  repomanager.RepositoryManager
	hasher auth.PasswordHasher
	logger logging.Logger
}

func NewCredentialService(tx dbx.Transactor, repos repomanager.RepositoryManager, hasher auth.PasswordHasher, logger logging.Logger) *CredentialService {
	return &CredentialService{
		tx:     tx,
		repos:  repos,
		hasher: hasher,
		logger: logger.With("module", "credentials"),
	}
}

// Create validates the password, checks that the user exists and has no
// credential yet and that the email is free, then stores the bcrypt hash.
func (s *CredentialService) Create(ctx context.Context, in CreateCredentialsInput) error {
	if in.Password != in.ConfirmPassword {
		return common.ErrPasswordMismatch
	}
	if err := CheckPasswordPolicy(in.Password); err != nil {
		return err
	}

	conn := s.tx.Conn()
	if _, err := findUser(ctx, s.repos, conn, in.UserID); err != nil {
		return err
	}

	repo := s.repos.Credentials(conn)

	if _, err := repo.FindByUserID(ctx, in.UserID); err == nil {
		return common.ErrCredentialsExist
	} else if !errors.Is(err, common.ErrorNotFound) {
		return fmt.Errorf("error searching credentials: %w", err)
	}

	if _, err := repo.FindByEmail(ctx, in.Email); err == nil {
		return common.ErrEmailInUse
	} else if !errors.Is(err, common.ErrorNotFound) {
		return fmt.Errorf("error searching credentials: %w", err)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return fmt.Errorf("error hashing password: %w", err)
	}

	cred := &models.Credential{UserID: in.UserID, Email: in.Email, PasswordHash: hash}
	if err := repo.Create(ctx, cred); err != nil {
		if errors.Is(err, common.ErrorAlreadyExists) {
			// Lost a race with a concurrent Create for the same email or user.
			return common.ErrEmailInUse
		}
		return fmt.Errorf("error creating credentials: %w", err)
	}

	s.logger.Info(ctx, "credentials created", "user_id", in.UserID)
	return nil
}

// CheckPasswordPolicy reports the first rule password breaks as a 400 AppError.
func CheckPasswordPolicy(password string) error {
	var upper, lower, digit, symbol bool
	for _, r := range password {
		switch {
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= '0' && r <= '9':
			digit = true
		default:
			symbol = true
		}
	}

	rules := []struct {
		ok      bool
		message string
	}{
		{utf8.RuneCountInString(password) >= minPasswordLength, "Password must be at least 8 characters."},
		{upper, "Password must include an uppercase letter."},
		{lower, "Password must include a lowercase letter."},
		{digit, "Password must include a number."},
		{symbol, "Password must include a symbol."},
	}
	for _, rule := range rules {
		if !rule.ok {
			return common.NewAppError(http.StatusBadRequest, rule.message)
		}
	}
	return nil
}
