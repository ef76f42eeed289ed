// Package services contains server-side business logic: the login, refresh
// and logout flow, MFA enrollment, the refresh token ledger and credential
// provisioning.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophguard/internal/common"
	"github.com/dmitrijs2005/gophguard/internal/dbx"
	"github.com/dmitrijs2005/gophguard/internal/logging"
	"github.com/dmitrijs2005/gophguard/internal/server/auth"
	"github.com/dmitrijs2005/gophguard/internal/server/config"
	"github.com/dmitrijs2005/gophguard/internal/server/models"
	"github.com/dmitrijs2005/gophguard/internal/server/repositories/repomanager"
)

// SessionGrant is a fully verified session: a signed session token plus a
// refresh token.
type SessionGrant struct {
	SessionToken    string
	RefreshToken    string
	UserID          string
	PermissionLevel models.PermissionLevel
	MfaEnabled      bool
}

// LoginInput is what the caller submits to log in. MfaCode is optional.
type LoginInput struct {
	Email    string
	Password string
	MfaCode  string
}

// LoginResult is either a full grant or, when MfaRequired is set, a partial
// session token with no refresh token.
type LoginResult struct {
	SessionGrant
	MfaRequired bool
}

// SessionService implements login, refresh and logout.
type SessionService struct {
	tx     dbx.Transactor
	repos  repomanager.RepositoryManager
	hasher auth.PasswordHasher
	totp   auth.MfaService
	minter auth.TokenMinter
	ledger *RefreshLedger
	logger logging.Logger
	now    func() time.Time

	maxLoginAttempts int
	lockoutDuration  time.Duration
}

func NewSessionService(tx dbx.Transactor, repos repomanager.RepositoryManager, hasher auth.PasswordHasher,
	totp auth.MfaService, minter auth.TokenMinter, ledger *RefreshLedger, cfg *config.Config, logger logging.Logger) *SessionService {
	return &SessionService{
		tx:               tx,
		repos:            repos,
		hasher:           hasher,
		totp:             totp,
		minter:           minter,
		ledger:           ledger,
		logger:           logger.With("module", "session"),
		now:              time.Now,
		maxLoginAttempts: cfg.MaxLoginAttempts,
		lockoutDuration:  cfg.LockoutDuration,
	}
}

// Login checks credentials, lockout and the second factor. Unknown email,
// wrong password and wrong one-time code all yield
// common.ErrInvalidCredentials; the reason is only logged.
func (s *SessionService) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	conn := s.tx.Conn()

	cred, err := s.repos.Credentials(conn).FindByEmail(ctx, in.Email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.logger.Info(ctx, "login rejected", "reason", "unknown_email")
			return nil, common.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("error searching credentials: %w", err)
	}

	user, err := s.findUser(ctx, conn, cred.UserID)
	if err != nil {
		return nil, err
	}

	if user.LockedAt(s.now()) {
		s.logger.Warn(ctx, "login rejected", "reason", "locked", "user_id", user.ID)
		return nil, common.ErrAccountLocked
	}

	ok, err := s.hasher.Compare(cred.PasswordHash, in.Password)
	if err != nil {
		return nil, fmt.Errorf("error comparing password: %w", err)
	}
	if !ok {
		return nil, s.rejectLogin(ctx, user.ID, "bad_password")
	}

	enrollment, err := s.findEnrollment(ctx, conn, user.ID)
	if err != nil {
		return nil, err
	}
	mfaEnabled := enrollment.IsEnabled()

	if mfaEnabled {
		if in.MfaCode == "" {
			token, err := s.minter.Sign(auth.NewSessionClaims(user.ID, user.PermissionLevel, false))
			if err != nil {
				return nil, fmt.Errorf("error signing session token: %w", err)
			}
			s.logger.Info(ctx, "login pending second factor", "user_id", user.ID)
			return &LoginResult{
				SessionGrant: SessionGrant{
					SessionToken:    token,
					UserID:          user.ID,
					PermissionLevel: user.PermissionLevel,
					MfaEnabled:      true,
				},
				MfaRequired: true,
			}, nil
		}
		if enrollment.SecretBase32 == "" {
			return nil, common.ErrMfaNotConfigured
		}
		if !s.totp.Verify(enrollment.SecretBase32, in.MfaCode) {
			return nil, s.rejectLogin(ctx, user.ID, "bad_mfa_code")
		}
	}

	if err := s.repos.Users(conn).ResetLoginFailures(ctx, user.ID); err != nil {
		return nil, fmt.Errorf("error resetting login failures: %w", err)
	}

	grant, err := s.grant(ctx, user, mfaEnabled)
	if err != nil {
		return nil, err
	}
	s.logger.Info(ctx, "login succeeded", "user_id", user.ID, "mfa", mfaEnabled)
	return &LoginResult{SessionGrant: *grant}, nil
}

// Refresh rotates a refresh token and mints a new full session token.
// The second factor is not re-checked: holding a refresh token implies it
// was already passed.
func (s *SessionService) Refresh(ctx context.Context, presented string) (*SessionGrant, error) {
	conn := s.tx.Conn()

	rec, err := s.ledger.FindValid(ctx, presented)
	if err != nil {
		if errors.Is(err, common.ErrInvalidRefreshToken) {
			if _, rerr := s.ledger.ReportReuse(ctx, presented); rerr != nil {
				s.logger.Error(ctx, "refresh token reuse check failed", "error", rerr)
			}
		}
		return nil, err
	}

	user, err := s.findUser(ctx, conn, rec.UserID)
	if err != nil {
		return nil, err
	}

	enrollment, err := s.findEnrollment(ctx, conn, user.ID)
	if err != nil {
		return nil, err
	}

	next, err := s.ledger.RotatePresented(ctx, presented)
	if err != nil {
		return nil, err
	}

	token, err := s.minter.Sign(auth.NewSessionClaims(user.ID, user.PermissionLevel, true))
	if err != nil {
		return nil, fmt.Errorf("error signing session token: %w", err)
	}

	s.logger.Debug(ctx, "refresh token rotated", "user_id", user.ID, "token_id", next.Record.ID)
	return &SessionGrant{
		SessionToken:    token,
		RefreshToken:    next.Token,
		UserID:          user.ID,
		PermissionLevel: user.PermissionLevel,
		MfaEnabled:      enrollment.IsEnabled(),
	}, nil
}

// Logout revokes the presented refresh token. It never fails for unknown,
// expired or already revoked tokens.
func (s *SessionService) Logout(ctx context.Context, presented string) error {
	if presented == "" {
		return nil
	}
	return s.ledger.Revoke(ctx, presented)
}

// rejectLogin records a failed attempt. The attempt that reaches the limit
// is answered with common.ErrAccountLocked, earlier ones with the uniform
// common.ErrInvalidCredentials.
func (s *SessionService) rejectLogin(ctx context.Context, userID, reason string) error {
	user, err := s.repos.Users(s.tx.Conn()).RecordLoginFailure(ctx, userID, s.maxLoginAttempts, s.now().Add(s.lockoutDuration))
	if err != nil {
		return fmt.Errorf("error recording login failure: %w", err)
	}

	s.logger.Info(ctx, "login rejected", "reason", reason, "user_id", userID, "failed_attempts", user.FailedLoginAttempts)
	if user.LockedAt(s.now()) {
		s.logger.Warn(ctx, "account locked", "user_id", userID, "until", user.LockoutUntil)
		return common.ErrAccountLocked
	}
	return common.ErrInvalidCredentials
}

func (s *SessionService) grant(ctx context.Context, user *models.UserAccount, mfaEnabled bool) (*SessionGrant, error) {
	return issueGrant(ctx, s.minter, s.ledger, user, mfaEnabled)
}

func (s *SessionService) findUser(ctx context.Context, db dbx.DBTX, id string) (*models.UserAccount, error) {
	return findUser(ctx, s.repos, db, id)
}

func (s *SessionService) findEnrollment(ctx context.Context, db dbx.DBTX, userID string) (*models.MfaEnrollment, error) {
	return findEnrollment(ctx, s.repos, db, userID)
}

// issueGrant mints a full session token and a refresh token for user.
func issueGrant(ctx context.Context, minter auth.TokenMinter, ledger *RefreshLedger, user *models.UserAccount, mfaEnabled bool) (*SessionGrant, error) {
	token, err := minter.Sign(auth.NewSessionClaims(user.ID, user.PermissionLevel, true))
	if err != nil {
		return nil, fmt.Errorf("error signing session token: %w", err)
	}
	refresh, err := ledger.Issue(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	return &SessionGrant{
		SessionToken:    token,
		RefreshToken:    refresh.Token,
		UserID:          user.ID,
		PermissionLevel: user.PermissionLevel,
		MfaEnabled:      mfaEnabled,
	}, nil
}

func findUser(ctx context.Context, repos repomanager.RepositoryManager, db dbx.DBTX, id string) (*models.UserAccount, error) {
	user, err := repos.Users(db).FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrUserNotFound
		}
		return nil, fmt.Errorf("error searching user: %w", err)
	}
	return user, nil
}

// findEnrollment returns nil without error when the user has no enrollment.
func findEnrollment(ctx context.Context, repos repomanager.RepositoryManager, db dbx.DBTX, userID string) (*models.MfaEnrollment, error) {
	m, err := repos.Mfa(db).FindByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("error searching mfa enrollment: %w", err)
	}
	return m, nil
}
