// Package http is the gin boundary of the server: it binds requests to the
// session, MFA and credential services and carries session state in cookies.
package http

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/dmitrijs2005/gophguard/internal/common"
	"github.com/dmitrijs2005/gophguard/internal/logging"
	"github.com/dmitrijs2005/gophguard/internal/server/auth"
	"github.com/dmitrijs2005/gophguard/internal/server/models"
	"github.com/dmitrijs2005/gophguard/internal/server/services"
	"github.com/gin-gonic/gin"
)

// SessionFlow is the login, refresh and logout flow.
type SessionFlow interface {
	Login(ctx context.Context, in services.LoginInput) (*services.LoginResult, error)
	Refresh(ctx context.Context, presented string) (*services.SessionGrant, error)
	Logout(ctx context.Context, presented string) error
}

// MfaFlow is the enrollment state machine.
type MfaFlow interface {
	Setup(ctx context.Context, userID, label string) (*services.MfaSetupResult, error)
	Verify(ctx context.Context, userID, code string) error
	Disable(ctx context.Context, userID string) error
	Enabled(ctx context.Context, userID string) (bool, error)
	Promote(ctx context.Context, userID string) (*services.SessionGrant, error)
}

type CredentialProvisioner interface {
	Create(ctx context.Context, in services.CreateCredentialsInput) error
}

type Handler struct {
	sessions    SessionFlow
	mfa         MfaFlow
	credentials CredentialProvisioner
	minter      auth.TokenMinter
	cookies     CookieOptions
	logger      logging.Logger
}

func NewHandler(sessions SessionFlow, mfa MfaFlow, credentials CredentialProvisioner,
	minter auth.TokenMinter, cookies CookieOptions, logger logging.Logger) *Handler {
	return &Handler{
		sessions:    sessions,
		mfa:         mfa,
		credentials: credentials,
		minter:      minter,
		cookies:     cookies,
		logger:      logger.With("module", "http"),
	}
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
	MfaCode  string `json:"mfaCode" binding:"omitempty,min=6,max=8"`
}

type sessionResponse struct {
	UserID          string                 `json:"userId"`
	PermissionLevel models.PermissionLevel `json:"permissionLevel"`
	MfaEnabled      bool                   `json:"mfaEnabled"`
	MfaRequired     *bool                  `json:"mfaRequired,omitempty"`
	MfaVerified     *bool                  `json:"mfaVerified,omitempty"`
	CSRFToken       string                 `json:"csrfToken,omitempty"`
}

type createCredentialsRequest struct {
	UserID          string `json:"userId" binding:"required,uuid"`
	Email           string `json:"email" binding:"required,email"`
	Password        string `json:"password" binding:"required,min=8"`
	ConfirmPassword string `json:"confirmPassword" binding:"required,min=8"`
}

type mfaSetupRequest struct {
	Label string `json:"label" binding:"omitempty,min=2,max=120"`
}

type mfaSetupResponse struct {
	SecretBase32 string `json:"secretBase32"`
	OtpauthURL   string `json:"otpauthUrl"`
}

type mfaVerifyRequest struct {
	Token string `json:"token" binding:"required,min=6,max=8"`
}

func boolPtr(b bool) *bool { return &b }

func (h *Handler) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithBindError(c, err)
		return
	}

	res, err := h.sessions.Login(c.Request.Context(), services.LoginInput{
		Email:    req.Email,
		Password: req.Password,
		MfaCode:  req.MfaCode,
	})
	if err != nil {
		abortWithError(c, h.logger, err)
		return
	}

	csrf, err := auth.NewCSRFToken()
	if err != nil {
		abortWithError(c, h.logger, err)
		return
	}
	h.cookies.bindSession(c, res.SessionToken, res.RefreshToken, csrf)

	resp := sessionResponse{
		UserID:          res.UserID,
		PermissionLevel: res.PermissionLevel,
		MfaEnabled:      res.MfaEnabled,
		MfaRequired:     boolPtr(res.MfaRequired),
	}
	if !res.MfaRequired {
		resp.CSRFToken = csrf
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) refresh(c *gin.Context) {
	presented, err := c.Cookie(common.RefreshTokenCookieName)
	if err != nil || presented == "" {
		abortWithError(c, h.logger, common.ErrMissingRefreshToken)
		return
	}

	grant, err := h.sessions.Refresh(c.Request.Context(), presented)
	if err != nil {
		abortWithError(c, h.logger, err)
		return
	}
	h.respondWithGrant(c, grant)
}

func (h *Handler) logout(c *gin.Context) {
	presented, _ := c.Cookie(common.RefreshTokenCookieName)
	err := h.sessions.Logout(c.Request.Context(), presented)

	h.cookies.clearSession(c)
	if err != nil {
		abortWithError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) me(c *gin.Context) {
	claims := claimsFrom(c)

	enabled, err := h.mfa.Enabled(c.Request.Context(), claims.UserID)
	if err != nil {
		abortWithError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, sessionResponse{
		UserID:          claims.UserID,
		PermissionLevel: claims.PermissionLevel,
		MfaEnabled:      enabled,
		MfaVerified:     boolPtr(claims.Verified()),
	})
}

func (h *Handler) createCredentials(c *gin.Context) {
	var req createCredentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithBindError(c, err)
		return
	}

	err := h.credentials.Create(c.Request.Context(), services.CreateCredentialsInput{
		UserID:          req.UserID,
		Email:           req.Email,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
	})
	if err != nil {
		abortWithError(c, h.logger, err)
		return
	}
	c.Status(http.StatusCreated)
}

func (h *Handler) mfaSetup(c *gin.Context) {
	var req mfaSetupRequest
	// the body is optional
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		abortWithBindError(c, err)
		return
	}

	res, err := h.mfa.Setup(c.Request.Context(), claimsFrom(c).UserID, req.Label)
	if err != nil {
		abortWithError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, mfaSetupResponse{SecretBase32: res.SecretBase32, OtpauthURL: res.OtpauthURL})
}

// mfaVerify activates the enrollment and upgrades the caller to a fully
// verified session.
func (h *Handler) mfaVerify(c *gin.Context) {
	var req mfaVerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithBindError(c, err)
		return
	}

	ctx := c.Request.Context()
	userID := claimsFrom(c).UserID

	if err := h.mfa.Verify(ctx, userID, req.Token); err != nil {
		abortWithError(c, h.logger, err)
		return
	}

	grant, err := h.mfa.Promote(ctx, userID)
	if err != nil {
		abortWithError(c, h.logger, err)
		return
	}
	h.respondWithGrant(c, grant)
}

func (h *Handler) mfaDisable(c *gin.Context) {
	if err := h.mfa.Disable(c.Request.Context(), claimsFrom(c).UserID); err != nil {
		abortWithError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// respondWithGrant rebinds all three cookies for a fully verified session.
func (h *Handler) respondWithGrant(c *gin.Context, grant *services.SessionGrant) {
	csrf, err := auth.NewCSRFToken()
	if err != nil {
		abortWithError(c, h.logger, err)
		return
	}
	h.cookies.bindSession(c, grant.SessionToken, grant.RefreshToken, csrf)

	c.JSON(http.StatusOK, sessionResponse{
		UserID:          grant.UserID,
		PermissionLevel: grant.PermissionLevel,
		MfaEnabled:      grant.MfaEnabled,
		MfaVerified:     boolPtr(true),
		CSRFToken:       csrf,
	})
}
