package http

import (
	"github.com/dmitrijs2005/gophguard/internal/server/models"
	"github.com/gin-gonic/gin"
)

// credentialAdmins may provision login credentials for other users.
var credentialAdmins = []models.PermissionLevel{
	models.PermissionAltoComando,
	models.PermissionComando,
	models.PermissionAdmin,
}

// NewRouter builds the gin engine. Routes reachable with a partial session
// are /me, /logout, /mfa/setup and /mfa/verify; everything else behind
// authentication needs the second factor to have been passed.
func NewRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(recovery(h.logger), requestLogger(h.logger))

	r.GET("/healthz", h.healthz)

	api := r.Group("/api/auth")
	api.POST("/login", h.login)
	api.POST("/refresh", h.refresh)

	csrf := requireCSRF(h.logger)

	partial := api.Group("", authenticate(h.minter, true, h.logger))
	partial.GET("/me", h.me)
	partial.POST("/logout", csrf, h.logout)
	partial.POST("/mfa/setup", csrf, h.mfaSetup)
	partial.POST("/mfa/verify", csrf, h.mfaVerify)

	full := api.Group("", authenticate(h.minter, false, h.logger))
	full.POST("/credentials", requirePermission(h.logger, credentialAdmins...), csrf, h.createCredentials)
	full.POST("/mfa/disable", csrf, h.mfaDisable)

	return r
}
