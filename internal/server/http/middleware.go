package http

import (
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/dmitrijs2005/gophguard/internal/common"
	"github.com/dmitrijs2005/gophguard/internal/logging"
	"github.com/dmitrijs2005/gophguard/internal/server/auth"
	"github.com/dmitrijs2005/gophguard/internal/server/models"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	claimsKey    = "claims"
	requestIDKey = "request_id"
)

// requestLogger tags each request with an id and logs its outcome.
func requestLogger(logger logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := uuid.NewString()
		c.Set(requestIDKey, requestID)
		c.Header("X-Request-ID", requestID)

		start := time.Now()
		c.Next()

		logger.Info(c.Request.Context(), "request completed",
			"request_id", requestID,
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
			"client_ip", c.ClientIP(),
		)
	}
}

func recovery(logger logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if p := recover(); p != nil {
				logger.Error(c.Request.Context(), "panic recovered",
					"panic", p,
					"stack", string(debug.Stack()),
					"path", c.Request.URL.Path,
				)
				c.AbortWithStatusJSON(http.StatusInternalServerError, errorResponse{Error: unexpectedMessage})
			}
		}()
		c.Next()
	}
}

// authenticate verifies the session token from the access_token cookie or,
// failing that, an Authorization: Bearer header. Partial sessions (password
// passed, second factor pending) are let through only when allowPartial is set.
func authenticate(minter auth.TokenMinter, allowPartial bool, logger logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := sessionToken(c)
		if token == "" {
			abortWithError(c, logger, common.ErrMissingToken)
			return
		}

		claims, err := minter.Verify(token)
		if err != nil {
			abortWithError(c, logger, common.ErrInvalidToken)
			return
		}

		if !claims.Verified() && !allowPartial {
			abortWithError(c, logger, common.ErrMfaRequired)
			return
		}

		c.Set(claimsKey, claims)
		c.Next()
	}
}

func sessionToken(c *gin.Context) string {
	if token, err := c.Cookie(common.AccessTokenCookieName); err == nil && token != "" {
		return token
	}
	kind, value, ok := strings.Cut(c.GetHeader("Authorization"), " ")
	if ok && kind == "Bearer" {
		return strings.TrimSpace(value)
	}
	return ""
}

// requireCSRF enforces the double-submit check on state-changing methods.
func requireCSRF(logger logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			c.Next()
			return
		}

		cookie, _ := c.Cookie(common.CSRFTokenCookieName)
		if !auth.CSRFMatches(cookie, c.GetHeader(common.CSRFHeaderName)) {
			abortWithError(c, logger, common.ErrInvalidCSRF)
			return
		}
		c.Next()
	}
}

// requirePermission admits only sessions whose level is in allowed.
// It must run after authenticate.
func requirePermission(logger logging.Logger, allowed ...models.PermissionLevel) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := claimsFrom(c)
		if claims != nil {
			for _, level := range allowed {
				if claims.PermissionLevel == level {
					c.Next()
					return
				}
			}
		}
		abortWithError(c, logger, common.ErrInsufficientPermissions)
	}
}

func claimsFrom(c *gin.Context) *auth.SessionClaims {
	v, ok := c.Get(claimsKey)
	if !ok {
		return nil
	}
	claims, _ := v.(*auth.SessionClaims)
	return claims
}
