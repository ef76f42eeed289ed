package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/gophguard/internal/common"
	"github.com/gin-gonic/gin"
)

// CookieOptions controls how session cookies are written.
type CookieOptions struct {
	Secure   bool
	SameSite http.SameSite
	Domain   string

	AccessMaxAge  time.Duration
	RefreshMaxAge time.Duration
}

// ParseSameSite maps "strict", "none" and "lax" to http.SameSite. Anything
// else is treated as lax.
func ParseSameSite(s string) http.SameSite {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}

func (o CookieOptions) set(c *gin.Context, name, value string, maxAge time.Duration, httpOnly bool) {
	c.SetSameSite(o.SameSite)
	c.SetCookie(name, value, int(maxAge/time.Second), "/", o.Domain, o.Secure, httpOnly)
}

// bindSession writes the access and csrf cookies, plus the refresh cookie
// when refreshToken is not empty.
func (o CookieOptions) bindSession(c *gin.Context, accessToken, refreshToken, csrfToken string) {
	o.set(c, common.AccessTokenCookieName, accessToken, o.AccessMaxAge, true)
	if refreshToken != "" {
		o.set(c, common.RefreshTokenCookieName, refreshToken, o.RefreshMaxAge, true)
	}
	o.set(c, common.CSRFTokenCookieName, csrfToken, o.AccessMaxAge, false)
}

func (o CookieOptions) clearSession(c *gin.Context) {
	c.SetSameSite(o.SameSite)
	c.SetCookie(common.AccessTokenCookieName, "", -1, "/", o.Domain, o.Secure, true)
	c.SetCookie(common.RefreshTokenCookieName, "", -1, "/", o.Domain, o.Secure, true)
	c.SetCookie(common.CSRFTokenCookieName, "", -1, "/", o.Domain, o.Secure, false)
}
