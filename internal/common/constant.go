// Package common contains shared constants and sentinel errors used across
// gophguard components.
package common

// Cookie names bound by the HTTP boundary.
const (
	AccessTokenCookieName  = "access_token"
	RefreshTokenCookieName = "refresh_token"
	CSRFTokenCookieName    = "csrf_token"
)

// CSRFHeaderName is the request header that must mirror the csrf_token cookie
// on mutating requests.
const CSRFHeaderName = "X-CSRF-Token"
