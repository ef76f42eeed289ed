package auth

import (
	"crypto/subtle"

	"github.com/dmitrijs2005/gophguard/internal/common"
)

const csrfTokenBytes = 32

// NewCSRFToken returns a random anti-forgery token to be mirrored into a
// readable cookie and echoed back by the client in a header.
func NewCSRFToken() (string, error) {
	return common.MakeRandHexString(csrfTokenBytes)
}

// CSRFMatches reports whether both values are present and equal. The
// comparison runs in constant time.
func CSRFMatches(cookie, header string) bool {
	if cookie == "" || header == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(cookie), []byte(header)) == 1
}
