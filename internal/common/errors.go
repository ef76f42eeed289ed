// Package common defines shared constants and sentinel errors used across
// the service layers of gophguard. Callers should use errors.Is to match
// these values.
package common

import (
	"errors"
	"net/http"
)

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")
)

// AppError is a domain error that carries the status the boundary must
// answer with. Its message is safe to show to the caller verbatim.
type AppError struct {
	Status  int
	Message string
}

func (e *AppError) Error() string {
	return e.Message
}

// NewAppError returns an AppError with the given status and message.
func NewAppError(status int, message string) *AppError {
	return &AppError{Status: status, Message: message}
}

// Authentication and session errors.
var (
	ErrInvalidCredentials  = NewAppError(http.StatusUnauthorized, "Invalid credentials.")
	ErrAccountLocked       = NewAppError(http.StatusTooManyRequests, "Account locked. Try again later.")
	ErrUserNotFound        = NewAppError(http.StatusNotFound, "User not found.")
	ErrInvalidRefreshToken = NewAppError(http.StatusUnauthorized, "Invalid refresh token.")
	ErrMissingRefreshToken = NewAppError(http.StatusUnauthorized, "Missing refresh token.")
	ErrInvalidToken        = NewAppError(http.StatusUnauthorized, "Invalid token.")
	ErrMissingToken        = NewAppError(http.StatusUnauthorized, "Missing authorization token.")
	ErrMfaRequired         = NewAppError(http.StatusUnauthorized, "MFA required.")

	ErrInsufficientPermissions = NewAppError(http.StatusForbidden, "Insufficient permissions.")
	ErrInvalidCSRF             = NewAppError(http.StatusForbidden, "Invalid CSRF token.")
)

// MFA enrollment errors.
var (
	ErrMfaNotConfigured  = NewAppError(http.StatusBadRequest, "MFA not configured.")
	ErrMfaAlreadyEnabled = NewAppError(http.StatusBadRequest, "MFA already enabled.")
	ErrInvalidMfaToken   = NewAppError(http.StatusBadRequest, "Invalid MFA token.")
)

// Credential provisioning errors.
var (
	ErrPasswordMismatch = NewAppError(http.StatusBadRequest, "Passwords do not match.")
	ErrCredentialsExist = NewAppError(http.StatusConflict, "Credentials already exist for this user.")
	ErrEmailInUse       = NewAppError(http.StatusConflict, "Email already in use.")
)

// StatusOf reports the status carried by err, or 500 when err is not an
// AppError.
func StatusOf(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Status
	}
	return http.StatusInternalServerError
}
