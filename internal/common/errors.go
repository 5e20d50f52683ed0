// Package common defines shared constants, helpers and sentinel errors used
// across userkit layers. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")

	// Validation errors for account input.
	ErrorValidation   = errors.New("validation error")
	ErrorInvalidEmail = errors.New("invalid email")
	ErrorInvalidLogin = errors.New("invalid login")
	ErrorUnknownRole  = errors.New("unknown role")
	ErrorSelfReassign = errors.New("cannot reassign content to the deleted account")
	ErrorEmptyMetaKey = errors.New("empty meta key")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")
)

// ErrTokenExpired is returned for session tokens past their expiry.
var ErrTokenExpired = errors.New("token expired")
