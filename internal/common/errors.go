// Package common defines shared constants and sentinel errors used across
// the storage, service and transport layers of Linkup. Callers should use
// errors.Is / errors.As to match these values.
package common

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// Repository-level errors.
	ErrorNotFound   = errors.New("not found")
	ErrDuplicateKey = errors.New("duplicate key")
	ErrTransient    = errors.New("transient storage error")

	// Service-level errors (generic/internal flow control).
	ErrorInternal         = errors.New("internal error")
	ErrorUnauthorized     = errors.New("unauthorized")
	ErrAccountNotVerified = errors.New("account not verified")

	// Credential errors.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidOtp         = errors.New("invalid or expired otp")
	ErrSamePassword       = errors.New("new password must differ from the current one")
	ErrPasswordTooLong    = errors.New("password exceeds 72 bytes")

	// Onboarding errors.
	ErrUsernameExhausted = errors.New("could not generate a unique username")

	// Profile / media errors.
	ErrNoProfileData = errors.New("no profile data provided for update")
	ErrInvalidFile   = errors.New("invalid file")

	// Misconfiguration.
	ErrMissingSecret = errors.New("token signing secret is not configured")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")

	// Token lifecycle errors.
	ErrTokenExpired     = errors.New("token expired")
	ErrTokenNotYetValid = errors.New("token not active")
)

// DuplicateKeyError reports which unique fields collided on insert.
type DuplicateKeyError struct {
	Fields []string
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("%s already exists", strings.Join(e.Fields, ", "))
}

// Unwrap makes errors.Is(err, ErrDuplicateKey) hold.
func (e *DuplicateKeyError) Unwrap() error {
	return ErrDuplicateKey
}

// ValidationError carries field-keyed messages produced at the request
// boundary, e.g. {"[body.email]": "Email must be unique"}.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for %d field(s)", len(e.Fields))
}
