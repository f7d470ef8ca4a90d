// Package common defines shared constants and sentinel errors used across
// the lending service layers. Callers should use errors.Is to match these
// values; detail is attached by wrapping with fmt.Errorf("%w: ...").
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("already exists")

	// Service-level errors.
	ErrValidation = errors.New("validation error")
	ErrTxConflict = errors.New("transaction conflict, please retry")

	// Lending workflow errors.
	ErrNoCopiesAvailable   = errors.New("no copies available")
	ErrDuplicateActiveLoan = errors.New("book already borrowed by this user")
	ErrAlreadyReturned     = errors.New("already returned")
	ErrForbidden           = errors.New("forbidden")

	// Inventory errors.
	ErrBookInUse      = errors.New("book has active borrows")
	ErrCoversDisabled = errors.New("cover storage is not configured")

	// Access errors.
	ErrUnauthenticated    = errors.New("login required")
	ErrAdminRequired      = errors.New("admin access required")
	ErrInvalidCredentials = errors.New("invalid credentials")

	// Session errors (invalid, malformed or expired token).
	ErrInvalidToken   = errors.New("invalid token")
	ErrSessionExpired = errors.New("session expired")
)
