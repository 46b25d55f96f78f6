package models

import "errors"

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource already exists")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")

	// ErrTechnical marks store or gateway connectivity failures. It is
	// always propagated to the caller, never swallowed.
	ErrTechnical = errors.New("technical error")

	// ErrConsistency marks a state mismatch against an expected version or
	// attempt count. Kept distinct from ErrTechnical so callers can tell a
	// policy violation from an outage.
	ErrConsistency = errors.New("consistency error")

	// Account state errors
	ErrAccountLocked = errors.New("account is temporarily locked")
)
