package services

import "errors"

// Sentinel errors for explicit error handling. Callers distinguish failure
// modes with errors.Is() instead of string matching. Hot-path validation
// returns these as structured decisions; administrative mutations surface
// them loudly to the caller.

var (
	// ErrKeyNotFound indicates no key record matched the lookup
	ErrKeyNotFound = errors.New("api key not found")

	// ErrOwnershipMismatch indicates the caller does not own the target key
	ErrOwnershipMismatch = errors.New("api key not owned by caller")

	// ErrKeyInactive indicates the key has been revoked or rotated out
	ErrKeyInactive = errors.New("api key is inactive")

	// ErrKeyExpired indicates the key's expiry instant has passed
	ErrKeyExpired = errors.New("api key has expired")

	// ErrIPNotWhitelisted indicates the caller IP is not in the key's whitelist
	ErrIPNotWhitelisted = errors.New("caller ip not whitelisted")

	// ErrScopeMissing indicates the key lacks a required permission scope
	ErrScopeMissing = errors.New("required scope missing")

	// ErrInvalidRotationState indicates rotation was attempted on an inactive key
	ErrInvalidRotationState = errors.New("key is not in a rotatable state")

	// ErrStudentNotFound indicates the student does not exist
	ErrStudentNotFound = errors.New("student not found")

	// ErrStaffNotFound indicates the staff user does not exist
	ErrStaffNotFound = errors.New("staff user not found")

	// ErrInvalidCredentials indicates staff authentication failed
	ErrInvalidCredentials = errors.New("invalid credentials")
)
