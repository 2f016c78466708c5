package domain

import "errors"

// Sentinel errors shared across the store, catalog, and handler layers.
// Callers classify failures with errors.Is; wrapping keeps the detail.
var (
	// ErrStoreUnavailable covers any failed remote read or write: network
	// error, non-2xx status, or a malformed payload.
	ErrStoreUnavailable = errors.New("document store unavailable")

	// ErrEntityNotFound means a selection could not be resolved against the
	// listing the user last saw (stale button, entry deleted meanwhile).
	ErrEntityNotFound = errors.New("entity not found")

	// ErrPermissionDenied means a non-admin invoked an admin-only action.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrValidation means input failed a length or format check.
	ErrValidation = errors.New("validation failed")
)
