package domain

import "errors"

var (
	ErrTargetNotFound    = errors.New("target user could not be determined")
	ErrUnknownStatus     = errors.New("unknown status category")
	ErrCategoryInUse     = errors.New("status category is referenced by users")
	ErrCategoryProtected = errors.New("status category cannot be removed")
	ErrInvalidInput      = errors.New("invalid input")
	ErrForbidden         = errors.New("insufficient rights")
	ErrNotSubscribed     = errors.New("required channel subscription missing")

	ErrStoreCorrupt     = errors.New("document store is corrupt")
	ErrStoreUnavailable = errors.New("document store is unavailable")
	ErrStoreConflict    = errors.New("document was modified concurrently")
)
