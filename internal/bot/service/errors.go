package service

import (
	"errors"

	"github.com/charadev96/repguard/internal/bot/domain"
	shared "github.com/charadev96/repguard/internal/shared/domain"
)

// IsRejection reports whether err is a refusal the actor can act on, as
// opposed to a system failure.
func IsRejection(err error) bool {
	for _, target := range []error{
		domain.ErrTargetNotFound,
		domain.ErrUnknownStatus,
		domain.ErrCategoryInUse,
		domain.ErrCategoryProtected,
		domain.ErrInvalidInput,
		domain.ErrForbidden,
		domain.ErrNotSubscribed,
		shared.ErrNotExist,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
