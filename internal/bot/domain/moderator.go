package domain

import (
	"context"
)

type ModeratorRepository interface {
	List(ctx context.Context) ([]int64, error)
	Contains(ctx context.Context, id int64) (bool, error)
	// Add reports whether id was newly added.
	Add(ctx context.Context, id int64) (bool, error)
	// Remove reports whether id was present.
	Remove(ctx context.Context, id int64) (bool, error)
}
