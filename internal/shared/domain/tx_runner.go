package domain

import (
	"context"
)

// TransactionRunner runs fn with a transaction injected into ctx. Nested
// calls join the outer transaction instead of opening a new one.
type TransactionRunner interface {
	Exec(ctx context.Context, fn func(ctx context.Context) error) error
	View(ctx context.Context, fn func(ctx context.Context) error) error
}
