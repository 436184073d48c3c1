package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type LedgerEntry struct {
	ID          uuid.UUID
	Time        time.Time
	ModeratorID int64
	TargetID    int64
	OldStatus   string
	NewStatus   string
	Proof       string
	Comment     string
}

type LedgerRepository interface {
	Append(ctx context.Context, entry LedgerEntry) error
	// Recent returns the last n entries in chronological order.
	Recent(ctx context.Context, n int) ([]LedgerEntry, error)
	Count(ctx context.Context) (int, error)
}

// LedgerMirror is a secondary append-only copy of the ledger.
type LedgerMirror interface {
	Append(ctx context.Context, entry LedgerEntry) error
	Recent(ctx context.Context, n int) ([]LedgerEntry, error)
}
