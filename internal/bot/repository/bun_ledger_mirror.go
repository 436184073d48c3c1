package repository

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/jinzhu/copier"
	"github.com/uptrace/bun"

	"github.com/charadev96/repguard/internal/bot/domain"
	"github.com/charadev96/repguard/internal/shared/infra"
)

// BunLedgerMirror is the append-only secondary copy of the ledger. Appends
// are idempotent on the entry id.
type BunLedgerMirror struct {
	db *bun.DB
}

func NewBunLedgerMirror(ctx context.Context, db *bun.DB) (*BunLedgerMirror, error) {
	r := &BunLedgerMirror{
		db: db,
	}
	tx := infra.ExtractTx(ctx, r.db)
	_, err := tx.NewCreateTable().
		Model((*ledgerEntry)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return r, fmt.Errorf("failed to create ledger mirror: %w", err)
	}
	return r, nil
}

func (r *BunLedgerMirror) Append(ctx context.Context, entry domain.LedgerEntry) error {
	tx := infra.ExtractTx(ctx, r.db)
	e := new(ledgerEntry)
	if err := copier.Copy(e, &entry); err != nil {
		return fmt.Errorf("failed to map ledger entry %s: %w", entry.ID, err)
	}
	e.Time = entry.Time.UTC()
	_, err := tx.NewInsert().
		Model(e).
		On("CONFLICT (id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("%w: failed to mirror ledger entry: %w", domain.ErrStoreUnavailable, err)
	}
	return nil
}

func (r *BunLedgerMirror) Recent(ctx context.Context, n int) ([]domain.LedgerEntry, error) {
	tx := infra.ExtractTx(ctx, r.db)
	var rows []ledgerEntry
	query := tx.NewSelect().
		Model(&rows).
		Order("seq DESC")
	if n > 0 {
		query = query.Limit(n)
	}
	if err := query.Scan(ctx); err != nil {
		return nil, fmt.Errorf("%w: failed to read ledger mirror: %w", domain.ErrStoreUnavailable, err)
	}
	slices.Reverse(rows)
	entries := make([]domain.LedgerEntry, len(rows))
	for i := range rows {
		if err := copier.Copy(&entries[i], &rows[i]); err != nil {
			return nil, fmt.Errorf("%w: invalid mirrored entry: %w", domain.ErrStoreCorrupt, err)
		}
	}
	return entries, nil
}

type ledgerEntry struct {
	bun.BaseModel `bun:"table:ledger_entries"`

	Seq         int64     `bun:",pk,autoincrement"`
	ID          uuid.UUID `bun:",unique,notnull"`
	Time        time.Time `bun:",notnull"`
	ModeratorID int64     `bun:",notnull"`
	TargetID    int64     `bun:",notnull"`
	OldStatus   string    `bun:",notnull"`
	NewStatus   string    `bun:",notnull"`
	Proof       string
	Comment     string
}
