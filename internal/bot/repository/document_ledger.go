package repository

import (
	"context"
	"fmt"
	"slices"

	"github.com/charadev96/repguard/internal/bot/domain"
)

// DocumentLedgerRepository appends to the ledger held in the document.
// When a mirror is configured, the entry is mirrored inside the same
// transaction before the document is replaced, so the mirror never lags
// behind the primary ledger.
type DocumentLedgerRepository struct {
	runner *DocumentTransactionRunner
	mirror domain.LedgerMirror
}

func NewDocumentLedgerRepository(runner *DocumentTransactionRunner, mirror domain.LedgerMirror) *DocumentLedgerRepository {
	return &DocumentLedgerRepository{
		runner: runner,
		mirror: mirror,
	}
}

func (r *DocumentLedgerRepository) Append(ctx context.Context, entry domain.LedgerEntry) error {
	err := r.runner.write(ctx, func(ctx context.Context, doc *domain.Document) (bool, error) {
		doc.Logs = append(doc.Logs, entry)
		if r.mirror != nil {
			if err := r.mirror.Append(ctx, entry); err != nil {
				return false, err
			}
		}
		return true, nil
	})
	if err != nil {
		return fmt.Errorf("failed to append ledger entry: %w", err)
	}
	return nil
}

func (r *DocumentLedgerRepository) Recent(ctx context.Context, n int) ([]domain.LedgerEntry, error) {
	var entries []domain.LedgerEntry
	err := r.runner.read(ctx, func(doc *domain.Document) error {
		start := 0
		if n > 0 && len(doc.Logs) > n {
			start = len(doc.Logs) - n
		}
		entries = slices.Clone(doc.Logs[start:])
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger: %w", err)
	}
	return entries, nil
}

func (r *DocumentLedgerRepository) Count(ctx context.Context) (int, error) {
	var n int
	err := r.runner.read(ctx, func(doc *domain.Document) error {
		n = len(doc.Logs)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count ledger entries: %w", err)
	}
	return n, nil
}
