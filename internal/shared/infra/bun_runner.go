package infra

import (
	"context"
	"database/sql"

	"github.com/uptrace/bun"
)

type contextKey struct{}

var txContextKey = &contextKey{}

func InjectTx(ctx context.Context, db bun.IDB) context.Context {
	return context.WithValue(ctx, txContextKey, db)
}

func ExtractTx(ctx context.Context, fallback bun.IDB) bun.IDB {
	if db, ok := ctx.Value(txContextKey).(bun.IDB); ok {
		return db
	}
	return fallback
}

// BunTransactionRunner wraps a unit of work in a single SQL transaction.
// Repositories pick the transaction up through ExtractTx, so a document
// replace and a ledger mirror append commit or roll back together.
type BunTransactionRunner struct {
	db *bun.DB
}

func NewBunTransactionRunner(db *bun.DB) *BunTransactionRunner {
	return &BunTransactionRunner{db: db}
}

func (r *BunTransactionRunner) Exec(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.run(ctx, nil, fn)
}

// View uses a regular transaction: sqlite drivers differ in read-only
// support, and sqlite already gives every transaction a stable snapshot.
func (r *BunTransactionRunner) View(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.run(ctx, nil, fn)
}

func (r *BunTransactionRunner) run(ctx context.Context, opts *sql.TxOptions, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txContextKey).(bun.IDB); ok {
		return fn(ctx)
	}
	return r.db.RunInTx(ctx, opts, func(ctx context.Context, tx bun.Tx) error {
		return fn(InjectTx(ctx, tx))
	})
}
