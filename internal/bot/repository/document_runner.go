package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/charadev96/repguard/internal/bot/domain"
	shared "github.com/charadev96/repguard/internal/shared/domain"
	"github.com/charadev96/repguard/internal/shared/log"
)

var errWriteInView = errors.New("write attempted inside a read-only document transaction")

type documentTx struct {
	doc      domain.Document
	readOnly bool
	dirty    bool
}

type documentContextKey struct{}

var docContextKey = &documentContextKey{}

// DocumentTransactionRunner serialises load-modify-replace cycles over a
// DocumentStore. Writers hold an exclusive lock, readers a shared one.
// Nested calls join the transaction already present in ctx, and the
// document is replaced once, when the outermost call returns without error.
//
// If Outer is set, every cycle also runs inside an Outer transaction. A
// store that joins it (the sqlite backend) commits together with the other
// SQL writes of the cycle. Any other store is replaced after Outer commits.
//
// Once the store reports corruption the runner refuses all further work.
type DocumentTransactionRunner struct {
	Store  domain.DocumentStore
	Outer  shared.TransactionRunner
	Logger *zerolog.Logger

	mu      sync.RWMutex
	latchMu sync.Mutex
	corrupt error
}

func NewDocumentTransactionRunner(
	store domain.DocumentStore,
	outer shared.TransactionRunner,
	logger *zerolog.Logger,
) *DocumentTransactionRunner {
	return &DocumentTransactionRunner{
		Store:  store,
		Outer:  outer,
		Logger: log.OrNop(logger),
	}
}

func (r *DocumentTransactionRunner) Exec(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.run(ctx, false, fn)
}

func (r *DocumentTransactionRunner) View(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.run(ctx, true, fn)
}

// Init loads the document once in write mode so it is created or repaired
// before serving.
func (r *DocumentTransactionRunner) Init(ctx context.Context) error {
	return r.Exec(ctx, func(ctx context.Context) error { return nil })
}

// Err returns the latched corruption error, if any.
func (r *DocumentTransactionRunner) Err() error {
	r.latchMu.Lock()
	defer r.latchMu.Unlock()
	return r.corrupt
}

func (r *DocumentTransactionRunner) latch(err error) {
	r.latchMu.Lock()
	defer r.latchMu.Unlock()
	if r.corrupt == nil {
		r.corrupt = err
		r.Logger.Error().
			Err(err).
			Msg("document store is corrupt, refusing further operations")
	}
}

func (r *DocumentTransactionRunner) run(ctx context.Context, readOnly bool, fn func(ctx context.Context) error) error {
	if tx, ok := ctx.Value(docContextKey).(*documentTx); ok {
		if tx.readOnly && !readOnly {
			return errWriteInView
		}
		return fn(ctx)
	}
	if err := r.Err(); err != nil {
		return err
	}

	if readOnly {
		r.mu.RLock()
		defer r.mu.RUnlock()
	} else {
		r.mu.Lock()
		defer r.mu.Unlock()
	}

	start := time.Now()
	result := "unchanged"
	_, bound := r.Store.(txBoundStore)
	var deferred *domain.Document
	cycle := func(ctx context.Context) error {
		doc, err := r.Store.Load(ctx)
		if err != nil {
			if errors.Is(err, domain.ErrStoreCorrupt) {
				r.latch(err)
			}
			result = "failed"
			return err
		}
		tx := &documentTx{doc: doc, readOnly: readOnly}
		if err := fn(context.WithValue(ctx, docContextKey, tx)); err != nil {
			result = "aborted"
			return err
		}
		if readOnly || !tx.dirty {
			return nil
		}
		if r.Outer != nil && !bound {
			deferred = &tx.doc
			return nil
		}
		if err := r.Store.Replace(ctx, tx.doc); err != nil {
			result = "failed"
			return err
		}
		result = "committed"
		return nil
	}

	var err error
	switch {
	case r.Outer == nil:
		err = cycle(ctx)
	case readOnly:
		err = r.Outer.View(ctx, cycle)
	default:
		err = r.Outer.Exec(ctx, cycle)
	}
	// A store outside the Outer transaction is replaced only after Outer
	// committed, so Outer writes are never behind the document.
	if err == nil && deferred != nil {
		result = "committed"
		if err = r.Store.Replace(ctx, *deferred); err != nil {
			result = "failed"
		}
	}

	if !readOnly {
		documentCommits.WithLabelValues(result).Inc()
		documentCommitDuration.Observe(time.Since(start).Seconds())
	}
	if result == "failed" {
		r.Logger.Error().
			Err(err).
			Bool("readOnly", readOnly).
			Msg("document transaction failed")
	}
	return err
}

// read runs fn against the document of the current transaction.
func (r *DocumentTransactionRunner) read(ctx context.Context, fn func(doc *domain.Document) error) error {
	return r.View(ctx, func(ctx context.Context) error {
		tx, err := currentTx(ctx)
		if err != nil {
			return err
		}
		return fn(&tx.doc)
	})
}

// write runs fn against the document of the current transaction. The
// document is persisted when fn reports a change.
func (r *DocumentTransactionRunner) write(ctx context.Context, fn func(ctx context.Context, doc *domain.Document) (bool, error)) error {
	return r.Exec(ctx, func(ctx context.Context) error {
		tx, err := currentTx(ctx)
		if err != nil {
			return err
		}
		changed, err := fn(ctx, &tx.doc)
		if err != nil {
			return err
		}
		if changed {
			tx.dirty = true
		}
		return nil
	})
}

// txBoundStore is implemented by stores whose Replace joins the Outer
// transaction found in ctx.
type txBoundStore interface {
	joinsOuterTx()
}

func currentTx(ctx context.Context) (*documentTx, error) {
	tx, ok := ctx.Value(docContextKey).(*documentTx)
	if !ok {
		return nil, fmt.Errorf("no document transaction in context")
	}
	return tx, nil
}
