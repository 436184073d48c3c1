package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"github.com/charadev96/repguard/internal/bot/domain"
	"github.com/charadev96/repguard/internal/bot/repository"
	"github.com/charadev96/repguard/internal/config"
	shared "github.com/charadev96/repguard/internal/shared/domain"
	"github.com/charadev96/repguard/internal/shared/infra"
)

// stack holds the storage side of the process: the document store, its
// runner and the repositories over it.
type stack struct {
	db         *bun.DB
	store      domain.DocumentStore
	runner     *repository.DocumentTransactionRunner
	users      *repository.DocumentUserRepository
	statuses   *repository.DocumentStatusRepository
	moderators *repository.DocumentModeratorRepository
	ledger     *repository.DocumentLedgerRepository
	mirror     *repository.BunLedgerMirror
}

func openStack(ctx context.Context, cfg config.Config, logger *zerolog.Logger) (*stack, error) {
	st := &stack{}
	defaults := cfg.SeedStatuses()

	var outer shared.TransactionRunner
	if cfg.Store.Backend == config.BackendSQLite || cfg.Store.Mirror {
		db, err := openSQLite(cfg.Store.SQLite)
		if err != nil {
			return nil, err
		}
		st.db = db
		outer = infra.NewBunTransactionRunner(db)
	}

	switch cfg.Store.Backend {
	case config.BackendSQLite:
		store, err := repository.NewBunDocumentStore(ctx, st.db, defaults)
		if err != nil {
			st.Close()
			return nil, err
		}
		st.store = store
	default:
		st.store = repository.NewTOMLDocumentStore(cfg.Store.Path, defaults)
	}

	var mirror domain.LedgerMirror
	if cfg.Store.Mirror {
		m, err := repository.NewBunLedgerMirror(ctx, st.db)
		if err != nil {
			st.Close()
			return nil, err
		}
		st.mirror = m
		mirror = m
	}

	st.runner = repository.NewDocumentTransactionRunner(st.store, outer, logger)
	st.users = repository.NewDocumentUserRepository(st.runner)
	st.statuses = repository.NewDocumentStatusRepository(st.runner)
	st.moderators = repository.NewDocumentModeratorRepository(st.runner)
	st.ledger = repository.NewDocumentLedgerRepository(st.runner, mirror)
	return st, nil
}

func openSQLite(path string) (*bun.DB, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, "file:"+path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// sqlite takes one writer at a time.
	sqldb.SetMaxOpenConns(1)
	return bun.NewDB(sqldb, sqlitedialect.New()), nil
}

func (s *stack) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
