package repository

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"github.com/charadev96/repguard/internal/bot/domain"
)

type testRepos struct {
	runner     *DocumentTransactionRunner
	store      *TOMLDocumentStore
	users      *DocumentUserRepository
	statuses   *DocumentStatusRepository
	moderators *DocumentModeratorRepository
	ledger     *DocumentLedgerRepository
}

func newTestRepos(t *testing.T) testRepos {
	t.Helper()
	store := NewTOMLDocumentStore(filepath.Join(t.TempDir(), "db.toml"), domain.DefaultStatuses())
	runner := NewDocumentTransactionRunner(store, nil, nil)
	return testRepos{
		runner:     runner,
		store:      store,
		users:      NewDocumentUserRepository(runner),
		statuses:   NewDocumentStatusRepository(runner),
		moderators: NewDocumentModeratorRepository(runner),
		ledger:     NewDocumentLedgerRepository(runner, nil),
	}
}

func newTestDB(t *testing.T) *bun.DB {
	t.Helper()
	sqldb, err := sql.Open(sqliteshim.ShimName, "file:"+filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)
	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { db.Close() })
	return db
}

func testUpsert(id int64, status string) domain.UserUpsert {
	return domain.UserUpsert{
		ID:         id,
		Status:     status,
		ModifierID: 1,
		At:         time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}
