package service

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charadev96/repguard/internal/bot/domain"
	"github.com/charadev96/repguard/internal/bot/repository"
)

const (
	adminID  int64 = 1
	modID    int64 = 2
	memberID int64 = 3
)

type fakeSubscriptions struct {
	mu       sync.Mutex
	blocked  map[int64]bool
	failWith error
}

func (f *fakeSubscriptions) IsSubscribed(ctx context.Context, id int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return false, f.failWith
	}
	return !f.blocked[id], nil
}

func (f *fakeSubscriptions) block(id int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.blocked == nil {
		f.blocked = make(map[int64]bool)
	}
	f.blocked[id] = true
}

type recordingObserver struct {
	changes chan domain.StatusChange
	err     error
}

func (o *recordingObserver) StatusChanged(ctx context.Context, change domain.StatusChange) error {
	o.changes <- change
	return o.err
}

type fixture struct {
	runner   *repository.DocumentTransactionRunner
	users    *repository.DocumentUserRepository
	statuses *repository.DocumentStatusRepository
	ledger   *repository.DocumentLedgerRepository
	subs     *fakeSubscriptions
	access   *AccessPolicy
	mod      *ModerationService
	admin    *AdminService
	pending  *PendingService
}

func newFixture(t *testing.T, defaults map[string]domain.StatusCategory) *fixture {
	t.Helper()
	store := repository.NewTOMLDocumentStore(filepath.Join(t.TempDir(), "db.toml"), defaults)
	runner := repository.NewDocumentTransactionRunner(store, nil, nil)
	users := repository.NewDocumentUserRepository(runner)
	statuses := repository.NewDocumentStatusRepository(runner)
	moderators := repository.NewDocumentModeratorRepository(runner)
	ledger := repository.NewDocumentLedgerRepository(runner, nil)

	subs := &fakeSubscriptions{}
	access := NewAccessPolicy([]int64{adminID}, moderators, subs)

	_, err := moderators.Add(context.Background(), modID)
	require.NoError(t, err)

	f := &fixture{
		runner:   runner,
		users:    users,
		statuses: statuses,
		ledger:   ledger,
		subs:     subs,
		access:   access,
	}
	f.mod = &ModerationService{
		Users:    users,
		Statuses: statuses,
		Ledger:   ledger,
		Access:   access,
		TXRunner: runner,
		Now:      func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) },
	}
	f.admin = &AdminService{
		Statuses:   statuses,
		Moderators: moderators,
		Users:      users,
		Access:     access,
		TXRunner:   runner,
	}
	f.pending = &PendingService{
		Actions:    repository.NewCachePendingActionRepository(0),
		Admin:      f.admin,
		Moderation: f.mod,
		Access:     access,
	}
	return f
}

func onlyUnknown() map[string]domain.StatusCategory {
	return map[string]domain.StatusCategory{
		domain.StatusUnknown: domain.UnknownCategory(),
	}
}

func ptr[T any](v T) *T { return &v }
