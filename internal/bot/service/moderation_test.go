package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/charadev96/repguard/internal/bot/domain"
	shared "github.com/charadev96/repguard/internal/shared/domain"
)

func TestStatusChangeScenario(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	f := newFixture(t, onlyUnknown())

	_, err := f.admin.AddStatus(ctx, adminID, "scammer", domain.StatusPatch{
		Title:       ptr("Scammer"),
		Description: ptr("desc"),
		Photo:       ptr("photo1"),
	})
	require.NoError(t, err)
	statuses, err := f.statuses.List(ctx)
	require.NoError(t, err)
	assert.Len(statuses, 2)

	res, err := f.mod.ApplyStatusChange(ctx, StatusChangeRequest{
		ActorID: adminID,
		Target:  "id99",
		Status:  "scammer",
		Proof:   "p",
		Comment: "c",
	})
	require.NoError(t, err)
	assert.Equal(domain.StatusUnknown, res.Entry.OldStatus)
	assert.Equal("scammer", res.User.Status)
	assert.True(res.Created)
	assert.Equal("Scammer", res.StatusTitle)

	entries, err := f.ledger.Recent(ctx, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(adminID, entries[0].ModeratorID)
	assert.Equal(int64(99), entries[0].TargetID)
	assert.Equal(domain.StatusUnknown, entries[0].OldStatus)
	assert.Equal("scammer", entries[0].NewStatus)
	assert.Equal("p", entries[0].Proof)
	assert.Equal("c", entries[0].Comment)

	err = f.admin.DeleteStatus(ctx, adminID, "scammer")
	assert.ErrorIs(err, domain.ErrCategoryInUse)
	_, err = f.statuses.Get(ctx, "scammer")
	assert.NoError(err)

	_, err = f.mod.ApplyStatusChange(ctx, StatusChangeRequest{
		ActorID: adminID,
		Target:  "99",
		Status:  domain.StatusUnknown,
	})
	require.NoError(t, err)
	assert.NoError(f.admin.DeleteStatus(ctx, adminID, "scammer"))

	n, err := f.ledger.Count(ctx)
	require.NoError(t, err)
	assert.Equal(2, n)
}

func TestStatusChangeRejections(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	f := newFixture(t, domain.DefaultStatuses())

	_, err := f.mod.ApplyStatusChange(ctx, StatusChangeRequest{ActorID: modID, Target: "id5", Status: "nope"})
	assert.ErrorIs(err, domain.ErrUnknownStatus)

	_, err = f.mod.ApplyStatusChange(ctx, StatusChangeRequest{ActorID: modID, Target: "@ghost", Status: "verified"})
	assert.ErrorIs(err, domain.ErrTargetNotFound)

	_, err = f.mod.ApplyStatusChange(ctx, StatusChangeRequest{ActorID: memberID, Target: "id5", Status: "verified"})
	assert.ErrorIs(err, domain.ErrForbidden)

	_, err = f.mod.ApplyStatusChange(ctx, StatusChangeRequest{ActorID: modID, Target: "id5", Status: " "})
	assert.ErrorIs(err, domain.ErrInvalidInput)

	_, err = f.users.GetByID(ctx, 5)
	assert.ErrorIs(err, shared.ErrNotExist)
	n, err := f.ledger.Count(ctx)
	require.NoError(t, err)
	assert.Zero(n)
}

func TestStatusChangeOverwritesProofAndComment(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	f := newFixture(t, domain.DefaultStatuses())

	_, err := f.mod.ApplyStatusChange(ctx, StatusChangeRequest{
		ActorID: modID, Target: "id5", Status: "verified", Proof: "p", Comment: "c",
	})
	require.NoError(t, err)
	res, err := f.mod.ApplyStatusChange(ctx, StatusChangeRequest{
		ActorID: modID, Target: "id5", Status: "doubtful",
	})
	require.NoError(t, err)
	assert.Equal("verified", res.Entry.OldStatus)
	assert.Empty(res.User.Proof)
	assert.Empty(res.User.Comment)
}

func TestStatusChangeUsesReplyUsername(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, domain.DefaultStatuses())

	res, err := f.mod.ApplyStatusChange(ctx, StatusChangeRequest{
		ActorID: modID,
		Reply:   ReplyContext{UserID: 8, Username: "dave"},
		Status:  "verified",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(8), res.User.ID)
	assert.Equal(t, "dave", res.User.Username)

	u, err := f.users.GetByUsername(ctx, "@Dave")
	require.NoError(t, err)
	assert.Equal(t, int64(8), u.ID)
}

func TestConcurrentStatusChangesChain(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	f := newFixture(t, domain.DefaultStatuses())

	var wg sync.WaitGroup
	for _, code := range []string{"verified", "scammer"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.mod.ApplyStatusChange(ctx, StatusChangeRequest{ActorID: modID, Target: "id50", Status: code})
			assert.NoError(err)
		}()
	}
	wg.Wait()

	entries, err := f.ledger.Recent(ctx, 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(domain.StatusUnknown, entries[0].OldStatus)
	assert.Equal(entries[0].NewStatus, entries[1].OldStatus)
	assert.NotEqual(entries[0].NewStatus, entries[1].NewStatus)

	u, err := f.users.GetByID(ctx, 50)
	require.NoError(t, err)
	assert.Equal(entries[1].NewStatus, u.Status)
}

func TestStatusChangeNotifiesObservers(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, domain.DefaultStatuses())
	obs := &recordingObserver{changes: make(chan domain.StatusChange, 1), err: errors.New("page failed")}
	f.mod.Observers = []domain.StatusChangeObserver{obs}

	res, err := f.mod.ApplyStatusChange(ctx, StatusChangeRequest{ActorID: modID, Target: "id5", Status: "verified", Proof: "p"})
	require.NoError(t, err)

	select {
	case change := <-obs.changes:
		assert.Equal(t, modID, change.ActorID)
		assert.Equal(t, int64(5), change.TargetID)
		assert.Equal(t, domain.StatusUnknown, change.OldStatus)
		assert.Equal(t, "verified", change.NewStatus)
		assert.Equal(t, "p", change.Proof)
		assert.Equal(t, res.Entry.Time, change.Time)
	case <-time.After(time.Second):
		t.Fatal("observer was not notified")
	}

	u, err := f.users.GetByID(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, "verified", u.Status)
}

func TestLookup(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	f := newFixture(t, domain.DefaultStatuses())

	_, err := f.mod.ApplyStatusChange(ctx, StatusChangeRequest{
		ActorID: modID, Target: "id5", Reply: ReplyContext{UserID: 5, Username: "eve"}, Status: "scammer",
	})
	require.NoError(t, err)

	res, err := f.mod.Lookup(ctx, memberID, "@EVE")
	require.NoError(t, err)
	assert.True(res.Persisted)
	assert.Equal("scammer", res.User.Status)
	assert.Equal("scammer", res.Category.Code)

	res, err = f.mod.Lookup(ctx, memberID, "id404")
	require.NoError(t, err)
	assert.False(res.Persisted)
	assert.Equal(int64(404), res.User.ID)
	assert.Equal(domain.StatusUnknown, res.Category.Code)

	res, err = f.mod.Lookup(ctx, memberID, "nobody")
	require.NoError(t, err)
	assert.False(res.Persisted)
	assert.Equal("nobody", res.User.Username)

	_, err = f.mod.Lookup(ctx, memberID, "@")
	assert.ErrorIs(err, domain.ErrInvalidInput)
}

func TestStatsAndListing(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	f := newFixture(t, domain.DefaultStatuses())

	for _, target := range []string{"id3", "id1", "id2"} {
		_, err := f.mod.ApplyStatusChange(ctx, StatusChangeRequest{ActorID: modID, Target: target, Status: "verified"})
		require.NoError(t, err)
	}

	category, users, err := f.mod.ListByStatus(ctx, memberID, "verified")
	require.NoError(t, err)
	assert.Equal("verified", category.Code)
	require.Len(t, users, 3)
	assert.Equal(int64(1), users[0].ID)

	_, _, err = f.mod.ListByStatus(ctx, memberID, "nope")
	assert.ErrorIs(err, domain.ErrUnknownStatus)

	st, err := f.mod.Stats(ctx, memberID)
	require.NoError(t, err)
	assert.Equal(3, st.Total)
	assert.Equal(3, st.ByStatus["verified"])
	assert.Equal(3, st.LogLength)

	recent, err := f.mod.RecentLedger(ctx, modID, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(int64(2), recent[1].TargetID)

	_, err = f.mod.RecentLedger(ctx, memberID, 2)
	assert.ErrorIs(err, domain.ErrForbidden)
}
