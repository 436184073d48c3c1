package repository

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/charadev96/repguard/internal/bot/domain"
	shared "github.com/charadev96/repguard/internal/shared/domain"
)

func ptr[T any](v T) *T { return &v }

func TestStatusUpsertMergesPatch(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	r := newTestRepos(t)

	c, err := r.statuses.Upsert(ctx, "vip", domain.StatusPatch{Title: ptr("VIP")})
	require.NoError(t, err)
	assert.Equal(domain.StatusCategory{Code: "vip", Title: "VIP"}, c)

	c, err = r.statuses.Upsert(ctx, "vip", domain.StatusPatch{Description: ptr("paid"), Title: ptr("")})
	require.NoError(t, err)
	assert.Equal("VIP", c.Title)
	assert.Equal("paid", c.Description)

	_, err = r.statuses.Update(ctx, "nope", domain.StatusPatch{Title: ptr("x")})
	assert.ErrorIs(err, shared.ErrNotExist)
}

func TestStatusDeleteGuards(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	r := newTestRepos(t)

	_, err := r.users.Upsert(ctx, testUpsert(10, "scammer"))
	require.NoError(t, err)

	assert.ErrorIs(r.statuses.Delete(ctx, "scammer"), domain.ErrCategoryInUse)
	assert.ErrorIs(r.statuses.Delete(ctx, domain.StatusUnknown), domain.ErrCategoryProtected)
	assert.ErrorIs(r.statuses.Delete(ctx, "nope"), shared.ErrNotExist)
	assert.NoError(r.statuses.Delete(ctx, "doubtful"))

	_, err = r.statuses.Get(ctx, "doubtful")
	assert.ErrorIs(err, shared.ErrNotExist)
	_, err = r.statuses.Get(ctx, "scammer")
	assert.NoError(err)
}

func TestStatusResolveTitleFallsBack(t *testing.T) {
	ctx := context.Background()
	r := newTestRepos(t)

	title, err := r.statuses.ResolveTitle(ctx, "verified")
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultStatuses()["verified"].Title, title)

	title, err = r.statuses.ResolveTitle(ctx, "gone")
	require.NoError(t, err)
	assert.Equal(t, domain.UnknownCategory().Title, title)
}

func TestUserUpsert(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	r := newTestRepos(t)

	in := testUpsert(5, "verified")
	in.Username = "Bob"
	in.Proof = "p1"
	in.Comment = "c1"
	res, err := r.users.Upsert(ctx, in)
	require.NoError(t, err)
	assert.True(res.Created)
	assert.Equal(domain.StatusUnknown, res.OldStatus)

	in = testUpsert(5, "scammer")
	in.ModifierID = 2
	res, err = r.users.Upsert(ctx, in)
	require.NoError(t, err)
	assert.False(res.Created)
	assert.Equal("verified", res.OldStatus)

	u, err := r.users.GetByID(ctx, 5)
	require.NoError(t, err)
	assert.Equal("Bob", u.Username)
	assert.Equal("scammer", u.Status)
	assert.Empty(u.Proof)
	assert.Empty(u.Comment)
	require.NotNil(t, u.UpdatedBy)
	assert.Equal(int64(2), *u.UpdatedBy)

	_, err = r.users.Upsert(ctx, testUpsert(6, "nope"))
	assert.ErrorIs(err, domain.ErrUnknownStatus)
}

func TestUserGetByUsername(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	r := newTestRepos(t)

	for _, id := range []int64{30, 20} {
		in := testUpsert(id, "verified")
		in.Username = "Twin"
		_, err := r.users.Upsert(ctx, in)
		require.NoError(t, err)
	}

	u, err := r.users.GetByUsername(ctx, "@twin")
	require.NoError(t, err)
	assert.Equal(int64(20), u.ID)

	_, err = r.users.GetByUsername(ctx, "nobody")
	assert.ErrorIs(err, shared.ErrNotExist)
	_, err = r.users.GetByUsername(ctx, "@")
	assert.ErrorIs(err, shared.ErrNotExist)
}

func TestUserListAndCount(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	r := newTestRepos(t)

	for _, in := range []domain.UserUpsert{
		testUpsert(3, "verified"),
		testUpsert(1, "verified"),
		testUpsert(2, "scammer"),
	} {
		_, err := r.users.Upsert(ctx, in)
		require.NoError(t, err)
	}

	users, err := r.users.ListByStatus(ctx, "verified")
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(int64(1), users[0].ID)
	assert.Equal(int64(3), users[1].ID)

	counts, err := r.users.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(map[string]int{"verified": 2, "scammer": 1}, counts)
}

func TestModeratorRoster(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	r := newTestRepos(t)

	added, err := r.moderators.Add(ctx, 11)
	require.NoError(t, err)
	assert.True(added)
	added, err = r.moderators.Add(ctx, 12)
	require.NoError(t, err)
	assert.True(added)

	removed, err := r.moderators.Remove(ctx, 11)
	require.NoError(t, err)
	assert.True(removed)
	removed, err = r.moderators.Remove(ctx, 11)
	require.NoError(t, err)
	assert.False(removed)

	ids, err := r.moderators.List(ctx)
	require.NoError(t, err)
	assert.Equal([]int64{12}, ids)
}

func TestLedgerRecent(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	r := newTestRepos(t)

	var ids []uuid.UUID
	for i := range 5 {
		id := uuid.New()
		ids = append(ids, id)
		require.NoError(t, r.ledger.Append(ctx, domain.LedgerEntry{
			ID:        id,
			TargetID:  int64(i),
			NewStatus: "verified",
		}))
	}

	recent, err := r.ledger.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(ids[3], recent[0].ID)
	assert.Equal(ids[4], recent[1].ID)

	all, err := r.ledger.Recent(ctx, 0)
	require.NoError(t, err)
	assert.Len(all, 5)

	n, err := r.ledger.Count(ctx)
	require.NoError(t, err)
	assert.Equal(5, n)
}
