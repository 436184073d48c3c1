package telegram

import (
	"context"
	"sync"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/charadev96/repguard/internal/bot/domain"
)

func TestSetStatusCommand(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	f := newBotFixture(t)

	f.bot.HandleUpdate(ctx, textUpdate(modID, "/setstatus id5 scammer https://t.me/c/1 took the money"))
	assert.Contains(f.api.lastText(), "Status updated")

	u, err := f.users.GetByID(ctx, 5)
	require.NoError(t, err)
	assert.Equal("scammer", u.Status)
	assert.Equal("https://t.me/c/1", u.Proof)
	assert.Equal("took the money", u.Comment)
}

func TestSetStatusInReply(t *testing.T) {
	ctx := context.Background()
	f := newBotFixture(t)

	upd := textUpdate(modID, "/setstatus - verified")
	upd.Message.ReplyToMessage = &tgbotapi.Message{From: &tgbotapi.User{ID: 40, UserName: "frank"}}
	f.bot.HandleUpdate(ctx, upd)

	u, err := f.users.GetByID(ctx, 40)
	require.NoError(t, err)
	assert.Equal(t, "verified", u.Status)
	assert.Equal(t, "frank", u.Username)
}

func TestSetStatusForbiddenForMembers(t *testing.T) {
	ctx := context.Background()
	f := newBotFixture(t)

	f.bot.HandleUpdate(ctx, textUpdate(memberID, "/setstatus id5 scammer"))
	assert.Equal(t, ErrorText(domain.ErrForbidden), f.api.lastText())
}

func TestPendingAddModeratorFlow(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	f := newBotFixture(t)

	f.bot.HandleUpdate(ctx, textUpdate(adminID, "/addmod"))
	assert.Equal(PendingPrompt(domain.PendingAddModerator), f.api.lastText())

	f.bot.HandleUpdate(ctx, textUpdate(adminID, "seventy"))
	assert.Contains(f.api.lastText(), "numeric user id")

	f.bot.HandleUpdate(ctx, textUpdate(adminID, "77"))
	assert.Contains(f.api.lastText(), "is now a moderator")

	ok, err := f.moderators.Contains(ctx, 77)
	require.NoError(t, err)
	assert.True(ok)
}

func TestAdminPanelCallbackStartsPending(t *testing.T) {
	ctx := context.Background()
	f := newBotFixture(t)

	f.bot.HandleUpdate(ctx, callbackUpdate(adminID, "admin_delstatus"))
	assert.Equal(t, PendingPrompt(domain.PendingDeleteStatus), f.api.lastText())

	f.bot.HandleUpdate(ctx, textUpdate(adminID, "doubtful"))
	assert.Contains(t, f.api.lastText(), "deleted")
}

func TestUnsubscribedStartShowsChannels(t *testing.T) {
	ctx := context.Background()
	f := newBotFixture(t)
	f.api.setMember("@base", "left")

	f.bot.HandleUpdate(ctx, textUpdate(memberID, "/start"))
	msg, ok := f.api.last().(tgbotapi.MessageConfig)
	require.True(t, ok)
	assert.Equal(t, ErrorText(domain.ErrNotSubscribed), msg.Text)
	markup, ok := msg.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	require.True(t, ok)
	require.Len(t, markup.InlineKeyboard, 2)
	require.NotNil(t, markup.InlineKeyboard[0][0].URL)
	assert.Equal(t, "https://t.me/base", *markup.InlineKeyboard[0][0].URL)
}

func TestFreeTextSearchesUnknownUser(t *testing.T) {
	ctx := context.Background()
	f := newBotFixture(t)

	f.bot.HandleUpdate(ctx, textUpdate(memberID, "@nobody"))
	photo, ok := f.api.last().(tgbotapi.PhotoConfig)
	require.True(t, ok)
	assert.Contains(t, photo.Caption, "@nobody")
	assert.Contains(t, photo.Caption, domain.UnknownCategory().Title)
	assert.Contains(t, photo.Caption, "Group: @base")
}

func TestListCallback(t *testing.T) {
	ctx := context.Background()
	f := newBotFixture(t)
	f.bot.HandleUpdate(ctx, textUpdate(modID, "/setstatus id9 verified"))

	f.bot.HandleUpdate(ctx, callbackUpdate(memberID, "list_verified"))
	assert.Contains(t, f.api.lastText(), "<code>9</code>")
	assert.NotEmpty(t, f.api.requests)
}

func TestActorLocksAreReleased(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	f := newBotFixture(t)

	f.bot.HandleUpdate(ctx, textUpdate(memberID, "/help"))
	f.bot.HandleUpdate(ctx, callbackUpdate(adminID, "menu_help"))
	assert.Equal(0, f.bot.locks.Size())

	var (
		wg      sync.WaitGroup
		counter int
	)
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := f.bot.lock(memberID)
			counter++
			unlock()
		}()
	}
	wg.Wait()
	assert.Equal(20, counter)
	assert.Equal(0, f.bot.locks.Size())
}
