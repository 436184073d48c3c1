package telegram

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/require"

	"github.com/charadev96/repguard/internal/bot/domain"
	"github.com/charadev96/repguard/internal/bot/repository"
	"github.com/charadev96/repguard/internal/bot/service"
)

const (
	adminID  int64 = 1
	modID    int64 = 2
	memberID int64 = 3
)

type fakeAPI struct {
	mu        sync.Mutex
	sent      []tgbotapi.Chattable
	requests  []tgbotapi.Chattable
	members   map[string]string
	memberErr error
	sendErr   error
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, c)
	return tgbotapi.Message{}, f.sendErr
}

func (f *fakeAPI) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeAPI) GetChatMember(cfg tgbotapi.GetChatMemberConfig) (tgbotapi.ChatMember, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.memberErr != nil {
		return tgbotapi.ChatMember{}, f.memberErr
	}
	status, ok := f.members[cfg.SuperGroupUsername]
	if !ok {
		status = "member"
	}
	return tgbotapi.ChatMember{Status: status}, nil
}

func (f *fakeAPI) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return make(chan tgbotapi.Update)
}

func (f *fakeAPI) StopReceivingUpdates() {}

func (f *fakeAPI) setMember(channel, status string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.members == nil {
		f.members = make(map[string]string)
	}
	f.members[channel] = status
}

// texts returns message texts and photo captions in send order.
func (f *fakeAPI) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.sent {
		switch m := c.(type) {
		case tgbotapi.MessageConfig:
			out = append(out, m.Text)
		case tgbotapi.PhotoConfig:
			out = append(out, m.Caption)
		}
	}
	return out
}

func (f *fakeAPI) last() tgbotapi.Chattable {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return nil
	}
	return f.sent[len(f.sent)-1]
}

func (f *fakeAPI) lastText() string {
	texts := f.texts()
	if len(texts) == 0 {
		return ""
	}
	return texts[len(texts)-1]
}

type botFixture struct {
	api        *fakeAPI
	bot        *Bot
	users      *repository.DocumentUserRepository
	moderators *repository.DocumentModeratorRepository
}

func newBotFixture(t *testing.T) *botFixture {
	t.Helper()
	store := repository.NewTOMLDocumentStore(filepath.Join(t.TempDir(), "db.toml"), domain.DefaultStatuses())
	runner := repository.NewDocumentTransactionRunner(store, nil, nil)
	users := repository.NewDocumentUserRepository(runner)
	statuses := repository.NewDocumentStatusRepository(runner)
	moderators := repository.NewDocumentModeratorRepository(runner)
	ledger := repository.NewDocumentLedgerRepository(runner, nil)

	_, err := moderators.Add(context.Background(), modID)
	require.NoError(t, err)

	api := &fakeAPI{}
	subs := &ChannelSubscriptionChecker{API: api, Channels: []string{"@base"}}
	access := service.NewAccessPolicy([]int64{adminID}, moderators, subs)
	mod := &service.ModerationService{
		Users:    users,
		Statuses: statuses,
		Ledger:   ledger,
		Access:   access,
		TXRunner: runner,
	}
	admin := &service.AdminService{
		Statuses:   statuses,
		Moderators: moderators,
		Users:      users,
		Access:     access,
		TXRunner:   runner,
	}
	pending := &service.PendingService{
		Actions:    repository.NewCachePendingActionRepository(0),
		Admin:      admin,
		Moderation: mod,
		Access:     access,
	}
	return &botFixture{
		api: api,
		bot: &Bot{
			API:           api,
			Moderation:    mod,
			Admin:         admin,
			Pending:       pending,
			Subscriptions: subs,
			Footer:        "Group: @base",
		},
		users:      users,
		moderators: moderators,
	}
}

func sender(id int64) *tgbotapi.User {
	return &tgbotapi.User{ID: id, UserName: fmt.Sprintf("user%d", id)}
}

func textUpdate(from int64, text string) tgbotapi.Update {
	msg := &tgbotapi.Message{
		From: sender(from),
		Chat: &tgbotapi.Chat{ID: from, Type: "private"},
		Text: text,
	}
	if strings.HasPrefix(text, "/") {
		cmd, _, _ := strings.Cut(text, " ")
		msg.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(cmd)}}
	}
	return tgbotapi.Update{Message: msg}
}

func callbackUpdate(from int64, data string) tgbotapi.Update {
	return tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:   "cb",
		From: sender(from),
		Message: &tgbotapi.Message{
			Chat: &tgbotapi.Chat{ID: from, Type: "private"},
		},
		Data: data,
	}}
}
