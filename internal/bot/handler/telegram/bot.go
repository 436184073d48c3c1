package telegram

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/rs/zerolog"

	"github.com/charadev96/repguard/internal/bot/domain"
	"github.com/charadev96/repguard/internal/bot/service"
	"github.com/charadev96/repguard/internal/shared/log"
)

const welcomeText = "👋 Hi! I check users against the reputation database.\n" +
	"Use the menu below or send @username or id123456789."

// Bot translates Telegram updates into service calls. Updates from the same
// actor are handled one at a time so a pending action cannot race with the
// actor's next message.
type Bot struct {
	API           API
	Moderation    *service.ModerationService
	Admin         *service.AdminService
	Pending       *service.PendingService
	Subscriptions *ChannelSubscriptionChecker
	Footer        string
	Logger        *zerolog.Logger

	once  sync.Once
	locks *xsync.MapOf[int64, *actorLock]
	wg    sync.WaitGroup
}

// actorLock serialises one actor's updates. refs counts holders and
// waiters and is only touched inside locks.Compute.
type actorLock struct {
	mu   sync.Mutex
	refs int
}

func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.API.GetUpdatesChan(u)
	b.logger().Info().Msg("receiving updates")

	// In-flight handlers finish their replies after shutdown starts.
	handlerCtx := context.WithoutCancel(ctx)
	defer b.wg.Wait()
	for {
		select {
		case <-ctx.Done():
			b.logger().Info().Msg("shutting down")
			b.API.StopReceivingUpdates()
			return nil
		case upd, ok := <-updates:
			if !ok {
				return nil
			}
			b.wg.Add(1)
			go func() {
				defer b.wg.Done()
				b.HandleUpdate(handlerCtx, upd)
			}()
		}
	}
}

func (b *Bot) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	switch {
	case upd.Message != nil && upd.Message.From != nil:
		updatesHandled.WithLabelValues("message").Inc()
		defer b.lock(upd.Message.From.ID)()
		b.handleMessage(ctx, upd.Message)
	case upd.CallbackQuery != nil && upd.CallbackQuery.From != nil:
		updatesHandled.WithLabelValues("callback").Inc()
		defer b.lock(upd.CallbackQuery.From.ID)()
		b.handleCallback(ctx, upd.CallbackQuery)
	case upd.InlineQuery != nil && upd.InlineQuery.From != nil:
		updatesHandled.WithLabelValues("inline").Inc()
		b.handleInline(ctx, upd.InlineQuery)
	}
}

// lock acquires the actor's mutex. The entry is dropped from the map when
// the last holder releases it.
func (b *Bot) lock(actor int64) func() {
	b.once.Do(func() {
		b.locks = xsync.NewMapOf[int64, *actorLock]()
	})
	l, _ := b.locks.Compute(actor, func(l *actorLock, loaded bool) (*actorLock, bool) {
		if !loaded {
			l = new(actorLock)
		}
		l.refs++
		return l, false
	})
	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		b.locks.Compute(actor, func(cur *actorLock, loaded bool) (*actorLock, bool) {
			if !loaded {
				return cur, true
			}
			cur.refs--
			return cur, cur.refs == 0
		})
	}
}

func (b *Bot) handleMessage(ctx context.Context, m *tgbotapi.Message) {
	if m.IsCommand() {
		b.handleCommand(ctx, m)
		return
	}
	if m.Chat == nil || !m.Chat.IsPrivate() {
		return
	}
	text := strings.TrimSpace(m.Text)
	if text == "" {
		return
	}
	actor := m.From.ID
	if _, ok := b.Pending.Pending(actor); ok {
		res, err := b.Pending.Handle(ctx, actor, text)
		if err != nil {
			b.replyError(ctx, m.Chat.ID, actor, err)
			return
		}
		b.reply(m.Chat.ID, PendingDone(res), nil)
		return
	}
	b.lookup(ctx, m.Chat.ID, actor, text)
}

func (b *Bot) handleCommand(ctx context.Context, m *tgbotapi.Message) {
	actor := m.From.ID
	chat := m.Chat.ID
	args := strings.TrimSpace(m.CommandArguments())

	switch m.Command() {
	case "start":
		b.Pending.Cancel(actor)
		if err := b.Moderation.Access.Authorize(ctx, actor, service.RoleMember); err != nil {
			b.replyError(ctx, chat, actor, err)
			return
		}
		b.reply(chat, welcomeText, mainMenu())
	case "help":
		b.reply(chat, helpText, mainMenu())
	case "cancel":
		b.Pending.Cancel(actor)
		b.reply(chat, "Cancelled.", nil)
	case "me":
		b.showUser(ctx, chat, actor, m.From)
	case "search":
		if args == "" {
			b.reply(chat, "Send <code>/search @username</code> or <code>/search id123456789</code>.", nil)
			return
		}
		b.lookup(ctx, chat, actor, args)
	case "check":
		switch {
		case m.ReplyToMessage != nil && m.ReplyToMessage.From != nil:
			b.showUser(ctx, chat, actor, m.ReplyToMessage.From)
		case args != "":
			b.lookup(ctx, chat, actor, args)
		default:
			b.reply(chat, "Reply to a user's message with /check.", nil)
		}
	case "statuses", "info":
		b.showStatuses(ctx, chat, actor)
	case "stats":
		b.showStats(ctx, chat, actor)
	case "logs":
		n, _ := strconv.Atoi(args)
		b.showLedger(ctx, chat, actor, n)
	case "setstatus":
		if args == "" {
			b.begin(ctx, chat, actor, domain.PendingSetStatus)
			return
		}
		req, err := service.ParseSetStatusArgs(actor, args)
		if err != nil {
			b.replyError(ctx, chat, actor, err)
			return
		}
		req.Reply = replyContext(m)
		res, err := b.Moderation.ApplyStatusChange(ctx, req)
		if err != nil {
			b.replyError(ctx, chat, actor, err)
			return
		}
		b.reply(chat, ChangeDone(res), nil)
	case "addmod":
		b.runAction(ctx, chat, actor, domain.PendingAddModerator, args)
	case "delmod":
		b.runAction(ctx, chat, actor, domain.PendingRemoveModerator, args)
	case "addstatus":
		b.runAction(ctx, chat, actor, domain.PendingAddStatus, args)
	case "editstatus":
		b.runAction(ctx, chat, actor, domain.PendingEditStatus, args)
	case "delstatus":
		b.runAction(ctx, chat, actor, domain.PendingDeleteStatus, args)
	case "listmods":
		b.showModerators(ctx, chat, actor)
	case "admin":
		b.showOverview(ctx, chat, actor)
	default:
		if m.Chat.IsPrivate() {
			b.reply(chat, "Unknown command. See /help.", nil)
		}
	}
}

func (b *Bot) handleCallback(ctx context.Context, q *tgbotapi.CallbackQuery) {
	actor := q.From.ID
	chat := actor
	if q.Message != nil && q.Message.Chat != nil {
		chat = q.Message.Chat.ID
	}

	data := q.Data
	if tag, ok := adminActions[data]; ok {
		b.answer(q.ID, "")
		b.begin(ctx, chat, actor, tag)
		return
	}
	if code, ok := strings.CutPrefix(data, cbListPrefix); ok {
		b.answer(q.ID, "")
		b.showList(ctx, chat, actor, code)
		return
	}

	switch data {
	case cbCheckSubs:
		if err := b.Moderation.Access.Authorize(ctx, actor, service.RoleMember); err != nil {
			b.alert(q.ID, "You are not subscribed yet.")
			return
		}
		b.answer(q.ID, "")
		b.reply(chat, "✅ Subscription confirmed. You can use the bot now.", mainMenu())
	case cbMenuSearch:
		b.answer(q.ID, "")
		b.reply(chat, "✏️ Send @username or id123456789 to look a user up.", nil)
	case cbMenuProfile:
		b.answer(q.ID, "")
		b.showUser(ctx, chat, actor, q.From)
	case cbMenuLists:
		b.answer(q.ID, "")
		statuses, err := b.Admin.ListStatuses(ctx, actor)
		if err != nil {
			b.replyError(ctx, chat, actor, err)
			return
		}
		b.reply(chat, "Choose a list:", listsMenu(statuses))
	case cbMenuHelp:
		b.answer(q.ID, "")
		b.reply(chat, helpText, mainMenu())
	case cbAdminRefresh:
		b.answer(q.ID, "")
		b.showOverview(ctx, chat, actor)
	case cbAdminMods:
		b.answer(q.ID, "")
		b.showModerators(ctx, chat, actor)
	case cbAdminStatuses:
		b.answer(q.ID, "")
		b.showStatuses(ctx, chat, actor)
	case cbAdminLogs:
		b.answer(q.ID, "")
		b.showLedger(ctx, chat, actor, 0)
	default:
		b.answer(q.ID, "")
	}
}

func (b *Bot) handleInline(ctx context.Context, q *tgbotapi.InlineQuery) {
	query := strings.TrimSpace(q.Query)
	var article tgbotapi.InlineQueryResultArticle
	if query == "" {
		article = tgbotapi.NewInlineQueryResultArticleHTML("empty", "Search a user",
			"Type @username or id123456789 to check a user.")
		article.Description = "@username or id123456789"
	} else {
		res, err := b.Moderation.Lookup(ctx, q.From.ID, query)
		if err != nil {
			b.logFailure(q.From.ID, err)
			article = tgbotapi.NewInlineQueryResultArticleHTML("error", "Lookup failed", ErrorText(err))
		} else {
			name := res.User.Username
			if name == "" {
				name = strconv.FormatInt(res.User.ID, 10)
			}
			article = tgbotapi.NewInlineQueryResultArticleHTML("user", "Status of "+name,
				StatusCard(res.User, res.Category, b.Footer))
			article.Description = res.Category.Title
		}
	}
	cfg := tgbotapi.InlineConfig{
		InlineQueryID: q.ID,
		Results:       []interface{}{article},
		CacheTime:     1,
	}
	if _, err := b.API.Request(cfg); err != nil {
		b.logger().Warn().Err(err).Msg("failed to answer inline query")
	}
}

func (b *Bot) runAction(ctx context.Context, chat, actor int64, tag domain.PendingTag, args string) {
	if args == "" {
		b.begin(ctx, chat, actor, tag)
		return
	}
	res, err := b.Pending.Apply(ctx, actor, tag, args)
	if err != nil {
		b.replyError(ctx, chat, actor, err)
		return
	}
	b.reply(chat, PendingDone(res), nil)
}

func (b *Bot) begin(ctx context.Context, chat, actor int64, tag domain.PendingTag) {
	if err := b.Pending.Begin(ctx, actor, tag); err != nil {
		b.replyError(ctx, chat, actor, err)
		return
	}
	b.reply(chat, PendingPrompt(tag), nil)
}

func (b *Bot) lookup(ctx context.Context, chat, actor int64, query string) {
	res, err := b.Moderation.Lookup(ctx, actor, query)
	if err != nil {
		b.replyError(ctx, chat, actor, err)
		return
	}
	b.sendCard(chat, res.User, res.Category)
}

// showUser looks up a Telegram user by id and keeps their current
// username when they have no record yet.
func (b *Bot) showUser(ctx context.Context, chat, actor int64, u *tgbotapi.User) {
	res, err := b.Moderation.Lookup(ctx, actor, "id"+strconv.FormatInt(u.ID, 10))
	if err != nil {
		b.replyError(ctx, chat, actor, err)
		return
	}
	if !res.Persisted || res.User.Username == "" {
		res.User.Username = u.UserName
	}
	b.sendCard(chat, res.User, res.Category)
}

func (b *Bot) showStatuses(ctx context.Context, chat, actor int64) {
	statuses, err := b.Admin.ListStatuses(ctx, actor)
	if err != nil {
		b.replyError(ctx, chat, actor, err)
		return
	}
	b.reply(chat, StatusList(statuses), nil)
}

func (b *Bot) showList(ctx context.Context, chat, actor int64, code string) {
	category, users, err := b.Moderation.ListByStatus(ctx, actor, code)
	if err != nil {
		b.replyError(ctx, chat, actor, err)
		return
	}
	b.reply(chat, UserList(category, users), nil)
}

func (b *Bot) showStats(ctx context.Context, chat, actor int64) {
	st, err := b.Moderation.Stats(ctx, actor)
	if err != nil {
		b.replyError(ctx, chat, actor, err)
		return
	}
	b.reply(chat, StatsText(st), nil)
}

func (b *Bot) showLedger(ctx context.Context, chat, actor int64, n int) {
	entries, err := b.Moderation.RecentLedger(ctx, actor, n)
	if err != nil {
		b.replyError(ctx, chat, actor, err)
		return
	}
	statuses, err := b.Admin.ListStatuses(ctx, actor)
	if err != nil {
		b.replyError(ctx, chat, actor, err)
		return
	}
	b.reply(chat, LedgerText(entries, statuses), nil)
}

func (b *Bot) showModerators(ctx context.Context, chat, actor int64) {
	ids, err := b.Admin.ListModerators(ctx, actor)
	if err != nil {
		b.replyError(ctx, chat, actor, err)
		return
	}
	b.reply(chat, ModeratorList(ids), nil)
}

func (b *Bot) showOverview(ctx context.Context, chat, actor int64) {
	ov, err := b.Admin.Overview(ctx, actor)
	if err != nil {
		b.replyError(ctx, chat, actor, err)
		return
	}
	b.reply(chat, OverviewText(ov), adminPanel())
}

func (b *Bot) sendCard(chat int64, u domain.UserRecord, category domain.StatusCategory) {
	caption := StatusCard(u, category, b.Footer)
	if category.Photo != "" {
		photo := tgbotapi.NewPhoto(chat, photoFile(category.Photo))
		photo.Caption = caption
		photo.ParseMode = tgbotapi.ModeHTML
		_, err := b.API.Send(photo)
		if err == nil {
			return
		}
		b.logger().Warn().Err(err).Str("photo", category.Photo).Msg("failed to send status photo")
	}
	b.reply(chat, caption, nil)
}

func photoFile(s string) tgbotapi.RequestFileData {
	if strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") {
		return tgbotapi.FileURL(s)
	}
	return tgbotapi.FileID(s)
}

func (b *Bot) reply(chat int64, text string, markup any) {
	msg := tgbotapi.NewMessage(chat, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if markup != nil {
		msg.ReplyMarkup = markup
	}
	if _, err := b.API.Send(msg); err != nil {
		b.logger().Warn().Err(err).Int64("chat", chat).Msg("failed to send message")
	}
}

func (b *Bot) replyError(ctx context.Context, chat, actor int64, err error) {
	b.logFailure(actor, err)
	if errors.Is(err, domain.ErrNotSubscribed) && b.Subscriptions != nil {
		missing, _ := b.Subscriptions.Missing(ctx, actor)
		if len(missing) == 0 {
			missing = b.Subscriptions.Channels
		}
		b.reply(chat, ErrorText(err), subscribeMenu(missing))
		return
	}
	b.reply(chat, ErrorText(err), nil)
}

// logFailure logs system failures. Rejections are answered, not logged.
func (b *Bot) logFailure(actor int64, err error) {
	if service.IsRejection(err) {
		return
	}
	b.logger().Error().Err(err).Int64("actor", actor).Msg("operation failed")
}

func (b *Bot) answer(id, text string) {
	if _, err := b.API.Request(tgbotapi.NewCallback(id, text)); err != nil {
		b.logger().Debug().Err(err).Msg("failed to answer callback")
	}
}

func (b *Bot) alert(id, text string) {
	if _, err := b.API.Request(tgbotapi.NewCallbackWithAlert(id, text)); err != nil {
		b.logger().Debug().Err(err).Msg("failed to answer callback")
	}
}

func replyContext(m *tgbotapi.Message) service.ReplyContext {
	if m.ReplyToMessage == nil || m.ReplyToMessage.From == nil {
		return service.ReplyContext{}
	}
	return service.ReplyContext{
		UserID:   m.ReplyToMessage.From.ID,
		Username: m.ReplyToMessage.From.UserName,
	}
}

func (b *Bot) logger() *zerolog.Logger {
	return log.OrNop(b.Logger)
}
