package telegram

import (
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/charadev96/repguard/internal/bot/domain"
)

const (
	cbCheckSubs   = "check_subs"
	cbMenuSearch  = "menu_search"
	cbMenuProfile = "menu_profile"
	cbMenuLists   = "menu_lists"
	cbMenuHelp    = "menu_help"

	cbAdminRefresh  = "admin_refresh"
	cbAdminMods     = "admin_mods"
	cbAdminStatuses = "admin_statuses"
	cbAdminLogs     = "admin_logs"

	cbListPrefix = "list_"
)

// adminActions maps panel buttons that start a pending action.
var adminActions = map[string]domain.PendingTag{
	"admin_addmod":     domain.PendingAddModerator,
	"admin_delmod":     domain.PendingRemoveModerator,
	"admin_addstatus":  domain.PendingAddStatus,
	"admin_editstatus": domain.PendingEditStatus,
	"admin_delstatus":  domain.PendingDeleteStatus,
	"admin_setstatus":  domain.PendingSetStatus,
}

func button(text, data string) []tgbotapi.InlineKeyboardButton {
	return tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData(text, data))
}

func mainMenu() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		button("🔍 Search", cbMenuSearch),
		button("💼 Profile", cbMenuProfile),
		button("👥 Lists", cbMenuLists),
		button("❓ Help", cbMenuHelp),
	)
}

func adminPanel() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		button("🔄 Refresh", cbAdminRefresh),
		button("👥 Moderators", cbAdminMods),
		button("➕ Add moderator", "admin_addmod"),
		button("➖ Remove moderator", "admin_delmod"),
		button("📂 Statuses", cbAdminStatuses),
		button("🆕 Add status", "admin_addstatus"),
		button("✏️ Edit status", "admin_editstatus"),
		button("🗑 Delete status", "admin_delstatus"),
		button("⚙️ Set user status", "admin_setstatus"),
		button("📒 Logs", cbAdminLogs),
	)
}

func listsMenu(statuses map[string]domain.StatusCategory) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(statuses))
	for _, code := range sortedCodes(statuses) {
		rows = append(rows, button(statuses[code].Title, cbListPrefix+code))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func subscribeMenu(channels []string) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(channels)+1)
	for _, ch := range channels {
		url := "https://t.me/" + strings.TrimPrefix(ch, "@")
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonURL("Subscribe to "+ch, url),
		))
	}
	rows = append(rows, button("✅ Check subscription", cbCheckSubs))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}
