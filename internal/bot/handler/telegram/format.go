package telegram

import (
	"errors"
	"fmt"
	"html"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/charadev96/repguard/internal/bot/domain"
	"github.com/charadev96/repguard/internal/bot/service"
	shared "github.com/charadev96/repguard/internal/shared/domain"
)

const timeLayout = "2006-01-02 15:04 UTC"

const helpText = `<b>Commands</b>
/search <code>query</code> - find a user
/me - your own status
/check - status of the user you reply to
/statuses - status categories
/stats - database statistics
/help - this message

<b>Search by</b>
• id - <code>id123456789</code> or <code>123456789</code>
• username - <code>@username</code>

<b>Moderators</b>
/setstatus <code>target status [proof] [comment]</code>
In reply to a message use <code>-</code> as the target.
/logs <code>[n]</code> - recent status changes

<b>Admins</b>
/admin - panel
/addmod, /delmod, /listmods
/addstatus <code>code;title;photo;description</code>
/editstatus <code>code title|photo|description value</code>
/delstatus <code>code</code>
/cancel - drop the pending action`

func escape(s string) string {
	return html.EscapeString(s)
}

func displayName(u domain.UserRecord) string {
	if u.Username == "" {
		return "not set"
	}
	return "@" + escape(u.Username)
}

// StatusCard renders a user's status the way every lookup shows it.
func StatusCard(u domain.UserRecord, category domain.StatusCategory, footer string) string {
	var b strings.Builder
	id := "unknown"
	if u.ID != 0 {
		id = strconv.FormatInt(u.ID, 10)
	}
	fmt.Fprintf(&b, "%s | id <code>%s</code>\n\n", displayName(u), id)
	fmt.Fprintf(&b, "<b>%s</b>", escape(category.Title))
	if category.Description != "" {
		fmt.Fprintf(&b, "\n%s", escape(category.Description))
	}
	if u.Proof != "" {
		fmt.Fprintf(&b, "\n\nProof: %s", escape(u.Proof))
	}
	if u.Comment != "" {
		fmt.Fprintf(&b, "\nComment: %s", escape(u.Comment))
	}
	if u.UpdatedAt != nil {
		fmt.Fprintf(&b, "\nUpdated: %s", u.UpdatedAt.UTC().Format(timeLayout))
	}
	if footer != "" {
		fmt.Fprintf(&b, "\n\n%s", escape(footer))
	}
	return b.String()
}

// sortedCodes orders categories by title so menus stay stable.
func sortedCodes(statuses map[string]domain.StatusCategory) []string {
	codes := make([]string, 0, len(statuses))
	for code := range statuses {
		codes = append(codes, code)
	}
	slices.SortFunc(codes, func(a, b string) int {
		if c := strings.Compare(statuses[a].Title, statuses[b].Title); c != 0 {
			return c
		}
		return strings.Compare(a, b)
	})
	return codes
}

func StatusList(statuses map[string]domain.StatusCategory) string {
	var b strings.Builder
	b.WriteString("<b>Status categories</b>\n")
	for i, code := range sortedCodes(statuses) {
		c := statuses[code]
		fmt.Fprintf(&b, "\n%d. %s <code>%s</code>", i+1, escape(c.Title), escape(code))
		if c.Description != "" {
			fmt.Fprintf(&b, " - %s", escape(c.Description))
		}
	}
	return b.String()
}

func UserList(category domain.StatusCategory, users []domain.UserRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<b>%s</b>: %d\n", escape(category.Title), len(users))
	if len(users) == 0 {
		b.WriteString("\nNobody yet.")
		return b.String()
	}
	for _, u := range users {
		fmt.Fprintf(&b, "\n• %s | <code>%d</code>", displayName(u), u.ID)
	}
	return b.String()
}

func StatsText(st service.Stats) string {
	var b strings.Builder
	b.WriteString("<b>Statistics</b>\n")
	fmt.Fprintf(&b, "Users in the database: %d\n", st.Total)
	for _, code := range sortedCodes(st.Statuses) {
		fmt.Fprintf(&b, "\n%s: %d", escape(st.Statuses[code].Title), st.ByStatus[code])
	}
	fmt.Fprintf(&b, "\n\nStatus changes recorded: %d", st.LogLength)
	return b.String()
}

func OverviewText(ov service.Overview) string {
	var b strings.Builder
	total := 0
	for _, n := range ov.Counts {
		total += n
	}
	b.WriteString("<b>Admin panel</b>\n")
	fmt.Fprintf(&b, "Users in the database: %d\n", total)
	for _, code := range sortedCodes(ov.Statuses) {
		fmt.Fprintf(&b, "\n%s: %d", escape(ov.Statuses[code].Title), ov.Counts[code])
	}
	fmt.Fprintf(&b, "\n\nAdmins: %d\nModerators: %d", len(ov.Admins), len(ov.Moderators))
	return b.String()
}

func ModeratorList(ids []int64) string {
	if len(ids) == 0 {
		return "There are no moderators yet."
	}
	var b strings.Builder
	b.WriteString("<b>Moderators</b>\n")
	for _, id := range ids {
		fmt.Fprintf(&b, "\n<code>%d</code>", id)
	}
	return b.String()
}

func title(statuses map[string]domain.StatusCategory, code string) string {
	if c, ok := statuses[code]; ok {
		return c.Title
	}
	return code
}

func LedgerText(entries []domain.LedgerEntry, statuses map[string]domain.StatusCategory) string {
	if len(entries) == 0 {
		return "No status changes recorded yet."
	}
	var b strings.Builder
	b.WriteString("<b>Recent status changes</b>\n")
	for _, e := range entries {
		fmt.Fprintf(&b, "\n%s\n<code>%d</code> → <code>%d</code>: %s → %s",
			e.Time.UTC().Format(timeLayout),
			e.ModeratorID, e.TargetID,
			escape(title(statuses, e.OldStatus)), escape(title(statuses, e.NewStatus)),
		)
		if e.Proof != "" {
			fmt.Fprintf(&b, "\nProof: %s", escape(e.Proof))
		}
		if e.Comment != "" {
			fmt.Fprintf(&b, "\nComment: %s", escape(e.Comment))
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// ChangeNotice describes a committed status change for admins.
func ChangeNotice(change domain.StatusChange, oldTitle, newTitle string) string {
	var b strings.Builder
	b.WriteString("📢 <b>Moderator action</b>\n")
	fmt.Fprintf(&b, "Moderator: <code>%d</code>\n", change.ActorID)
	target := "not set"
	if change.TargetUsername != "" {
		target = "@" + escape(change.TargetUsername)
	}
	fmt.Fprintf(&b, "Target: <code>%d</code> (%s)\n", change.TargetID, target)
	fmt.Fprintf(&b, "Status: %s → %s\n", escape(oldTitle), escape(newTitle))
	if change.Proof != "" {
		fmt.Fprintf(&b, "Proof: %s\n", escape(change.Proof))
	}
	if change.Comment != "" {
		fmt.Fprintf(&b, "Comment: %s\n", escape(change.Comment))
	}
	fmt.Fprintf(&b, "Time: %s", change.Time.UTC().Format(time.RFC3339))
	return b.String()
}

var pendingPrompts = map[domain.PendingTag]string{
	domain.PendingAddModerator:    "Send the numeric id of the new moderator.",
	domain.PendingRemoveModerator: "Send the numeric id of the moderator to remove.",
	domain.PendingAddStatus:       "Send the new status as <code>code;title;photo;description</code>.",
	domain.PendingEditStatus:      "Send <code>code field value</code>, where field is title, photo or description.",
	domain.PendingDeleteStatus:    "Send the code of the status to delete.",
	domain.PendingSetStatus:       "Send <code>target status [proof] [comment]</code>.",
}

func PendingPrompt(tag domain.PendingTag) string {
	return pendingPrompts[tag] + "\n/cancel to abort."
}

func PendingDone(res service.PendingResult) string {
	switch res.Tag {
	case domain.PendingAddModerator:
		if !res.Changed {
			return fmt.Sprintf("<code>%d</code> is already a moderator.", res.ModeratorID)
		}
		return fmt.Sprintf("✅ <code>%d</code> is now a moderator.", res.ModeratorID)
	case domain.PendingRemoveModerator:
		if !res.Changed {
			return fmt.Sprintf("<code>%d</code> is not a moderator.", res.ModeratorID)
		}
		return fmt.Sprintf("❌ <code>%d</code> is no longer a moderator.", res.ModeratorID)
	case domain.PendingAddStatus, domain.PendingEditStatus:
		return fmt.Sprintf("✅ Status <code>%s</code> saved: %s", escape(res.Code), escape(res.Category.Title))
	case domain.PendingDeleteStatus:
		return fmt.Sprintf("🗑 Status <code>%s</code> deleted.", escape(res.Code))
	case domain.PendingSetStatus:
		return ChangeDone(res.Change)
	}
	return "Done."
}

func ChangeDone(res service.StatusChangeResult) string {
	return fmt.Sprintf("✅ Status updated: %s\nid <code>%d</code> | %s",
		escape(res.StatusTitle), res.User.ID, displayName(res.User))
}

// ErrorText turns an operation error into the reply shown to the actor.
func ErrorText(err error) string {
	switch {
	case errors.Is(err, domain.ErrNotSubscribed):
		return "Subscribe to our channels before using the bot."
	case errors.Is(err, domain.ErrForbidden):
		return "You are not allowed to do that."
	case errors.Is(err, domain.ErrTargetNotFound):
		return "User not found. Use @username, id123456789 or reply to their message."
	case errors.Is(err, domain.ErrUnknownStatus):
		return "Unknown status. See /statuses for the available codes."
	case errors.Is(err, domain.ErrCategoryInUse):
		return "This status is assigned to users and cannot be deleted."
	case errors.Is(err, domain.ErrCategoryProtected):
		return "The unknown status cannot be deleted."
	case errors.Is(err, domain.ErrInvalidInput):
		return "⚠️ " + escape(err.Error())
	case errors.Is(err, shared.ErrNotExist):
		return "Not found."
	case errors.Is(err, domain.ErrStoreCorrupt):
		return "The database is damaged. An administrator has to restore it."
	}
	return "Something went wrong, try again later."
}
