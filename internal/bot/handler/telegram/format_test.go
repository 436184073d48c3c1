package telegram

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/charadev96/repguard/internal/bot/domain"
	shared "github.com/charadev96/repguard/internal/shared/domain"
)

func TestStatusCard(t *testing.T) {
	assert := assert.New(t)
	at := time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)
	u := domain.UserRecord{
		ID:        42,
		Username:  "a<b>",
		Status:    "scammer",
		Proof:     "https://t.me/c/1",
		UpdatedAt: &at,
	}
	card := StatusCard(u, domain.DefaultStatuses()["scammer"], "footer")
	assert.Contains(card, "@a&lt;b&gt; | id <code>42</code>")
	assert.Contains(card, "Proof: https://t.me/c/1")
	assert.Contains(card, "2024-05-01 12:30 UTC")
	assert.Contains(card, "\n\nfooter")

	card = StatusCard(domain.NewUnknownUser(0, ""), domain.UnknownCategory(), "")
	assert.Contains(card, "not set | id <code>unknown</code>")
}

func TestStatusListIsSorted(t *testing.T) {
	text := StatusList(map[string]domain.StatusCategory{
		"b": {Code: "b", Title: "Beta"},
		"a": {Code: "a", Title: "Alpha"},
	})
	assert.Regexp(t, `(?s)1\. Alpha.*2\. Beta`, text)
}

func TestErrorText(t *testing.T) {
	table := []struct {
		err  error
		want string
	}{
		{fmt.Errorf("failed to delete status: %w", domain.ErrCategoryInUse), "assigned to users"},
		{domain.ErrTargetNotFound, "User not found"},
		{fmt.Errorf("%w: expected a numeric user id", domain.ErrInvalidInput), "numeric user id"},
		{shared.ErrNotExist, "Not found"},
		{domain.ErrStoreUnavailable, "try again later"},
		{domain.ErrStoreCorrupt, "damaged"},
	}
	for _, row := range table {
		assert.Contains(t, ErrorText(row.err), row.want)
	}
}

func TestLedgerText(t *testing.T) {
	statuses := domain.DefaultStatuses()
	text := LedgerText([]domain.LedgerEntry{{
		Time:        time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		ModeratorID: 2,
		TargetID:    5,
		OldStatus:   domain.StatusUnknown,
		NewStatus:   "gone",
		Comment:     "note",
	}}, statuses)
	assert.Contains(t, text, statuses[domain.StatusUnknown].Title+" → gone")
	assert.Contains(t, text, "Comment: note")
	assert.Equal(t, "No status changes recorded yet.", LedgerText(nil, statuses))
}
