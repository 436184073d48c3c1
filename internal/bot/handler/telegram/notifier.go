package telegram

import (
	"context"
	"errors"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/charadev96/repguard/internal/bot/domain"
)

// AdminNotifier pages every admin about a committed status change.
type AdminNotifier struct {
	API      API
	Admins   []int64
	Statuses domain.StatusRepository
}

func (n *AdminNotifier) StatusChanged(ctx context.Context, change domain.StatusChange) error {
	oldTitle, err := n.Statuses.ResolveTitle(ctx, change.OldStatus)
	if err != nil {
		oldTitle = change.OldStatus
	}
	newTitle, err := n.Statuses.ResolveTitle(ctx, change.NewStatus)
	if err != nil {
		newTitle = change.NewStatus
	}
	text := ChangeNotice(change, oldTitle, newTitle)

	var errs []error
	for _, id := range n.Admins {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		msg := tgbotapi.NewMessage(id, text)
		msg.ParseMode = tgbotapi.ModeHTML
		if _, err := n.API.Send(msg); err != nil {
			errs = append(errs, fmt.Errorf("failed to notify admin %d: %w", id, err))
		}
	}
	return errors.Join(errs...)
}
