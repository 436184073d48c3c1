package telegram

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"github.com/charadev96/repguard/internal/shared/log"
)

// ChannelSubscriptionChecker requires membership in every configured
// channel. A channel the bot cannot query counts as missing.
type ChannelSubscriptionChecker struct {
	API      API
	Channels []string
	Logger   *zerolog.Logger
}

func (c *ChannelSubscriptionChecker) IsSubscribed(ctx context.Context, userID int64) (bool, error) {
	missing, err := c.Missing(ctx, userID)
	if err != nil {
		return false, err
	}
	return len(missing) == 0, nil
}

func (c *ChannelSubscriptionChecker) Missing(ctx context.Context, userID int64) ([]string, error) {
	var missing []string
	for _, ch := range c.Channels {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		m, err := c.API.GetChatMember(tgbotapi.GetChatMemberConfig{
			ChatConfigWithUser: tgbotapi.ChatConfigWithUser{
				SuperGroupUsername: ch,
				UserID:             userID,
			},
		})
		if err != nil {
			log.OrNop(c.Logger).Warn().
				Err(err).
				Str("channel", ch).
				Int64("user", userID).
				Msg("failed to check channel membership")
			missing = append(missing, ch)
			continue
		}
		if m.HasLeft() || m.WasKicked() {
			missing = append(missing, ch)
		}
	}
	return missing, nil
}
