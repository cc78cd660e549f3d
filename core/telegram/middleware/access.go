package middleware

import (
	"context"
	"log/slog"

	"github.com/m3rciful/storebot/core/logger"
	tghelpers "github.com/m3rciful/storebot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// AdminOptions defines how admin-only checks should behave.
// Admins are resolved per chat so registrations made at runtime apply immediately.
type AdminOptions struct {
	IsAdmin  func(ctx context.Context, chatID int64) bool
	OnReject tele.HandlerFunc
}

// AdminOnlyMiddleware ensures that only admin chats can invoke downstream handlers.
// Without an IsAdmin check every chat is rejected.
func AdminOnlyMiddleware(opts AdminOptions) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			ctx := tghelpers.BuildContext(c)
			chatID := tghelpers.ChatID(c)
			if opts.IsAdmin == nil || chatID == 0 || !opts.IsAdmin(ctx, chatID) {
				logger.LogEvent(ctx, logger.TG, slog.LevelWarn, "tg.admin_reject",
					slog.Int64("chat_id", chatID),
				)
				if opts.OnReject != nil {
					return opts.OnReject(c)
				}
				return nil
			}
			return next(c)
		}
	}
}
