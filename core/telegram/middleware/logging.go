package middleware

import (
	"context"
	"log/slog"

	"github.com/m3rciful/synthbot/core/logger"
	"github.com/m3rciful/synthbot/core/telegram/callbacks"
	tghelpers "github.com/m3rciful/synthbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// LoggerMiddleware attaches the update context (see helpers.BuildContext) and
// writes a sampled debug line describing the incoming update.
func LoggerMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		ctx := tghelpers.BuildContext(c)
		if logger.ShouldSampleDebug() {
			logReceived(ctx, c)
		}
		return next(c)
	}
}

func logReceived(ctx context.Context, c tele.Context) {
	upd := c.Update()
	kind := updateKind(upd)
	attrs := []slog.Attr{slog.String("status", "ok"), slog.String("kind", kind)}
	if chat := c.Chat(); chat != nil {
		attrs = append(attrs, slog.String("chat_type", string(chat.Type)))
	}
	if user := c.Sender(); user != nil && user.Username != "" {
		attrs = append(attrs, slog.String("username", logger.Clip(user.Username, 64)))
	}
	switch kind {
	case kindCallback:
		key, payload := callbacks.ParseCallbackData(upd.Callback)
		attrs = append(attrs,
			slog.String("cb_key", logger.Clip(key, 64)),
			slog.String("payload", logger.Clip(payload, 128)),
		)
	case kindMessage:
		attrs = append(attrs, slog.String("payload", logger.Clip(c.Text(), 256)))
	}
	logger.Debug(ctx, "tg", "update.received", attrs...)
}
