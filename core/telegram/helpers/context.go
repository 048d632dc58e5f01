// Package helpers bridges tele.Context to the rest of the core: a
// context.Context carrying logger.Meta for each update, and sends that go
// through the asynchronous dispatcher.
package helpers

import (
	"context"

	"github.com/m3rciful/synthbot/core/logger"

	tele "gopkg.in/telebot.v4"
)

const ctxStoreKey = "core.ctx"

// BuildContext returns the context.Context of the current update, creating
// it on first use with the update, chat and user ids as logger.Meta.
func BuildContext(c tele.Context) context.Context {
	if ctx, ok := c.Get(ctxStoreKey).(context.Context); ok {
		return ctx
	}
	var chatID, userID int64
	if chat := c.Chat(); chat != nil {
		chatID = chat.ID
	}
	if user := c.Sender(); user != nil {
		userID = user.ID
	}
	ctx := logger.WithMeta(context.Background(), logger.UpdateMeta(c.Update().ID, chatID, userID))
	c.Set(ctxStoreKey, ctx)
	return ctx
}

// WithHandler tags the update context with the handler serving it.
func WithHandler(c tele.Context, handler string) context.Context {
	ctx := BuildContext(c)
	if handler == "" {
		return ctx
	}
	ctx = logger.WithMeta(ctx, logger.Meta{Handler: handler})
	c.Set(ctxStoreKey, ctx)
	return ctx
}
