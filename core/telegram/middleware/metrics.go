package middleware

import (
	"sync/atomic"

	tele "gopkg.in/telebot.v4"
)

const statsKey = "core.reply_stats"

// replyStats counts what a handler sent back for the handler summary line.
// Queued sends may land after the handler returned, hence the atomics.
type replyStats struct {
	messages atomic.Int64
	keyboard atomic.Bool
}

func statsOf(c tele.Context) *replyStats {
	s, _ := c.Get(statsKey).(*replyStats)
	return s
}

// CountMessage records a reply sent around tele.Context, e.g. through
// c.Bot() when the message has to be edited later.
func CountMessage(c tele.Context, withKeyboard bool) {
	if s := statsOf(c); s != nil {
		s.messages.Add(1)
		if withKeyboard {
			s.keyboard.Store(true)
		}
	}
}

// GetCounters reports how many messages the handler sent and whether any of
// them carried a keyboard.
func GetCounters(c tele.Context) (int, bool) {
	if s := statsOf(c); s != nil {
		return int(s.messages.Load()), s.keyboard.Load()
	}
	return 0, false
}

// MessageMetricsMiddleware wraps the context so every successful send is
// counted.
func MessageMetricsMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		c.Set(statsKey, &replyStats{})
		return next(countingContext{c})
	}
}

type countingContext struct{ tele.Context }

func (c countingContext) count(err error, opts []any) error {
	if err == nil {
		CountMessage(c.Context, carriesKeyboard(opts))
	}
	return err
}

func (c countingContext) Send(what any, opts ...any) error {
	return c.count(c.Context.Send(what, opts...), opts)
}

func (c countingContext) Reply(what any, opts ...any) error {
	return c.count(c.Context.Reply(what, opts...), opts)
}

func (c countingContext) Edit(what any, opts ...any) error {
	return c.count(c.Context.Edit(what, opts...), opts)
}

func (c countingContext) EditOrSend(what any, opts ...any) error {
	return c.count(c.Context.EditOrSend(what, opts...), opts)
}

func (c countingContext) EditOrReply(what any, opts ...any) error {
	return c.count(c.Context.EditOrReply(what, opts...), opts)
}

func carriesKeyboard(opts []any) bool {
	for _, o := range opts {
		switch v := o.(type) {
		case *tele.SendOptions:
			if v != nil && v.ReplyMarkup != nil {
				return true
			}
		case *tele.ReplyMarkup:
			if v != nil {
				return true
			}
		}
	}
	return false
}
