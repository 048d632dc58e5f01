package middleware

import tele "gopkg.in/telebot.v4"

// Update kinds as named in rate_limit.exclude_updates.
const (
	kindCallback    = "callback"
	kindMessage     = "message"
	kindInlineQuery = "inline_query"
	kindOther       = "other"
)

func updateKind(u tele.Update) string {
	switch {
	case u.Callback != nil:
		return kindCallback
	case u.Message != nil:
		return kindMessage
	case u.Query != nil:
		return kindInlineQuery
	}
	return kindOther
}
