package ui

import tele "gopkg.in/telebot.v4"

// FallbackProvider exposes handlers used when incoming updates cannot be
// mapped to commands, callbacks or an open conversation, and when a user is
// turned away before any handler runs.
type FallbackProvider interface {
	UnknownText() tele.HandlerFunc
	UnknownDocument() tele.HandlerFunc
	UnknownCallback() tele.HandlerFunc
	Unauthorized() tele.HandlerFunc
	AdminOnly() tele.HandlerFunc
	RateLimited() tele.HandlerFunc
}
