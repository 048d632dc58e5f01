// Package callbacks decodes inline button data.
package callbacks

import (
	"strings"

	tele "gopkg.in/telebot.v4"
)

// ParseCallbackData returns the button key and payload of cb. Telebot fills
// Unique for buttons it routed itself; otherwise Data holds the raw
// "\f<key>|<payload>" form.
func ParseCallbackData(cb *tele.Callback) (key, payload string) {
	switch {
	case cb == nil:
		return "", ""
	case cb.Unique != "":
		return cb.Unique, cb.Data
	}
	key, payload, _ = strings.Cut(strings.TrimPrefix(cb.Data, "\f"), "|")
	return strings.TrimSpace(key), payload
}

// CallbackKey is the key of the callback in c.
func CallbackKey(c tele.Context) string {
	key, _ := ParseCallbackData(c.Callback())
	return key
}

// CallbackPayload is the payload of the callback in c.
func CallbackPayload(c tele.Context) string {
	_, payload := ParseCallbackData(c.Callback())
	return payload
}
