// Package keyboard builds inline keyboards whose buttons carry a callback
// unique plus payload, the shape the callback router dispatches on.
package keyboard

import tele "gopkg.in/telebot.v4"

// Button is one inline button. Unique selects the callback handler, Data is
// its payload.
type Button struct {
	Text   string
	Unique string
	Data   string
}

// CancelText labels the button built by Cancel.
const CancelText = "❌ Cancel"

// Grid lays buttons out left to right, perRow to a line. perRow < 1 means one
// per line.
func Grid(perRow int, buttons ...Button) *tele.ReplyMarkup {
	perRow = max(perRow, 1)
	m := &tele.ReplyMarkup{}
	for len(buttons) > 0 {
		n := min(perRow, len(buttons))
		row := make([]tele.InlineButton, n)
		for i, b := range buttons[:n] {
			row[i] = *m.Data(b.Text, b.Unique, b.Data).Inline()
		}
		m.InlineKeyboard = append(m.InlineKeyboard, row)
		buttons = buttons[n:]
	}
	return m
}

// Cancel is a keyboard holding a single cancel button for unique with the
// payload "cancel".
func Cancel(unique string) *tele.ReplyMarkup {
	return Grid(1, Button{Text: CancelText, Unique: unique, Data: "cancel"})
}
