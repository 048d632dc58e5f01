package bot

import (
	"context"
	"fmt"
	"strconv"

	tele "gopkg.in/telebot.v4"

	tghelpers "github.com/m3rciful/synthbot/core/telegram/helpers"
	"github.com/m3rciful/synthbot/core/telegram/keyboard"
	"github.com/m3rciful/synthbot/core/telegram/middleware"
	"github.com/m3rciful/synthbot/internal/dialog"
)

// chat is everything a handler may send back. Dialog replies are synchronous
// so one user's conversation stays ordered; the rest go through the async
// sender.
type chat interface {
	dialog.Responder
	Reply(ctx context.Context, text string, markup *tele.ReplyMarkup) error
	ReplyMD(ctx context.Context, text string, markup *tele.ReplyMarkup) error
	Photo(ctx context.Context, png []byte, caption string) error
	Document(ctx context.Context, name string, data []byte, caption string) error
}

type teleChat struct {
	c tele.Context
}

func newTeleChat(c tele.Context) *teleChat {
	return &teleChat{c: c}
}

func (t *teleChat) Send(_ context.Context, text string) (dialog.Message, error) {
	msg, err := t.c.Bot().Send(t.c.Recipient(), text)
	if err != nil {
		return dialog.Message{}, err
	}
	middleware.CountMessage(t.c, false)
	return dialog.Message{ID: strconv.Itoa(msg.ID), ChatID: msg.Chat.ID}, nil
}

func (t *teleChat) Prompt(_ context.Context, text string) error {
	return t.c.Send(text, &tele.SendOptions{ReplyMarkup: keyboard.Cancel(cbDialogCancel)})
}

func (t *teleChat) Edit(_ context.Context, msg dialog.Message, text string) error {
	if msg.ID == "" {
		return fmt.Errorf("edit: empty message reference")
	}
	_, err := t.c.Bot().Edit(tele.StoredMessage{MessageID: msg.ID, ChatID: msg.ChatID}, text)
	return err
}

func (t *teleChat) Reply(_ context.Context, text string, markup *tele.ReplyMarkup) error {
	return tghelpers.SendText(t.c, text, markup)
}

func (t *teleChat) ReplyMD(_ context.Context, text string, markup *tele.ReplyMarkup) error {
	return tghelpers.SendMD(t.c, text, markup)
}

func (t *teleChat) Photo(_ context.Context, png []byte, caption string) error {
	return tghelpers.SendPhoto(t.c, png, caption)
}

func (t *teleChat) Document(_ context.Context, name string, data []byte, caption string) error {
	return tghelpers.SendDocument(t.c, name, data, caption)
}
