package helpers

import (
	"bytes"
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/m3rciful/synthbot/core/logger"
	"github.com/m3rciful/synthbot/core/telegram/sender"

	tele "gopkg.in/telebot.v4"
)

var dispatcher atomic.Pointer[sender.Dispatcher]

// SetDispatcher installs the dispatcher used by the Send helpers. With none
// installed, or when its queue is full or closed, they send inline.
func SetDispatcher(d *sender.Dispatcher) {
	dispatcher.Store(d)
}

func enqueue(c tele.Context, action, endpoint string, run func() error) error {
	d := dispatcher.Load()
	if d == nil {
		return run()
	}
	ctx := BuildContext(c)
	err := d.Enqueue(ctx, action, endpoint, run)
	if errors.Is(err, sender.ErrQueueFull) || errors.Is(err, sender.ErrQueueClosed) {
		logger.Warn(ctx, "tg.sender", "queue.fallback",
			slog.String("action", action),
			slog.String("err", err.Error()),
		)
		return run()
	}
	return err
}

// SendText sends plain text with an optional keyboard.
func SendText(c tele.Context, text string, markup *tele.ReplyMarkup) error {
	return enqueue(c, "send.text", "sendMessage", func() error {
		return c.Send(text, &tele.SendOptions{ReplyMarkup: markup})
	})
}

// SendMD sends Markdown text with an optional keyboard.
func SendMD(c tele.Context, text string, markup *tele.ReplyMarkup) error {
	return enqueue(c, "send.markdown", "sendMessage", func() error {
		return c.Send(text, &tele.SendOptions{ParseMode: tele.ModeMarkdown, ReplyMarkup: markup})
	})
}

// SendPhoto sends a PNG with a caption. Each attempt reads png afresh.
func SendPhoto(c tele.Context, png []byte, caption string) error {
	return enqueue(c, "send.photo", "sendPhoto", func() error {
		return c.Send(&tele.Photo{File: tele.FromReader(bytes.NewReader(png)), Caption: caption})
	})
}

// SendDocument sends data as a file called name.
func SendDocument(c tele.Context, name string, data []byte, caption string) error {
	return enqueue(c, "send.document", "sendDocument", func() error {
		return c.Send(&tele.Document{File: tele.FromReader(bytes.NewReader(data)), FileName: name, Caption: caption})
	})
}
