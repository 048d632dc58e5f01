package middleware

import (
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/m3rciful/synthbot/core/logger"
	tghelpers "github.com/m3rciful/synthbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// RecoverMiddleware turns a handler panic into an error log with the stack
// so one bad update cannot take the bot down.
func RecoverMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) (err error) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			logger.Error(tghelpers.BuildContext(c), "tg", "handler.panic",
				slog.String("status", "fail"),
				slog.String("err", fmt.Sprint(r)),
				slog.String("stack", string(debug.Stack())),
			)
			err = nil
		}()
		return next(c)
	}
}
