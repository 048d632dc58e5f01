package router

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/m3rciful/synthbot/core/logger"
	tghelpers "github.com/m3rciful/synthbot/core/telegram/helpers"
	"github.com/m3rciful/synthbot/core/telegram/middleware"
	"github.com/m3rciful/synthbot/core/telegram/netutil"

	tele "gopkg.in/telebot.v4"
)

// span measures one handler invocation and writes the handler.handled line.
type span struct {
	c       tele.Context
	handler string
	start   time.Time
	attrs   []slog.Attr
}

func startSpan(c tele.Context, handler string, attrs ...slog.Attr) *span {
	handler = handlerName(handler)
	tghelpers.WithHandler(c, handler)
	return &span{c: c, handler: handler, start: time.Now(), attrs: attrs}
}

// run invokes h and logs its outcome. A nil h is logged as skipped.
func (s *span) run(h tele.HandlerFunc) error {
	if h == nil {
		s.end("skip", nil)
		return nil
	}
	err := h(s.c)
	if err != nil {
		s.end("fail", err)
	} else {
		s.end("ok", nil)
	}
	return err
}

func (s *span) end(status string, err error) {
	msgs, kb := middleware.GetCounters(s.c)
	attrs := append([]slog.Attr{
		slog.String("status", status),
		slog.String("handler", s.handler),
		slog.Int("messages", msgs),
		slog.Bool("kb", kb),
		slog.Duration("took", time.Since(s.start)),
	}, s.attrs...)
	if err != nil {
		attrs = append(attrs,
			slog.String("err", logger.Clip(err.Error(), 256)),
			slog.String("err_code", errorCode(err)),
		)
	}
	logger.Info(tghelpers.WithHandler(s.c, s.handler), "tg", "handler.handled", attrs...)
}

func handlerName(name string) string {
	name = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(name), "/"))
	if name == "" {
		return "unknown"
	}
	return strings.Join(strings.Fields(name), "_")
}

// errorCode names an error for grouping in logs: an explicit Code() wins,
// then the network classification, then the innermost concrete type.
func errorCode(err error) string {
	var coded interface{ Code() string }
	if errors.As(err, &coded) {
		if code := strings.TrimSpace(coded.Code()); code != "" {
			return strings.ToUpper(strings.ReplaceAll(code, " ", "_"))
		}
	}
	if kind := netutil.Classify(err); kind != netutil.KindUnknown {
		return "TG_" + strings.ToUpper(string(kind))
	}
	root := err
	for next := errors.Unwrap(root); next != nil; next = errors.Unwrap(root) {
		root = next
	}
	name := strings.TrimLeft(fmt.Sprintf("%T", root), "*")
	return strings.ToUpper(name[strings.LastIndex(name, ".")+1:])
}
