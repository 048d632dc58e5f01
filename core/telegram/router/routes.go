// Package router turns a telegram.Registry into telebot routes. Every route
// logs one handler.handled line; recovery and update logging come from the
// global middleware chain.
package router

import (
	"context"
	"log/slog"

	"github.com/m3rciful/synthbot/core/logger"
	tg "github.com/m3rciful/synthbot/core/telegram"
	"github.com/m3rciful/synthbot/core/telegram/callbacks"
	"github.com/m3rciful/synthbot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// CommandRouteOptions configures the admin guard of AdminOnly commands.
type CommandRouteOptions struct {
	IsAdmin       func(userID int64) bool
	OnAdminReject tele.HandlerFunc
}

// CommandRoutes returns one route per registered command.
func CommandRoutes(reg *tg.Registry, opts CommandRouteOptions) []tg.Route {
	if reg == nil {
		return nil
	}
	guard := middleware.AdminOnlyMiddleware(middleware.AdminOptions{
		IsAdmin:  opts.IsAdmin,
		OnReject: opts.OnAdminReject,
	})

	cmds := reg.Commands()
	routes := make([]tg.Route, 0, len(cmds))
	for _, cmd := range cmds {
		h := cmd.Handler
		if cmd.AdminOnly {
			h = guard(h)
		}
		name := cmd.Name
		routes = append(routes, tg.Route{
			Endpoint: name,
			Handler: func(c tele.Context) error {
				return startSpan(c, name).run(h)
			},
		})
	}

	logger.Info(context.Background(), "tg.wire", "routes.commands",
		slog.String("status", "ok"),
		slog.Int("commands", len(cmds)),
		slog.Int("callbacks", len(reg.CallbackKeys())),
	)
	return routes
}

// CallbackOptions sets the handler for buttons nobody registered, typically
// a keyboard left over from a previous deploy.
type CallbackOptions struct {
	NotFound tele.HandlerFunc
}

// CallbackRoute answers every callback query and dispatches it by key.
func CallbackRoute(reg *tg.Registry, opts CallbackOptions) tg.Route {
	return tg.Route{
		Endpoint: tele.OnCallback,
		Handler: func(c tele.Context) error {
			if c.Callback() == nil {
				return nil
			}
			_ = c.Respond()

			key := callbacks.CallbackKey(c)
			if h, ok := reg.Callback(key); ok {
				return startSpan(c, "callback."+key, slog.String("cb_key", key)).run(h)
			}
			s := startSpan(c, "callback."+key,
				slog.String("cb_key", key),
				slog.String("cause", "not_found"),
			)
			return s.run(opts.NotFound)
		},
	}
}

// Dialog receives free text for users with an open conversation.
type Dialog interface {
	InProgress(userID int64) bool
	HandleText(c tele.Context) error
}

// TextOptions sets the fallbacks for text and documents nothing else claims.
type TextOptions struct {
	UnknownText     tele.HandlerFunc
	UnknownDocument tele.HandlerFunc
}

// TextRoutes routes plain text to the open dialog first, then to a public
// command named without its slash, then to UnknownText. Documents always go
// to UnknownDocument.
func TextRoutes(dlg Dialog, reg *tg.Registry, opts TextOptions) []tg.Route {
	onText := func(c tele.Context) error {
		if dlg != nil && c.Sender() != nil && dlg.InProgress(c.Sender().ID) {
			return startSpan(c, "dialog").run(dlg.HandleText)
		}
		if reg != nil {
			if cmd, ok := reg.Lookup(c.Text()); ok && !cmd.AdminOnly {
				return startSpan(c, cmd.Name, slog.String("cause", "text_alias")).run(cmd.Handler)
			}
		}
		return startSpan(c, "unknown_text").run(opts.UnknownText)
	}
	onDocument := func(c tele.Context) error {
		return startSpan(c, "unexpected_document").run(opts.UnknownDocument)
	}
	return []tg.Route{
		{Endpoint: tele.OnText, Handler: onText},
		{Endpoint: tele.OnDocument, Handler: onDocument},
	}
}
