package middleware

import (
	"context"
	"log/slog"

	"github.com/m3rciful/synthbot/core/logger"
	tghelpers "github.com/m3rciful/synthbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// Authorizer decides whether a user may talk to the bot at all.
type Authorizer interface {
	Allowed(ctx context.Context, userID int64) (bool, error)
}

// AccessOptions configures AccessMiddleware.
type AccessOptions struct {
	Authorizer Authorizer
	OnReject   tele.HandlerFunc
}

// AccessMiddleware stops updates from users the Authorizer turns down. A
// failed lookup drops the update without an answer. Updates without a
// sender, such as channel posts, pass through.
func AccessMiddleware(opts AccessOptions) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			user := c.Sender()
			if opts.Authorizer == nil || user == nil {
				return next(c)
			}
			ctx := tghelpers.BuildContext(c)
			ok, err := opts.Authorizer.Allowed(ctx, user.ID)
			switch {
			case err != nil:
				logger.Error(ctx, "service.access", "access.check",
					slog.String("status", "fail"),
					slog.String("err", err.Error()),
				)
				return nil
			case !ok:
				return reject(c, "not_whitelisted", opts.OnReject)
			}
			return next(c)
		}
	}
}

// AdminOptions configures AdminOnlyMiddleware.
type AdminOptions struct {
	IsAdmin  func(userID int64) bool
	OnReject tele.HandlerFunc
}

// AdminOnlyMiddleware lets only admins through. Without an IsAdmin predicate
// nobody is an admin.
func AdminOnlyMiddleware(opts AdminOptions) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			if user := c.Sender(); user != nil && opts.IsAdmin != nil && opts.IsAdmin(user.ID) {
				return next(c)
			}
			return reject(c, "admin_only", opts.OnReject)
		}
	}
}

func reject(c tele.Context, cause string, answer tele.HandlerFunc) error {
	logger.Debug(tghelpers.BuildContext(c), "service.access", "access.reject",
		slog.String("status", "skip"),
		slog.String("cause", cause),
	)
	if answer == nil {
		return nil
	}
	return answer(c)
}
