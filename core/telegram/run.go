package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	coreconfig "github.com/m3rciful/synthbot/core/config"
	"github.com/m3rciful/synthbot/core/logger"
	tghelpers "github.com/m3rciful/synthbot/core/telegram/helpers"
	"github.com/m3rciful/synthbot/core/telegram/netutil"
	tgsender "github.com/m3rciful/synthbot/core/telegram/sender"

	tele "gopkg.in/telebot.v4"
)

// Middleware is a named global middleware installed with bot.Use.
type Middleware struct {
	Name string
	Use  func(next tele.HandlerFunc) tele.HandlerFunc
}

// Route binds a handler to anything tele.Bot.Handle accepts as an endpoint.
type Route struct {
	Endpoint any
	Handler  tele.HandlerFunc
}

// RunOptions describes the bot RunTelegram assembles.
type RunOptions struct {
	Config   *coreconfig.Config
	Registry *Registry

	// Dispatcher is built from Config.Sender when nil.
	Dispatcher *tgsender.Dispatcher

	Middlewares []Middleware
	Routes      []Route

	// KeepWebhook skips removing a stale webhook before long polling.
	KeepWebhook bool

	OnStart func(ctx context.Context, rt Runtime) error
	OnStop  func(ctx context.Context, rt Runtime) error
}

// Runtime is what lifecycle hooks get to see.
type Runtime struct {
	Bot        *tele.Bot
	Dispatcher *tgsender.Dispatcher
	Registry   *Registry
}

// RunTelegram builds the bot, installs middlewares and routes, and serves
// updates until ctx is cancelled. Cancellation is a clean stop and returns nil.
func RunTelegram(ctx context.Context, opts RunOptions) error {
	if opts.Config == nil {
		return errors.New("telegram: nil config provided")
	}
	if opts.Registry == nil {
		opts.Registry = NewRegistry()
	}

	bot, err := newBot(ctx, opts)
	if err != nil {
		return err
	}
	rt := Runtime{Bot: bot, Dispatcher: opts.Dispatcher, Registry: opts.Registry}
	if rt.Dispatcher == nil {
		rt.Dispatcher = tgsender.NewDispatcher(senderOptions(opts.Config.Sender))
	}
	tghelpers.SetDispatcher(rt.Dispatcher)
	defer closeSender(rt.Dispatcher)

	install(bot, opts)
	InitBotCommands(bot, opts.Registry)

	if opts.OnStart != nil {
		if err := opts.OnStart(ctx, rt); err != nil {
			return err
		}
	}
	serve(ctx, bot)
	if opts.OnStop != nil {
		// ctx is done by now; cleanup still needs a live context.
		return opts.OnStop(context.WithoutCancel(ctx), rt)
	}
	return nil
}

func newBot(ctx context.Context, opts RunOptions) (*tele.Bot, error) {
	start := time.Now()
	poller := newPoller(opts.Config)
	bot, err := tele.NewBot(tele.Settings{
		Token:   opts.Config.Telegram.Token,
		Poller:  poller,
		Client:  apiClient(),
		OnError: onError,
	})
	if err != nil {
		return nil, fmt.Errorf("telegram: new bot: %w", err)
	}
	logPoller(ctx, poller, logger.Took(start))

	// A webhook left registered makes getUpdates fail with 409.
	if _, polling := poller.(*tele.LongPoller); polling && !opts.KeepWebhook {
		if err := bot.RemoveWebhook(); err != nil {
			logger.Warn(ctx, "tg", "webhook.remove", slog.String("status", "fail"), slog.String("err", err.Error()))
		}
	}
	return bot, nil
}

func install(bot *tele.Bot, opts RunOptions) {
	for _, mw := range opts.Middlewares {
		if mw.Use != nil {
			bot.Use(mw.Use)
		}
	}
	for _, r := range opts.Routes {
		if r.Endpoint != nil && r.Handler != nil {
			bot.Handle(r.Endpoint, r.Handler)
		}
	}
}

// serve blocks in bot.Start until ctx is done or the poller gives up.
func serve(ctx context.Context, bot *tele.Bot) {
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		bot.Start()
	}()
	select {
	case <-ctx.Done():
		bot.Stop()
		<-stopped
	case <-stopped:
	}
}

func closeSender(d *tgsender.Dispatcher) {
	d.Close()
	tghelpers.SetDispatcher(nil)
	logger.Info(context.Background(), "tg.sender", "sender.closed",
		slog.String("status", "ok"),
		slog.Uint64("send_errors", d.ErrorCount()),
	)
}

// onError receives handler errors that reached telebot. The router already
// logged them with the update's context, so only errors raised outside a
// handler are written here.
func onError(err error, c tele.Context) {
	if c != nil {
		return
	}
	logger.Error(context.Background(), "tg", "bot.error",
		slog.String("status", "fail"),
		slog.String("error_kind", string(netutil.Classify(err))),
		slog.String("err", logger.Clip(err.Error(), 256)),
	)
}

func logPoller(ctx context.Context, p tele.Poller, took time.Duration) {
	attrs := []slog.Attr{slog.String("status", "ok"), slog.Duration("took", took)}
	switch p := p.(type) {
	case *tele.Webhook:
		attrs = append(attrs,
			slog.String("mode", coreconfig.RunModeWebhook),
			slog.String("listen", p.Listen),
			slog.String("public_url", p.Endpoint.PublicURL),
		)
	case *tele.LongPoller:
		attrs = append(attrs,
			slog.String("mode", coreconfig.RunModeLongpoll),
			slog.Duration("poll_timeout", p.Timeout),
		)
	}
	logger.Info(ctx, "tg", "poller.ready", attrs...)
}
