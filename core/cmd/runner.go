package cmd

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	coreconfig "github.com/m3rciful/synthbot/core/config"
	"github.com/m3rciful/synthbot/core/logger"
	coretelegram "github.com/m3rciful/synthbot/core/telegram"
)

// ConfigCarrier exposes access to the embedded core configuration.
type ConfigCarrier interface {
	CoreConfig() *coreconfig.Config
}

// TelegramApp is the minimal interface required to run a Telegram bot.
type TelegramApp interface {
	TelegramRunOptions() (coretelegram.RunOptions, error)
}

// BackgroundTask runs alongside the bot until ctx is done.
type BackgroundTask struct {
	Name string
	Run  func(ctx context.Context) error
}

// BackgroundApp is implemented by apps that run extra services next to the bot.
type BackgroundApp interface {
	BackgroundTasks() []BackgroundTask
}

// Options describe how to load configuration, bootstrap the app, and run the bot.
type Options struct {
	ConfigEnvVar      string
	DefaultConfigPath string
	// ConfigPath wins over the environment variable when set.
	ConfigPath string

	LoadConfig func(path string) (ConfigCarrier, error)
	Bootstrap  func(ctx context.Context, cfg ConfigCarrier) (TelegramApp, error)

	ShutdownLogger func() error
	RunTelegram    func(ctx context.Context, opts coretelegram.RunOptions) error
}

// ResolveConfigPath picks the config path: the explicit path, then the
// environment variable (CONFIG_PATH unless set), then the default.
func ResolveConfigPath(opts Options) (string, error) {
	env := cmp.Or(opts.ConfigEnvVar, "CONFIG_PATH")
	if p := cmp.Or(opts.ConfigPath, os.Getenv(env), opts.DefaultConfigPath); p != "" {
		return p, nil
	}
	return "", fmt.Errorf("cmd: no config path given and $%s is empty", env)
}

// Run loads configuration, bootstraps the Telegram app, and runs the bot with
// its background tasks until a signal arrives or one of them fails.
func Run(opts Options) error {
	switch {
	case opts.LoadConfig == nil:
		return errors.New("cmd: LoadConfig is required")
	case opts.Bootstrap == nil:
		return errors.New("cmd: Bootstrap is required")
	}
	startedAt := time.Now()

	cfgPath, err := ResolveConfigPath(opts)
	if err != nil {
		return err
	}
	cfg, err := opts.LoadConfig(cfgPath)
	if err != nil {
		return fmt.Errorf("cmd: load config %s: %w", cfgPath, err)
	}
	if cfg == nil || cfg.CoreConfig() == nil {
		return errors.New("cmd: loaded config is missing core configuration")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	app, err := opts.Bootstrap(ctx, cfg)
	if err != nil {
		return fmt.Errorf("cmd: bootstrap: %w", err)
	}
	shutdown := opts.ShutdownLogger
	if shutdown == nil {
		shutdown = logger.Shutdown
	}
	defer func() {
		if err := shutdown(); err != nil {
			fmt.Fprintf(os.Stderr, "logger shutdown: %v\n", err)
		}
	}()
	logger.Info(ctx, "app", "config.loaded", slog.String("status", "ok"), slog.String("path", cfgPath))

	runOpts, err := app.TelegramRunOptions()
	if err != nil {
		return fmt.Errorf("cmd: telegram options: %w", err)
	}
	withLifecycleLogs(&runOpts, startedAt)

	run := opts.RunTelegram
	if run == nil {
		run = coretelegram.RunTelegram
	}
	var tasks []BackgroundTask
	if bg, ok := app.(BackgroundApp); ok {
		tasks = bg.BackgroundTasks()
	}
	return supervise(ctx, func(ctx context.Context) error { return run(ctx, runOpts) }, tasks)
}

// withLifecycleLogs logs readiness after the app's own OnStart and the
// shutdown before its OnStop.
func withLifecycleLogs(o *coretelegram.RunOptions, startedAt time.Time) {
	onStart, onStop := o.OnStart, o.OnStop
	o.OnStart = func(ctx context.Context, rt coretelegram.Runtime) error {
		if onStart != nil {
			if err := onStart(ctx, rt); err != nil {
				return err
			}
		}
		logger.Info(ctx, "app", "ready",
			slog.String("status", "ok"),
			slog.Duration("startup", logger.Took(startedAt)),
		)
		return nil
	}
	o.OnStop = func(ctx context.Context, rt coretelegram.Runtime) error {
		logger.Info(ctx, "app", "shutdown", slog.Duration("uptime", logger.Took(startedAt)))
		if onStop != nil {
			return onStop(ctx, rt)
		}
		return nil
	}
}

// supervise runs main and tasks together. The first failure or main's return
// cancels the rest.
func supervise(ctx context.Context, main func(context.Context) error, tasks []BackgroundTask) error {
	ctx, stop := context.WithCancel(ctx)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer stop()
		return main(gctx)
	})
	for _, t := range tasks {
		g.Go(func() error {
			if err := t.Run(gctx); err != nil {
				logger.Error(gctx, "app", "task.stop",
					slog.String("status", "fail"),
					slog.String("task", t.Name),
					slog.String("err", err.Error()),
				)
				return fmt.Errorf("%s: %w", t.Name, err)
			}
			return nil
		})
	}
	return g.Wait()
}
