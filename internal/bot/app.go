// Package bot wires the domain services to the Telegram runtime: commands,
// callbacks, the dialog text route and the background services that run
// next to the bot.
package bot

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	corecmd "github.com/m3rciful/synthbot/core/cmd"
	coretelegram "github.com/m3rciful/synthbot/core/telegram"
	"github.com/m3rciful/synthbot/core/telegram/middleware"
	"github.com/m3rciful/synthbot/core/telegram/router"
	"github.com/m3rciful/synthbot/core/telegram/state"
	"github.com/m3rciful/synthbot/core/telegram/ui"
	"github.com/m3rciful/synthbot/internal/access"
	"github.com/m3rciful/synthbot/internal/backup"
	"github.com/m3rciful/synthbot/internal/config"
	"github.com/m3rciful/synthbot/internal/dialog"
	"github.com/m3rciful/synthbot/internal/experiments"
	"github.com/m3rciful/synthbot/internal/health"
	"github.com/m3rciful/synthbot/internal/predictor"
)

// NewPredictor builds the switchable predictor described by cfg.
func NewPredictor(cfg config.PredictorConfig) (*predictor.Switch, error) {
	mode, err := predictor.ParseMode(cfg.Mode)
	if err != nil {
		return nil, err
	}
	var process predictor.Predictor
	if cfg.Command != "" {
		p := predictor.NewProcessPredictor(cfg.Command, cfg.Args, cfg.Timeout)
		p.Dir = cfg.Dir
		process = p
	}
	return predictor.NewSwitch(process, predictor.FormulaPredictor{}, mode), nil
}

// App holds the assembled bot.
type App struct {
	cfg      *config.Config
	db       *sqlx.DB
	repo     *experiments.SQLRepository
	backups  *backup.Service
	handlers *Handlers
	registry *coretelegram.Registry
	auth     *access.Authorizer
}

// New assembles the bot on top of an open, migrated database.
func New(cfg *config.Config, db *sqlx.DB) (*App, error) {
	if cfg == nil || db == nil {
		return nil, fmt.Errorf("bot: config and database are required")
	}
	models, err := NewPredictor(cfg.Predictor)
	if err != nil {
		return nil, err
	}

	repo := experiments.NewRepository(db)
	whitelist := access.NewWhitelist(db)
	backups := backup.NewService(cfg.Database, cfg.Backup.Options(), nil)
	dispatcher := dialog.NewDispatcher(state.NewMemoryStore(), models, repo)

	handlers := NewHandlers(Options{
		Dialog:           dispatcher,
		Experiments:      repo,
		Whitelist:        whitelist,
		WhitelistEnabled: cfg.Access.WhitelistEnabled,
		Models:           models,
		ModelInfo:        ModelInfo{Command: cfg.Predictor.Command, Timeout: cfg.Predictor.Timeout},
		Backups:          backups,
		IsAdmin:          cfg.IsAdmin,
		ExportMaxRows:    cfg.Export.MaxRows,
	})
	reg := coretelegram.NewRegistry()
	if err := handlers.Register(reg); err != nil {
		return nil, fmt.Errorf("bot: register handlers: %w", err)
	}

	return &App{
		cfg:      cfg,
		db:       db,
		repo:     repo,
		backups:  backups,
		handlers: handlers,
		registry: reg,
		auth:     access.NewAuthorizer(whitelist, cfg.IsAdmin, cfg.Access.WhitelistEnabled),
	}, nil
}

// TelegramRunOptions implements cmd.TelegramApp.
func (a *App) TelegramRunOptions() (coretelegram.RunOptions, error) {
	var fb ui.FallbackProvider = a.handlers
	core := a.cfg.CoreConfig()

	mws := coretelegram.DefaultMiddlewares(core, coretelegram.MiddlewareOptions{
		Access: &middleware.AccessOptions{
			Authorizer: a.auth,
			OnReject:   fb.Unauthorized(),
		},
		OnLimited: fb.RateLimited(),
	})

	routes := router.CommandRoutes(a.registry, router.CommandRouteOptions{
		IsAdmin:       a.cfg.IsAdmin,
		OnAdminReject: fb.AdminOnly(),
	})
	routes = append(routes, router.CallbackRoute(a.registry, router.CallbackOptions{NotFound: fb.UnknownCallback()}))
	routes = append(routes, router.TextRoutes(a.handlers, a.registry, router.TextOptions{
		UnknownText:     fb.UnknownText(),
		UnknownDocument: fb.UnknownDocument(),
	})...)

	return coretelegram.RunOptions{
		Config:      core,
		Registry:    a.registry,
		Middlewares: mws,
		Routes:      routes,
		OnStop: func(context.Context, coretelegram.Runtime) error {
			return a.db.Close()
		},
	}, nil
}

// BackgroundTasks implements cmd.BackgroundApp: the probe server and the
// backup schedule.
func (a *App) BackgroundTasks() []corecmd.BackgroundTask {
	probes := health.NewRouter(health.Check{Name: "database", Pinger: a.repo})
	return []corecmd.BackgroundTask{
		{Name: "health", Run: func(ctx context.Context) error {
			return health.Serve(ctx, a.cfg.Health.Listen, probes)
		}},
		{Name: "backup_schedule", Run: a.backups.RunSchedule},
	}
}
