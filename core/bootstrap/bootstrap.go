// Package bootstrap brings up the infrastructure a bot process needs before
// it can serve updates.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	coreconfig "github.com/m3rciful/synthbot/core/config"
	coredatabase "github.com/m3rciful/synthbot/core/database"
	"github.com/m3rciful/synthbot/core/logger"
)

// Options control the bootstrap pipeline. Nil hooks use the core defaults.
type Options struct {
	Config     *coreconfig.Config
	Database   coredatabase.Config
	Migrations fs.FS

	LoggerInit func(*coreconfig.Config) error
	Connect    func(context.Context, coredatabase.Config) (*sqlx.DB, error)
	Migrate    func(context.Context, coredatabase.Config, fs.FS) error

	// Seeders run against the connected database after migrations.
	Seeders func(db *sqlx.DB) []Seeder
}

func (o *Options) defaults() {
	if o.LoggerInit == nil {
		o.LoggerInit = logger.InitLogger
	}
	if o.Connect == nil {
		o.Connect = coredatabase.Connect
	}
	if o.Migrate == nil {
		o.Migrate = coredatabase.Migrate
	}
}

// Result exposes infrastructure initialized by the bootstrap pipeline.
type Result struct {
	DB *sqlx.DB
}

// Run starts logging, then connects, migrates and seeds the database. The
// connection is closed again if a later step fails.
func Run(ctx context.Context, opts Options) (*Result, error) {
	if opts.Config == nil {
		return nil, errors.New("bootstrap: nil config provided")
	}
	opts.defaults()
	if err := opts.LoggerInit(opts.Config); err != nil {
		return nil, fmt.Errorf("bootstrap: logger init: %w", err)
	}

	start := time.Now()
	db, err := opts.Connect(ctx, opts.Database)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: database: %w", err)
	}
	if err := prepare(ctx, db, opts); err != nil {
		_ = db.Close()
		return nil, err
	}
	logger.Info(ctx, "app", "bootstrap.done",
		slog.String("status", "ok"),
		slog.Duration("took", logger.Took(start)),
	)
	return &Result{DB: db}, nil
}

func prepare(ctx context.Context, db *sqlx.DB, opts Options) error {
	if opts.Migrations != nil {
		if err := opts.Migrate(ctx, opts.Database, opts.Migrations); err != nil {
			return fmt.Errorf("bootstrap: migrations: %w", err)
		}
	}
	if opts.Seeders == nil {
		return nil
	}
	for i, s := range opts.Seeders(db) {
		if err := s.Seed(ctx); err != nil {
			return fmt.Errorf("bootstrap: seeder %d: %w", i, err)
		}
	}
	return nil
}
