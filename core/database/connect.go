package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/m3rciful/synthbot/core/logger"
)

const (
	// readyTimeout bounds how long Connect and Migrate wait for the server,
	// which in compose setups often starts after the bot.
	readyTimeout = 30 * time.Second
	pingTimeout  = 5 * time.Second
	retryEvery   = 2 * time.Second
)

// Connect opens a pooled connection, waiting for the server to accept it.
func Connect(ctx context.Context, cfg Config) (*sqlx.DB, error) {
	start := time.Now()
	db, err := sqlx.Open("postgres", cfg.KeywordDSN())
	if err != nil {
		return nil, fmt.Errorf("db open: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(max(cfg.MaxConnections/2, 1))
	db.SetConnMaxIdleTime(5 * time.Minute)

	attempts, err := untilReady(ctx, readyTimeout, retryEvery, func(ctx context.Context) error {
		pctx, cancel := context.WithTimeout(ctx, pingTimeout)
		defer cancel()
		return db.PingContext(pctx)
	})
	attrs := []slog.Attr{
		slog.String("host", cfg.Host),
		slog.String("port", cfg.Port),
		slog.String("db", cfg.Name),
		slog.Int("attempts", attempts),
		slog.Duration("took", logger.Took(start)),
	}
	if err != nil {
		_ = db.Close()
		logger.Error(ctx, "db", "db.connect", append(attrs,
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)...)
		return nil, fmt.Errorf("db connect %s:%s/%s: %w", cfg.Host, cfg.Port, cfg.Name, err)
	}
	logger.Info(ctx, "db", "db.connect", append(attrs,
		slog.String("status", "ok"),
		slog.Int("pool_open", cfg.MaxConnections),
	)...)
	return db, nil
}

// untilReady calls try every interval until it succeeds, ctx ends or timeout
// passes, and reports how many attempts it made.
func untilReady(ctx context.Context, timeout, interval time.Duration, try func(context.Context) error) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	t := time.NewTicker(interval)
	defer t.Stop()
	for n := 1; ; n++ {
		err := try(ctx)
		if err == nil {
			return n, nil
		}
		select {
		case <-ctx.Done():
			return n, errors.Join(err, ctx.Err())
		case <-t.C:
		}
	}
}
