package database

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/m3rciful/synthbot/core/logger"
)

// Migrate applies every pending up migration stored at the root of files.
// A database left dirty by an interrupted run is reported, never forced.
func Migrate(ctx context.Context, cfg Config, files fs.FS) error {
	start := time.Now()
	dsn := cfg.URL()

	var m *migrate.Migrate
	_, err := untilReady(ctx, readyTimeout, retryEvery, func(context.Context) error {
		src, err := iofs.New(files, ".")
		if err != nil {
			return err
		}
		m, err = migrate.NewWithSourceInstance("iofs", src, dsn)
		return err
	})
	if err != nil {
		logger.Error(ctx, "db.migrate", "migrate.init", slog.String("status", "fail"), slog.String("err", err.Error()))
		return fmt.Errorf("migrate init: %w", err)
	}
	defer func() { _, _ = m.Close() }()

	from, dirty, err := m.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		from = 0
	case err != nil:
		return fmt.Errorf("migrate version: %w", err)
	case dirty:
		return fmt.Errorf("migrate: database is dirty at version %d, fix it by hand", from)
	}

	names := upMigrations(files)
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		logger.Error(ctx, "db.migrate", "migrate.apply",
			slog.String("status", "fail"),
			slog.Uint64("from_ver", uint64(from)),
			slog.String("err", err.Error()),
		)
		return fmt.Errorf("migrate up: %w", err)
	}
	to, _, _ := m.Version()

	applied := between(names, uint64(from), uint64(to))
	attrs := []slog.Attr{
		slog.String("status", "ok"),
		slog.Uint64("from_ver", uint64(from)),
		slog.Uint64("to_ver", uint64(to)),
		slog.Int("files", len(applied)),
		slog.Int("files_total", len(names)),
		slog.Duration("took", logger.Took(start)),
	}
	if preview, cut := logger.SummarizeStrings(applied, 6); preview != "" {
		attrs = append(attrs, slog.String("files_preview", preview), slog.Bool("files_truncated", cut))
	}
	logger.Info(ctx, "db.migrate", "migrate.summary", attrs...)
	return nil
}

// upMigrations lists the *.up.sql files at the root of files, sorted.
func upMigrations(files fs.FS) []string {
	matches, _ := fs.Glob(files, "*.up.sql")
	slices.Sort(matches)
	return matches
}

// between returns the migrations with from < version <= to.
func between(names []string, from, to uint64) []string {
	var out []string
	for _, name := range names {
		prefix, _, _ := strings.Cut(name, "_")
		v, err := strconv.ParseUint(prefix, 10, 64)
		if err == nil && v > from && v <= to {
			out = append(out, name)
		}
	}
	return out
}
