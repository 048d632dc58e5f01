// Package backup dumps and restores the PostgreSQL database with pg_dump and psql.
package backup

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/m3rciful/synthbot/core/database"
	"github.com/m3rciful/synthbot/core/logger"
)

const (
	filePrefix = "synthbot_"
	fileExt    = ".sql"
	timeLayout = "20060102_150405"
)

// ErrInvalidName is returned for a restore target that is not a backup file name.
var ErrInvalidName = errors.New("backup: invalid backup name")

// Options configures where backups go and which tools produce them.
type Options struct {
	Dir      string
	Schedule string
	Keep     int
	PgDump   string
	Psql     string
}

// Backup describes one dump file.
type Backup struct {
	Name      string
	Path      string
	Size      int64
	CreatedAt time.Time
}

// Runner executes an external tool. env entries are appended to the process environment.
type Runner func(ctx context.Context, name string, args, env []string) error

// ExecRunner runs the tool with os/exec and reports stderr on failure.
func ExecRunner(ctx context.Context, name string, args, env []string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Env = append(os.Environ(), env...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return fmt.Errorf("%s: %w: %s", filepath.Base(name), err, msg)
		}
		return fmt.Errorf("%s: %w", filepath.Base(name), err)
	}
	return nil
}

// Service creates, lists, prunes and restores backups.
type Service struct {
	db   database.Config
	opts Options
	run  Runner
	now  func() time.Time
}

// NewService constructs a Service. A nil runner selects ExecRunner.
func NewService(db database.Config, opts Options, run Runner) *Service {
	if opts.PgDump == "" {
		opts.PgDump = "pg_dump"
	}
	if opts.Psql == "" {
		opts.Psql = "psql"
	}
	if opts.Dir == "" {
		opts.Dir = "backups"
	}
	if run == nil {
		run = ExecRunner
	}
	return &Service{db: db, opts: opts, run: run, now: time.Now}
}

func (s *Service) connArgs() []string {
	return []string{"-h", s.db.Host, "-p", s.db.Port, "-U", s.db.User, "-d", s.db.Name}
}

func (s *Service) env() []string {
	return []string{"PGPASSWORD=" + s.db.Password, "PGSSLMODE=" + s.db.SSLMode}
}

// Create dumps the database into a new file and prunes old backups.
func (s *Service) Create(ctx context.Context) (Backup, error) {
	start := time.Now()
	if err := os.MkdirAll(s.opts.Dir, 0o750); err != nil {
		return Backup{}, fmt.Errorf("backup dir: %w", err)
	}
	name := filePrefix + s.now().UTC().Format(timeLayout) + fileExt
	path := filepath.Join(s.opts.Dir, name)

	args := append(s.connArgs(), "--clean", "--if-exists", "--no-owner", "-f", path)
	if err := s.run(ctx, s.opts.PgDump, args, s.env()); err != nil {
		_ = os.Remove(path)
		logger.Error(ctx, "service.backup", "backup.create",
			slog.String("status", "fail"),
			slog.String("file", name),
			slog.String("err", err.Error()),
		)
		return Backup{}, fmt.Errorf("pg_dump: %w", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return Backup{}, fmt.Errorf("backup stat: %w", err)
	}
	b := Backup{Name: name, Path: path, Size: info.Size(), CreatedAt: info.ModTime()}
	logger.Info(ctx, "service.backup", "backup.create",
		slog.String("status", "ok"),
		slog.String("file", name),
		slog.Int64("bytes", b.Size),
		slog.Int64("duration_ms", logger.Took(start).Milliseconds()),
	)

	if _, err := s.Prune(ctx); err != nil {
		logger.Warn(ctx, "service.backup", "backup.prune",
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
	}
	return b, nil
}

// List returns existing backups, newest first.
func (s *Service) List() ([]Backup, error) {
	entries, err := os.ReadDir(s.opts.Dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list backups: %w", err)
	}
	var out []Backup
	for _, e := range entries {
		if e.IsDir() || !validName(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, Backup{
			Name:      e.Name(),
			Path:      filepath.Join(s.opts.Dir, e.Name()),
			Size:      info.Size(),
			CreatedAt: info.ModTime(),
		})
	}
	// Names embed a sortable timestamp.
	sort.Slice(out, func(i, j int) bool { return out[i].Name > out[j].Name })
	return out, nil
}

// Prune removes all but the newest Keep backups. Keep <= 0 keeps everything.
func (s *Service) Prune(ctx context.Context) (int, error) {
	if s.opts.Keep <= 0 {
		return 0, nil
	}
	list, err := s.List()
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, b := range list[min(s.opts.Keep, len(list)):] {
		if err := os.Remove(b.Path); err != nil {
			return removed, fmt.Errorf("remove %s: %w", b.Name, err)
		}
		removed++
	}
	if removed > 0 {
		logger.Info(ctx, "service.backup", "backup.prune",
			slog.String("status", "ok"),
			slog.Int("count", removed),
		)
	}
	return removed, nil
}

// Restore replays the named backup into the database.
func (s *Service) Restore(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if !validName(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	path := filepath.Join(s.opts.Dir, name)
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("backup %s: %w", name, err)
	}

	start := time.Now()
	args := append(s.connArgs(), "-v", "ON_ERROR_STOP=1", "-q", "-f", path)
	if err := s.run(ctx, s.opts.Psql, args, s.env()); err != nil {
		logger.Error(ctx, "service.backup", "backup.restore",
			slog.String("status", "fail"),
			slog.String("file", name),
			slog.String("err", err.Error()),
		)
		return fmt.Errorf("psql: %w", err)
	}
	logger.Info(ctx, "service.backup", "backup.restore",
		slog.String("status", "ok"),
		slog.String("file", name),
		slog.Int64("duration_ms", logger.Took(start).Milliseconds()),
	)
	return nil
}

func validName(name string) bool {
	if name != filepath.Base(name) || !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileExt) {
		return false
	}
	stamp := strings.TrimSuffix(strings.TrimPrefix(name, filePrefix), fileExt)
	_, err := time.Parse(timeLayout, stamp)
	return err == nil
}
