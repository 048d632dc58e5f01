// Package logger is the process-wide structured logger. Lines are flat JSON
// objects (or key=value pairs in dev profiles) with a fixed leading key
// order, written asynchronously to stdout and an optional file.
package logger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/m3rciful/synthbot/core/buildinfo"
	coreconfig "github.com/m3rciful/synthbot/core/config"
)

var (
	initOnce sync.Once
	stopOnce sync.Once
	out      *lineWriter
	files    []io.Closer
	level    slog.LevelVar
	debug    sampler
	traceAll bool

	// L is the root logger. It discards everything until InitLogger runs.
	L = slog.New(slog.DiscardHandler)
)

func init() {
	debug.set(defaultSampleKeep, defaultSampleEvery)
}

// InitLogger installs the structured handler as the slog default. Only the
// first call has any effect.
func InitLogger(cfg *coreconfig.Config) error {
	var err error
	initOnce.Do(func() {
		var lc coreconfig.LoggingConfig
		if cfg != nil {
			lc = cfg.Logging
		}
		f, ferr := openLogFile(lc.Dir, lc.BotFile)
		if ferr != nil {
			err = ferr
			return
		}
		sinks := []io.Writer{os.Stdout}
		if f != nil {
			sinks = append(sinks, f)
			files = append(files, f)
		}

		level.Set(parseLevel(lc.Level))
		debug.set(parseSample(lc.DebugSample))
		traceAll = envFlag("LOG_TRACE") || envFlag("TRACE")

		out = newLineWriter(256, sinks...)
		L = slog.New(&lineHandler{
			level: &level,
			out:   out,
			enc:   pickEncoding(lc),
			order: parseKeyOrder(lc.KeysOrder),
		})
		slog.SetDefault(L)

		L.LogAttrs(context.Background(), slog.LevelInfo, "startup",
			slog.String("component", "app"),
			slog.String("go_version", runtime.Version()),
			slog.String("build_version", buildinfo.Version),
			slog.String("build_commit", buildinfo.Commit),
			slog.String("build_time", buildinfo.Date),
			slog.String("cfg_profile", profile(lc)),
		)
	})
	return err
}

// Shutdown flushes pending lines and closes the log file. Calls after the
// first are no-ops.
func Shutdown() error {
	var err error
	stopOnce.Do(func() {
		var errs []error
		if out != nil {
			errs = append(errs, out.close())
		}
		for _, c := range files {
			errs = append(errs, c.Close())
		}
		err = errors.Join(errs...)
	})
	return err
}

func openLogFile(dir, name string) (*os.File, error) {
	dir, name = strings.TrimSpace(dir), strings.TrimSpace(name)
	if dir == "" || name == "" {
		return nil, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("logger: create %s: %w", dir, err)
	}
	f, err := os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("logger: open log file: %w", err)
	}
	return f, nil
}

func profile(lc coreconfig.LoggingConfig) string {
	if p := strings.ToLower(strings.TrimSpace(lc.Profile)); p != "" {
		return p
	}
	return "prod"
}

// pickEncoding honours an explicit format and otherwise uses key=value for
// the dev and debug profiles.
func pickEncoding(lc coreconfig.LoggingConfig) encoding {
	switch strings.ToLower(strings.TrimSpace(lc.Format)) {
	case "json":
		return encJSON
	case "kv", "text", "pretty":
		return encKV
	}
	switch profile(lc) {
	case "dev", "debug":
		return encKV
	}
	return encJSON
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

func parseKeyOrder(s string) []string {
	var order []string
	if s = strings.TrimSpace(s); s != "default" {
		for _, k := range strings.Split(s, ",") {
			if k = strings.TrimSpace(k); k != "" {
				order = append(order, k)
			}
		}
	}
	if len(order) == 0 {
		return defaultKeyOrder
	}
	return order
}

func envFlag(name string) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(name))) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

// ShouldSampleDebug reports whether a high-volume debug line should be
// written. LOG_TRACE=1 lets every line through.
func ShouldSampleDebug() bool {
	return traceAll || debug.allow()
}

// Component returns the root logger scoped to name.
func Component(name string) *slog.Logger {
	if name = strings.TrimSpace(name); name == "" {
		return L
	}
	return L.With("component", name)
}

// Event writes one line for component with event as its first attribute.
func Event(ctx context.Context, component string, lvl slog.Level, event string, attrs ...slog.Attr) {
	lg := Component(component)
	if !lg.Enabled(ctx, lvl) {
		return
	}
	if event != "" {
		attrs = append([]slog.Attr{slog.String("event", event)}, attrs...)
	}
	lg.LogAttrs(ctx, lvl, "", attrs...)
}

// Debug logs a debug event for component.
func Debug(ctx context.Context, component, event string, attrs ...slog.Attr) {
	Event(ctx, component, slog.LevelDebug, event, attrs...)
}

// Info logs an info event for component.
func Info(ctx context.Context, component, event string, attrs ...slog.Attr) {
	Event(ctx, component, slog.LevelInfo, event, attrs...)
}

// Warn logs a warning event for component.
func Warn(ctx context.Context, component, event string, attrs ...slog.Attr) {
	Event(ctx, component, slog.LevelWarn, event, attrs...)
}

// Error logs an error event for component.
func Error(ctx context.Context, component, event string, attrs ...slog.Attr) {
	Event(ctx, component, slog.LevelError, event, attrs...)
}
