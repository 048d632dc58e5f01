package backup

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/m3rciful/synthbot/core/logger"
)

// ValidateSchedule checks a standard five-field cron expression or descriptor such as @daily.
func ValidateSchedule(spec string) error {
	if _, err := cron.ParseStandard(spec); err != nil {
		return fmt.Errorf("invalid backup schedule %q: %w", spec, err)
	}
	return nil
}

// RunSchedule creates backups on the configured schedule until ctx is done.
// An empty schedule disables it and returns immediately.
func (s *Service) RunSchedule(ctx context.Context) error {
	if s.opts.Schedule == "" {
		return nil
	}
	if err := ValidateSchedule(s.opts.Schedule); err != nil {
		return err
	}

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	_, err := c.AddFunc(s.opts.Schedule, func() {
		runCtx := logger.WithMeta(ctx, logger.Meta{TraceID: uuid.NewString()})
		if _, err := s.Create(runCtx); err != nil {
			logger.Error(runCtx, "service.backup", "backup.scheduled",
				slog.String("status", "fail"),
				slog.String("err", err.Error()),
			)
		}
	})
	if err != nil {
		return fmt.Errorf("schedule backup: %w", err)
	}

	c.Start()
	logger.Info(ctx, "service.backup", "backup.schedule",
		slog.String("status", "ok"),
		slog.String("schedule", s.opts.Schedule),
		slog.Int("keep", s.opts.Keep),
	)
	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}
