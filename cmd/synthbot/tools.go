package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/m3rciful/synthbot/core/buildinfo"
	"github.com/m3rciful/synthbot/core/logger"
	"github.com/m3rciful/synthbot/internal/backup"
	"github.com/m3rciful/synthbot/internal/bot"
	"github.com/m3rciful/synthbot/internal/config"
	"github.com/m3rciful/synthbot/internal/dialog"
	"github.com/m3rciful/synthbot/internal/params"
	"github.com/m3rciful/synthbot/internal/predictor"
)

// withTool loads config, starts the logger and hands fn a context cancelled
// on SIGINT or SIGTERM.
func withTool(flags *rootFlags, fn func(ctx context.Context, cfg *config.Config) error) error {
	cfg, err := loadConfig(flags)
	if err != nil {
		return err
	}
	if err := logger.InitLogger(cfg.CoreConfig()); err != nil {
		return fmt.Errorf("logger init: %w", err)
	}
	defer func() { _ = logger.Shutdown() }()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	return fn(ctx, cfg)
}

func newMigrateCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and seed admins into the whitelist",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Shutdown() }()
			res, err := bootstrapDB(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer res.DB.Close()
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
}

func newPredictCmd(flags *rootFlags) *cobra.Command {
	var mode string
	cmd := &cobra.Command{
		Use:   "predict <eu> <phen> <ligand> <ligand_type> <ph> <volume> <time> [rate]",
		Short: "Run the predictor once without touching the database",
		Example: `  synthbot predict 1 1 3 2 11 500 30
  synthbot predict --mode formula 1 1 3 2 11 500 30 16.7`,
		Args: cobra.RangeArgs(params.MinTokens, params.MaxTokens),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := params.Parse(args)
			if err != nil {
				return err
			}
			return withTool(flags, func(ctx context.Context, cfg *config.Config) error {
				pc := cfg.Predictor
				if mode != "" {
					pc.Mode = mode
				}
				models, err := bot.NewPredictor(pc)
				if err != nil {
					return err
				}
				start := time.Now()
				res, err := models.Predict(ctx, rec)
				if err != nil {
					return err
				}
				return printPrediction(cmd, rec, res, models.Mode(), time.Since(start))
			})
		},
	}
	cmd.Flags().StringVar(&mode, "mode", "", "predictor mode override (process or formula)")
	return cmd
}

func printPrediction(cmd *cobra.Command, rec params.Record, res predictor.Result, mode predictor.Mode, took time.Duration) error {
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "mode: %s (%s)\n\n%s\n\n", mode, took.Round(time.Millisecond), dialog.FormatParams(rec))
	fmt.Fprintf(w, "size: %s nm\npdi:  %s\n", dialog.FormatNumber(res.Size), dialog.FormatNumber(res.PdI))
	return nil
}

func newBackupCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Create a database backup",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withBackups(flags, func(ctx context.Context, svc *backup.Service) error {
				bk, err := svc.Create(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "created %s (%d bytes)\n", bk.Path, bk.Size)
				return nil
			})
		},
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List backups, newest first",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withBackups(flags, func(_ context.Context, svc *backup.Service) error {
					list, err := svc.List()
					if err != nil {
						return err
					}
					tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
					fmt.Fprintln(tw, "NAME\tCREATED\tSIZE")
					for _, bk := range list {
						fmt.Fprintf(tw, "%s\t%s\t%d\n", bk.Name, bk.CreatedAt.Format(time.RFC3339), bk.Size)
					}
					return tw.Flush()
				})
			},
		},
		&cobra.Command{
			Use:   "restore <name>",
			Short: "Restore the database from a backup",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withBackups(flags, func(ctx context.Context, svc *backup.Service) error {
					if err := svc.Restore(ctx, args[0]); err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "restored %s\n", args[0])
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "prune",
			Short: "Delete backups beyond the retention count",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withBackups(flags, func(ctx context.Context, svc *backup.Service) error {
					n, err := svc.Prune(ctx)
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "removed %d backups\n", n)
					return nil
				})
			},
		},
	)
	return cmd
}

func withBackups(flags *rootFlags, fn func(ctx context.Context, svc *backup.Service) error) error {
	return withTool(flags, func(ctx context.Context, cfg *config.Config) error {
		return fn(ctx, backup.NewService(cfg.Database, cfg.Backup.Options(), nil))
	})
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "synthbot", buildinfo.String())
		},
	}
}
