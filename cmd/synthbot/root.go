package main

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"

	"github.com/m3rciful/synthbot/core/bootstrap"
	corecmd "github.com/m3rciful/synthbot/core/cmd"
	"github.com/m3rciful/synthbot/internal/access"
	"github.com/m3rciful/synthbot/internal/bot"
	"github.com/m3rciful/synthbot/internal/config"
	"github.com/m3rciful/synthbot/migrations"
)

const (
	configEnvVar      = "CONFIG_PATH"
	defaultConfigPath = "config.yaml"
)

type rootFlags struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	root := &cobra.Command{
		Use:   "synthbot",
		Short: "Telegram bot predicting nanoparticle size and PdI",
		Long: `synthbot collects Eu nanoparticle synthesis parameters over Telegram,
asks the predictor for size and PdI, and stores every experiment in PostgreSQL.

Without a subcommand it runs the bot.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBot(flags)
		},
	}
	root.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "",
		"config file (default $"+configEnvVar+" or "+defaultConfigPath+")")

	root.AddCommand(
		newRunCmd(flags),
		newMigrateCmd(flags),
		newPredictCmd(flags),
		newBackupCmd(flags),
		newVersionCmd(),
	)
	return root
}

func newRunCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the bot",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			return runBot(flags)
		},
	}
}

func runBot(flags *rootFlags) error {
	return corecmd.Run(corecmd.Options{
		ConfigEnvVar:      configEnvVar,
		DefaultConfigPath: defaultConfigPath,
		ConfigPath:        flags.configPath,
		LoadConfig: func(path string) (corecmd.ConfigCarrier, error) {
			return config.Load(path)
		},
		Bootstrap: func(ctx context.Context, carrier corecmd.ConfigCarrier) (corecmd.TelegramApp, error) {
			cfg, ok := carrier.(*config.Config)
			if !ok {
				return nil, fmt.Errorf("unexpected config type %T", carrier)
			}
			res, err := bootstrapDB(ctx, cfg)
			if err != nil {
				return nil, err
			}
			app, err := bot.New(cfg, res.DB)
			if err != nil {
				_ = res.DB.Close()
				return nil, err
			}
			return app, nil
		},
	})
}

// bootstrapDB initializes logging, connects, migrates and seeds admins into
// the whitelist.
func bootstrapDB(ctx context.Context, cfg *config.Config) (*bootstrap.Result, error) {
	return bootstrap.Run(ctx, bootstrap.Options{
		Config:     cfg.CoreConfig(),
		Database:   cfg.Database,
		Migrations: migrations.FS,
		Seeders: func(db *sqlx.DB) []bootstrap.Seeder {
			return []bootstrap.Seeder{
				access.NewSeeder(access.NewWhitelist(db), cfg.Telegram.AdminIDs),
			}
		},
	})
}

func loadConfig(flags *rootFlags) (*config.Config, error) {
	path, err := corecmd.ResolveConfigPath(corecmd.Options{
		ConfigEnvVar:      configEnvVar,
		DefaultConfigPath: defaultConfigPath,
		ConfigPath:        flags.configPath,
	})
	if err != nil {
		return nil, err
	}
	return config.Load(path)
}
