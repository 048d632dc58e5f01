// Package config loads the bot configuration: the core sections plus
// database, predictor, backup, export, health and access settings.
package config

import (
	"fmt"
	"strings"
	"time"

	coreconfig "github.com/m3rciful/synthbot/core/config"
	coredatabase "github.com/m3rciful/synthbot/core/database"
	"github.com/m3rciful/synthbot/internal/backup"
	"github.com/m3rciful/synthbot/internal/predictor"
)

const (
	defaultBackupDir  = "backups"
	defaultBackupKeep = 7
	defaultExportRows = 10000
)

// PredictorConfig selects and configures the prediction routine.
type PredictorConfig struct {
	Mode    string        `yaml:"mode" envconfig:"PREDICTOR_MODE"`
	Command string        `yaml:"command" envconfig:"PREDICTOR_COMMAND"`
	Args    []string      `yaml:"args" envconfig:"PREDICTOR_ARGS"`
	Dir     string        `yaml:"dir" envconfig:"PREDICTOR_DIR"`
	Timeout time.Duration `yaml:"timeout" envconfig:"PREDICTOR_TIMEOUT"`
}

// BackupConfig holds pg_dump/psql settings and the retention policy.
type BackupConfig struct {
	Dir      string `yaml:"dir" envconfig:"BACKUP_DIR"`
	Schedule string `yaml:"schedule" envconfig:"BACKUP_SCHEDULE"`
	Keep     int    `yaml:"keep" envconfig:"BACKUP_KEEP"`
	PgDump   string `yaml:"pg_dump" envconfig:"BACKUP_PG_DUMP"`
	Psql     string `yaml:"psql" envconfig:"BACKUP_PSQL"`
}

// Options converts the section into backup.Options.
func (b BackupConfig) Options() backup.Options {
	return backup.Options{
		Dir:      b.Dir,
		Schedule: b.Schedule,
		Keep:     b.Keep,
		PgDump:   b.PgDump,
		Psql:     b.Psql,
	}
}

// ExportConfig limits history exports.
type ExportConfig struct {
	MaxRows int `yaml:"max_rows" envconfig:"EXPORT_MAX_ROWS"`
}

// HealthConfig configures the probe server. Empty Listen disables it.
type HealthConfig struct {
	Listen string `yaml:"listen" envconfig:"HEALTH_LISTEN"`
}

// AccessConfig toggles the whitelist.
type AccessConfig struct {
	WhitelistEnabled bool `yaml:"whitelist_enabled" envconfig:"ACCESS_WHITELIST_ENABLED"`
}

// Config is the full application configuration.
type Config struct {
	coreconfig.Config `yaml:",inline"`

	Database  coredatabase.Config `yaml:"database"`
	Predictor PredictorConfig     `yaml:"predictor"`
	Backup    BackupConfig        `yaml:"backup"`
	Export    ExportConfig        `yaml:"export"`
	Health    HealthConfig        `yaml:"health"`
	Access    AccessConfig        `yaml:"access"`
}

// CoreConfig exposes the embedded core sections.
func (c *Config) CoreConfig() *coreconfig.Config {
	if c == nil {
		return nil
	}
	return &c.Config
}

// PredictorMode returns the validated startup mode.
func (c *Config) PredictorMode() predictor.Mode {
	return predictor.Mode(c.Predictor.Mode)
}

// Load reads path, applies environment overrides and normalizes the result.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := coreconfig.Decode(path, &cfg); err != nil {
		return nil, err
	}
	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize validates every section and fills defaults.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}
	if err := coreconfig.Normalize(&cfg.Config); err != nil {
		return err
	}
	cfg.Database.Normalize()
	if strings.TrimSpace(cfg.Database.Name) == "" {
		return fmt.Errorf("database.name is required")
	}

	if err := normalizePredictor(&cfg.Predictor); err != nil {
		return err
	}

	if cfg.Backup.Dir == "" {
		cfg.Backup.Dir = defaultBackupDir
	}
	if cfg.Backup.Keep == 0 {
		cfg.Backup.Keep = defaultBackupKeep
	}
	if cfg.Backup.Keep < 0 {
		return fmt.Errorf("backup.keep must be >= 0")
	}
	cfg.Backup.Schedule = strings.TrimSpace(cfg.Backup.Schedule)
	if cfg.Backup.Schedule != "" {
		if err := backup.ValidateSchedule(cfg.Backup.Schedule); err != nil {
			return err
		}
	}

	if cfg.Export.MaxRows == 0 {
		cfg.Export.MaxRows = defaultExportRows
	}
	if cfg.Export.MaxRows < 0 {
		return fmt.Errorf("export.max_rows must be > 0")
	}
	cfg.Health.Listen = strings.TrimSpace(cfg.Health.Listen)
	return nil
}

func normalizePredictor(p *PredictorConfig) error {
	mode := strings.TrimSpace(p.Mode)
	if mode == "" {
		mode = string(predictor.ModeProcess)
		if strings.TrimSpace(p.Command) == "" {
			mode = string(predictor.ModeFormula)
		}
	}
	m, err := predictor.ParseMode(mode)
	if err != nil {
		return fmt.Errorf("predictor.mode: %w", err)
	}
	p.Mode = string(m)

	if m == predictor.ModeProcess && strings.TrimSpace(p.Command) == "" {
		return fmt.Errorf("predictor.command is required when predictor.mode is %q", predictor.ModeProcess)
	}
	if p.Timeout < 0 || p.Timeout > predictor.DefaultTimeout {
		return fmt.Errorf("predictor.timeout must be between 0 and %s, got %s", predictor.DefaultTimeout, p.Timeout)
	}
	if p.Timeout == 0 {
		p.Timeout = predictor.DefaultTimeout
	}
	return nil
}
