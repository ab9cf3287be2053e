package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type ProjectConfig struct {
	Project    string           `yaml:"project"`
	Version    int              `yaml:"version"`
	Database   DatabaseConfig   `yaml:"database"`
	Validation ValidationConfig `yaml:"validation"`
	Logging    LoggingConfig    `yaml:"logging"`
}

type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// ValidationConfig tunes the background validation scheduler. Zero
// values fall back to the defaults below.
type ValidationConfig struct {
	MaxConcurrentJobs        int   `yaml:"max_concurrent_jobs"`
	MaxPendingJobs           int   `yaml:"max_pending_jobs"`
	IntervalMinutes          int   `yaml:"interval_minutes"`
	RetentionMinutes         int   `yaml:"retention_minutes"`
	AutoRevalidate           *bool `yaml:"auto_revalidate"`
	AutoRevalidateAfterHours int   `yaml:"auto_revalidate_after_hours"`
}

type LoggingConfig struct {
	Mode string `yaml:"mode"`
}

const (
	LogModeProduction  = "production"
	LogModeDevelopment = "development"
)

func LoadProjectConfig(path string) (*ProjectConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("loading project config: %w", err)
	}

	var cfg ProjectConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("loading project config: %w", err)
	}

	applyDefaults(&cfg)
	if err := validateProjectConfig(&cfg); err != nil {
		return nil, fmt.Errorf("loading project config: %w", err)
	}

	return &cfg, nil
}

func applyDefaults(cfg *ProjectConfig) {
	if cfg.Validation.MaxConcurrentJobs == 0 {
		cfg.Validation.MaxConcurrentJobs = 3
	}
	if cfg.Validation.MaxPendingJobs == 0 {
		cfg.Validation.MaxPendingJobs = 100
	}
	if cfg.Validation.IntervalMinutes == 0 {
		cfg.Validation.IntervalMinutes = 5
	}
	if cfg.Validation.RetentionMinutes == 0 {
		cfg.Validation.RetentionMinutes = 60
	}
	if cfg.Validation.AutoRevalidate == nil {
		enabled := true
		cfg.Validation.AutoRevalidate = &enabled
	}
	if cfg.Validation.AutoRevalidateAfterHours == 0 {
		cfg.Validation.AutoRevalidateAfterHours = 24
	}
	if cfg.Logging.Mode == "" {
		cfg.Logging.Mode = LogModeProduction
	}
}

func validateProjectConfig(cfg *ProjectConfig) error {
	if strings.TrimSpace(cfg.Project) == "" {
		return fmt.Errorf("project name is required")
	}
	if cfg.Version != 1 {
		return fmt.Errorf("unsupported version: %d", cfg.Version)
	}
	if strings.TrimSpace(cfg.Database.DSN) == "" {
		return fmt.Errorf("database dsn is required")
	}
	if cfg.Validation.MaxConcurrentJobs < 1 {
		return fmt.Errorf("max_concurrent_jobs must be at least 1")
	}
	if cfg.Validation.MaxPendingJobs < 1 {
		return fmt.Errorf("max_pending_jobs must be at least 1")
	}
	if cfg.Logging.Mode != LogModeProduction && cfg.Logging.Mode != LogModeDevelopment {
		return fmt.Errorf("unsupported logging mode: %s", cfg.Logging.Mode)
	}
	return nil
}
