// Package config loads server settings from the environment (and a .env file).
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

// Supported DB_DRIVER and MAIL_PROVIDER values.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	MailProviderLog  = "log"
	MailProviderHTTP = "http"
)

// Config holds all configuration for the server.
type Config struct {
	Port string `mapstructure:"PORT"`

	DBDriver    string `mapstructure:"DB_DRIVER"`
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	SQLitePath  string `mapstructure:"SQLITE_PATH"`

	LookaheadDays    int           `mapstructure:"LOOKAHEAD_DAYS"`
	RunSchedule      string        `mapstructure:"RUN_SCHEDULE"`
	RunOnStart       bool          `mapstructure:"RUN_ON_START"`
	Timezone         string        `mapstructure:"TIMEZONE"`
	NotifyEnabled    bool          `mapstructure:"NOTIFY_ENABLED"`
	NotifyBatchSize  int           `mapstructure:"NOTIFY_BATCH_SIZE"`
	OperationTimeout time.Duration `mapstructure:"OPERATION_TIMEOUT"`

	MailProvider string `mapstructure:"MAIL_PROVIDER"`
	MailAPIURL   string `mapstructure:"MAIL_API_URL"`
	MailAPIKey   string `mapstructure:"MAIL_API_KEY"`
	MailFrom     string `mapstructure:"MAIL_FROM"`
	MailFromName string `mapstructure:"MAIL_FROM_NAME"`

	CORSAllowedOrigins string `mapstructure:"CORS_ALLOWED_ORIGINS"`

	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogFormat string `mapstructure:"LOG_FORMAT"`
}

var keys = []string{
	"PORT", "DB_DRIVER", "DATABASE_URL", "SQLITE_PATH",
	"LOOKAHEAD_DAYS", "RUN_SCHEDULE", "RUN_ON_START", "TIMEZONE",
	"NOTIFY_ENABLED", "NOTIFY_BATCH_SIZE", "OPERATION_TIMEOUT",
	"MAIL_PROVIDER", "MAIL_API_URL", "MAIL_API_KEY", "MAIL_FROM", "MAIL_FROM_NAME",
	"CORS_ALLOWED_ORIGINS", "LOG_LEVEL", "LOG_FORMAT",
}

// Load reads .env (if present), then the environment, then validates.
func Load() (*Config, error) {
	_ = godotenv.Load()

	viper.SetDefault("PORT", "8080")
	viper.SetDefault("DB_DRIVER", "sqlite")
	viper.SetDefault("SQLITE_PATH", "heyjack.db")
	viper.SetDefault("LOOKAHEAD_DAYS", 15)
	viper.SetDefault("RUN_SCHEDULE", "0 6 * * *") // Every day at 06:00.
	viper.SetDefault("RUN_ON_START", false)
	viper.SetDefault("TIMEZONE", "America/Argentina/Buenos_Aires")
	viper.SetDefault("NOTIFY_ENABLED", true)
	viper.SetDefault("NOTIFY_BATCH_SIZE", 3)
	viper.SetDefault("OPERATION_TIMEOUT", "10s")
	viper.SetDefault("MAIL_PROVIDER", "log")
	viper.SetDefault("MAIL_FROM_NAME", "Hey Jack")
	viper.SetDefault("CORS_ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:5173")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("LOG_FORMAT", "json")
	viper.AutomaticEnv()

	for _, k := range keys {
		_ = viper.BindEnv(k)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	var errs []error

	switch c.DBDriver {
	case DriverSQLite:
		if c.SQLitePath == "" {
			errs = append(errs, errors.New("SQLITE_PATH is required when DB_DRIVER=sqlite"))
		}
	case DriverPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required when DB_DRIVER=postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("DB_DRIVER must be sqlite or postgres, got %q", c.DBDriver))
	}

	if c.LookaheadDays < 1 {
		errs = append(errs, fmt.Errorf("LOOKAHEAD_DAYS must be >= 1, got %d", c.LookaheadDays))
	}
	if c.NotifyBatchSize < 1 {
		errs = append(errs, fmt.Errorf("NOTIFY_BATCH_SIZE must be >= 1, got %d", c.NotifyBatchSize))
	}
	if c.OperationTimeout < 0 {
		errs = append(errs, errors.New("OPERATION_TIMEOUT must not be negative"))
	}
	if _, err := cron.ParseStandard(c.RunSchedule); err != nil {
		errs = append(errs, fmt.Errorf("RUN_SCHEDULE %q: %w", c.RunSchedule, err))
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("TIMEZONE %q: %w", c.Timezone, err))
	}

	switch c.MailProvider {
	case MailProviderLog:
	case MailProviderHTTP:
		if c.MailAPIURL == "" || c.MailAPIKey == "" || c.MailFrom == "" {
			errs = append(errs, errors.New("MAIL_API_URL, MAIL_API_KEY and MAIL_FROM are required when MAIL_PROVIDER=http"))
		}
	default:
		errs = append(errs, fmt.Errorf("MAIL_PROVIDER must be log or http, got %q", c.MailProvider))
	}

	return errors.Join(errs...)
}

// Location returns the configured timezone. Validate has already checked it.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// AllowedOrigins splits CORS_ALLOWED_ORIGINS on commas.
func (c *Config) AllowedOrigins() []string {
	var out []string
	for _, o := range strings.Split(c.CORSAllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}
