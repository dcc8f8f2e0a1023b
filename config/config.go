/*
Package config loads server settings from the environment.

PURPOSE:
  One flat Config assembled by viper. A .env file in the working directory
  is read when present (godotenv for the process env, viper for defaults);
  real environment variables always win.

KEYS:
  ENV                 development | production
  PORT                HTTP port (8080)
  DB_PATH             SQLite path, ":memory:" for ephemeral (nota.db)
  LOG_LEVEL           zap level (info)
  LOG_FORMAT          json | console (json)
  ALLOWED_ORIGINS     comma separated CORS origins
  RECOMPUTE_ENABLED   run the cron recompute (true)
  RECOMPUTE_CRON      cron schedule (0 2 * * *)
  STRICT_TRANSITIONS  enforce the status transition table (false)
  METRICS_ENABLED     expose /metrics (true)
  DEFAULT_TIMEZONE    zone for configs without one (UTC)
  SEED_PATH           JSON seed imported on an empty store
  ENABLE_SCENARIOS    expose demo scenario endpoints (false)
  SHUTDOWN_TIMEOUT    graceful shutdown timeout (30s)
*/
package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env    string
	Port   int
	DBPath string

	Log       LogConfig
	CORS      CORSConfig
	Recompute RecomputeConfig
	Payroll   PayrollConfig

	MetricsEnabled   bool
	SeedPath         string
	ScenariosEnabled bool
	ShutdownTimeout  time.Duration
}

type LogConfig struct {
	Level  string
	Format string
}

type CORSConfig struct {
	AllowedOrigins []string
}

// RecomputeConfig drives the scheduled month ensure/recompute.
type RecomputeConfig struct {
	Enabled bool
	Cron    string
}

// PayrollConfig holds engine options.
type PayrollConfig struct {
	StrictTransitions bool
	DefaultTimeZone   string
}

// IsProduction reports whether ENV is production.
func (c *Config) IsProduction() bool {
	return c.Env == EnvProduction
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{
		Env:    v.GetString("ENV"),
		Port:   v.GetInt("PORT"),
		DBPath: v.GetString("DB_PATH"),
		Log: LogConfig{
			Level:  v.GetString("LOG_LEVEL"),
			Format: v.GetString("LOG_FORMAT"),
		},
		CORS: CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))},
		Recompute: RecomputeConfig{
			Enabled: v.GetBool("RECOMPUTE_ENABLED"),
			Cron:    v.GetString("RECOMPUTE_CRON"),
		},
		Payroll: PayrollConfig{
			StrictTransitions: v.GetBool("STRICT_TRANSITIONS"),
			DefaultTimeZone:   v.GetString("DEFAULT_TIMEZONE"),
		},
		MetricsEnabled:   v.GetBool("METRICS_ENABLED"),
		SeedPath:         v.GetString("SEED_PATH"),
		ScenariosEnabled: v.GetBool("ENABLE_SCENARIOS"),
		ShutdownTimeout:  parseDuration(v.GetString("SHUTDOWN_TIMEOUT"), 30*time.Second),
	}
	if len(cfg.CORS.AllowedOrigins) == 0 {
		cfg.CORS.AllowedOrigins = []string{"*"}
	}
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("DB_PATH", "nota.db")

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("ALLOWED_ORIGINS", "")

	v.SetDefault("RECOMPUTE_ENABLED", true)
	v.SetDefault("RECOMPUTE_CRON", "0 2 * * *")
	v.SetDefault("STRICT_TRANSITIONS", false)
	v.SetDefault("METRICS_ENABLED", true)
	v.SetDefault("DEFAULT_TIMEZONE", "UTC")

	v.SetDefault("SEED_PATH", "")
	v.SetDefault("ENABLE_SCENARIOS", false)
	v.SetDefault("SHUTDOWN_TIMEOUT", "30s")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
