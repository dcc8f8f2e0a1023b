package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/nota-engine/config"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, config.EnvDevelopment, cfg.Env)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "nota.db", cfg.DBPath)
	assert.True(t, cfg.Recompute.Enabled)
	assert.Equal(t, "0 2 * * *", cfg.Recompute.Cron)
	assert.False(t, cfg.Payroll.StrictTransitions)
	assert.Equal(t, "UTC", cfg.Payroll.DefaultTimeZone)
	assert.True(t, cfg.MetricsEnabled)
	assert.Equal(t, []string{"*"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.False(t, cfg.IsProduction())
}

func TestLoad_EnvironmentWins(t *testing.T) {
	t.Setenv("ENV", "production")
	t.Setenv("PORT", "9090")
	t.Setenv("DB_PATH", ":memory:")
	t.Setenv("ALLOWED_ORIGINS", "https://ops.example.com, https://admin.example.com ,")
	t.Setenv("STRICT_TRANSITIONS", "true")
	t.Setenv("RECOMPUTE_CRON", "*/15 * * * *")
	t.Setenv("DEFAULT_TIMEZONE", "America/Santiago")
	t.Setenv("SHUTDOWN_TIMEOUT", "not-a-duration")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, ":memory:", cfg.DBPath)
	assert.Equal(t, []string{"https://ops.example.com", "https://admin.example.com"}, cfg.CORS.AllowedOrigins)
	assert.True(t, cfg.Payroll.StrictTransitions)
	assert.Equal(t, "*/15 * * * *", cfg.Recompute.Cron)
	assert.Equal(t, "America/Santiago", cfg.Payroll.DefaultTimeZone)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout, "bad durations fall back")
}
