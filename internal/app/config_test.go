package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	require.Equal(t, 8000, cfg.Server.Port)
	require.Equal(t, "info", cfg.Server.LogLevel)
	require.Empty(t, cfg.Server.CronSecret)

	require.Equal(t, "sqlite", cfg.Database.Driver)
	require.Equal(t, "./data/confirma.sqlite", cfg.Database.Path)

	require.Equal(t, "mock", cfg.WhatsApp.Mode)
	require.Equal(t, 30*time.Second, cfg.WhatsApp.Cloud.Timeout)

	require.True(t, cfg.Scheduler.Enabled)
	require.Equal(t, "@every 1m", cfg.Scheduler.Spec)
	require.Equal(t, 50, cfg.Scheduler.BatchSize)
	require.Equal(t, 3, cfg.Scheduler.MaxAttempts)
	require.Equal(t, 5*time.Minute, cfg.Scheduler.RetryDelay)
	require.Equal(t, 3*time.Second, cfg.Scheduler.SendSpacing)
	require.Equal(t, 2*time.Second, cfg.Scheduler.Pacing)
}

func TestLoadConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	contents := `
server:
  port: 9000
  cron_secret: hush
whatsapp:
  mode: cloud
  cloud:
    access_token: token
    phone_number_id: "123"
scheduler:
  spec: "@every 30s"
  retry_delay: 10m
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(contents), 0o600))

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	require.Equal(t, 9000, cfg.Server.Port)
	require.Equal(t, "hush", cfg.Server.CronSecret)
	require.Equal(t, "cloud", cfg.WhatsApp.Mode)
	require.Equal(t, "token", cfg.WhatsApp.Cloud.AccessToken)
	require.Equal(t, "123", cfg.WhatsApp.Cloud.PhoneNumberID)
	require.Equal(t, "@every 30s", cfg.Scheduler.Spec)
	require.Equal(t, 10*time.Minute, cfg.Scheduler.RetryDelay)
	// Untouched sections keep their defaults.
	require.Equal(t, 50, cfg.Scheduler.BatchSize)
}

func TestLoadConfigFromEnvironment(t *testing.T) {
	t.Setenv("CONFIRMA_SERVER_PORT", "7070")
	t.Setenv("CONFIRMA_WHATSAPP_MODE", "meow")

	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)
	require.Equal(t, 7070, cfg.Server.Port)
	require.Equal(t, "meow", cfg.WhatsApp.Mode)
}

func TestDatabaseSettingsMapping(t *testing.T) {
	cfg := DatabaseConfig{
		Driver: "postgres",
		Postgres: DBAuthConfig{
			Host:     "db.internal",
			Port:     5432,
			Database: "confirma",
			Username: "svc",
			Password: "secret",
		},
	}

	settings := cfg.DatabaseSettings()
	require.Equal(t, "postgres", settings.Driver)
	require.Equal(t, "db.internal", settings.Host)
	require.Equal(t, 5432, settings.Port)
	require.Equal(t, "confirma", settings.Name)
	require.Equal(t, "svc", settings.User)
	require.Equal(t, "secret", settings.Password)
}
