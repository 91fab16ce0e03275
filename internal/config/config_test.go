package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfigFile(t, `
database:
  url: postgres://localhost:5432/ticketwatch
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "https://lakeridepros.xyz", cfg.Notify.Origin)
	assert.Equal(t, "LRP", cfg.Notify.Source)
	assert.Equal(t, time.Hour, cfg.SLA.SweepInterval)
	assert.Equal(t, time.Hour, cfg.SLA.Lookahead)
	assert.Equal(t, 100, cfg.SLA.PageSize)
	assert.True(t, cfg.Database.Migrate)
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := writeConfigFile(t, `
server:
  port: "9999"
database:
  url: postgres://localhost:5432/ticketwatch
notify:
  origin: https://staging.lakeridepros.xyz
sla:
  sweep_interval: 15m
  page_size: 25
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "9999", cfg.Server.Port)
	assert.Equal(t, "https://staging.lakeridepros.xyz", cfg.Notify.Origin)
	assert.Equal(t, 15*time.Minute, cfg.SLA.SweepInterval)
	assert.Equal(t, 25, cfg.SLA.PageSize)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := writeConfigFile(t, `
database:
  url: postgres://localhost:5432/ticketwatch
`)

	t.Setenv("TICKETWATCH_SERVER__PORT", "7777")
	t.Setenv("TICKETWATCH_NOTIFY__EMAIL__SMTP_HOST", "mail.lakeridepros.com")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "7777", cfg.Server.Port)
	assert.Equal(t, "mail.lakeridepros.com", cfg.Notify.Email.SMTPHost)
}

func TestLoadRequiresDatabaseURL(t *testing.T) {
	path := writeConfigFile(t, `
log:
  level: debug
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validate config")
}

func TestLoadRejectsBadLogLevel(t *testing.T) {
	path := writeConfigFile(t, `
database:
  url: postgres://localhost:5432/ticketwatch
log:
  level: loud
`)

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("TICKETWATCH_DATABASE__URL", "postgres://localhost:5432/ticketwatch")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "postgres://localhost:5432/ticketwatch", cfg.Database.URL)
}
