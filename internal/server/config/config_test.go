package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.LoadDefaults()

	assert.Equal(t, 20, cfg.PurgeLimit)
	assert.Equal(t, 5, cfg.PurgeConcurrency)
	assert.Equal(t, 10*time.Second, cfg.PurgeReportInterval)
	assert.False(t, cfg.StrictLifecycle)
	assert.NotEmpty(t, cfg.DatabaseDSN)
	assert.NotEmpty(t, cfg.NetworkDeleteEndpoint)
}

func TestLoadConfig_NoFile(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, 20, cfg.PurgeLimit)
}

func TestLoadConfig_JsonOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	data := `{
		"database_dsn": "postgres://test",
		"purge_limit": 100,
		"purge_report_interval": "30s",
		"strict_lifecycle": true
	}`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "postgres://test", cfg.DatabaseDSN)
	assert.Equal(t, 100, cfg.PurgeLimit)
	assert.Equal(t, 30*time.Second, cfg.PurgeReportInterval)
	assert.True(t, cfg.StrictLifecycle)
	// untouched fields keep their defaults
	assert.Equal(t, 5, cfg.PurgeConcurrency)
}

func TestLoadConfig_BadFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestLoadConfig_BadJson(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{"), 0o600))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}
