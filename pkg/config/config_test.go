package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 30, cfg.Harvest.PageSize)
	assert.Equal(t, 800*time.Millisecond, cfg.Harvest.PageDelay)
	assert.Equal(t, 3, cfg.Harvest.MaxAttempts)

	require.Len(t, cfg.Throttle.Rules, 2)
	assert.Equal(t, int64(1000), cfg.Throttle.Rules[0].Threshold)
	assert.Equal(t, 30*time.Second, cfg.Throttle.Rules[0].Pause)
	assert.Equal(t, int64(100), cfg.Throttle.Rules[1].Threshold)
	assert.Equal(t, 5*time.Second, cfg.Throttle.Rules[1].Pause)

	require.NoError(t, cfg.Validate())
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
session:
  sessdata: file-sessdata
  bili_jct: file-jct
harvest:
  page_size: 20
logging:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "file-sessdata", cfg.Session.SessData)
	assert.Equal(t, 20, cfg.Harvest.PageSize)
	assert.Equal(t, "debug", cfg.Logging.Level)
	// Untouched sections keep their defaults.
	assert.Equal(t, 3, cfg.Harvest.MaxAttempts)
}

func TestEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("session:\n  sessdata: from-file\n"), 0644))

	t.Setenv("BILILOT_SESSDATA", "from-env")
	t.Setenv("BILILOT_PAGE_DELAY_MS", "100")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Session.SessData)
	assert.Equal(t, 100*time.Millisecond, cfg.Harvest.PageDelay)
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero timeout", func(c *Config) { c.API.Timeout = 0 }},
		{"zero rpm", func(c *Config) { c.API.RequestsPerMinute = 0 }},
		{"page size too big", func(c *Config) { c.Harvest.PageSize = 50 }},
		{"zero attempts", func(c *Config) { c.Harvest.MaxAttempts = 0 }},
		{"negative threshold", func(c *Config) { c.Throttle.Rules[0].Threshold = -1 }},
		{"zero pause", func(c *Config) { c.Throttle.Rules[1].Pause = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
