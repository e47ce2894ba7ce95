// SPDX-License-Identifier: Apache-2.0

package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/atgproj/atg-mcp/internal/config"
	"github.com/atgproj/atg-mcp/internal/dipchart"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestDefaultsAreValid(t *testing.T) {
	cfg := config.Defaults()
	require.NoError(t, config.Validate(cfg))
	assert.Equal(t, dipchart.DefaultLimits(), cfg.Limits)
	assert.Empty(t, cfg.DataDir)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "atg.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
data_dir: /var/lib/atg
archive_dir: /var/lib/atg-archive
limits:
  max_depth_mm: 2500
logging:
  level: debug
`), 0o644))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/atg", cfg.DataDir)
	assert.Equal(t, "/var/lib/atg-archive", cfg.ArchiveDir)
	assert.Equal(t, 2500, cfg.Limits.MaxDepthMm)
	assert.Equal(t, 55000.0, cfg.Limits.MaxVolumeL, "unset keys keep their defaults")
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	require.NoError(t, config.Validate(cfg))
}

func TestLoad_EmptyPath(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, config.Defaults(), cfg)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestParse_RejectsUnknownKeys(t *testing.T) {
	_, err := config.Parse([]byte("data_dir: x\nmax_depth: 3000\n"), config.Defaults())
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrInvalid)
}

func TestApplyEnv(t *testing.T) {
	cfg, err := config.ApplyEnv(config.Defaults(), envMap(map[string]string{
		config.EnvDataDir:      " /data ",
		config.EnvMaxDepthMm:   "2800",
		config.EnvMaxVolumeL:   "40000.5",
		config.EnvLogFormat:    "json",
		config.EnvArchiveFlush: "16",
	}))
	require.NoError(t, err)
	assert.Equal(t, "/data", cfg.DataDir)
	assert.Equal(t, 2800, cfg.Limits.MaxDepthMm)
	assert.Equal(t, 40000.5, cfg.Limits.MaxVolumeL)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, 16, cfg.ArchiveFlushThreshold)
}

func TestApplyEnv_BadNumbers(t *testing.T) {
	for _, key := range []string{config.EnvMaxDepthMm, config.EnvMaxVolumeL, config.EnvArchiveFlush} {
		t.Run(key, func(t *testing.T) {
			_, err := config.ApplyEnv(config.Defaults(), envMap(map[string]string{key: "lots"}))
			assert.ErrorIs(t, err, config.ErrInvalid)
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"zero max depth", func(c *config.Config) { c.Limits.MaxDepthMm = 0 }},
		{"negative max volume", func(c *config.Config) { c.Limits.MaxVolumeL = -1 }},
		{"unknown level", func(c *config.Config) { c.Logging.Level = "loud" }},
		{"unknown format", func(c *config.Config) { c.Logging.Format = "xml" }},
		{"negative flush threshold", func(c *config.Config) { c.ArchiveFlushThreshold = -2 }},
		{"shared directories", func(c *config.Config) { c.DataDir, c.ArchiveDir = "d", "d" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Defaults()
			tt.mutate(&cfg)
			assert.ErrorIs(t, config.Validate(cfg), config.ErrInvalid)
		})
	}
}
