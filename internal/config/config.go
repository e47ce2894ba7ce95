// SPDX-License-Identifier: Apache-2.0

// Package config loads atg-mcp settings. Precedence, lowest first: built-in
// defaults, the YAML config file, ATG_* environment variables, command-line
// flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/atgproj/atg-mcp/internal/dipchart"
	"github.com/atgproj/atg-mcp/internal/schema"
	"github.com/goccy/go-yaml"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Environment variables read by ApplyEnv.
const (
	EnvDataDir      = "ATG_DATA_DIR"
	EnvArchiveDir   = "ATG_ARCHIVE_DIR"
	EnvArchiveFlush = "ATG_ARCHIVE_FLUSH"
	EnvMaxDepthMm   = "ATG_MAX_DEPTH_MM"
	EnvMaxVolumeL   = "ATG_MAX_VOLUME_L"
	EnvLogLevel     = "ATG_LOG_LEVEL"
	EnvLogFormat    = "ATG_LOG_FORMAT"
)

// Config is the complete runtime configuration.
type Config struct {
	// DataDir holds charts and calibration. Empty keeps everything in memory.
	DataDir string `json:"data_dir" yaml:"data_dir"`
	// ArchiveDir receives reading blobs. Empty disables the archive.
	ArchiveDir string `json:"archive_dir" yaml:"archive_dir"`
	// ArchiveFlushThreshold is the per-tank reading count that triggers a
	// flush; zero selects the archive default.
	ArchiveFlushThreshold int             `json:"archive_flush_threshold,omitempty" yaml:"archive_flush_threshold,omitempty"`
	Limits                dipchart.Limits `json:"limits" yaml:"limits"`
	Logging               Logging         `json:"logging" yaml:"logging"`
}

// Logging selects the log level and handler format.
type Logging struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
}

// Defaults returns a configuration that needs no file.
func Defaults() Config {
	return Config{
		Limits:  dipchart.DefaultLimits(),
		Logging: Logging{Level: "info", Format: "text"},
	}
}

// Load reads the YAML file at path on top of Defaults. Unknown keys are
// rejected. An empty path returns Defaults.
func Load(path string) (Config, error) {
	cfg := Defaults()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	return Parse(data, cfg)
}

// Parse decodes YAML data over base.
func Parse(data []byte, base Config) (Config, error) {
	cfg := base
	if err := yaml.UnmarshalWithOptions(data, &cfg, yaml.DisallowUnknownField()); err != nil {
		return base, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return cfg, nil
}

// ApplyEnv overrides cfg with the ATG_* variables that lookup reports as set.
// Pass os.LookupEnv in production.
func ApplyEnv(cfg Config, lookup func(string) (string, bool)) (Config, error) {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok {
			*dst = strings.TrimSpace(v)
		}
	}
	str(EnvDataDir, &cfg.DataDir)
	str(EnvArchiveDir, &cfg.ArchiveDir)
	str(EnvLogLevel, &cfg.Logging.Level)
	str(EnvLogFormat, &cfg.Logging.Format)

	if v, ok := lookup(EnvArchiveFlush); ok {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return cfg, fmt.Errorf("%w: %s: %v", ErrInvalid, EnvArchiveFlush, err)
		}
		cfg.ArchiveFlushThreshold = n
	}
	if v, ok := lookup(EnvMaxDepthMm); ok {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return cfg, fmt.Errorf("%w: %s: %v", ErrInvalid, EnvMaxDepthMm, err)
		}
		cfg.Limits.MaxDepthMm = n
	}
	if v, ok := lookup(EnvMaxVolumeL); ok {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return cfg, fmt.Errorf("%w: %s: %v", ErrInvalid, EnvMaxVolumeL, err)
		}
		cfg.Limits.MaxVolumeL = f
	}
	return cfg, nil
}

// Validate checks cfg against the embedded schema.
func Validate(cfg Config) error {
	if err := schema.ValidateValue(schema.Config, cfg); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if cfg.DataDir != "" && cfg.DataDir == cfg.ArchiveDir {
		return fmt.Errorf("%w: data_dir and archive_dir must differ", ErrInvalid)
	}
	return nil
}
