// Package config loads the service's deployment configuration, following
// the teacher's RunConfigFile shape (internal/attractor/engine/config.go):
// one struct with nested sections, YAML by default or JSON by extension,
// defaults applied, then validated.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// File is the top-level shape of the service config file.
type File struct {
	Version int `json:"version" yaml:"version"`

	Git struct {
		CacheRoot string `json:"cache_root" yaml:"cache_root"`
	} `json:"git" yaml:"git"`

	Wiki struct {
		BaseURL string `json:"base_url" yaml:"base_url"`
	} `json:"wiki" yaml:"wiki"`

	Operations struct {
		QueueCapacity   int `json:"queue_capacity" yaml:"queue_capacity"`
		Workers         int `json:"workers" yaml:"workers"`
		RetentionDays   int `json:"retention_days" yaml:"retention_days"`
		SweepIntervalMS int `json:"sweep_interval_ms" yaml:"sweep_interval_ms"`
	} `json:"operations" yaml:"operations"`

	Server struct {
		Addr string `json:"addr" yaml:"addr"`
	} `json:"server" yaml:"server"`
}

// RetentionInterval is config.Operations.RetentionDays as a time.Duration.
func (f File) RetentionInterval() time.Duration {
	return time.Duration(f.Operations.RetentionDays) * 24 * time.Hour
}

// SweepInterval is config.Operations.SweepIntervalMS as a time.Duration.
func (f File) SweepInterval() time.Duration {
	return time.Duration(f.Operations.SweepIntervalMS) * time.Millisecond
}

// Load reads path (YAML unless the extension is .json), applies defaults,
// validates, and returns the resolved config.
func Load(path string) (*File, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var cfg File
	if strings.ToLower(filepath.Ext(path)) == ".json" {
		if err := json.Unmarshal(b, &cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	} else {
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	applyDefaults(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *File) {
	if cfg.Version == 0 {
		cfg.Version = 1
	}
	if strings.TrimSpace(cfg.Git.CacheRoot) == "" {
		cfg.Git.CacheRoot = "./cpack-data"
	}
	if cfg.Operations.QueueCapacity == 0 {
		cfg.Operations.QueueCapacity = 64
	}
	if cfg.Operations.Workers == 0 {
		cfg.Operations.Workers = 4
	}
	if cfg.Operations.RetentionDays == 0 {
		cfg.Operations.RetentionDays = 30
	}
	if cfg.Operations.SweepIntervalMS == 0 {
		cfg.Operations.SweepIntervalMS = 60_000
	}
	if strings.TrimSpace(cfg.Server.Addr) == "" {
		cfg.Server.Addr = ":8080"
	}
}

func validate(cfg *File) error {
	if cfg.Version != 1 {
		return fmt.Errorf("config: unsupported version %d", cfg.Version)
	}
	if strings.TrimSpace(cfg.Wiki.BaseURL) == "" {
		return fmt.Errorf("config: wiki.base_url is required")
	}
	if cfg.Operations.QueueCapacity < 1 {
		return fmt.Errorf("config: operations.queue_capacity must be >= 1")
	}
	if cfg.Operations.Workers < 1 {
		return fmt.Errorf("config: operations.workers must be >= 1")
	}
	if cfg.Operations.RetentionDays < 1 {
		return fmt.Errorf("config: operations.retention_days must be >= 1")
	}
	return nil
}
