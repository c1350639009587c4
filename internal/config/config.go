// Package config holds all configuration types and loading logic for the
// paging channel service. Config structure never shrinks — fields are only
// added, never renamed or removed.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for a paging channel service instance.
type Config struct {
	Node    NodeConfig    `yaml:"node"`
	Paging  PagingConfig  `yaml:"paging"`
	Store   StoreConfig   `yaml:"store"`
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// NodeConfig holds identity and network settings for this service instance.
type NodeConfig struct {
	// ID is a ULID string; the default is "auto". Nothing in this module
	// reads it: pagingdemo mints a new node ID with idgen on every start.
	ID      string `yaml:"id"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
	DataDir string `yaml:"data_dir"`
}

// PagingConfig holds the default paging parameters applied to channels that
// do not set their own. fullSize, pageSize and downCacheSize must satisfy
// 0 < downCacheSize <= pageSize < fullSize.
type PagingConfig struct {
	FullSize      int `yaml:"full_size"`
	PageSize      int `yaml:"page_size"`
	DownCacheSize int `yaml:"down_cache_size"`

	// AcceptReliableMessages gates whether a paging channel accepts
	// reliable references at all; false makes add() reject them with an
	// invariant violation while paging.
	AcceptReliableMessages bool `yaml:"accept_reliable_messages"`

	// Recoverable marks the channel as backed by a durable store capable
	// of honoring reliable references across restart.
	Recoverable bool `yaml:"recoverable"`
}

// StoreConfig controls the PersistenceManager reference implementation.
type StoreConfig struct {
	// Path is the bbolt database file backing persisted references.
	Path string `yaml:"path"`
}

// LoggingConfig controls the structured logger.
type LoggingConfig struct {
	// Level is one of "debug", "info", "warn", "error".
	Level string `yaml:"level"`
}

// MetricsConfig holds metrics endpoint settings. This module serves no
// metrics endpoint; only Validate reads these fields.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Default returns a Config populated with safe, sensible defaults. It is
// the canonical source of truth for default values.
func Default() *Config {
	return &Config{
		Node: NodeConfig{
			ID:      "auto",
			Host:    "0.0.0.0",
			Port:    8080,
			DataDir: "./data",
		},
		Paging: PagingConfig{
			FullSize:               75_000,
			PageSize:               2_000,
			DownCacheSize:          2_000,
			AcceptReliableMessages: true,
			Recoverable:            true,
		},
		Store: StoreConfig{
			Path: "./data/channels.db",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
	}
}

// Load reads a YAML config file at path and overlays it on top of
// Default(). If the file does not exist the default config is returned
// without error, making it easy to run the service with no config file at
// all.
//
// After loading the file, environment variables are applied as overrides:
//
//	PAGINGD_DATA_DIR    — sets node.data_dir
//	PAGINGD_PORT        — sets node.port
//	PAGINGD_STORE_PATH  — sets store.path
//	PAGINGD_LOG_LEVEL   — sets logging.level
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			applyEnv(cfg)
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	applyEnv(cfg)
	return cfg, nil
}

// applyEnv overlays environment variable overrides onto cfg.
func applyEnv(cfg *Config) {
	if v := os.Getenv("PAGINGD_DATA_DIR"); v != "" {
		cfg.Node.DataDir = v
	}
	if v := os.Getenv("PAGINGD_PORT"); v != "" {
		var p int
		if _, err := fmt.Sscanf(v, "%d", &p); err == nil && p > 0 {
			cfg.Node.Port = p
		}
	}
	if v := os.Getenv("PAGINGD_STORE_PATH"); v != "" {
		cfg.Store.Path = v
	}
	if v := os.Getenv("PAGINGD_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks that the config values are consistent and within
// acceptable ranges. It returns the first error found.
func (c *Config) Validate() error {
	if c.Node.Port < 1 || c.Node.Port > 65535 {
		return errors.New("node.port must be between 1 and 65535")
	}
	if c.Node.DataDir == "" {
		return errors.New("node.data_dir must not be empty")
	}
	if !(c.Paging.DownCacheSize > 0 && c.Paging.DownCacheSize <= c.Paging.PageSize && c.Paging.PageSize < c.Paging.FullSize) {
		return errors.New("paging config must satisfy 0 < down_cache_size <= page_size < full_size")
	}
	if c.Store.Path == "" {
		return errors.New("store.path must not be empty")
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		// valid
	default:
		return errors.New(`logging.level must be one of "debug", "info", "warn", "error"`)
	}
	if c.Metrics.Port < 1 || c.Metrics.Port > 65535 {
		return errors.New("metrics.port must be between 1 and 65535")
	}
	return nil
}
