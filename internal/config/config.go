// Package config loads and persists the skillsync configuration file.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// HNSW holds the vector index tuning.
type HNSW struct {
	Dimensions     int  `yaml:"dimensions,omitempty"`
	M              int  `yaml:"m,omitempty"`
	EfConstruction int  `yaml:"ef_construction,omitempty"`
	EfSearch       int  `yaml:"ef_search,omitempty"`
	MaxElements    int  `yaml:"max_elements,omitempty"`
	Disabled       bool `yaml:"disabled,omitempty"` // force brute-force search
}

// Config is the in-memory representation of ~/.skillsync/config.yaml.
type Config struct {
	RegistryURL          string `yaml:"registry_url"`
	DBPath               string `yaml:"db_path,omitempty"`
	SnapshotPath         string `yaml:"snapshot_path,omitempty"`
	SyncOnStart          bool   `yaml:"sync_on_start,omitempty"`
	CheckIntervalSeconds int    `yaml:"check_interval_seconds,omitempty"`
	PageSize             int    `yaml:"page_size,omitempty"`
	HNSW                 HNSW   `yaml:"hnsw,omitempty"`
}

// Dir returns the absolute path to ~/.skillsync/.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".skillsync"), nil
}

// Path returns the absolute path to ~/.skillsync/config.yaml.
func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Default returns the configuration written on first use.
func Default() *Config {
	return &Config{
		RegistryURL:          "https://registry.skillsync.dev",
		SyncOnStart:          true,
		CheckIntervalSeconds: 60,
	}
}

// Load reads the config file, falling back to defaults when it does
// not exist yet.
func Load() (*Config, error) {
	path, err := Path()
	if err != nil {
		return nil, err
	}
	return LoadFrom(path)
}

// LoadFrom reads a config file from an explicit path.
func LoadFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Save writes the config file, creating the directory if needed.
func (c *Config) Save() error {
	path, err := Path()
	if err != nil {
		return err
	}
	return c.SaveTo(path)
}

// SaveTo writes the config to an explicit path.
func (c *Config) SaveTo(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// DatabasePath resolves the database location: explicit config value,
// then $SKILLSYNC_DB, then ~/.skillsync/skills.db.
func (c *Config) DatabasePath() string {
	if c.DBPath != "" {
		return c.DBPath
	}
	if env := os.Getenv("SKILLSYNC_DB"); env != "" {
		return env
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".skillsync", "skills.db")
}

// IndexSnapshotPath resolves the snapshot location, defaulting to a
// sibling of the database file.
func (c *Config) IndexSnapshotPath() string {
	if c.SnapshotPath != "" {
		return c.SnapshotPath
	}
	return c.DatabasePath() + ".index"
}
