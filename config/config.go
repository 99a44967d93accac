// Package config loads the matchlog tool configuration.
// Priority: defaults < config file < environment.
package config

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"matchlog/storage"
)

// Backend names accepted in the config file
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

// Config holds the persistence and logging settings
type Config struct {
	// Backend selects where match snapshots live: memory | file | sqlite | redis
	Backend string `yaml:"backend"`

	// DataDir is the directory for the file backend
	DataDir string `yaml:"data_dir"`

	// SQLitePath is the database file for the sqlite backend
	SQLitePath string `yaml:"sqlite_path"`

	Redis RedisConfig `yaml:"redis"`

	// LogLevel: debug | info | warn | error
	LogLevel string `yaml:"log_level"`
}

// RedisConfig mirrors the redis backend settings
type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	Database int    `yaml:"database"`
	Prefix   string `yaml:"prefix"`
}

// Default returns the zero-setup configuration
func Default() Config {
	return Config{
		Backend:    BackendFile,
		DataDir:    "./matchlog-data",
		SQLitePath: "./matchlog.db",
		Redis:      RedisConfig{Address: "localhost:6379", Prefix: "matchlog:"},
		LogLevel:   "info",
	}
}

// Load reads a YAML config file over the defaults. A missing file is not an
// error; it just means defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// OpenKV constructs the configured KV backend
func (c Config) OpenKV(ctx context.Context) (storage.KV, error) {
	switch c.Backend {
	case BackendMemory, "":
		return storage.NewMemoryKV(), nil
	case BackendFile:
		return storage.NewFileKV(c.DataDir)
	case BackendSQLite:
		return storage.OpenSQLiteKV(c.SQLitePath)
	case BackendRedis:
		rc := storage.DefaultRedisConfig(c.Redis.Address)
		rc.Password = c.Redis.Password
		rc.Database = c.Redis.Database
		if c.Redis.Prefix != "" {
			rc.Prefix = c.Redis.Prefix
		}
		return storage.NewRedisKV(ctx, rc)
	default:
		return nil, fmt.Errorf("config: unknown backend %q", c.Backend)
	}
}
