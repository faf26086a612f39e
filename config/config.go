package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"preset-labels/label"
)

// EnvPrefix prefixes every environment override, e.g. PRESET_LABELS_HTTP_ADDR.
const EnvPrefix = "PRESET_LABELS"

// Backends lists the accepted store.backend values.
var Backends = []string{"memory", "file", "sqlite", "redis"}

type Config struct {
	HTTP  HTTPConfig  `mapstructure:"http"`
	Log   LogConfig   `mapstructure:"log"`
	Store StoreConfig `mapstructure:"store"`
}

type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type StoreConfig struct {
	Backend string       `mapstructure:"backend"`
	Key     string       `mapstructure:"key"`
	File    FileConfig   `mapstructure:"file"`
	SQLite  SQLiteConfig `mapstructure:"sqlite"`
	Redis   RedisConfig  `mapstructure:"redis"`
}

type FileConfig struct {
	Path string `mapstructure:"path"`
}

type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

type RedisConfig struct {
	URL              string        `mapstructure:"url"`
	MaxConns         int           `mapstructure:"max_conns"`
	OperationTimeout time.Duration `mapstructure:"operation_timeout"`
	Prefix           string        `mapstructure:"prefix"`
}

var defaults = map[string]any{
	"http.addr":                     ":8080",
	"log.level":                     "info",
	"log.format":                    "json",
	"store.backend":                 "file",
	"store.key":                     label.DefaultKey,
	"store.file.path":               "data/local-storage.json",
	"store.sqlite.path":             "data/labels.db",
	"store.redis.url":               "",
	"store.redis.max_conns":         10,
	"store.redis.operation_timeout": 5 * time.Second,
	"store.redis.prefix":            "labels",
}

// Load reads configuration with precedence env > file > defaults. configFile
// may be empty.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// Validate checks that the selected backend has what it needs.
func (c *Config) Validate() error {
	if c.Store.Key == "" {
		return errors.New("store.key must not be empty")
	}
	switch c.Store.Backend {
	case "memory":
	case "file":
		if c.Store.File.Path == "" {
			return errors.New("store.file.path is required for the file backend")
		}
	case "sqlite":
		if c.Store.SQLite.Path == "" {
			return errors.New("store.sqlite.path is required for the sqlite backend")
		}
	case "redis":
		if c.Store.Redis.URL == "" {
			return errors.New("store.redis.url is required for the redis backend")
		}
	default:
		return fmt.Errorf("unknown store.backend %q (want one of %s)", c.Store.Backend, strings.Join(Backends, ", "))
	}
	return nil
}
