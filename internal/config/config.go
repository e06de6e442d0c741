// Package config loads service settings from defaults, an optional
// YAML or JSON file and environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

var (
	// ErrInvalid is returned for settings that fail validation.
	ErrInvalid = errors.New("invalid configuration")

	// ErrUnsupportedFormat is returned for config files that are neither YAML nor JSON.
	ErrUnsupportedFormat = errors.New("unsupported config format")
)

// Store drivers.
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
)

// Config holds all service settings.
type Config struct {
	Port     string        `koanf:"port"`
	GRPCPort string        `koanf:"grpc_port"`
	LogLevel string        `koanf:"log_level"`
	LogFile  string        `koanf:"log_file"`
	MMDBPath string        `koanf:"mmdb_path"`
	Dataset  DatasetConfig `koanf:"dataset"`
	Store    StoreConfig   `koanf:"store"`
}

// DatasetConfig locates the allocation CSV.
type DatasetConfig struct {
	Path  string `koanf:"path"`
	Watch bool   `koanf:"watch"`
}

// StoreConfig selects the allocation store backend.
type StoreConfig struct {
	Driver    string `koanf:"driver"`
	DSN       string `koanf:"dsn"`
	CacheSize int    `koanf:"cache_size"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Port:     "8080",
		GRPCPort: "9090",
		LogLevel: "info",
		Dataset: DatasetConfig{
			Path: "IPDB/geo-US.csv",
		},
		Store: StoreConfig{
			Driver:    DriverMemory,
			DSN:       "file:geoalloc.db?cache=shared",
			CacheSize: 4096,
		},
	}
}

// Load builds the configuration. path may be empty to skip the file layer.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := loadFile(cfg, path); err != nil {
			return nil, err
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDotEnv loads variables from the given .env files into the process
// environment. Missing files are skipped and existing variables win.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// Validate checks the settings for consistency.
func (c *Config) Validate() error {
	var errs []error

	for name, port := range map[string]string{"port": c.Port, "grpc_port": c.GRPCPort} {
		if n, err := strconv.Atoi(port); err != nil || n < 0 || n > 65535 {
			errs = append(errs, fmt.Errorf("%w: %s %q", ErrInvalid, name, port))
		}
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("%w: log_level %q", ErrInvalid, c.LogLevel))
	}

	if c.Dataset.Path == "" {
		errs = append(errs, fmt.Errorf("%w: dataset.path is required", ErrInvalid))
	}

	switch c.Store.Driver {
	case DriverMemory:
	case DriverSQLite:
		if c.Store.DSN == "" {
			errs = append(errs, fmt.Errorf("%w: store.dsn is required for sqlite", ErrInvalid))
		}
	default:
		errs = append(errs, fmt.Errorf("%w: store.driver %q", ErrInvalid, c.Store.Driver))
	}

	if c.Store.CacheSize < 0 {
		errs = append(errs, fmt.Errorf("%w: store.cache_size %d", ErrInvalid, c.Store.CacheSize))
	}

	return errors.Join(errs...)
}

func loadFile(cfg *Config, path string) error {
	var parser koanf.Parser
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	k := koanf.New(".")
	if err := k.Load(rawbytes.Provider(raw), parser); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return fmt.Errorf("decode config %s: %w", path, err)
	}
	return nil
}

// applyEnv overrides settings with any of the supported environment variables.
func applyEnv(cfg *Config) error {
	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	setString("PORT", &cfg.Port)
	setString("GRPC_PORT", &cfg.GRPCPort)
	setString("LOG_LEVEL", &cfg.LogLevel)
	setString("LOG_FILE", &cfg.LogFile)
	setString("MMDB_PATH", &cfg.MMDBPath)
	setString("DATASET_PATH", &cfg.Dataset.Path)
	setString("STORE_DRIVER", &cfg.Store.Driver)
	setString("STORE_DSN", &cfg.Store.DSN)

	if v := os.Getenv("DATASET_WATCH"); v != "" {
		watch, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%w: DATASET_WATCH %q", ErrInvalid, v)
		}
		cfg.Dataset.Watch = watch
	}

	if v := os.Getenv("STORE_CACHE_SIZE"); v != "" {
		size, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: STORE_CACHE_SIZE %q", ErrInvalid, v)
		}
		cfg.Store.CacheSize = size
	}

	return nil
}
