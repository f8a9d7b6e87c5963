package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Environment variables that override file settings
const (
	EnvDatabaseURL = "DATABASE_URL"
	EnvServerAddr  = "SERVER_ADDR"
	EnvCacheFile   = "CACHE_FILE"
)

// Load reads a YAML config file. A missing file yields an empty config when
// allowMissing is set, so defaults apply on Validate.
func Load(path string, allowMissing bool) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if allowMissing && errors.Is(err, os.ErrNotExist) {
			return &AppConfig{}, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &cfg, nil
}

// ApplyEnv overrides settings from the environment. A database URL implies
// the postgres backend unless one was chosen explicitly.
func (c *AppConfig) ApplyEnv(getenv func(string) string) {
	if v := getenv(EnvDatabaseURL); v != "" {
		c.Store.DatabaseURL = v
		if c.Store.Backend == "" {
			c.Store.Backend = StoreBackendPostgres
		}
	}
	if v := getenv(EnvServerAddr); v != "" {
		c.ServerAddr = v
	}
	if v := getenv(EnvCacheFile); v != "" {
		c.Cache.Path = v
	}
}
