// Package config loads server configuration from an optional YAML file with
// environment-variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds all server settings.
type Config struct {
	Port        int    `yaml:"port"`
	Env         string `yaml:"env"`
	StaticDir   string `yaml:"static_dir"`
	DataDir     string `yaml:"data_dir"`
	MaxSessions int    `yaml:"max_sessions"`
}

// Load reads the YAML file at path (a missing file is not an error), then
// applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := &Config{
		Port:        3001,
		Env:         "development",
		StaticDir:   "./frontend/dist",
		DataDir:     "./data",
		MaxSessions: 32,
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	if v := os.Getenv("PORT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid PORT %q", v)
		}
		cfg.Port = n
	}
	if v := os.Getenv("ENV"); v != "" {
		cfg.Env = v
	}
	if v := os.Getenv("STATIC_DIR"); v != "" {
		cfg.StaticDir = v
	}
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("MAX_SESSIONS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid MAX_SESSIONS %q", v)
		}
		cfg.MaxSessions = n
	}

	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("port out of range: %d", cfg.Port)
	}
	if cfg.MaxSessions <= 0 {
		return nil, fmt.Errorf("max_sessions must be positive")
	}

	return cfg, nil
}

// ServeStatic reports whether static files should be served.
func (c *Config) ServeStatic() bool {
	return c.Env == "production" && c.StaticDir != ""
}
