// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v2"

	"github.com/gogpu/gpuimage"
	"github.com/gogpu/gpuimage/backend"
)

// Config is the imgtool configuration file.
type Config struct {
	// CacheLimit bounds the bytes of pooled images, 0 for no limit.
	CacheLimit int64 `yaml:"cache_limit"`
	// RowAlign and BaseAlign override the context alignments when set.
	RowAlign  int `yaml:"row_align"`
	BaseAlign int `yaml:"base_align"`
	// LogLevel is one of debug, info, warn and error.
	LogLevel string `yaml:"log_level"`
	// Backend names the memory backend, or "auto" for the best available.
	Backend string `yaml:"backend"`
}

// DefaultConfig returns the configuration used without a file.
func DefaultConfig() Config {
	return Config{LogLevel: "warn", Backend: backend.BackendHost}
}

// LoadConfig reads a YAML configuration file. Unset fields keep their
// defaults.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	cfg := DefaultConfig()
	if err := yaml.UnmarshalStrict(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// validate checks the log level and backend name.
func (c Config) validate() error {
	if _, err := c.level(); err != nil {
		return err
	}
	if c.Backend != autoBackend && !backend.IsRegistered(c.Backend) {
		return fmt.Errorf("unknown backend %q, want auto or one of %v", c.Backend, backend.Available())
	}
	return nil
}

// autoBackend selects the best backend that initializes.
const autoBackend = "auto"

// openBackend initializes the configured backend.
func (c Config) openBackend() (backend.Backend, error) {
	if c.Backend == autoBackend {
		return backend.InitDefault()
	}
	return backend.Open(c.Backend)
}

// Options returns the context options the configuration selects.
func (c Config) Options() []gpuimage.Option {
	opts := []gpuimage.Option{gpuimage.WithCacheLimit(c.CacheLimit)}
	if c.RowAlign != 0 {
		opts = append(opts, gpuimage.WithRowAlign(c.RowAlign))
	}
	if c.BaseAlign != 0 {
		opts = append(opts, gpuimage.WithBaseAlign(c.BaseAlign))
	}
	return opts
}

func (c Config) level() (slog.Level, error) {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "", "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("unknown log level %q", c.LogLevel)
}
