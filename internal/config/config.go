// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Taskdeck Contributors

// Package config loads server configuration from defaults, an optional
// YAML file, and command-line flags, in increasing order of precedence.
package config

import (
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
)

// Config holds the runtime configuration for the taskdeck server.
// DATABASE_URL is intentionally not part of this struct; credentials
// come from the environment, never from files or flags.
type Config struct {
	HTTPAddr     string `koanf:"http_addr" yaml:"http_addr"`
	MetricsAddr  string `koanf:"metrics_addr" yaml:"metrics_addr"`
	LogFormat    string `koanf:"log_format" yaml:"log_format"`
	CookieSecure bool   `koanf:"cookie_secure" yaml:"cookie_secure"`
	AutoMigrate  bool   `koanf:"auto_migrate" yaml:"auto_migrate"`
}

// Default values applied before file and flag overrides.
const (
	DefaultHTTPAddr    = "127.0.0.1:8080"
	DefaultMetricsAddr = "127.0.0.1:9100"
	DefaultLogFormat   = "json"
)

func defaults() map[string]interface{} {
	return map[string]interface{}{
		"http_addr":     DefaultHTTPAddr,
		"metrics_addr":  DefaultMetricsAddr,
		"log_format":    DefaultLogFormat,
		"cookie_secure": false,
		"auto_migrate":  false,
	}
}

// Load builds a Config from defaults, then the YAML file at path (if
// non-empty), then the given flag set (if non-nil). Later sources win.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "defaults").Wrap(err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "file").With("path", path).Wrap(err)
		}
	}

	if flags != nil {
		if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "flags").Wrap(err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "unmarshal").Wrap(err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.HTTPAddr == "" {
		return oops.Code("CONFIG_INVALID").With("field", "http_addr").Errorf("http_addr is required")
	}
	if c.LogFormat != "json" && c.LogFormat != "text" {
		return oops.Code("CONFIG_INVALID").With("field", "log_format").
			Errorf("log_format must be 'json' or 'text', got %q", c.LogFormat)
	}
	return nil
}

// RegisterFlags declares the configuration flags on the given flag set.
// Flag names match the koanf keys so posflag can overlay them directly.
func RegisterFlags(flags *pflag.FlagSet) {
	flags.String("http_addr", DefaultHTTPAddr, "API listen address")
	flags.String("metrics_addr", DefaultMetricsAddr, "metrics/health HTTP address (empty = disabled)")
	flags.String("log_format", DefaultLogFormat, "log format (json or text)")
	flags.Bool("cookie_secure", false, "mark session cookies Secure (requires HTTPS)")
	flags.Bool("auto_migrate", false, "apply pending database migrations on startup")
}
