// SacredConnect - Community, Worship, and Giving Platform
// Copyright 2026 SacredConnect Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sacredconnect/sacredconnect

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

const (
	// ConfigPathEnvVar overrides the config file search path.
	ConfigPathEnvVar = "SC_CONFIG_PATH"

	// envPrefix marks environment variables as configuration overrides.
	envPrefix = "SC_"
)

// defaultConfigPaths are checked in order when SC_CONFIG_PATH is unset.
var defaultConfigPaths = []string{
	"sacredconnect.yaml",
	"config/sacredconnect.yaml",
	"/etc/sacredconnect/config.yaml",
}

// Load builds the configuration from defaults, an optional YAML file, and
// SC_-prefixed environment variables, in that order of precedence.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(DefaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("loading environment: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// findConfigFile returns the first config file that exists, or "" when
// running on defaults and environment alone.
func findConfigFile() string {
	if path := os.Getenv(ConfigPathEnvVar); path != "" {
		return path
	}
	for _, path := range defaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// envTransform maps SC_SERVER__PORT to server.port. A double underscore
// separates sections; single underscores stay inside multiword keys.
func envTransform(key string) string {
	key = strings.TrimPrefix(key, envPrefix)
	if key == strings.TrimPrefix(ConfigPathEnvVar, envPrefix) {
		return ""
	}
	key = strings.ToLower(key)
	return strings.ReplaceAll(key, "__", ".")
}
