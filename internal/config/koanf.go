// Hevysync - Hevy Workout Data Synchronization Agent
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hevysync

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

// Load builds the configuration from layered sources:
//  1. Built-in defaults
//  2. Optional YAML config file
//  3. Environment variables (highest priority)
func Load() (*Config, error) {
	k := koanf.New(".")

	defaults := defaultConfig()
	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// findConfigFile returns the first existing config file, or "".
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// envMappings routes flat environment variable names to config paths.
// Unmapped variables are dropped rather than guessed at.
var envMappings = map[string]string{
	"hevy_api_key":  "hevy.api_key",
	"hevy_base_url": "hevy.base_url",

	"client_base_delay":         "client.base_delay",
	"client_max_delay":          "client.max_delay",
	"client_max_retries":        "client.max_retries",
	"client_request_timeout":    "client.request_timeout",
	"client_validation_timeout": "client.validation_timeout",
	"client_failure_threshold":  "client.failure_threshold",
	"client_reset_timeout":      "client.reset_timeout",
	"client_cache_max":          "client.cache_max",
	"client_cache_ttl":          "client.cache_ttl",

	"paging_page_size":        "paging.page_size",
	"paging_max_pages":        "paging.max_pages",
	"paging_inter_page_delay": "paging.inter_page_delay",

	"import_max_execution_time":     "import.max_execution_time",
	"import_heartbeat_interval":     "import.heartbeat_interval",
	"import_stale_after":            "import.stale_after",
	"import_lock_path":              "import.lock_path",
	"import_lock_wait":              "import.lock_wait",
	"import_workout_batch_size":     "import.workout_batch_size",
	"import_min_success_count":      "import.min_success_count",
	"import_failure_rate_threshold": "import.failure_rate_threshold",
	"import_row_check_interval":     "import.row_check_interval",
	"import_template":               "import.template",

	"duckdb_path": "database.path",
	"props_path":  "props.path",

	"log_level":  "logging.level",
	"log_format": "logging.format",
}

func envTransformFunc(key string) string {
	if mapped, ok := envMappings[strings.ToLower(key)]; ok {
		return mapped
	}
	return ""
}
