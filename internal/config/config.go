// Hevysync - Hevy Workout Data Synchronization Agent
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hevysync

// Package config loads the agent configuration from layered sources
// with precedence ENV > YAML file > built-in defaults.
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// ConfigPathEnvVar overrides the config file search.
const ConfigPathEnvVar = "HEVYSYNC_CONFIG"

// DefaultConfigPaths are searched in order when ConfigPathEnvVar is unset.
var DefaultConfigPaths = []string{
	"hevysync.yaml",
	"config/hevysync.yaml",
	"/config/hevysync.yaml",
}

// Config is the complete agent configuration.
type Config struct {
	Hevy     HevyConfig     `koanf:"hevy"`
	Client   ClientConfig   `koanf:"client"`
	Paging   PagingConfig   `koanf:"paging"`
	Import   ImportConfig   `koanf:"import"`
	Database DatabaseConfig `koanf:"database"`
	Props    PropsConfig    `koanf:"props"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// HevyConfig addresses the Hevy public API.
type HevyConfig struct {
	BaseURL string `koanf:"base_url" validate:"required,url"`

	// APIKey may be empty; the durable property store is then consulted
	// and, failing that, the initial setup prompt.
	APIKey string `koanf:"api_key" validate:"omitempty,hevy_key"`
}

// ClientConfig tunes the resilient HTTP client.
type ClientConfig struct {
	BaseDelay         time.Duration `koanf:"base_delay" validate:"gt=0"`
	MaxDelay          time.Duration `koanf:"max_delay" validate:"gt=0,gtefield=BaseDelay"`
	MaxRetries        int           `koanf:"max_retries" validate:"min=1"`
	RequestTimeout    time.Duration `koanf:"request_timeout" validate:"gt=0"`
	ValidationTimeout time.Duration `koanf:"validation_timeout" validate:"gt=0"`

	FailureThreshold float64       `koanf:"failure_threshold" validate:"gt=0"`
	ResetTimeout     time.Duration `koanf:"reset_timeout" validate:"gt=0"`

	CacheMaxEntries int           `koanf:"cache_max" validate:"min=1"`
	CacheTTL        time.Duration `koanf:"cache_ttl" validate:"gt=0"`
}

// PagingConfig tunes paginated walks.
type PagingConfig struct {
	PageSize       int           `koanf:"page_size" validate:"min=1,max=100"`
	MaxPages       int           `koanf:"max_pages" validate:"min=1"`
	InterPageDelay time.Duration `koanf:"inter_page_delay" validate:"gte=0"`
}

// ImportConfig tunes the import pipeline.
type ImportConfig struct {
	MaxExecutionTime     time.Duration `koanf:"max_execution_time" validate:"gt=0"`
	HeartbeatInterval    time.Duration `koanf:"heartbeat_interval" validate:"gt=0"`
	StaleAfter           time.Duration `koanf:"stale_after" validate:"gt=0"`
	LockPath             string        `koanf:"lock_path" validate:"required"`
	LockWait             time.Duration `koanf:"lock_wait" validate:"gte=0"`
	WorkoutBatchSize     int           `koanf:"workout_batch_size" validate:"min=1"`
	MinSuccessCount      int           `koanf:"min_success_count" validate:"min=0"`
	FailureRateThreshold float64       `koanf:"failure_rate_threshold" validate:"gte=0,lte=1"`
	RowCheckInterval     int           `koanf:"row_check_interval" validate:"min=1"`

	// Template restricts a full import to the exercise catalog, for
	// producing an empty starter sheet set.
	Template bool `koanf:"template"`
}

// DatabaseConfig locates the DuckDB sheet store.
type DatabaseConfig struct {
	Path string `koanf:"path" validate:"required"`
}

// PropsConfig locates the badger property store.
type PropsConfig struct {
	Path string `koanf:"path" validate:"required"`
}

// LoggingConfig tunes log output.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error"`
	Format string `koanf:"format" validate:"oneof=json console"`
}

func defaultConfig() Config {
	return Config{
		Hevy: HevyConfig{
			BaseURL: "https://api.hevyapp.com/v1",
		},
		Client: ClientConfig{
			BaseDelay:         time.Second,
			MaxDelay:          10 * time.Second,
			MaxRetries:        3,
			RequestTimeout:    30 * time.Second,
			ValidationTimeout: 15 * time.Second,
			FailureThreshold:  5.0,
			ResetTimeout:      60 * time.Second,
			CacheMaxEntries:   100,
			CacheTTL:          10 * time.Minute,
		},
		Paging: PagingConfig{
			PageSize:       10,
			MaxPages:       1000,
			InterPageDelay: 250 * time.Millisecond,
		},
		Import: ImportConfig{
			MaxExecutionTime:     5 * time.Minute,
			HeartbeatInterval:    30 * time.Second,
			StaleAfter:           5 * time.Minute,
			LockPath:             "/data/hevysync.lock",
			LockWait:             30 * time.Second,
			WorkoutBatchSize:     10,
			MinSuccessCount:      1,
			FailureRateThreshold: 0.25,
			RowCheckInterval:     200,
		},
		Database: DatabaseConfig{
			Path: "/data/hevysync.duckdb",
		},
		Props: PropsConfig{
			Path: "/data/hevysync-props",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Validate checks the configuration against its struct constraints.
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.RegisterValidation("hevy_key", validateHevyKey); err != nil {
		return fmt.Errorf("failed to register key validator: %w", err)
	}
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func validateHevyKey(fl validator.FieldLevel) bool {
	return ValidateAPIKey(fl.Field().String()) == nil
}
