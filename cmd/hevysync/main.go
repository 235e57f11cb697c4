// Hevysync - Hevy Workout Data Synchronization Agent
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hevysync

// Package main is the entry point for the Hevysync agent.
//
// Hevysync performs a one-way import of Hevy workout data (exercises,
// workouts, routines, routine folders) into a local tabular store. Each
// invocation runs one import pass and exits; interrupted or paused runs
// resume from their checkpoint on the next invocation.
//
// # Startup Order
//
//  1. Configuration: layered Koanf v2 load (defaults, YAML file, env)
//  2. Logging: zerolog, JSON or console format
//  3. Property store: BadgerDB (API key, cursor, progress, cache tier)
//  4. Sheet store: DuckDB cell tables
//  5. Hevy client: executor, circuit breaker, response cache, paginator
//  6. Orchestrator: cross-process lock, progress tracker, console prompts
//
// # Configuration
//
// Environment variables take priority over the YAML config file
// (hevysync.yaml, or the path in HEVYSYNC_CONFIG):
//   - HEVY_API_KEY: Hevy API key (UUID); prompted for when absent
//   - DUCKDB_PATH: sheet store location (default /data/hevysync.duckdb)
//   - PROPS_PATH: property store directory (default /data/hevysync-props)
//   - IMPORT_TEMPLATE=true: import only the exercise catalog
//   - LOG_LEVEL, LOG_FORMAT: logging tunables
//
// # Example Usage
//
//	export HEVY_API_KEY=00000000-0000-0000-0000-000000000000
//	export DUCKDB_PATH=./data/hevy.duckdb
//	export PROPS_PATH=./data/props
//	./hevysync
//
// # Signal Handling
//
// SIGINT and SIGTERM cancel the run cooperatively: progress written so
// far is checkpointed and the next invocation resumes from it.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/tomtom215/hevysync/internal/config"
	"github.com/tomtom215/hevysync/internal/hevy"
	"github.com/tomtom215/hevysync/internal/importer"
	"github.com/tomtom215/hevysync/internal/lock"
	"github.com/tomtom215/hevysync/internal/logging"
	"github.com/tomtom215/hevysync/internal/props"
	"github.com/tomtom215/hevysync/internal/table"
	"github.com/tomtom215/hevysync/internal/timer"
	"github.com/tomtom215/hevysync/internal/ui"
)

func main() {
	if err := run(); err != nil {
		logging.Error().Err(err).Msg("Import run failed")
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	logging.Info().
		Str("duckdb", cfg.Database.Path).
		Str("props", cfg.Props.Path).
		Bool("template", cfg.Import.Template).
		Msg("Hevysync starting")

	db, err := props.Open(cfg.Props.Path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := db.Close(); cerr != nil {
			logging.Warn().Err(cerr).Msg("Failed to close property store")
		}
	}()
	store := props.NewBadgerStore(db)

	tables, err := table.OpenDuckStore(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := tables.Close(); cerr != nil {
			logging.Warn().Err(cerr).Msg("Failed to close sheet store")
		}
	}()

	exec := hevy.NewExecutor(cfg.Hevy.BaseURL, cfg.Hevy.APIKey, nil,
		cfg.Client.RequestTimeout, cfg.Client.ValidationTimeout)
	breaker := hevy.NewBreaker(cfg.Client.FailureThreshold, cfg.Client.ResetTimeout, nil)
	cache := hevy.NewResponseCache(store, cfg.Client.CacheMaxEntries, cfg.Client.CacheTTL)
	rates := hevy.NewRateLimitTracker(store, cfg.Client.CacheTTL, nil)
	client := hevy.NewClient(exec, breaker, cache, rates, hevy.ClientConfig{
		BaseDelay:         cfg.Client.BaseDelay,
		MaxDelay:          cfg.Client.MaxDelay,
		MaxRetries:        cfg.Client.MaxRetries,
		RequestTimeout:    cfg.Client.RequestTimeout,
		ValidationTimeout: cfg.Client.ValidationTimeout,
	}, nil)
	paginator := hevy.NewPaginator(client, cfg.Paging.MaxPages, cfg.Paging.InterPageDelay)

	steps := importer.NewSteps(client, paginator, tables, store, cfg.Paging, cfg.Import)
	plan := steps.BuildPlan(cfg.Import.Template)

	tracker := importer.NewTracker(store, cfg.Import.StaleAfter, nil)
	fileLock, err := lock.New(cfg.Import.LockPath)
	if err != nil {
		return err
	}
	timers := timer.NewRegistry()
	console := ui.NewConsole(os.Stdin, os.Stdout)

	orch := importer.NewOrchestrator(cfg.Import, plan, tracker, store, client,
		fileLock, timers, console, nil)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return orch.RunFullImport(ctx, cfg.Hevy.APIKey, false)
}
