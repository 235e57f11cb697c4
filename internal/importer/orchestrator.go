// Hevysync - Hevy Workout Data Synchronization Agent
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hevysync

package importer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"k8s.io/utils/clock"

	"github.com/tomtom215/hevysync/internal/config"
	"github.com/tomtom215/hevysync/internal/hevy"
	"github.com/tomtom215/hevysync/internal/lock"
	"github.com/tomtom215/hevysync/internal/logging"
	"github.com/tomtom215/hevysync/internal/metrics"
	"github.com/tomtom215/hevysync/internal/props"
	"github.com/tomtom215/hevysync/internal/timer"
	"github.com/tomtom215/hevysync/internal/ui"
)

// TriggerImport tags deferred import triggers in the timer registry.
const TriggerImport = "import"

// deferredImportDelay is how long after a key save the first import
// fires, letting the setup dialog close promptly.
const deferredImportDelay = 2 * time.Second

// Orchestrator runs the import step sequence under a wall-clock budget,
// serialized by a cross-process lock, checkpointing progress so an
// interrupted run resumes where it stopped.
type Orchestrator struct {
	cfg     config.ImportConfig
	plan    Plan
	tracker *Tracker
	store   props.Store
	client  *hevy.Client
	lock    *lock.FileLock
	timers  *timer.Registry
	dialogs ui.UI
	clk     clock.PassiveClock
}

// NewOrchestrator wires the orchestrator. clk defaults to the real clock.
func NewOrchestrator(cfg config.ImportConfig, plan Plan, tracker *Tracker, store props.Store, client *hevy.Client, fileLock *lock.FileLock, timers *timer.Registry, dialogs ui.UI, clk clock.PassiveClock) *Orchestrator {
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &Orchestrator{
		cfg:     cfg,
		plan:    plan,
		tracker: tracker,
		store:   store,
		client:  client,
		lock:    fileLock,
		timers:  timers,
		dialogs: dialogs,
		clk:     clk,
	}
}

// SaveAPIKey validates and persists a key, then schedules the deferred
// first import so the caller can return immediately.
func (o *Orchestrator) SaveAPIKey(key string) error {
	if err := o.persistKey(key); err != nil {
		return err
	}
	o.timers.CancelAll(TriggerImport)
	o.timers.Schedule(TriggerImport, deferredImportDelay, func() {
		if err := o.RunFullImport(context.Background(), "", true); err != nil {
			logging.Error().Err(err).Msg("Deferred import failed")
		}
	})
	return nil
}

func (o *Orchestrator) persistKey(key string) error {
	if err := config.ValidateAPIKey(key); err != nil {
		return &hevy.ValidationError{Field: "api_key", Message: err.Error()}
	}
	if err := o.store.Set(props.KeyAPIKey, []byte(key), 0); err != nil {
		return fmt.Errorf("failed to persist API key: %w", err)
	}
	o.client.SetAPIKey(key)
	return nil
}

// runState is the mutable checkpoint shared by the step loop and the
// cancel closure.
type runState struct {
	mu       sync.Mutex
	record   ProgressRecord
	paused   bool
	lastBeat time.Time
}

// RunFullImport executes the configured plan once. keyOverride, when
// non-empty, replaces the stored key for this run. skipResumeDialog
// restarts implicitly instead of prompting about an interrupted run.
//
// Exceeding the execution budget pauses the run: progress is kept, no
// error surfaces. The finalizer clears the active marker and releases
// the lock on every exit path.
func (o *Orchestrator) RunFullImport(ctx context.Context, keyOverride string, skipResumeDialog bool) error {
	started := o.clk.Now()

	locked := true
	if err := o.lock.Acquire(ctx, o.cfg.LockWait); err != nil {
		if o.tracker.IsActive() {
			o.dialogs.Notify("Import", "An import is already in progress")
			metrics.ImportRuns.WithLabelValues("contended").Inc()
			return nil
		}
		// Lock held but no fresh heartbeat: the holder is presumed crashed.
		logging.Warn().Err(err).Msg("Import lock unavailable but no live import, proceeding")
		locked = false
	}
	release := func() {
		if locked {
			o.lock.Release()
		}
	}

	if err := o.resolveKey(keyOverride); err != nil {
		release()
		if errors.Is(err, errSetupDeclined) {
			return nil
		}
		return err
	}

	if err := o.tracker.MarkActive(); err != nil {
		release()
		return err
	}
	defer func() {
		o.tracker.ClearActive()
		release()
	}()

	o.timers.CancelAll(TriggerImport)

	record, err := o.tracker.Progress()
	if err != nil {
		return err
	}
	if len(record.Completed) > 0 {
		choice := ui.Restart
		if !skipResumeDialog {
			choice = o.dialogs.PromptResume(record.Completed)
		}
		switch choice {
		case ui.Cancel:
			logging.Info().Msg("Import cancelled at resume prompt")
			return nil
		case ui.Restart:
			record = ProgressRecord{}
			if err := o.tracker.ClearProgress(); err != nil {
				return err
			}
		case ui.Resume:
			logging.Info().Strs("completed", record.Completed).Msg("Resuming interrupted import")
		}
	}

	run := &runState{record: record, lastBeat: started}
	cancelCheck := o.cancelCheck(started, run)

	if err := o.runPlan(ctx, run, cancelCheck); err != nil {
		return o.mapRunError(err, started)
	}

	run.mu.Lock()
	paused := run.paused
	run.mu.Unlock()
	if paused {
		metrics.RecordImportRun("paused", o.clk.Now().Sub(started))
		return nil
	}

	if err := o.tracker.ClearProgress(); err != nil {
		return err
	}
	o.dialogs.Notify("Import", "Workout import complete")
	metrics.RecordImportRun("success", o.clk.Now().Sub(started))
	return nil
}

// cancelCheck builds the cooperative deadline closure. While the budget
// holds it refreshes the heartbeat; the first time it fires it persists
// the checkpoint and emits the paused notice.
func (o *Orchestrator) cancelCheck(started time.Time, run *runState) hevy.CancelFunc {
	return func() bool {
		now := o.clk.Now()
		if now.Sub(started) > o.cfg.MaxExecutionTime {
			run.mu.Lock()
			first := !run.paused
			run.paused = true
			record := run.record
			run.mu.Unlock()
			if first {
				if err := o.tracker.SaveProgress(record); err != nil {
					logging.Error().Err(err).Msg("Failed to persist pause checkpoint")
				}
				o.dialogs.Notify("Import", "Import paused; run again to continue where it left off")
				logging.Info().Strs("completed", record.Completed).Msg("Import paused at execution budget")
			}
			return true
		}

		run.mu.Lock()
		refresh := now.Sub(run.lastBeat) >= o.cfg.HeartbeatInterval
		if refresh {
			run.lastBeat = now
		}
		run.mu.Unlock()
		if refresh {
			if err := o.tracker.Heartbeat(); err != nil {
				logging.Warn().Err(err).Msg("Heartbeat failed")
			}
		}
		return false
	}
}

func (o *Orchestrator) runPlan(ctx context.Context, run *runState, cancelCheck hevy.CancelFunc) error {
	for _, group := range o.plan {
		var pending []Step
		for _, step := range group {
			run.mu.Lock()
			done := run.record.Has(step.Name)
			run.mu.Unlock()
			if done {
				logging.Debug().Str("step", step.Name).Msg("Step already complete, skipping")
				continue
			}
			pending = append(pending, step)
		}
		if len(pending) == 0 {
			continue
		}
		if cancelCheck() {
			return nil
		}

		if len(pending) == 1 {
			if err := o.runStep(ctx, run, pending[0], cancelCheck); err != nil {
				return err
			}
			continue
		}

		g, gctx := errgroup.WithContext(ctx)
		for _, step := range pending {
			g.Go(func() error {
				return o.runStep(gctx, run, step, cancelCheck)
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
	}
	return nil
}

// runStep executes one step and checkpoints its completion. The durable
// record is re-read first so progress written by a concurrent execution
// is not lost; read, union, and persist happen under one lock so a slow
// goroutine cannot overwrite a newer checkpoint with a stale snapshot.
func (o *Orchestrator) runStep(ctx context.Context, run *runState, step Step, cancelCheck hevy.CancelFunc) error {
	start := o.clk.Now()
	logging.Info().Str("step", step.Name).Msg("Import step starting")
	if err := step.Run(ctx, cancelCheck); err != nil {
		return fmt.Errorf("step %s: %w", step.Name, err)
	}
	metrics.ImportStepDuration.WithLabelValues(step.Name).Observe(o.clk.Now().Sub(start).Seconds())

	run.mu.Lock()
	defer run.mu.Unlock()

	durable, err := o.tracker.Progress()
	if err != nil {
		return err
	}
	for _, name := range durable.Completed {
		run.record.Union(name)
	}
	run.record.Union(step.Name)

	return o.tracker.SaveProgress(run.record)
}

// errSetupDeclined marks the clean no-key exit path.
var errSetupDeclined = errors.New("setup declined")

// resolveKey settles on an API key: override, stored, or the initial
// setup prompt.
func (o *Orchestrator) resolveKey(override string) error {
	if override != "" {
		return o.persistKey(override)
	}

	raw, ok, err := o.store.Get(props.KeyAPIKey)
	if err != nil {
		return fmt.Errorf("failed to read API key: %w", err)
	}
	if ok && len(raw) > 0 {
		o.client.SetAPIKey(string(raw))
		return nil
	}

	key, entered := o.dialogs.PromptInitialSetup()
	if !entered {
		o.dialogs.Notify("Setup", "No API key configured; import skipped")
		return errSetupDeclined
	}
	return o.persistKey(key)
}

// mapRunError applies the orchestrator error policy: cancellation is a
// pause, a rejected key opens the re-enter dialog with progress kept,
// anything else is logged and re-raised.
func (o *Orchestrator) mapRunError(err error, started time.Time) error {
	var cancelled *hevy.CancelledError
	if errors.As(err, &cancelled) {
		logging.Info().Str("path", cancelled.Path).Msg("Import paused mid-step")
		metrics.RecordImportRun("paused", o.clk.Now().Sub(started))
		return nil
	}

	var apiErr *hevy.APIError
	if errors.Is(err, hevy.ErrInvalidAPIKey) || (errors.As(err, &apiErr) && apiErr.Status == 401) {
		metrics.RecordImportRun("unauthorized", o.clk.Now().Sub(started))
		if delErr := o.store.Delete(props.KeyAPIKey); delErr != nil {
			logging.Warn().Err(delErr).Msg("Failed to clear rejected API key")
		}
		key, entered := o.dialogs.PromptReenterKey()
		if !entered {
			o.dialogs.Notify("Setup", "API key rejected; import stopped")
			return nil
		}
		if saveErr := o.persistKey(key); saveErr != nil {
			return saveErr
		}
		o.dialogs.Notify("Setup", "API key updated; run the import again to continue")
		return nil
	}

	logging.Error().Err(err).Msg("Import failed")
	metrics.RecordImportRun("error", o.clk.Now().Sub(started))
	return err
}
